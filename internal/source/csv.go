package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"admin-reports/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10

	// transaction_id,occurred_at,status,customer_id,category_id,category_name,
	// vendor_id,vendor_name,product_id,product_name,quantity,unit_price
	lineItemColumns = 12
	// user_id,created_at,role
	userColumns = 3
)

type lineItemRow struct {
	transactionID string
	occurredAt    time.Time
	status        models.Status
	customerID    string
	category      models.CatalogDimension
	vendor        models.CatalogDimension
	product       models.CatalogDimension
	item          models.LineItem
}

// LoadCSV builds a Dataset from a line-item CSV and an optional users CSV.
// Order counts on users are derived from the transactions.
func LoadCSV(ctx context.Context, transactionsPath, usersPath string) (Dataset, error) {
	f, err := os.Open(transactionsPath)
	if err != nil {
		return Dataset{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	data, err := ReadTransactionsCSV(ctx, f)
	if err != nil {
		return Dataset{}, fmt.Errorf("read %s: %w", transactionsPath, err)
	}

	if usersPath == "" {
		return data, nil
	}

	uf, err := os.Open(usersPath)
	if err != nil {
		return Dataset{}, fmt.Errorf("open file: %w", err)
	}
	defer uf.Close()

	users, err := ReadUsersCSV(ctx, uf)
	if err != nil {
		return Dataset{}, fmt.Errorf("read %s: %w", usersPath, err)
	}
	data.Users = WithOrderCounts(users, data.Transactions)
	return data, nil
}

// ReadTransactionsCSV parses line-item rows in batches and folds rows sharing
// a transaction id into one TransactionRecord whose amount is the sum of its
// line revenue. Malformed rows are skipped; a file with no valid rows is an
// error.
func ReadTransactionsCSV(ctx context.Context, r io.Reader) (Dataset, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	if !scanner.Scan() {
		return Dataset{}, fmt.Errorf("empty file")
	}

	var rows []lineItemRow
	batch := make([]string, 0, batchSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		batch = append(batch, scanner.Text())
		if len(batch) >= batchSize {
			parsed, err := parseBatch(ctx, batch)
			if err != nil {
				return Dataset{}, err
			}
			rows = append(rows, parsed...)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		parsed, err := parseBatch(ctx, batch)
		if err != nil {
			return Dataset{}, err
		}
		rows = append(rows, parsed...)
	}
	if err := scanner.Err(); err != nil {
		return Dataset{}, fmt.Errorf("scan error: %w", err)
	}
	if len(rows) == 0 {
		return Dataset{}, fmt.Errorf("no valid records found")
	}

	return foldRows(rows), nil
}

// parseBatch parses lines concurrently, keeping input order and dropping
// lines that fail to parse.
func parseBatch(ctx context.Context, batch []string) ([]lineItemRow, error) {
	parsed := make([]lineItemRow, len(batch))
	valid := make([]bool, len(batch))

	var g errgroup.Group
	g.SetLimit(maxWorkers)
	for i, line := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, err := parseLineItemRow(strings.Split(line, ","))
			if err != nil {
				return nil
			}
			parsed[i] = row
			valid[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := parsed[:0]
	for i, ok := range valid {
		if ok {
			out = append(out, parsed[i])
		}
	}
	return out, nil
}

func parseLineItemRow(record []string) (lineItemRow, error) {
	if len(record) < lineItemColumns {
		return lineItemRow{}, fmt.Errorf("insufficient columns")
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	if record[0] == "" {
		return lineItemRow{}, fmt.Errorf("missing transaction id")
	}
	occurredAt, err := parseTime(record[1])
	if err != nil {
		return lineItemRow{}, err
	}
	status, err := models.ParseStatus(record[2])
	if err != nil {
		return lineItemRow{}, err
	}
	if record[8] == "" {
		return lineItemRow{}, fmt.Errorf("missing product id")
	}
	quantity, err := strconv.Atoi(record[10])
	if err != nil {
		return lineItemRow{}, err
	}
	if quantity < 0 {
		return lineItemRow{}, fmt.Errorf("negative quantity %d", quantity)
	}
	price, err := decimal.NewFromString(record[11])
	if err != nil {
		return lineItemRow{}, err
	}
	if price.IsNegative() {
		return lineItemRow{}, fmt.Errorf("negative unit price %s", price)
	}

	return lineItemRow{
		transactionID: record[0],
		occurredAt:    occurredAt,
		status:        status,
		customerID:    record[3],
		category:      models.CatalogDimension{ID: record[4], Name: record[5], Kind: models.DimensionCategory},
		vendor:        models.CatalogDimension{ID: record[6], Name: record[7], Kind: models.DimensionVendor},
		product:       models.CatalogDimension{ID: record[8], Name: record[9], Kind: models.DimensionProduct},
		item:          models.LineItem{ProductID: record[8], Quantity: quantity, UnitPrice: price},
	}, nil
}

func foldRows(rows []lineItemRow) Dataset {
	var data Dataset
	index := make(map[string]int)
	dimSeen := make(map[models.DimensionKind]map[string]struct{})

	addDim := func(d models.CatalogDimension) {
		if d.ID == "" {
			return
		}
		seen, ok := dimSeen[d.Kind]
		if !ok {
			seen = make(map[string]struct{})
			dimSeen[d.Kind] = seen
		}
		if _, ok := seen[d.ID]; ok {
			return
		}
		seen[d.ID] = struct{}{}
		if d.Name == "" {
			d.Name = d.ID
		}
		data.Dimensions = append(data.Dimensions, d)
	}

	for _, row := range rows {
		addDim(row.category)
		addDim(row.vendor)
		addDim(row.product)

		i, ok := index[row.transactionID]
		if !ok {
			i = len(data.Transactions)
			index[row.transactionID] = i
			data.Transactions = append(data.Transactions, models.TransactionRecord{
				ID:         row.transactionID,
				OccurredAt: row.occurredAt,
				Amount:     decimal.Zero,
				Status:     row.status,
				CategoryID: row.category.ID,
				VendorID:   row.vendor.ID,
				CustomerID: row.customerID,
			})
		}
		tx := &data.Transactions[i]
		tx.LineItems = append(tx.LineItems, row.item)
		tx.Amount = tx.Amount.Add(row.item.Revenue())
	}
	return data
}

// ReadUsersCSV parses user_id,created_at,role rows. Malformed rows are skipped.
func ReadUsersCSV(ctx context.Context, r io.Reader) ([]models.UserRecord, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty file")
	}

	var users []models.UserRecord
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record := strings.Split(scanner.Text(), ",")
		if len(record) < userColumns {
			continue
		}
		createdAt, err := parseTime(strings.TrimSpace(record[1]))
		if err != nil {
			continue
		}
		role := models.Role(strings.ToLower(strings.TrimSpace(record[2])))
		if role == "" {
			role = models.RoleCustomer
		}
		users = append(users, models.UserRecord{
			ID:        strings.TrimSpace(record[0]),
			CreatedAt: createdAt,
			Role:      role,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan error: %w", err)
	}
	return users, nil
}

// WithOrderCounts sets each user's OrderCount to the number of transactions
// placed under their id.
func WithOrderCounts(users []models.UserRecord, txs []models.TransactionRecord) []models.UserRecord {
	counts := make(map[string]int)
	for _, tx := range txs {
		if tx.CustomerID != "" {
			counts[tx.CustomerID]++
		}
	}
	out := make([]models.UserRecord, len(users))
	for i, u := range users {
		u.OrderCount = counts[u.ID]
		out[i] = u
	}
	return out
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
