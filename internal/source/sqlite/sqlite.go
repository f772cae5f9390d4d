/*
Package sqlite provides a SQLite-backed RecordSource.

The schema mirrors what the report engine reads: transactions with their line
items, catalog dimensions and users. Timestamps are stored as fixed-width UTC
text so range predicates compare lexically. Amounts are stored as decimal
text.

USAGE:

	store, err := sqlite.New("./data/reports.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	if err := store.Import(ctx, dataset); err != nil {
	    log.Fatal(err)
	}
	orchestrator := reports.NewOrchestrator(store, logger)
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"admin-reports/internal/models"
	"admin-reports/internal/source"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements reports.RecordSource on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = ":memory:?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of stored transactions.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		occurred_at TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		category_id TEXT NOT NULL DEFAULT '',
		vendor_id TEXT NOT NULL DEFAULT '',
		customer_id TEXT NOT NULL DEFAULT '',
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_occurred_at
		ON transactions(occurred_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_status_occurred_at
		ON transactions(status, occurred_at);

	CREATE TABLE IF NOT EXISTS line_items (
		transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		PRIMARY KEY (transaction_id, position)
	);

	CREATE TABLE IF NOT EXISTS dimensions (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (kind, id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		order_count INTEGER NOT NULL DEFAULT 0,
		role TEXT NOT NULL DEFAULT 'customer',
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_created_at
		ON users(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Import appends a dataset in a single transaction. Insertion order is kept
// as the read order.
func (s *Store) Import(ctx context.Context, data source.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	base, err := nextSeq(ctx, tx, "transactions")
	if err != nil {
		return err
	}
	for i, r := range data.Transactions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, occurred_at, amount, status, category_id, vendor_id, customer_id, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, formatTime(r.OccurredAt), r.Amount.String(), string(r.Status),
			r.CategoryID, r.VendorID, r.CustomerID, base+i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", r.ID, err)
		}
		for pos, li := range r.LineItems {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO line_items (transaction_id, position, product_id, quantity, unit_price)
				VALUES (?, ?, ?, ?, ?)`,
				r.ID, pos, li.ProductID, li.Quantity, li.UnitPrice.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert line item %s/%d: %w", r.ID, pos, err)
			}
		}
	}

	base, err = nextSeq(ctx, tx, "dimensions")
	if err != nil {
		return err
	}
	for i, d := range data.Dimensions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dimensions (kind, id, name, seq) VALUES (?, ?, ?, ?)
			ON CONFLICT(kind, id) DO UPDATE SET name = excluded.name`,
			string(d.Kind), d.ID, d.Name, base+i,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert dimension %s/%s: %w", d.Kind, d.ID, err)
		}
	}

	base, err = nextSeq(ctx, tx, "users")
	if err != nil {
		return err
	}
	for i, u := range data.Users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, created_at, order_count, role, seq) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET order_count = excluded.order_count, role = excluded.role`,
			u.ID, formatTime(u.CreatedAt), u.OrderCount, string(u.Role), base+i,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) FindTransactions(ctx context.Context, filter models.TransactionFilter, start, end time.Time) ([]models.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT t.id, t.occurred_at, t.amount, t.status, t.category_id, t.vendor_id, t.customer_id,
		       li.product_id, li.quantity, li.unit_price
		FROM transactions t
		LEFT JOIN line_items li ON li.transaction_id = t.id
		WHERE t.occurred_at >= ? AND t.occurred_at < ?`
	args := []any{formatTime(start), formatTime(end)}

	if len(filter.Statuses) > 0 {
		query += " AND t.status IN (" + placeholders(len(filter.Statuses)) + ")"
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY t.seq ASC, li.position ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var scanned []source.TransactionRow
	for rows.Next() {
		var (
			row        source.TransactionRow
			occurredAt string
			status     string
		)
		err := rows.Scan(
			&row.Transaction.ID, &occurredAt, &row.Transaction.Amount, &status,
			&row.Transaction.CategoryID, &row.Transaction.VendorID, &row.Transaction.CustomerID,
			&row.ProductID, &row.Quantity, &row.UnitPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if row.Transaction.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		row.Transaction.Status = models.Status(status)
		scanned = append(scanned, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return source.FoldTransactionRows(scanned), nil
}

func (s *Store) FindDimensions(ctx context.Context, kind models.DimensionKind, filter models.DimensionFilter) ([]models.CatalogDimension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, name FROM dimensions WHERE kind = ?"
	args := []any{string(kind)}
	if len(filter.IDs) > 0 {
		query += " AND id IN (" + placeholders(len(filter.IDs)) + ")"
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dimensions: %w", err)
	}
	defer rows.Close()

	var dims []models.CatalogDimension
	for rows.Next() {
		d := models.CatalogDimension{Kind: kind}
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("failed to scan dimension: %w", err)
		}
		dims = append(dims, d)
	}
	return dims, rows.Err()
}

func (s *Store) FindUsers(ctx context.Context, filter models.UserFilter) ([]models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, created_at, order_count, role FROM users WHERE 1 = 1"
	var args []any
	if filter.ExcludeStaff {
		query += " AND role NOT IN (?, ?)"
		args = append(args, string(models.RoleStaff), string(models.RoleAdmin))
	}
	if !filter.CreatedBefore.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, formatTime(filter.CreatedBefore))
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.UserRecord
	for rows.Next() {
		var (
			u         models.UserRecord
			createdAt string
			role      string
		)
		if err := rows.Scan(&u.ID, &createdAt, &u.OrderCount, &role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if u.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func nextSeq(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	var next int
	err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), -1) + 1 FROM "+table).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s sequence: %w", table, err)
	}
	return next, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
