// Package postgres reads report records from the storefront's PostgreSQL
// reporting replica. It never writes.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"admin-reports/internal/models"
	"admin-reports/internal/source"
)

// Store implements reports.RecordSource over the orders, order_items,
// catalog_dimensions and users tables.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindTransactions(ctx context.Context, filter models.TransactionFilter, start, end time.Time) ([]models.TransactionRecord, error) {
	query := `
		SELECT o.id, o.occurred_at, o.amount, o.status,
		       COALESCE(o.category_id, ''), COALESCE(o.vendor_id, ''), COALESCE(o.customer_id, ''),
		       oi.product_id, oi.quantity, oi.unit_price
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE o.occurred_at >= $1 AND o.occurred_at < $2`
	args := []any{start, end}
	if len(filter.Statuses) > 0 {
		query += " AND o.status = ANY($3)"
		args = append(args, pq.Array(source.StatusStrings(filter.Statuses)))
	}
	query += " ORDER BY o.occurred_at ASC, o.id ASC, oi.id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var scanned []source.TransactionRow
	for rows.Next() {
		var (
			row    source.TransactionRow
			status string
		)
		err := rows.Scan(
			&row.Transaction.ID, &row.Transaction.OccurredAt, &row.Transaction.Amount, &status,
			&row.Transaction.CategoryID, &row.Transaction.VendorID, &row.Transaction.CustomerID,
			&row.ProductID, &row.Quantity, &row.UnitPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		row.Transaction.Status = models.Status(status)
		scanned = append(scanned, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return source.FoldTransactionRows(scanned), nil
}

func (s *Store) FindDimensions(ctx context.Context, kind models.DimensionKind, filter models.DimensionFilter) ([]models.CatalogDimension, error) {
	query := "SELECT id, name FROM catalog_dimensions WHERE kind = $1"
	args := []any{string(kind)}
	if len(filter.IDs) > 0 {
		query += " AND id = ANY($2)"
		args = append(args, pq.Array(filter.IDs))
	}
	query += " ORDER BY name ASC"

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
	var (
		where []string
		args  []any
	)
	if filter.ExcludeStaff {
		args = append(args, pq.Array([]string{string(models.RoleStaff), string(models.RoleAdmin)}))
		where = append(where, "u.role <> ALL($"+strconv.Itoa(len(args))+")")
	}
	if !filter.CreatedBefore.IsZero() {
		args = append(args, filter.CreatedBefore)
		where = append(where, "u.created_at <= $"+strconv.Itoa(len(args)))
	}

	query := `
		SELECT u.id, u.created_at, u.role,
		       (SELECT COUNT(*) FROM orders o WHERE o.customer_id = u.id) AS order_count
		FROM users u`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY u.created_at ASC, u.id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.UserRecord
	for rows.Next() {
		var (
			u    models.UserRecord
			role string
		)
		if err := rows.Scan(&u.ID, &u.CreatedAt, &role, &u.OrderCount); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Role = models.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}
