package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-reports/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

var orderColumns = []string{
	"id", "occurred_at", "amount", "status", "category_id", "vendor_id", "customer_id",
	"product_id", "quantity", "unit_price",
}

func TestStore_FindTransactions(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	placed := time.Date(2024, time.January, 10, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows(orderColumns).
		AddRow("o1", placed, "40.00", "delivered", "books", "v1", "u1", "p1", int64(2), "15.00").
		AddRow("o1", placed, "40.00", "delivered", "books", "v1", "u1", "p2", int64(1), "10.00").
		AddRow("o2", placed, "7.25", "shipped", "", "", "u2", nil, nil, nil)

	mock.ExpectQuery(`FROM orders o\s+LEFT JOIN order_items oi`).
		WithArgs(start, end, sqlmock.AnyArg()).
		WillReturnRows(rows)

	got, err := store.FindTransactions(context.Background(),
		models.TransactionFilter{Statuses: models.SalesStatuses}, start, end)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "o1", got[0].ID)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("40")))
	assert.Equal(t, models.StatusDelivered, got[0].Status)
	require.Len(t, got[0].LineItems, 2)
	assert.Equal(t, 2, got[0].LineItems[0].Quantity)
	assert.True(t, got[0].LineItems[0].UnitPrice.Equal(decimal.RequireFromString("15")))

	assert.Equal(t, "o2", got[1].ID)
	assert.Empty(t, got[1].LineItems)
	assert.Equal(t, models.UncategorizedID, got[1].CategoryRef())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindTransactions_NoStatusFilter(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	mock.ExpectQuery(`FROM orders o`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows(orderColumns))

	got, err := store.FindTransactions(context.Background(), models.TransactionFilter{}, start, end)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindTransactions_QueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM orders o`).WillReturnError(errors.New("connection reset"))

	_, err := store.FindTransactions(context.Background(), models.TransactionFilter{}, time.Time{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStore_FindDimensions(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, name FROM catalog_dimensions WHERE kind = \$1 AND id = ANY\(\$2\)`).
		WithArgs("category", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("books", "Books").
			AddRow("games", "Games"))

	dims, err := store.FindDimensions(context.Background(), models.DimensionCategory,
		models.DimensionFilter{IDs: []string{"books", "games"}})
	require.NoError(t, err)
	require.Len(t, dims, 2)
	assert.Equal(t, models.CatalogDimension{ID: "games", Name: "Games", Kind: models.DimensionCategory}, dims[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindUsers(t *testing.T) {
	store, mock := newMockStore(t)
	before := time.Date(2024, time.June, 30, 23, 59, 59, 0, time.UTC)
	created := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM users u WHERE u.role <> ALL\(\$1\) AND u.created_at <= \$2`).
		WithArgs(sqlmock.AnyArg(), before).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "role", "order_count"}).
			AddRow("u1", created, "customer", int64(3)))

	users, err := store.FindUsers(context.Background(), models.UserFilter{ExcludeStaff: true, CreatedBefore: before})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 3, users[0].OrderCount)
	assert.Equal(t, models.RoleCustomer, users[0].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
