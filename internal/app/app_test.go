package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admin-reports/internal/config"
	"admin-reports/internal/models"
	"admin-reports/internal/reports"
)

const seedCSV = `transaction_id,occurred_at,status,customer_id,category_id,category_name,vendor_id,vendor_name,product_id,product_name,quantity,unit_price
T1,2024-01-10,delivered,U1,books,Books,v1,Acme,P1,Novel,2,15.00
T1,2024-01-10,delivered,U1,books,Books,v1,Acme,P2,Bookmark,1,2.50
T2,2024-02-03,completed,U2,games,Games,v2,Globex,P3,Chess,1,40.00
T3,2024-02-04,cancelled,U2,games,Games,v2,Globex,P3,Chess,5,40.00
`

const usersCSV = `user_id,created_at,role
U1,2023-12-01,customer
U2,2024-01-20,customer
S1,2024-01-01,staff
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSeed(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	tx := filepath.Join(dir, "transactions.csv")
	users := filepath.Join(dir, "users.csv")
	require.NoError(t, os.WriteFile(tx, []byte(seedCSV), 0o600))
	require.NoError(t, os.WriteFile(users, []byte(usersCSV), 0o600))
	return tx, users
}

func testConfig(driver, dsn, seed, users string) *config.Config {
	return &config.Config{
		Source: config.SourceConfig{Driver: driver, DSN: dsn, SeedCSV: seed, UsersCSV: users},
		Cache:  config.CacheConfig{TTL: time.Minute},
		Report: config.ReportConfig{Timeout: time.Second, TopProducts: 5},
	}
}

func salesTotal(t *testing.T, g reports.Generator) string {
	t.Helper()
	report, err := g.Generate(context.Background(), reports.Request{Kind: models.ReportSales, Start: "2024-01-01", End: "2024-02-29"})
	require.NoError(t, err)
	return report.Summary.TotalRevenue.StringFixed(2)
}

func TestNew_Memory(t *testing.T) {
	tx, users := writeSeed(t)
	e, err := New(context.Background(), testConfig(config.DriverMemory, "", tx, users), quietLogger())
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "72.50", salesTotal(t, e.Generator))
	assert.False(t, e.CacheEnabled)

	stats := e.Stats()
	assert.Equal(t, config.DriverMemory, stats["source_driver"])
	assert.Equal(t, 3, stats["dataset"].(map[string]any)["transactions"])

	report, err := e.Generator.Generate(context.Background(), reports.Request{Kind: models.ReportCustomers, Start: "2024-01-01", End: "2024-02-29"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Retention.TotalCustomers)
	assert.Equal(t, 1, report.Retention.RepeatCustomers)
}

func TestNew_SQLiteSeedsEmptyDatabase(t *testing.T) {
	tx, users := writeSeed(t)
	dsn := filepath.Join(t.TempDir(), "reports.db")

	e, err := New(context.Background(), testConfig(config.DriverSQLite, dsn, tx, users), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "72.50", salesTotal(t, e.Generator))
	require.NoError(t, e.Close())

	// A second start finds the data already there and does not re-import.
	e, err = New(context.Background(), testConfig(config.DriverSQLite, dsn, tx, users), quietLogger())
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, "72.50", salesTotal(t, e.Generator))
}

func TestNew_SQLiteMissingSeed(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "reports.db")
	e, err := New(context.Background(), testConfig(config.DriverSQLite, dsn, "does-not-exist.csv", ""), quietLogger())
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, "0.00", salesTotal(t, e.Generator))
}

func TestNew_MemoryMissingSeed(t *testing.T) {
	_, err := New(context.Background(), testConfig(config.DriverMemory, "", "does-not-exist.csv", ""), quietLogger())
	assert.Error(t, err)
}

func TestNew_WithRedisCache(t *testing.T) {
	tx, users := writeSeed(t)
	mr := miniredis.RunT(t)
	cfg := testConfig(config.DriverMemory, "", tx, users)
	cfg.Cache.RedisAddr = mr.Addr()

	e, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer e.Close()

	assert.True(t, e.CacheEnabled)
	assert.IsType(t, &reports.CachedGenerator{}, e.Generator)

	assert.Equal(t, "72.50", salesTotal(t, e.Generator))
	assert.True(t, mr.Exists("admin-reports:report:sales:2024-01-01T00:00:00Z..2024-02-29T23:59:59.999999999Z"))
	assert.Equal(t, "72.50", salesTotal(t, e.Generator))
}

func TestNew_RedisUnreachable(t *testing.T) {
	tx, users := writeSeed(t)
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(config.DriverMemory, "", tx, users)
	cfg.Cache.RedisAddr = addr
	_, err := New(context.Background(), cfg, quietLogger())
	assert.Error(t, err)
}
