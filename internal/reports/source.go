package reports

import (
	"context"
	"time"

	"admin-reports/internal/models"
)

// RecordSource is the read-only data access the report engine needs. Query
// construction such as store scoping or role visibility belongs to the
// implementation, not to the engine.
type RecordSource interface {
	FindTransactions(ctx context.Context, filter models.TransactionFilter, start, end time.Time) ([]models.TransactionRecord, error)
	FindDimensions(ctx context.Context, kind models.DimensionKind, filter models.DimensionFilter) ([]models.CatalogDimension, error)
	FindUsers(ctx context.Context, filter models.UserFilter) ([]models.UserRecord, error)
}
