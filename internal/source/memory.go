// Package source provides RecordSource backends for the report engine: an
// in-process Memory store seeded from CSV, and SQL stores in the sqlite and
// postgres subpackages.
package source

import (
	"context"
	"slices"
	"sync"
	"time"

	"admin-reports/internal/models"
)

// Dataset is a complete set of records as loaded from CSV or built in tests.
type Dataset struct {
	Transactions []models.TransactionRecord
	Dimensions   []models.CatalogDimension
	Users        []models.UserRecord
}

// Memory is a RecordSource over an in-process Dataset. Records are returned
// in insertion order.
type Memory struct {
	mu   sync.RWMutex
	data Dataset
}

func NewMemory(data Dataset) *Memory {
	return &Memory{data: data}
}

func (m *Memory) AddTransactions(records ...models.TransactionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Transactions = append(m.data.Transactions, records...)
}

func (m *Memory) AddDimensions(dims ...models.CatalogDimension) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Dimensions = append(m.data.Dimensions, dims...)
}

func (m *Memory) AddUsers(users ...models.UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Users = append(m.data.Users, users...)
}

func (m *Memory) FindTransactions(ctx context.Context, filter models.TransactionFilter, start, end time.Time) ([]models.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.TransactionRecord, 0, len(m.data.Transactions))
	for _, r := range m.data.Transactions {
		if r.OccurredAt.Before(start) || !r.OccurredAt.Before(end) {
			continue
		}
		if !filter.Matches(r) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) FindDimensions(ctx context.Context, kind models.DimensionKind, filter models.DimensionFilter) ([]models.CatalogDimension, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.CatalogDimension
	for _, d := range m.data.Dimensions {
		if d.Kind != kind {
			continue
		}
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, d.ID) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *Memory) FindUsers(ctx context.Context, filter models.UserFilter) ([]models.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.UserRecord
	for _, u := range m.data.Users {
		if filter.Matches(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

// Stats summarises the loaded dataset.
func (m *Memory) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]any{
		"transactions": len(m.data.Transactions),
		"dimensions":   len(m.data.Dimensions),
		"users":        len(m.data.Users),
	}
}
