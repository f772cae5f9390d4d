package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"admin-reports/internal/models"
)

// Cache stores serialised report payloads by key.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// CachedGenerator serves reports from a Cache and falls back to the wrapped
// Generator on a miss. Cache failures are logged and never fail a report.
type CachedGenerator struct {
	next   Generator
	cache  Cache
	logger *slog.Logger
}

func NewCachedGenerator(next Generator, cache Cache, logger *slog.Logger) *CachedGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedGenerator{next: next, cache: cache, logger: logger}
}

func (c *CachedGenerator) Generate(ctx context.Context, req Request) (*models.Report, error) {
	// Validation errors must surface without touching the cache.
	w, err := ParseWindow(req.Start, req.End)
	if err != nil {
		return c.next.Generate(ctx, req)
	}
	if !req.Kind.Valid() {
		return c.next.Generate(ctx, req)
	}

	key := fmt.Sprintf("report:%s:%s", req.Kind, w.Key())
	var report models.Report
	if c.lookup(ctx, key, &report) {
		return &report, nil
	}

	out, err := c.next.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, out)
	return out, nil
}

func (c *CachedGenerator) MonthlySales(ctx context.Context, year int) (*models.MonthlySales, error) {
	key := "monthly-sales:" + strconv.Itoa(year)
	var sales models.MonthlySales
	if c.lookup(ctx, key, &sales) {
		return &sales, nil
	}

	out, err := c.next.MonthlySales(ctx, year)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, out)
	return out, nil
}

func (c *CachedGenerator) DimensionShares(ctx context.Context, kind models.DimensionKind, w Window) (*models.DimensionShares, error) {
	key := fmt.Sprintf("shares:%s:%s", kind, w.Key())
	var shares models.DimensionShares
	if c.lookup(ctx, key, &shares) {
		return &shares, nil
	}

	out, err := c.next.DimensionShares(ctx, kind, w)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, out)
	return out, nil
}

func (c *CachedGenerator) lookup(ctx context.Context, key string, dst any) bool {
	hit, err := c.cache.Get(ctx, key, dst)
	if err != nil {
		c.logger.Warn("report cache read failed", "key", key, "error", err)
		return false
	}
	if !hit {
		c.logger.Debug("report cache miss", "key", key)
	}
	return hit
}

func (c *CachedGenerator) store(ctx context.Context, key string, value any) {
	if err := c.cache.Set(ctx, key, value); err != nil {
		c.logger.Warn("report cache write failed", "key", key, "error", err)
	}
}
