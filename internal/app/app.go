// Package app assembles the report engine from configuration. Both binaries
// build their RecordSource and Generator through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"admin-reports/internal/cache"
	"admin-reports/internal/config"
	"admin-reports/internal/reports"
	"admin-reports/internal/source"
	"admin-reports/internal/source/postgres"
	"admin-reports/internal/source/sqlite"
)

const seedTimeout = 30 * time.Second

// Engine is a ready Generator plus the resources backing it.
type Engine struct {
	Generator    reports.Generator
	Orchestrator *reports.Orchestrator
	Driver       string
	CacheEnabled bool

	memory  *source.Memory
	closers []func() error
}

// Stats describes the engine for /admin/stats.
func (e *Engine) Stats() map[string]any {
	stats := map[string]any{
		"source_driver": e.Driver,
		"cache_enabled": e.CacheEnabled,
	}
	if e.memory != nil {
		stats["dataset"] = e.memory.Stats()
	}
	return stats
}

// Close releases the cache client and the source, in that order.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	e := &Engine{Driver: cfg.Source.Driver}

	src, err := e.openSource(ctx, cfg.Source, logger)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.Orchestrator = reports.NewOrchestrator(src, logger, reports.WithTopProducts(cfg.Report.TopProducts))
	e.Generator = e.Orchestrator

	if cfg.Cache.Enabled() {
		rc, err := cache.Dial(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("connect report cache: %w", err)
		}
		e.closers = append(e.closers, rc.Close)
		e.Generator = reports.NewCachedGenerator(e.Orchestrator, rc, logger)
		e.CacheEnabled = true
		logger.Info("report cache enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	}

	return e, nil
}

func (e *Engine) openSource(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (reports.RecordSource, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		data, err := loadSeed(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		e.memory = source.NewMemory(data)
		return e.memory, nil

	case config.DriverSQLite:
		store, err := sqlite.New(cfg.DSN)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, store.Close)
		if err := seedSQLite(ctx, store, cfg, logger); err != nil {
			return nil, err
		}
		return store, nil

	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, store.Close)
		return store, nil
	}
	return nil, fmt.Errorf("unsupported source driver %q", cfg.Driver)
}

func loadSeed(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (source.Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()

	start := time.Now()
	data, err := source.LoadCSV(ctx, cfg.SeedCSV, cfg.UsersCSV)
	if err != nil {
		return source.Dataset{}, fmt.Errorf("load seed CSV: %w", err)
	}
	logger.Info("CSV data loaded successfully",
		"file", cfg.SeedCSV,
		"transactions", len(data.Transactions),
		"users", len(data.Users),
		"duration", time.Since(start),
	)
	return data, nil
}

// seedSQLite imports the seed CSV into an empty database. A missing seed
// file leaves the database as it is.
func seedSQLite(ctx context.Context, store *sqlite.Store, cfg config.SourceConfig, logger *slog.Logger) error {
	if cfg.SeedCSV == "" {
		return nil
	}
	if _, err := os.Stat(cfg.SeedCSV); errors.Is(err, fs.ErrNotExist) {
		logger.Warn("sqlite seed CSV not found, skipping import", "file", cfg.SeedCSV)
		return nil
	}
	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Debug("sqlite source already populated", "transactions", n)
		return nil
	}

	data, err := loadSeed(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := store.Import(ctx, data); err != nil {
		return fmt.Errorf("import seed CSV: %w", err)
	}
	return nil
}
