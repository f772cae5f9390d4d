package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"admin-reports/internal/app"
	"admin-reports/internal/config"
	"admin-reports/internal/handlers"
	"admin-reports/internal/middleware"
	"admin-reports/internal/observability"
	"admin-reports/internal/server"
	"admin-reports/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	startupTimeout = 45 * time.Second
	cacheMaxAge    = "private, max-age=60"
)

// handleDashboard serves the page for the year to date; sections load over SSE.
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	now := time.Now()
	start, end := handlers.DefaultRange(now)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard(templates.DashboardProps{Year: now.Year(), Start: start, End: end}).Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func newHandler(cfg *config.Config, engine *app.Engine, logger *slog.Logger) http.Handler {
	srv := server.NewServer(engine.Generator, logger, cfg.Report.Timeout, &server.TemplateHandlers{
		Dashboard: handleDashboard,
	})
	srv.RegisterStats("reports", engine.Orchestrator)
	srv.RegisterStats("service", engine)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"source_driver", cfg.Source.Driver,
		"cache_enabled", cfg.Cache.Enabled(),
		"addr", cfg.Address(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	engine, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialise report engine", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, engine, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("closing report engine")
		return engine.Close()
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(context.Background()); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
