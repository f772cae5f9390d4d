package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"admin-reports/internal/errors"
	"admin-reports/internal/observability"
	"admin-reports/internal/reports"
)

const cacheControl = "private, max-age=60"

// StatsProvider contributes a named section to /admin/stats.
type StatsProvider interface {
	Stats() map[string]any
}

// StatsFunc adapts a function to StatsProvider.
type StatsFunc func() map[string]any

func (f StatsFunc) Stats() map[string]any { return f() }

type APIHandlers struct {
	reports reports.Generator
	stats   map[string]StatsProvider
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewAPIHandlers(gen reports.Generator, logger *slog.Logger, timeout time.Duration) *APIHandlers {
	return &APIHandlers{
		reports: gen,
		stats:   make(map[string]StatsProvider),
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// RegisterStats adds a section to the admin stats response. It must be
// called before the server starts.
func (h *APIHandlers) RegisterStats(name string, p StatsProvider) {
	h.stats[name] = p
}

func (h *APIHandlers) context(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *APIHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	report, err := h.reports.Generate(ctx, reportRequest(r, h.now()))
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, report, map[string]string{"Cache-Control": cacheControl})
}

func (h *APIHandlers) HandleMonthlySales(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	year, err := parseYear(r.URL.Query().Get("year"), h.now())
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	data, err := h.reports.MonthlySales(ctx, year)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheControl})
}

func (h *APIHandlers) HandleShares(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	kind, err := parseDimension(r.PathValue("dimension"))
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}
	window, err := shareWindow(r, h.now())
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	data, err := h.reports.DimensionShares(ctx, kind, window)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheControl})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": h.now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]any, len(h.stats))
	for name, p := range h.stats {
		stats[name] = p.Stats()
	}

	errors.WriteSuccess(w, stats)
}
