package server

import (
	"log/slog"
	"net/http"
	"time"

	"admin-reports/internal/handlers"
	"admin-reports/internal/reports"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

// NewServer routes the dashboard, JSON API and SSE endpoints to gen. Each
// report request is bounded by reportTimeout.
func NewServer(gen reports.Generator, logger *slog.Logger, reportTimeout time.Duration, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(gen, logger, reportTimeout),
		sseHandlers: handlers.NewSSEHandlers(gen, logger, reportTimeout),
	}
	s.setupRoutes(templateHandlers)
	return s
}

// RegisterStats publishes p under name on /admin/stats.
func (s *Server) RegisterStats(name string, p handlers.StatsProvider) {
	s.apiHandlers.RegisterStats(name, p)
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/reports/{kind}", s.apiHandlers.HandleReport)
	s.mux.HandleFunc("GET /api/monthly-sales", s.apiHandlers.HandleMonthlySales)
	s.mux.HandleFunc("GET /api/shares/{dimension}", s.apiHandlers.HandleShares)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/reports/{kind}", s.sseHandlers.HandleReport)
	s.mux.HandleFunc("GET /sse/monthly-sales", s.sseHandlers.HandleMonthlySales)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
