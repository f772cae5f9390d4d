package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"admin-reports/internal/errors"
	"admin-reports/internal/models"
	"admin-reports/internal/observability"
	"admin-reports/internal/reports"
	"admin-reports/internal/ui/templates"
)

type SSEHandlers struct {
	reports reports.Generator
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewSSEHandlers(gen reports.Generator, logger *slog.Logger, timeout time.Duration) *SSEHandlers {
	return &SSEHandlers{
		reports: gen,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// reportSignal is the Datastar signal a report kind is patched into.
func reportSignal(kind models.ReportKind) string {
	return string(kind) + "Report"
}

// HandleReport streams one report: its payload as a signal, then the
// rendered section. Failures replace the section with an error message.
func (h *SSEHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	req := reportRequest(r, h.now())
	if !req.Kind.Valid() {
		errors.WriteError(w, h.logger, errors.UnknownReportKind(string(req.Kind)), observability.GetRequestID(r.Context()))
		return
	}

	sse := datastar.NewSSE(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sectionID := string(req.Kind) + "-content"
	report, err := h.reports.Generate(ctx, req)
	if err != nil {
		h.patchError(ctx, sse, sectionID, err)
		return
	}

	signals, err := json.Marshal(map[string]any{reportSignal(req.Kind): report})
	if err != nil {
		h.logger.Error("marshal report signals", "kind", req.Kind, "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		h.logger.Warn("patch report signals", "kind", req.Kind, "error", err)
		return
	}

	h.patchComponent(ctx, sse, templates.ReportContent(report))
}

func (h *SSEHandlers) HandleMonthlySales(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query().Get("year"), h.now())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	sse := datastar.NewSSE(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	data, err := h.reports.MonthlySales(ctx, year)
	if err != nil {
		h.patchError(ctx, sse, "monthly-content", err)
		return
	}

	signals, err := json.Marshal(map[string]any{"monthlySales": data})
	if err != nil {
		h.logger.Error("marshal monthly data", "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		h.logger.Warn("patch monthly signals", "error", err)
		return
	}

	h.patchComponent(ctx, sse, templates.MonthlyContent(data))
}

func (h *SSEHandlers) patchComponent(ctx context.Context, sse *datastar.ServerSentEventGenerator, c templ.Component) {
	html, err := templates.RenderString(ctx, c)
	if err != nil {
		h.logger.Error("render section", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logger.Warn("patch elements", "error", err)
	}
}

func (h *SSEHandlers) patchError(ctx context.Context, sse *datastar.ServerSentEventGenerator, sectionID string, err error) {
	code := errors.Kind(err)
	if code == "" {
		code = errors.CodeInternal
	}
	h.logger.Error("sse report failed",
		"section", sectionID,
		"error_code", code,
		"error", err,
		"request_id", observability.GetRequestID(ctx),
	)

	message := fmt.Sprintf("%s: report unavailable", code)
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = fmt.Sprintf("%s: %s", appErr.Code, appErr.Message)
	}
	h.patchComponent(ctx, sse, templates.ErrorContent(sectionID, message))
}
