package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"admin-reports/internal/errors"
	"admin-reports/internal/models"
	"admin-reports/internal/reports"
)

const dateLayout = "2006-01-02"

// DefaultRange is January 1 of now's year through now.
func DefaultRange(now time.Time) (start, end string) {
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()).Format(dateLayout), now.Format(dateLayout)
}

// reportRequest reads the kind from the path and the window from start and
// end. When both dates are absent the window is the year to date.
func reportRequest(r *http.Request, now time.Time) reports.Request {
	req := reports.Request{
		Kind:  models.ReportKind(r.PathValue("kind")),
		Start: r.URL.Query().Get("start"),
		End:   r.URL.Query().Get("end"),
	}
	if req.Start == "" && req.End == "" {
		req.Start, req.End = DefaultRange(now)
	}
	return req
}

func shareWindow(r *http.Request, now time.Time) (reports.Window, error) {
	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	if start == "" && end == "" {
		start, end = DefaultRange(now)
	}
	return reports.ParseWindow(start, end)
}

// parseYear defaults to now's year when raw is empty.
func parseYear(raw string, now time.Time) (int, error) {
	if raw == "" {
		return now.Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidDateRange(fmt.Sprintf("invalid year %q", raw))
	}
	if err := reports.CheckYear(year); err != nil {
		return 0, err
	}
	return year, nil
}

func parseDimension(raw string) (models.DimensionKind, error) {
	kind, ok := models.ParseDimensionKind(raw)
	if !ok {
		return "", errors.BadRequest(fmt.Sprintf("unknown dimension %q, must be one of: category, vendor, product", raw))
	}
	return kind, nil
}
