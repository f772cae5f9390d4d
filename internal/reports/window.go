package reports

import (
	"fmt"
	"strings"
	"time"

	"admin-reports/internal/errors"
)

const dateLayout = "2006-01-02"

// Window is a validated report range. End is the last instant of its
// calendar day.
type Window struct {
	Start time.Time
	End   time.Time
}

// EndExclusive is the midnight following End.
func (w Window) EndExclusive() time.Time {
	return w.End.Add(time.Nanosecond)
}

func (w Window) String() string {
	return w.Start.Format(dateLayout) + ".." + w.End.Format(dateLayout)
}

// Key identifies the window by its exact UTC instants. Windows that differ
// only in time of day or offset get different keys.
func (w Window) Key() string {
	return w.Start.UTC().Format(time.RFC3339Nano) + ".." + w.End.UTC().Format(time.RFC3339Nano)
}

// NewWindow extends end to the close of its day and rejects a start after
// that instant.
func NewWindow(start, end time.Time) (Window, error) {
	last := endOfDay(end)
	if last.Before(start) {
		return Window{}, errors.InvalidDateRange(fmt.Sprintf("end %s is before start %s",
			end.Format(dateLayout), start.Format(time.RFC3339)))
	}
	return Window{Start: start, End: last}, nil
}

// ParseWindow parses two dates given as YYYY-MM-DD or RFC3339.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseDate(start)
	if err != nil {
		return Window{}, errors.InvalidDateRangeWrap(err, fmt.Sprintf("invalid start date %q", start))
	}
	e, err := parseDate(end)
	if err != nil {
		return Window{}, errors.InvalidDateRangeWrap(err, fmt.Sprintf("invalid end date %q", end))
	}
	return NewWindow(s, e)
}

// CheckYear rejects years outside 1..9999.
func CheckYear(year int) error {
	if year < 1 || year > 9999 {
		return errors.InvalidDateRange(fmt.Sprintf("invalid year %d", year))
	}
	return nil
}

// YearWindow covers January 1 through December 31 of year in UTC.
func YearWindow(year int) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: endOfDay(time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC))}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}
