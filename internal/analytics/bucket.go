package analytics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"admin-reports/internal/models"
)

// Entry is a single dated amount to be folded into a month bucket.
type Entry struct {
	At     time.Time
	Amount decimal.Decimal
}

// StatusSet is a set of transaction statuses.
type StatusSet map[models.Status]struct{}

func NewStatusSet(statuses ...models.Status) StatusSet {
	set := make(StatusSet, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

func (s StatusSet) Contains(status models.Status) bool {
	_, ok := s[status]
	return ok
}

// Complement returns every known status not in s.
func (s StatusSet) Complement() StatusSet {
	out := make(StatusSet)
	for _, status := range models.AllStatuses {
		if !s.Contains(status) {
			out[status] = struct{}{}
		}
	}
	return out
}

// MonthsBetween lists every calendar month touched by [start, end), in order,
// as months in start's location.
func MonthsBetween(start, end time.Time) ([]models.BucketKey, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: [%s, %s)", ErrInvalidWindow,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	last := models.KeyOf(end.Add(-time.Nanosecond).In(start.Location()))
	var keys []models.BucketKey
	for k := models.KeyOf(start); !last.Before(k); k = k.Next() {
		keys = append(keys, k)
	}
	return keys, nil
}

// Fold groups entries into month buckets covering [start, end). Months are
// calendar months in start's location, whatever location the entries carry.
// Entries outside the window are ignored. Months without entries are present
// with a zero total and count.
func Fold(entries []Entry, start, end time.Time) ([]models.TimeBucket, error) {
	keys, err := MonthsBetween(start, end)
	if err != nil {
		return nil, err
	}

	index := make(map[models.BucketKey]int, len(keys))
	buckets := make([]models.TimeBucket, len(keys))
	for i, k := range keys {
		index[k] = i
		buckets[i] = models.TimeBucket{Key: k, Label: k.String(), Total: decimal.Zero}
	}

	for _, e := range entries {
		if e.At.Before(start) || !e.At.Before(end) {
			continue
		}
		i, ok := index[models.KeyOf(e.At.In(start.Location()))]
		if !ok {
			continue
		}
		buckets[i].Total = buckets[i].Total.Add(e.Amount)
		buckets[i].Count++
	}

	return buckets, nil
}

// Bucket folds transaction amounts into monthly buckets over [start, end),
// skipping records whose status is in excluded.
func Bucket(records []models.TransactionRecord, start, end time.Time, excluded StatusSet) ([]models.TimeBucket, error) {
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		if excluded.Contains(r.Status) {
			continue
		}
		entries = append(entries, Entry{At: r.OccurredAt, Amount: r.Amount})
	}
	return Fold(entries, start, end)
}
