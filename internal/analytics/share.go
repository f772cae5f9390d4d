package analytics

import (
	"github.com/shopspring/decimal"

	"admin-reports/internal/models"
)

// Shares computes each known dimension's percentage of the grand total of
// totals. Known dimensions without a total get a zero share. When the grand
// total is zero every known dimension gets an equal share of 100.
//
// Entries follow the order of known; duplicate ids are collapsed. Because
// each entry is rounded on its own, the shares sum to 100 only within
// ±len(entries).
func Shares(totals map[string]decimal.Decimal, known []models.CatalogDimension) ([]models.ShareEntry, error) {
	dims := dedupe(known)
	if len(dims) == 0 {
		return nil, ErrEmptyDimensionSet
	}

	grand := decimal.Zero
	for _, v := range totals {
		grand = grand.Add(v)
	}

	entries := make([]models.ShareEntry, len(dims))
	if grand.IsZero() {
		equal := Percent(decimal.NewFromInt(1), decimal.NewFromInt(int64(len(dims))))
		for i, d := range dims {
			entries[i] = models.ShareEntry{CatalogDimension: d, Total: decimal.Zero, SharePercent: equal}
		}
		return entries, nil
	}

	for i, d := range dims {
		total, ok := totals[d.ID]
		if !ok {
			total = decimal.Zero
		}
		entries[i] = models.ShareEntry{
			CatalogDimension: d,
			Total:            total,
			SharePercent:     Percent(total, grand),
		}
	}
	return entries, nil
}

func dedupe(known []models.CatalogDimension) []models.CatalogDimension {
	seen := make(map[string]struct{}, len(known))
	out := make([]models.CatalogDimension, 0, len(known))
	for _, d := range known {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}
