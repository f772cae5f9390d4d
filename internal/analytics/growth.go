package analytics

import "admin-reports/internal/models"

// WithGrowth decorates each bucket with its percentage change over the
// preceding bucket. The first point, and any point following a zero total,
// has zero growth.
func WithGrowth(buckets []models.TimeBucket) []models.GrowthPoint {
	points := make([]models.GrowthPoint, len(buckets))
	for i, b := range buckets {
		points[i] = models.GrowthPoint{TimeBucket: b}
		if i == 0 {
			continue
		}
		prev := buckets[i-1].Total
		if prev.IsZero() {
			continue
		}
		points[i].GrowthPercent = Percent(b.Total.Sub(prev), prev)
	}
	return points
}
