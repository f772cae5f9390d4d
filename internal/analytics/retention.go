package analytics

import (
	"github.com/shopspring/decimal"

	"admin-reports/internal/models"
)

// Retention reports how many customers placed more than one order.
func Retention(customerOrderCounts []int) models.RetentionSnapshot {
	snap := models.RetentionSnapshot{TotalCustomers: len(customerOrderCounts)}
	for _, c := range customerOrderCounts {
		if c > 1 {
			snap.RepeatCustomers++
		}
	}
	if snap.TotalCustomers == 0 {
		return snap
	}
	snap.RetentionRatePercent = Percent(
		decimal.NewFromInt(int64(snap.RepeatCustomers)),
		decimal.NewFromInt(int64(snap.TotalCustomers)),
	)
	return snap
}
