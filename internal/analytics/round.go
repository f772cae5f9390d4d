package analytics

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RoundPercent rounds to the nearest integer with ties away from zero.
func RoundPercent(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// Percent returns round(part / whole * 100). whole must be non-zero.
func Percent(part, whole decimal.Decimal) int64 {
	return RoundPercent(part.Mul(hundred).Div(whole))
}
