package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type BucketKey struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func (k BucketKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

func (k BucketKey) Start(loc *time.Location) time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, loc)
}

func (k BucketKey) Next() BucketKey {
	if k.Month == time.December {
		return BucketKey{Year: k.Year + 1, Month: time.January}
	}
	return BucketKey{Year: k.Year, Month: k.Month + 1}
}

func (k BucketKey) Before(other BucketKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

func KeyOf(t time.Time) BucketKey {
	return BucketKey{Year: t.Year(), Month: t.Month()}
}

type TimeBucket struct {
	Key   BucketKey       `json:"key"`
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type GrowthPoint struct {
	TimeBucket
	GrowthPercent int64 `json:"growth_percent"`
}

type ShareEntry struct {
	CatalogDimension
	Total        decimal.Decimal `json:"total"`
	SharePercent int64           `json:"share_percent"`
}

type RetentionSnapshot struct {
	TotalCustomers       int   `json:"total_customers"`
	RepeatCustomers      int   `json:"repeat_customers"`
	RetentionRatePercent int64 `json:"retention_rate_percent"`
}

type ReportKind string

const (
	ReportSales     ReportKind = "sales"
	ReportProducts  ReportKind = "products"
	ReportCustomers ReportKind = "customers"
)

func (k ReportKind) Valid() bool {
	switch k {
	case ReportSales, ReportProducts, ReportCustomers:
		return true
	}
	return false
}

type SalesSummary struct {
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	OrderCount        int             `json:"order_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type CategoryRevenue struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Total      decimal.Decimal `json:"total"`
	OrderCount int             `json:"order_count"`
}

type ProductRevenue struct {
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
	OrderCount int             `json:"order_count"`
}

// Report is the assembled output of one report request. Only the sections
// produced by Kind are populated.
type Report struct {
	Kind         ReportKind         `json:"kind"`
	Start        time.Time          `json:"start"`
	End          time.Time          `json:"end"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Summary      *SalesSummary      `json:"summary,omitempty"`
	Monthly      []GrowthPoint      `json:"monthly,omitempty"`
	Categories   []CategoryRevenue  `json:"categories,omitempty"`
	TopProducts  []ProductRevenue   `json:"top_products,omitempty"`
	Retention    *RetentionSnapshot `json:"retention,omitempty"`
	NewCustomers []TimeBucket       `json:"new_customers,omitempty"`
}

type MonthlySales struct {
	Year   int             `json:"year"`
	Months []GrowthPoint   `json:"months"`
	Total  decimal.Decimal `json:"total"`
}

type DimensionShares struct {
	Kind       DimensionKind   `json:"kind"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Entries    []ShareEntry    `json:"entries"`
	// EqualSplit is set when no sales occurred and every dimension received an equal share.
	EqualSplit bool `json:"equal_split"`
}
