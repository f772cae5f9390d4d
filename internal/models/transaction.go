package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
	StatusRefunded,
}

// SalesStatuses are the statuses counted as realised revenue.
var SalesStatuses = []Status{StatusCompleted, StatusDelivered, StatusShipped}

func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// UncategorizedID is the dimension id assigned to records without a category.
const (
	UncategorizedID   = "uncategorized"
	UncategorizedName = "Uncategorized"
)

type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (li LineItem) Revenue() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// TransactionRecord is a read-only order fact delivered by a RecordSource.
type TransactionRecord struct {
	ID         string          `json:"id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Amount     decimal.Decimal `json:"amount"`
	Status     Status          `json:"status"`
	CategoryID string          `json:"category_id,omitempty"`
	VendorID   string          `json:"vendor_id,omitempty"`
	CustomerID string          `json:"customer_id,omitempty"`
	LineItems  []LineItem      `json:"line_items,omitempty"`
}

// CategoryRef returns the category dimension id, substituting
// UncategorizedID when the record carries none.
func (r TransactionRecord) CategoryRef() string {
	if r.CategoryID == "" {
		return UncategorizedID
	}
	return r.CategoryID
}

func (r TransactionRecord) DimensionRef(kind DimensionKind) string {
	switch kind {
	case DimensionCategory:
		return r.CategoryRef()
	case DimensionVendor:
		return r.VendorID
	default:
		return ""
	}
}

type DimensionKind string

const (
	DimensionCategory DimensionKind = "category"
	DimensionVendor   DimensionKind = "vendor"
	DimensionProduct  DimensionKind = "product"
)

func ParseDimensionKind(raw string) (DimensionKind, bool) {
	switch k := DimensionKind(strings.ToLower(raw)); k {
	case DimensionCategory, DimensionVendor, DimensionProduct:
		return k, true
	}
	return "", false
}

type CatalogDimension struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Kind DimensionKind `json:"kind"`
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

type UserRecord struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	OrderCount int       `json:"order_count"`
	Role       Role      `json:"role"`
}

func (u UserRecord) IsStaff() bool {
	return u.Role == RoleStaff || u.Role == RoleAdmin
}

// TransactionFilter narrows findTransactions. An empty Statuses slice means any status.
type TransactionFilter struct {
	Statuses []Status
}

func (f TransactionFilter) Matches(r TransactionRecord) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}

type DimensionFilter struct {
	IDs []string
}

type UserFilter struct {
	ExcludeStaff  bool
	CreatedBefore time.Time
}

func (f UserFilter) Matches(u UserRecord) bool {
	if f.ExcludeStaff && u.IsStaff() {
		return false
	}
	if !f.CreatedBefore.IsZero() && u.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	return true
}
