package reports

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"admin-reports/internal/analytics"
	"admin-reports/internal/errors"
	"admin-reports/internal/models"
	"admin-reports/internal/observability"
)

const DefaultTopProducts = 10

// Request asks for one report over an inclusive date range.
type Request struct {
	Kind  models.ReportKind `json:"kind"`
	Start string            `json:"start"`
	End   string            `json:"end"`
}

// Generator is implemented by Orchestrator and by CachedGenerator.
type Generator interface {
	Generate(ctx context.Context, req Request) (*models.Report, error)
	MonthlySales(ctx context.Context, year int) (*models.MonthlySales, error)
	DimensionShares(ctx context.Context, kind models.DimensionKind, w Window) (*models.DimensionShares, error)
}

type Option func(*Orchestrator)

func WithTopProducts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.topProducts = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator derives reports from a RecordSource. It holds no per-request
// state and is safe for concurrent use.
type Orchestrator struct {
	source      RecordSource
	logger      *slog.Logger
	topProducts int
	now         func() time.Time
	salesFilter models.TransactionFilter
	excluded    analytics.StatusSet

	generated    atomic.Int64
	failed       atomic.Int64
	lastDuration atomic.Int64
}

func NewOrchestrator(source RecordSource, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		source:      source,
		logger:      logger,
		topProducts: DefaultTopProducts,
		now:         time.Now,
		salesFilter: models.TransactionFilter{Statuses: models.SalesStatuses},
		excluded:    analytics.NewStatusSet(models.SalesStatuses...).Complement(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate validates the request window and builds the report for its kind.
// Either the whole report is returned or an *errors.AppError; unknown kinds
// and bad windows fail before the source is queried.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*models.Report, error) {
	w, err := ParseWindow(req.Start, req.End)
	if err != nil {
		o.failed.Add(1)
		return nil, err
	}
	return o.GenerateWindow(ctx, req.Kind, w)
}

func (o *Orchestrator) GenerateWindow(ctx context.Context, kind models.ReportKind, w Window) (*models.Report, error) {
	if !kind.Valid() {
		o.failed.Add(1)
		return nil, errors.UnknownReportKind(string(kind))
	}
	if w.End.Before(w.Start) {
		o.failed.Add(1)
		return nil, errors.InvalidWindow(analytics.ErrInvalidWindow, fmt.Sprintf("window end is before start: %s", w.Key()))
	}

	ctx, span := observability.StartSpan(ctx, "report."+string(kind))
	defer span.Finish()
	span.SetTag("window", w.String())

	start := time.Now()
	report := &models.Report{Kind: kind, Start: w.Start, End: w.End}

	var err error
	switch kind {
	case models.ReportSales:
		err = o.salesReport(ctx, w, report)
	case models.ReportProducts:
		err = o.productsReport(ctx, w, report)
	case models.ReportCustomers:
		err = o.customersReport(ctx, w, report)
	}

	duration := time.Since(start)
	if err != nil {
		o.failed.Add(1)
		span.SetError(err)
		o.logger.Error("report failed",
			"kind", kind,
			"window", w.String(),
			"error_code", errors.Kind(err),
			"error", err,
			"request_id", observability.GetRequestID(ctx),
		)
		return nil, err
	}

	report.GeneratedAt = o.now().UTC()
	o.generated.Add(1)
	o.lastDuration.Store(int64(duration))
	o.logger.Info("report generated",
		"kind", kind,
		"window", w.String(),
		"duration", duration,
		"request_id", observability.GetRequestID(ctx),
	)
	return report, nil
}

func (o *Orchestrator) salesReport(ctx context.Context, w Window, report *models.Report) error {
	records, err := o.salesRecords(ctx, w)
	if err != nil {
		return err
	}

	var (
		monthly    []models.GrowthPoint
		categories []models.CategoryRevenue
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		buckets, err := analytics.Bucket(records, w.Start, w.EndExclusive(), o.excluded)
		if err != nil {
			return errors.InvalidWindow(err, "cannot bucket sales window")
		}
		monthly = analytics.WithGrowth(buckets)
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = o.categoryRanking(gctx, records)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	report.Summary = o.summarize(records)
	report.Monthly = monthly
	report.Categories = categories
	return nil
}

func (o *Orchestrator) summarize(records []models.TransactionRecord) *models.SalesSummary {
	s := &models.SalesSummary{TotalRevenue: decimal.Zero, AverageOrderValue: decimal.Zero}
	for _, r := range records {
		if o.excluded.Contains(r.Status) {
			continue
		}
		s.TotalRevenue = s.TotalRevenue.Add(r.Amount)
		s.OrderCount++
	}
	if s.OrderCount > 0 {
		s.AverageOrderValue = s.TotalRevenue.Div(decimal.NewFromInt(int64(s.OrderCount))).Round(2)
	}
	return s
}

// categoryRanking sums sales per category, largest first. Ties keep the
// order in which categories first appear.
func (o *Orchestrator) categoryRanking(ctx context.Context, records []models.TransactionRecord) ([]models.CategoryRevenue, error) {
	index := make(map[string]int)
	var ranking []models.CategoryRevenue
	for _, r := range records {
		if o.excluded.Contains(r.Status) {
			continue
		}
		id := r.CategoryRef()
		i, ok := index[id]
		if !ok {
			i = len(ranking)
			index[id] = i
			ranking = append(ranking, models.CategoryRevenue{CategoryID: id, Total: decimal.Zero})
		}
		ranking[i].Total = ranking[i].Total.Add(r.Amount)
		ranking[i].OrderCount++
	}
	if len(ranking) == 0 {
		return []models.CategoryRevenue{}, nil
	}

	names, err := o.dimensionNames(ctx, models.DimensionCategory, keysOf(index))
	if err != nil {
		return nil, err
	}
	for i := range ranking {
		ranking[i].Name = names.nameOf(ranking[i].CategoryID)
	}

	slices.SortStableFunc(ranking, func(a, b models.CategoryRevenue) int {
		return b.Total.Cmp(a.Total)
	})
	return ranking, nil
}

func (o *Orchestrator) productsReport(ctx context.Context, w Window, report *models.Report) error {
	records, err := o.salesRecords(ctx, w)
	if err != nil {
		return err
	}

	ranking := o.productRanking(records)
	if len(ranking) > o.topProducts {
		ranking = ranking[:o.topProducts]
	}

	ids := make([]string, len(ranking))
	for i, p := range ranking {
		ids[i] = p.ProductID
	}
	if len(ids) > 0 {
		names, err := o.dimensionNames(ctx, models.DimensionProduct, ids)
		if err != nil {
			return err
		}
		for i := range ranking {
			ranking[i].Name = names.nameOf(ranking[i].ProductID)
		}
	}

	report.TopProducts = ranking
	return nil
}

// productRanking explodes line items and sums quantity and revenue per
// product, ordered by revenue descending with ties in first-seen order.
func (o *Orchestrator) productRanking(records []models.TransactionRecord) []models.ProductRevenue {
	index := make(map[string]int)
	ranking := []models.ProductRevenue{}
	for _, r := range records {
		if o.excluded.Contains(r.Status) {
			continue
		}
		seen := make(map[string]struct{}, len(r.LineItems))
		for _, li := range r.LineItems {
			i, ok := index[li.ProductID]
			if !ok {
				i = len(ranking)
				index[li.ProductID] = i
				ranking = append(ranking, models.ProductRevenue{ProductID: li.ProductID, Revenue: decimal.Zero})
			}
			ranking[i].Quantity += li.Quantity
			ranking[i].Revenue = ranking[i].Revenue.Add(li.Revenue())
			if _, dup := seen[li.ProductID]; !dup {
				seen[li.ProductID] = struct{}{}
				ranking[i].OrderCount++
			}
		}
	}

	slices.SortStableFunc(ranking, func(a, b models.ProductRevenue) int {
		return b.Revenue.Cmp(a.Revenue)
	})
	return ranking
}

func (o *Orchestrator) customersReport(ctx context.Context, w Window, report *models.Report) error {
	users, err := o.source.FindUsers(ctx, models.UserFilter{ExcludeStaff: true, CreatedBefore: w.End})
	if err != nil {
		return sourceError(err, "find users")
	}

	var (
		retention    models.RetentionSnapshot
		newCustomers []models.TimeBucket
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		counts := make([]int, 0, len(users))
		for _, u := range users {
			if u.IsStaff() || u.CreatedAt.After(w.End) {
				continue
			}
			counts = append(counts, u.OrderCount)
		}
		retention = analytics.Retention(counts)
		return nil
	})
	g.Go(func() error {
		entries := make([]analytics.Entry, 0, len(users))
		for _, u := range users {
			if u.IsStaff() {
				continue
			}
			entries = append(entries, analytics.Entry{At: u.CreatedAt, Amount: decimal.Zero})
		}
		buckets, err := analytics.Fold(entries, w.Start, w.EndExclusive())
		if err != nil {
			return errors.InvalidWindow(err, "cannot bucket customer window")
		}
		newCustomers = buckets
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	report.Retention = &retention
	report.NewCustomers = newCustomers
	return nil
}

// MonthlySales returns the twelve calendar months of year with growth.
func (o *Orchestrator) MonthlySales(ctx context.Context, year int) (*models.MonthlySales, error) {
	if err := CheckYear(year); err != nil {
		return nil, err
	}
	w := YearWindow(year)
	records, err := o.salesRecords(ctx, w)
	if err != nil {
		return nil, err
	}

	buckets, err := analytics.Bucket(records, w.Start, w.EndExclusive(), o.excluded)
	if err != nil {
		return nil, errors.InvalidWindow(err, "cannot bucket year")
	}

	total := decimal.Zero
	for _, b := range buckets {
		total = total.Add(b.Total)
	}
	return &models.MonthlySales{Year: year, Months: analytics.WithGrowth(buckets), Total: total}, nil
}

// DimensionShares computes each dimension's percentage of sales in w. Every
// dimension known to the source is listed, including those without sales.
func (o *Orchestrator) DimensionShares(ctx context.Context, kind models.DimensionKind, w Window) (*models.DimensionShares, error) {
	records, err := o.salesRecords(ctx, w)
	if err != nil {
		return nil, err
	}

	known, err := o.source.FindDimensions(ctx, kind, models.DimensionFilter{})
	if err != nil {
		return nil, sourceError(err, "find dimensions")
	}

	totals, order := o.dimensionTotals(kind, records)
	knownIDs := make(map[string]struct{}, len(known))
	for _, d := range known {
		knownIDs[d.ID] = struct{}{}
	}
	for _, id := range order {
		if _, ok := knownIDs[id]; ok {
			continue
		}
		known = append(known, models.CatalogDimension{ID: id, Name: fallbackName(id), Kind: kind})
	}

	entries, err := analytics.Shares(totals, known)
	if err != nil {
		return nil, errors.EmptyDimensionSet(err, fmt.Sprintf("no %s dimensions to share sales across", kind))
	}

	grand := decimal.Zero
	for _, v := range totals {
		grand = grand.Add(v)
	}
	slices.SortStableFunc(entries, func(a, b models.ShareEntry) int {
		return b.Total.Cmp(a.Total)
	})

	return &models.DimensionShares{
		Kind:       kind,
		Start:      w.Start,
		End:        w.End,
		GrandTotal: grand,
		Entries:    entries,
		EqualSplit: grand.IsZero(),
	}, nil
}

func (o *Orchestrator) dimensionTotals(kind models.DimensionKind, records []models.TransactionRecord) (map[string]decimal.Decimal, []string) {
	totals := make(map[string]decimal.Decimal)
	var order []string
	add := func(id string, amount decimal.Decimal) {
		if id == "" {
			return
		}
		if _, ok := totals[id]; !ok {
			order = append(order, id)
		}
		totals[id] = totals[id].Add(amount)
	}

	for _, r := range records {
		if o.excluded.Contains(r.Status) {
			continue
		}
		if kind == models.DimensionProduct {
			for _, li := range r.LineItems {
				add(li.ProductID, li.Revenue())
			}
			continue
		}
		add(r.DimensionRef(kind), r.Amount)
	}
	return totals, order
}

func (o *Orchestrator) salesRecords(ctx context.Context, w Window) ([]models.TransactionRecord, error) {
	records, err := o.source.FindTransactions(ctx, o.salesFilter, w.Start, w.EndExclusive())
	if err != nil {
		return nil, sourceError(err, "find transactions")
	}
	o.logger.Debug("transactions loaded", "window", w.String(), "records", len(records))
	return records, nil
}

type dimensionNames map[string]string

func (n dimensionNames) nameOf(id string) string {
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return fallbackName(id)
}

func (o *Orchestrator) dimensionNames(ctx context.Context, kind models.DimensionKind, ids []string) (dimensionNames, error) {
	dims, err := o.source.FindDimensions(ctx, kind, models.DimensionFilter{IDs: ids})
	if err != nil {
		return nil, sourceError(err, "find dimensions")
	}
	names := make(dimensionNames, len(dims))
	for _, d := range dims {
		names[d.ID] = d.Name
	}
	return names, nil
}

// Stats reports counters for the admin endpoint.
func (o *Orchestrator) Stats() map[string]any {
	return map[string]any{
		"reports_generated":   o.generated.Load(),
		"reports_failed":      o.failed.Load(),
		"last_report_latency": time.Duration(o.lastDuration.Load()).String(),
		"top_products_limit":  o.topProducts,
	}
}

func fallbackName(id string) string {
	if id == models.UncategorizedID {
		return models.UncategorizedName
	}
	return id
}

func keysOf(index map[string]int) []string {
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// sourceError reports any RecordSource failure, cancellation included, as
// SourceUnavailable.
func sourceError(err error, op string) error {
	return errors.SourceUnavailable(err, fmt.Sprintf("record source unavailable: %s", op))
}
