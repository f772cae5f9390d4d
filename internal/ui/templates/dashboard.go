// Package templates renders the admin dashboard page and the HTML fragments
// that SSE handlers patch into it.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"admin-reports/internal/models"
)

type DashboardProps struct {
	Year  int
	Start string
	End   string
}

const dashboardHead = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Admin Reports</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1d2330}
header{padding:1rem 2rem;background:#1d2330;color:#fff}
main{display:grid;gap:1rem;padding:1.5rem 2rem;grid-template-columns:repeat(auto-fit,minmax(22rem,1fr))}
section{background:#fff;border-radius:8px;padding:1rem;box-shadow:0 1px 3px rgba(0,0,0,.08)}
.modern-table{width:100%;border-collapse:collapse}
.modern-table td,.modern-table th{padding:.35rem .5rem;border-bottom:1px solid #eceef2;text-align:left}
.num{text-align:right}
.up{color:#16794c}.down{color:#b42318}
.error{color:#b42318}
</style>
</head>
`

// Dashboard is the full page. Each section loads itself over SSE.
func Dashboard(p DashboardProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		window := "start=" + templ.EscapeString(p.Start) + "&amp;end=" + templ.EscapeString(p.End)

		var b strings.Builder
		b.WriteString(dashboardHead)
		b.WriteString(`<body data-signals="{salesReport: null, productsReport: null, customersReport: null, monthlySales: null}">`)
		fmt.Fprintf(&b, `<header><h1>Admin Reports</h1><p>%s to %s</p></header>`,
			templ.EscapeString(p.Start), templ.EscapeString(p.End))
		b.WriteString(`<main>`)

		fmt.Fprintf(&b, `<section><h2>Sales</h2><div id="sales-content" data-init="@get('/sse/reports/sales?%s')">Loading…</div></section>`, window)
		fmt.Fprintf(&b, `<section><h2>Top products</h2><div id="products-content" data-init="@get('/sse/reports/products?%s')">Loading…</div></section>`, window)
		fmt.Fprintf(&b, `<section><h2>Customers</h2><div id="customers-content" data-init="@get('/sse/reports/customers?%s')">Loading…</div></section>`, window)
		fmt.Fprintf(&b, `<section><h2>Monthly sales %d</h2><div id="monthly-content" data-init="@get('/sse/monthly-sales?year=%d')">Loading…</div></section>`, p.Year, p.Year)

		b.WriteString(`</main></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ReportContent renders the section body for one report. The element id
// matches the section it replaces.
func ReportContent(r *models.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div id="%s-content">`, r.Kind)

		switch r.Kind {
		case models.ReportSales:
			writeSales(&b, r)
		case models.ReportProducts:
			writeProducts(&b, r)
		case models.ReportCustomers:
			writeCustomers(&b, r)
		}

		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeSales(b *strings.Builder, r *models.Report) {
	if s := r.Summary; s != nil {
		fmt.Fprintf(b, `<p><strong>%s</strong> revenue from %d orders, average %s</p>`,
			s.TotalRevenue.StringFixed(2), s.OrderCount, s.AverageOrderValue.StringFixed(2))
	}
	b.WriteString(`<table class="modern-table"><thead><tr><th>Month</th><th class="num">Revenue</th><th class="num">Orders</th><th class="num">Growth</th></tr></thead><tbody>`)
	for _, p := range r.Monthly {
		fmt.Fprintf(b, `<tr><td>%s</td><td class="num">%s</td><td class="num">%d</td><td class="num %s">%d%%</td></tr>`,
			templ.EscapeString(p.Label), p.Total.StringFixed(2), p.Count, growthClass(p.GrowthPercent), p.GrowthPercent)
	}
	b.WriteString(`</tbody></table>`)

	if len(r.Categories) == 0 {
		return
	}
	b.WriteString(`<table class="modern-table"><thead><tr><th>Category</th><th class="num">Revenue</th><th class="num">Orders</th></tr></thead><tbody>`)
	for _, c := range r.Categories {
		fmt.Fprintf(b, `<tr><td>%s</td><td class="num">%s</td><td class="num">%d</td></tr>`,
			templ.EscapeString(c.Name), c.Total.StringFixed(2), c.OrderCount)
	}
	b.WriteString(`</tbody></table>`)
}

func writeProducts(b *strings.Builder, r *models.Report) {
	if len(r.TopProducts) == 0 {
		b.WriteString(`<p>No product sales in this period.</p>`)
		return
	}
	b.WriteString(`<table class="modern-table"><thead><tr><th>#</th><th>Product</th><th class="num">Qty</th><th class="num">Revenue</th></tr></thead><tbody>`)
	for i, p := range r.TopProducts {
		fmt.Fprintf(b, `<tr><td>%d</td><td>%s</td><td class="num">%d</td><td class="num">%s</td></tr>`,
			i+1, templ.EscapeString(p.Name), p.Quantity, p.Revenue.StringFixed(2))
	}
	b.WriteString(`</tbody></table>`)
}

func writeCustomers(b *strings.Builder, r *models.Report) {
	if ret := r.Retention; ret != nil {
		fmt.Fprintf(b, `<p><strong>%d%%</strong> retention: %d of %d customers ordered more than once</p>`,
			ret.RetentionRatePercent, ret.RepeatCustomers, ret.TotalCustomers)
	}
	b.WriteString(`<table class="modern-table"><thead><tr><th>Month</th><th class="num">New customers</th></tr></thead><tbody>`)
	for _, nc := range r.NewCustomers {
		fmt.Fprintf(b, `<tr><td>%s</td><td class="num">%d</td></tr>`, templ.EscapeString(nc.Label), nc.Count)
	}
	b.WriteString(`</tbody></table>`)
}

// MonthlyContent renders the twelve-month table for the monthly section.
func MonthlyContent(m *models.MonthlySales) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div id="monthly-content"><p>Total %s</p>`, m.Total.StringFixed(2))
		b.WriteString(`<table class="modern-table"><thead><tr><th>Month</th><th class="num">Revenue</th><th class="num">Growth</th></tr></thead><tbody>`)
		for _, p := range m.Months {
			fmt.Fprintf(&b, `<tr><td>%s</td><td class="num">%s</td><td class="num %s">%d%%</td></tr>`,
				templ.EscapeString(p.Label), p.Total.StringFixed(2), growthClass(p.GrowthPercent), p.GrowthPercent)
		}
		b.WriteString(`</tbody></table></div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorContent replaces a section body with an error message.
func ErrorContent(id, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div id="%s" class="error">%s</div>`,
			templ.EscapeString(id), templ.EscapeString(message))
		return err
	})
}

// RenderString renders c for use as an SSE element patch.
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func growthClass(percent int64) string {
	switch {
	case percent > 0:
		return "up"
	case percent < 0:
		return "down"
	}
	return ""
}
