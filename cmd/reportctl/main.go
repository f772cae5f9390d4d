// Command reportctl generates one report against the configured record
// source and prints it as JSON. It reads the same environment and
// CONFIG_FILE as the web server; flags override the source settings.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"admin-reports/internal/app"
	"admin-reports/internal/config"
	"admin-reports/internal/errors"
	"admin-reports/internal/handlers"
	"admin-reports/internal/models"
	"admin-reports/internal/observability"
	"admin-reports/internal/reports"
)

type cli struct {
	driver   string
	dsn      string
	seedCSV  string
	usersCSV string
	timeout  time.Duration
	now      func() time.Time

	engine *app.Engine
}

func newRootCmd() *cobra.Command {
	c := &cli{now: time.Now}

	root := &cobra.Command{
		Use:           "reportctl",
		Short:         "Generate sales and catalog reports from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.driver, "source", "", "Record source driver: memory, sqlite or postgres (default from SOURCE_DRIVER)")
	root.PersistentFlags().StringVar(&c.dsn, "dsn", "", "Source DSN for sqlite or postgres (default from SOURCE_DSN)")
	root.PersistentFlags().StringVar(&c.seedCSV, "seed", "", "Line-item CSV for the memory source (default from SOURCE_SEED_CSV)")
	root.PersistentFlags().StringVar(&c.usersCSV, "users", "", "Users CSV (default from SOURCE_USERS_CSV)")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 0, "Report timeout (default from REPORT_TIMEOUT)")

	root.AddCommand(c.reportCmd(), c.monthlyCmd(), c.sharesCmd())
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	for flag, env := range map[string]string{
		"source": "SOURCE_DRIVER",
		"dsn":    "SOURCE_DSN",
		"seed":   "SOURCE_SEED_CSV",
		"users":  "SOURCE_USERS_CSV",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			os.Setenv(env, f.Value.String())
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.timeout <= 0 {
		c.timeout = cfg.Report.Timeout
	}

	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logger)
	engine, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

// run executes one generation under the report timeout, prints the result
// and closes the engine whether or not generation succeeded.
func (c *cli) run(cmd *cobra.Command, generate func(ctx context.Context, g reports.Generator) (any, error)) (err error) {
	defer func() {
		if cerr := c.engine.Close(); err == nil {
			err = cerr
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()

	result, err := generate(ctx, c.engine.Generator)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func (c *cli) reportCmd() *cobra.Command {
	var kind, start, end string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a sales, products or customers report",
		Example: `  reportctl report --kind sales --start 2024-01-01 --end 2024-03-31
  reportctl report --kind products`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if start == "" && end == "" {
				start, end = handlers.DefaultRange(c.now())
			}
			return c.run(cmd, func(ctx context.Context, g reports.Generator) (any, error) {
				return g.Generate(ctx, reports.Request{
					Kind:  models.ReportKind(kind),
					Start: start,
					End:   end,
				})
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(models.ReportSales), "Report kind: sales, products or customers")
	cmd.Flags().StringVar(&start, "start", "", "First day of the window, YYYY-MM-DD (default January 1 this year)")
	cmd.Flags().StringVar(&end, "end", "", "Last day of the window, YYYY-MM-DD (default today)")
	return cmd
}

func (c *cli) monthlyCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Print twelve months of sales with growth",
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 {
				year = c.now().Year()
			}
			return c.run(cmd, func(ctx context.Context, g reports.Generator) (any, error) {
				if err := reports.CheckYear(year); err != nil {
					return nil, err
				}
				return g.MonthlySales(ctx, year)
			})
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Calendar year (default this year)")
	return cmd
}

func (c *cli) sharesCmd() *cobra.Command {
	var dimension, start, end string

	cmd := &cobra.Command{
		Use:   "shares",
		Short: "Print each category, vendor or product's share of sales",
		RunE: func(cmd *cobra.Command, args []string) error {
			if start == "" && end == "" {
				start, end = handlers.DefaultRange(c.now())
			}
			return c.run(cmd, func(ctx context.Context, g reports.Generator) (any, error) {
				kind, ok := models.ParseDimensionKind(dimension)
				if !ok {
					return nil, errors.BadRequest(fmt.Sprintf("unknown dimension %q", dimension))
				}
				w, err := reports.ParseWindow(start, end)
				if err != nil {
					return nil, err
				}
				return g.DimensionShares(ctx, kind, w)
			})
		},
	}

	cmd.Flags().StringVar(&dimension, "dimension", string(models.DimensionCategory), "Dimension: category, vendor or product")
	cmd.Flags().StringVar(&start, "start", "", "First day of the window, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "Last day of the window, YYYY-MM-DD")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode maps report error kinds to distinct exit statuses.
func exitCode(err error) int {
	switch errors.Kind(err) {
	case errors.CodeInvalidDateRange, errors.CodeInvalidWindow, errors.CodeUnknownReportKind, errors.CodeBadRequest:
		return 2
	case errors.CodeSourceUnavailable:
		return 3
	}
	return 1
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
