package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
	"github.com/fluxo-dev/fluxo/internal/projection"
)

func newProjectCommand(opts *globalOptions) *cobra.Command {
	var window, start, end string

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project the daily cash balance from open payables and receivables",
		Long: `Without --start/--end the projection covers a dashboard window relative
to today: month, 15d, 30d or 60d (default from fluxo.yaml). The series is
seeded with the consolidated balance excluding transfers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, opts, func(a *app) error {
				if start != "" || end != "" {
					from, err := parseDate(start)
					if err != nil {
						return fmt.Errorf("--start: %w", err)
					}
					to, err := parseDate(end)
					if err != nil {
						return fmt.Errorf("--end: %w", err)
					}
					seed, err := a.balances.Consolidated(ctx, a.scope, true)
					if err != nil {
						return err
					}
					points, err := a.projection.Project(ctx, a.scope, from, to, seed)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Seed balance: %s\n", money.FormatBRL(seed))
					return printPoints(cmd.OutOrStdout(), points)
				}

				name := window
				if name == "" {
					name = a.cfg.Projection.DefaultWindow
				}
				w, err := projection.ParseWindow(name)
				if err != nil {
					return err
				}
				dash, err := a.projection.Dashboard(ctx, a.scope, w, a.today())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Window %s: %s to %s\n", dash.Window, fmtDate(dash.Start), fmtDate(dash.End))
				fmt.Fprintf(out, "Balance: %s (seed %s)\n", money.FormatBRL(dash.Balance), money.FormatBRL(dash.Seed))
				return printPoints(out, dash.Points)
			})
		},
	}

	cmd.Flags().StringVarP(&window, "window", "w", "", "month, 15d, 30d or 60d")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.MarkFlagsRequiredTogether("start", "end")
	cmd.MarkFlagsMutuallyExclusive("window", "start")
	return cmd
}

func printPoints(w io.Writer, points []model.ProjectionPoint) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tRECEIVABLE\tPAYABLE\tBALANCE")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			fmtDate(p.Date), money.FormatBRL(p.Receivable), money.FormatBRL(p.Payable), money.FormatBRL(p.Balance))
	}
	return tw.Flush()
}

func newSummaryCommand(opts *globalOptions) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the month's receipts and payments, open and realized",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m := opts.now()
			if month != "" {
				var err error
				if m, err = time.Parse("2006-01", month); err != nil {
					return fmt.Errorf("invalid month %q (want YYYY-MM)", month)
				}
			}
			return withApp(ctx, opts, func(a *app) error {
				sum, err := a.projection.MonthSummary(ctx, a.scope, m)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintf(tw, "%s\tOPEN\tREALIZED\tTOTAL\n", sum.Month.Format("2006-01"))
				fmt.Fprintf(tw, "Receipts\t%s\t%s\t%s\n",
					money.FormatBRL(sum.OpenReceipts), money.FormatBRL(sum.RealizedReceipts), money.FormatBRL(sum.Receipts()))
				fmt.Fprintf(tw, "Payments\t%s\t%s\t%s\n",
					money.FormatBRL(sum.OpenPayments), money.FormatBRL(sum.RealizedPayments), money.FormatBRL(sum.Payments()))
				fmt.Fprintf(tw, "Net\t\t\t%s\n", money.FormatBRL(sum.Net()))
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "month, YYYY-MM (default current)")
	return cmd
}
