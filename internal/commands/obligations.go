package commands

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/installment"
	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
	"github.com/fluxo-dev/fluxo/internal/obligations"
	"github.com/fluxo-dev/fluxo/internal/store"
)

// newObligationCommand builds the `payable` or `receivable` command tree.
func newObligationCommand(opts *globalOptions, kind model.ObligationKind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: fmt.Sprintf("Manage %ss", kind),
	}
	cmd.AddCommand(
		newObligationAddCommand(opts, kind),
		newObligationSplitCommand(opts, kind),
		newObligationSettleCommand(opts, kind),
		newObligationCancelCommand(opts, kind),
		newObligationListCommand(opts, kind),
	)
	return cmd
}

// counterpartyFlag names the other party the way the business talks about it.
func counterpartyFlag(kind model.ObligationKind) string {
	if kind == model.Payable {
		return "supplier"
	}
	return "client"
}

func addCreateFlags(cmd *cobra.Command, kind model.ObligationKind, p *obligations.CreateParams) {
	cmd.Flags().StringVar(&p.Description, "description", "", "description (required)")
	cmd.Flags().IntVar(&p.AccountID, "account", 0, "expected account ID")
	cmd.Flags().StringVar(&p.Category, "category", "", "category tag")
	cmd.Flags().StringVar(&p.Counterparty, counterpartyFlag(kind), "", counterpartyFlag(kind)+" name")
	_ = cmd.MarkFlagRequired("description")
}

func newObligationAddCommand(opts *globalOptions, kind model.ObligationKind) *cobra.Command {
	p := obligations.CreateParams{Kind: kind}
	var amount, due string

	cmd := &cobra.Command{
		Use:   "add",
		Short: fmt.Sprintf("Record an open %s", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var err error
			if p.Amount, err = parseAmount(amount); err != nil {
				return err
			}
			if p.DueDate, err = parseDate(due); err != nil {
				return err
			}
			return withApp(ctx, opts, func(a *app) error {
				o, err := a.obligations.Create(ctx, a.scope, p)
				if err != nil {
					return err
				}
				a.record(ctx, auditlog.ActionObligationAdd,
					fmt.Sprintf("%s %s due %s", kind, o.Amount.StringFixed(2), fmtDate(o.DueDate)), o.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s: %s due %s\n",
					kind, o.ID, money.FormatBRL(o.Amount), fmtDate(o.DueDate))
				return nil
			})
		},
	}

	addCreateFlags(cmd, kind, &p)
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount (required)")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func newObligationSplitCommand(opts *globalOptions, kind model.ObligationKind) *cobra.Command {
	p := obligations.CreateParams{Kind: kind}
	var total, firstDue, interval string
	var count int
	var amounts, dates []string

	cmd := &cobra.Command{
		Use:   "split",
		Short: fmt.Sprintf("Record a %s as a series of installments", kind),
		Long: `Split a total into equal installments (the last one absorbs the cents
remainder), or pass --amounts and --dates to set every installment by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			items, err := buildSchedule(count, total, firstDue, interval, amounts, dates)
			if err != nil {
				return err
			}
			p.Amount = installment.Total(items)
			p.DueDate = items[0].DueDate
			return withApp(ctx, opts, func(a *app) error {
				created, err := a.obligations.CreateInstallments(ctx, a.scope, p, items)
				if err != nil {
					return err
				}
				a.record(ctx, auditlog.ActionInstallmentsAdd,
					fmt.Sprintf("%d %s installments: %s", len(created), kind, p.Description), created[0].ID)

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tDUE\tAMOUNT\tDESCRIPTION")
				for _, o := range created {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.ID, fmtDate(o.DueDate), money.FormatBRL(o.Amount), o.Description)
				}
				return tw.Flush()
			})
		},
	}

	addCreateFlags(cmd, kind, &p)
	cmd.Flags().IntVar(&count, "count", 0, "number of installments (required)")
	cmd.Flags().StringVar(&total, "total", "", "total to split")
	cmd.Flags().StringVar(&firstDue, "first-due", "", "first due date, YYYY-MM-DD")
	cmd.Flags().StringVar(&interval, "interval", string(installment.Monthly), "weekly or monthly")
	cmd.Flags().StringSliceVar(&amounts, "amounts", nil, "explicit amounts, dot decimals (with --dates)")
	cmd.Flags().StringSliceVar(&dates, "dates", nil, "explicit due dates (with --amounts)")
	cmd.MarkFlagsRequiredTogether("amounts", "dates")
	cmd.MarkFlagsMutuallyExclusive("total", "amounts")
	_ = cmd.MarkFlagRequired("count")
	return cmd
}

// buildSchedule returns the installments of a split, either computed from
// total or taken from the explicit lists.
func buildSchedule(count int, total, firstDue, interval string, amounts, dates []string) ([]installment.Installment, error) {
	if amounts != nil || dates != nil {
		amts := make([]decimal.Decimal, len(amounts))
		for i, s := range amounts {
			d, err := money.Parse(s)
			if err != nil {
				return nil, err
			}
			amts[i] = d
		}
		dues := make([]time.Time, len(dates))
		for i, s := range dates {
			d, err := parseDate(s)
			if err != nil {
				return nil, err
			}
			dues[i] = d
		}
		return installment.FromOverride(count, amts, dues)
	}

	amt, err := parseAmount(total)
	if err != nil {
		return nil, fmt.Errorf("--total: %w", err)
	}
	first, err := parseDate(firstDue)
	if err != nil {
		return nil, fmt.Errorf("--first-due: %w", err)
	}
	iv, err := installment.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	return installment.Split(amt, count, first, iv)
}

func newObligationSettleCommand(opts *globalOptions, kind model.ObligationKind) *cobra.Command {
	p := obligations.SettleParams{Kind: kind}
	var on string

	cmd := &cobra.Command{
		Use:   "settle <id>",
		Short: fmt.Sprintf("Mark a %s %s and record the movement", kind, kind.SettledStatus()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p.ID = args[0]
			var err error
			if on != "" {
				if p.On, err = parseDate(on); err != nil {
					return err
				}
			}
			return withApp(ctx, opts, func(a *app) error {
				if p.On.IsZero() {
					p.On = a.now()
				}
				o, err := a.obligations.Settle(ctx, a.scope, p)
				if err != nil {
					return err
				}
				a.record(ctx, auditlog.ActionSettle,
					fmt.Sprintf("%s %s %s on %d", kind, o.Status, o.Amount.StringFixed(2), o.AccountID), o.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Settled %s %s (%s): %s on account %d\n",
					kind, o.ID, o.Status, money.FormatBRL(o.Amount), o.AccountID)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&p.AccountID, "account", 0, "account the money moves through (required)")
	cmd.Flags().StringVar(&p.Method, "method", "", "payment method")
	cmd.Flags().StringVar(&on, "on", "", "settlement date, YYYY-MM-DD (default now)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newObligationCancelCommand(opts *globalOptions, kind model.ObligationKind) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: fmt.Sprintf("Cancel an open %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, opts, func(a *app) error {
				o, err := a.obligations.Cancel(ctx, a.scope, kind, args[0])
				if err != nil {
					return err
				}
				a.record(ctx, auditlog.ActionCancel, fmt.Sprintf("%s %s", kind, o.Description), o.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s %s\n", kind, o.ID)
				return nil
			})
		},
	}
}

func newObligationListCommand(opts *globalOptions, kind model.ObligationKind) *cobra.Command {
	filter := store.ObligationFilter{Kind: kind}
	var statuses []string
	var from, to string

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %ss by due date", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var err error
			for _, s := range statuses {
				filter.Statuses = append(filter.Statuses, model.ObligationStatus(s))
			}
			if from != "" {
				if filter.DueFrom, err = parseDate(from); err != nil {
					return err
				}
			}
			if to != "" {
				if filter.DueTo, err = parseDate(to); err != nil {
					return err
				}
			}
			return withApp(ctx, opts, func(a *app) error {
				list, err := a.obligations.List(ctx, a.scope, filter)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tDUE\tSTATUS\tAMOUNT\tACCOUNT\tDESCRIPTION")
				for _, o := range list {
					acct := "-"
					if o.AccountID != 0 {
						acct = fmt.Sprint(o.AccountID)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						o.ID, fmtDate(o.DueDate), o.Status, money.FormatBRL(o.Amount), acct, o.Description)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only these statuses")
	cmd.Flags().StringVar(&from, "from", "", "first due date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last due date, YYYY-MM-DD")
	return cmd
}
