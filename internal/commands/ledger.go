package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/ledger"
	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
	"github.com/fluxo-dev/fluxo/internal/store"
)

func newLedgerCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Append, transfer and inspect ledger movements",
	}
	cmd.AddCommand(
		newLedgerAppendCommand(opts),
		newLedgerTransferCommand(opts),
		newLedgerListCommand(opts),
		newLedgerCheckCommand(opts),
	)
	return cmd
}

func newLedgerAppendCommand(opts *globalOptions) *cobra.Command {
	var p ledger.AppendParams
	var typ, amount, date string

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Record a manual debit or credit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var err error
			if p.Amount, err = parseAmount(amount); err != nil {
				return err
			}
			if p.Date, err = parseDateOr(date, opts.now()); err != nil {
				return err
			}
			p.Type = model.MovementType(typ)
			return withApp(ctx, opts, func(a *app) error {
				id, err := a.ledger.Append(ctx, a.scope, p)
				if err != nil {
					return err
				}
				a.record(ctx, auditlog.ActionMovementAppend,
					fmt.Sprintf("%s %s on %d", p.Type, p.Amount.StringFixed(2), p.AccountID), id)
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&p.AccountID, "account", 0, "account ID (required)")
	cmd.Flags().StringVar(&typ, "type", "", "debit or credit (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount (required)")
	cmd.Flags().StringVar(&p.Description, "description", "", "description")
	cmd.Flags().StringVar(&date, "date", "", "movement date, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newLedgerTransferCommand(opts *globalOptions) *cobra.Command {
	var p ledger.TransferParams
	var amount, date string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move money between two accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var err error
			if p.Amount, err = parseAmount(amount); err != nil {
				return err
			}
			if p.Date, err = parseDateOr(date, opts.now()); err != nil {
				return err
			}
			return withApp(ctx, opts, func(a *app) error {
				entryID, err := a.ledger.Transfer(ctx, a.scope, p)
				if err != nil {
					return err
				}
				a.record(ctx, auditlog.ActionTransfer,
					fmt.Sprintf("%s from %d to %d", p.Amount.StringFixed(2), p.From, p.To), entryID)
				fmt.Fprintf(cmd.OutOrStdout(), "Transferred %s from %d to %d (%s)\n",
					money.FormatBRL(p.Amount), p.From, p.To, entryID)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&p.From, "from", 0, "source account ID (required)")
	cmd.Flags().IntVar(&p.To, "to", 0, "destination account ID (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount (required)")
	cmd.Flags().StringVar(&p.Description, "description", "", "description")
	cmd.Flags().StringVar(&date, "date", "", "transfer date, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newLedgerListCommand(opts *globalOptions) *cobra.Command {
	var filter store.MovementFilter
	var from, to string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List movements in ID order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var err error
			if from != "" {
				if filter.From, err = parseDate(from); err != nil {
					return err
				}
			}
			if to != "" {
				if filter.To, err = parseDate(to); err != nil {
					return err
				}
			}
			return withApp(ctx, opts, func(a *app) error {
				movements, err := a.ledger.Movements(ctx, a.scope, filter)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tDATE\tACCOUNT\tTYPE\tAMOUNT\tORIGIN\tDESCRIPTION")
				for _, m := range movements {
					origin := "-"
					if !m.Origin.IsZero() {
						origin = m.Origin.Table + ":" + m.Origin.ID
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
						m.ID, fmtDate(m.Date), m.AccountID, m.Type, money.FormatBRL(m.Signed()), origin, m.Description)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&filter.AccountID, "account", 0, "only this account")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.OriginTable, "origin", "", "only movements from payables, receivables, transfer or import")
	return cmd
}

func newLedgerCheckCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the ledger invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, opts, func(a *app) error {
				verrs, err := a.ledger.Check(ctx, a.scope)
				if err != nil {
					return err
				}
				if len(verrs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Ledger OK")
					return nil
				}
				for _, v := range verrs {
					fmt.Fprintln(cmd.OutOrStdout(), v.Error())
				}
				return ledger.Join(verrs)
			})
		},
	}
}
