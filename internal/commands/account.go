package commands

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fluxo-dev/fluxo/internal/accounts"
	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/money"
)

func newAccountCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage bank and cash accounts",
	}
	cmd.AddCommand(
		newAccountAddCommand(opts),
		newAccountListCommand(opts),
		newAccountBalanceCommand(opts),
		newAccountDeactivateCommand(opts),
	)
	return cmd
}

func newAccountAddCommand(opts *globalOptions) *cobra.Command {
	var p accounts.CreateParams
	var initial string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p.InitialBalance = decimal.Zero
			if initial != "" {
				d, err := money.Parse(initial)
				if err != nil {
					return err
				}
				p.InitialBalance = d
			}
			return withApp(ctx, opts, func(a *app) error {
				acct, err := a.accounts.Create(ctx, a.scope, p)
				if err != nil {
					return err
				}
				a.record(ctx, auditlog.ActionAccountCreate, acct.Name, strconv.Itoa(acct.ID))
				fmt.Fprintf(cmd.OutOrStdout(), "Created account %d %s (%s)\n", acct.ID, acct.Name, money.FormatBRL(acct.InitialBalance))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&p.ID, "id", 0, "account ID (required)")
	cmd.Flags().StringVar(&p.Name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&p.BankName, "bank", "", "bank name")
	cmd.Flags().StringVar(&p.Number, "number", "", "account number")
	cmd.Flags().StringVar(&initial, "initial", "", "initial balance, may be negative")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAccountListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, opts, func(a *app) error {
				snap, err := a.balances.Snapshot(ctx, a.scope)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tNAME\tBANK\tSTATUS\tBALANCE")
				for _, ab := range snap.Accounts {
					status := "active"
					if !ab.Account.Active {
						status = "inactive"
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
						ab.Account.ID, ab.Account.Name, ab.Account.BankName, status, money.FormatBRL(ab.Display))
				}
				fmt.Fprintf(tw, "\tTotal\t\t\t%s\n", money.FormatBRL(snap.Display))
				return tw.Flush()
			})
		},
	}
}

func newAccountBalanceCommand(opts *globalOptions) *cobra.Command {
	var excludeTransfers bool

	cmd := &cobra.Command{
		Use:   "balance [account-id]",
		Short: "Show one account's balance, or the consolidated balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, opts, func(a *app) error {
				if len(args) == 0 {
					total, err := a.balances.Consolidated(ctx, a.scope, excludeTransfers)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Consolidated: %s\n", money.FormatBRL(total))
					return nil
				}
				id, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid account ID %q", args[0])
				}
				bal, err := a.balances.Balance(ctx, a.scope, id, excludeTransfers)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account %d: %s\n", id, money.FormatBRL(bal))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&excludeTransfers, "exclude-transfers", false, "ignore transfer movements (projection seed)")
	return cmd
}

func newAccountDeactivateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <account-id>",
		Short: "Deactivate an account; its history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid account ID %q", args[0])
			}
			return withApp(ctx, opts, func(a *app) error {
				if err := a.accounts.Deactivate(ctx, a.scope, id); err != nil {
					return err
				}
				a.record(ctx, auditlog.ActionAccountDeactivate, "deactivate account", args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Deactivated account %d\n", id)
				return nil
			})
		},
	}
}
