// Package balance derives account balances from the ledger. Balances are
// never stored: every call recomputes them from the initial balance and
// the movements.
package balance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/tenant"
)

// maxConcurrentReads bounds the per-account fan-out of Consolidated.
const maxConcurrentReads = 8

// Compute returns initial + credits - debits. With excludeTransfers, legs of
// internal transfers are ignored; the result is then the seed used by the
// cash projection, where money moving between own accounts is noise.
func Compute(initial decimal.Decimal, movements []model.Movement, excludeTransfers bool) decimal.Decimal {
	total := initial
	for _, m := range movements {
		if excludeTransfers && m.IsTransfer() {
			continue
		}
		total = total.Add(m.Signed())
	}
	return money.Round(total)
}

// Service computes balances for a tenant.
type Service struct {
	stores store.Provider
	log    zerolog.Logger
}

// NewService creates a balance Service.
func NewService(stores store.Provider, log zerolog.Logger) *Service {
	return &Service{stores: stores, log: log}
}

// Balance returns the balance of one account.
func (s *Service) Balance(ctx context.Context, scope tenant.Scope, accountID int, excludeTransfers bool) (decimal.Decimal, error) {
	if !scope.Includes(accountID) {
		return decimal.Zero, fmt.Errorf("account %d: %w", accountID, model.ErrNotFound)
	}
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return decimal.Zero, err
	}
	acct, err := st.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return accountBalance(ctx, st, acct, excludeTransfers)
}

// Consolidated sums the balances of every account in scope, active or not.
func (s *Service) Consolidated(ctx context.Context, scope tenant.Scope, excludeTransfers bool) (decimal.Decimal, error) {
	values, err := s.balances(ctx, scope, excludeTransfers)
	if err != nil {
		return decimal.Zero, err
	}
	total := money.Round(money.Sum(values...))
	s.log.Debug().
		Str("tenant", scope.TenantID).
		Int("accounts", len(values)).
		Bool("exclude_transfers", excludeTransfers).
		Str("total", total.StringFixed(2)).
		Msg("consolidated balance")
	return total, nil
}

// AccountBalance is one account with both balance variants.
type AccountBalance struct {
	Account model.Account
	Display decimal.Decimal // includes transfers
	Seed    decimal.Decimal // excludes transfers
}

// Snapshot is the balance sheet of a scope at the time of the call.
type Snapshot struct {
	Accounts []AccountBalance
	Display  decimal.Decimal
	Seed     decimal.Decimal
}

// Snapshot returns per-account and consolidated balances in both variants.
func (s *Service) Snapshot(ctx context.Context, scope tenant.Scope) (Snapshot, error) {
	st, accts, err := s.scopedAccounts(ctx, scope)
	if err != nil {
		return Snapshot{}, err
	}

	out := Snapshot{Accounts: make([]AccountBalance, len(accts)), Display: decimal.Zero, Seed: decimal.Zero}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, acct := range accts {
		i, acct := i, acct
		g.Go(func() error {
			movements, err := st.ListMovements(gctx, store.MovementFilter{AccountID: acct.ID})
			if err != nil {
				return fmt.Errorf("account %d: %w", acct.ID, err)
			}
			out.Accounts[i] = AccountBalance{
				Account: acct,
				Display: Compute(acct.InitialBalance, movements, false),
				Seed:    Compute(acct.InitialBalance, movements, true),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	for _, ab := range out.Accounts {
		out.Display = out.Display.Add(ab.Display)
		out.Seed = out.Seed.Add(ab.Seed)
	}
	return out, nil
}

func (s *Service) balances(ctx context.Context, scope tenant.Scope, excludeTransfers bool) ([]decimal.Decimal, error) {
	st, accts, err := s.scopedAccounts(ctx, scope)
	if err != nil {
		return nil, err
	}

	values := make([]decimal.Decimal, len(accts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, acct := range accts {
		i, acct := i, acct
		g.Go(func() error {
			v, err := accountBalance(gctx, st, acct, excludeTransfers)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *Service) scopedAccounts(ctx context.Context, scope tenant.Scope) (store.Store, []model.Account, error) {
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return nil, nil, err
	}
	all, err := st.ListAccounts(ctx)
	if err != nil {
		return nil, nil, err
	}
	var accts []model.Account
	for _, a := range all {
		if scope.Includes(a.ID) {
			accts = append(accts, a)
		}
	}
	return st, accts, nil
}

func accountBalance(ctx context.Context, st store.Reader, acct model.Account, excludeTransfers bool) (decimal.Decimal, error) {
	movements, err := st.ListMovements(ctx, store.MovementFilter{AccountID: acct.ID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("account %d: %w", acct.ID, err)
	}
	return Compute(acct.InitialBalance, movements, excludeTransfers), nil
}
