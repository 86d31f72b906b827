package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/tenant"
	"github.com/fluxo-dev/fluxo/internal/validation"
)

// Service manages the accounts of each tenant.
type Service struct {
	stores store.Provider
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(stores store.Provider, log zerolog.Logger) *Service {
	return &Service{stores: stores, log: log, now: time.Now}
}

// CreateParams holds the fields of a new account.
type CreateParams struct {
	ID             int    `validate:"gt=0"`
	Name           string `validate:"required,max=120"`
	BankName       string `validate:"max=120"`
	Number         string `validate:"max=40"`
	InitialBalance decimal.Decimal
}

// Create adds an active account. The initial balance may be negative
// (overdraft) but must be whole cents.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, p CreateParams) (model.Account, error) {
	if err := validation.Struct(p); err != nil {
		return model.Account{}, err
	}
	if !money.IsCents(p.InitialBalance) {
		return model.Account{}, fmt.Errorf("initial balance %s: %w", p.InitialBalance, model.ErrInvalidAmount)
	}

	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return model.Account{}, err
	}

	acct := model.Account{
		ID:             p.ID,
		Name:           p.Name,
		BankName:       p.BankName,
		Number:         p.Number,
		InitialBalance: p.InitialBalance,
		Active:         true,
		CreatedAt:      s.now().UTC(),
	}
	if err := st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertAccount(ctx, acct)
	}); err != nil {
		return model.Account{}, fmt.Errorf("creating account %d: %w", p.ID, err)
	}

	s.log.Info().Str("tenant", scope.TenantID).Int("account_id", acct.ID).Msg("account created")
	return acct, nil
}

// Seed inserts accounts in one transaction. Used when a tenant is initialized.
func (s *Service) Seed(ctx context.Context, scope tenant.Scope, accts []model.Account) error {
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	return st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, a := range accts {
			if a.CreatedAt.IsZero() {
				a.CreatedAt = now
			}
			if err := tx.InsertAccount(ctx, a); err != nil {
				return fmt.Errorf("seeding account %d: %w", a.ID, err)
			}
		}
		return nil
	})
}

// All returns the accounts visible in scope, ordered by ID.
func (s *Service) All(ctx context.Context, scope tenant.Scope) ([]model.Account, error) {
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return nil, err
	}
	all, err := st.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Account
	for _, a := range all {
		if scope.Includes(a.ID) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Get returns an account by ID. Accounts outside the scope are not found.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id int) (model.Account, error) {
	if !scope.Includes(id) {
		return model.Account{}, fmt.Errorf("account %d: %w", id, model.ErrNotFound)
	}
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return model.Account{}, err
	}
	return st.GetAccount(ctx, id)
}

// Deactivate clears the active flag. Accounts are never deleted.
func (s *Service) Deactivate(ctx context.Context, scope tenant.Scope, id int) error {
	if !scope.Includes(id) {
		return fmt.Errorf("account %d: %w", id, model.ErrNotFound)
	}
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return err
	}
	err = st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		acct, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if !acct.Active {
			return fmt.Errorf("account %d already inactive: %w", id, model.ErrInvalidState)
		}
		acct.Active = false
		return tx.UpdateAccount(ctx, acct)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("tenant", scope.TenantID).Int("account_id", id).Msg("account deactivated")
	return nil
}
