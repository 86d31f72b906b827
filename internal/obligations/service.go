// Package obligations manages accounts payable and receivable and their
// settlement into the ledger.
package obligations

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fluxo-dev/fluxo/internal/installment"
	"github.com/fluxo-dev/fluxo/internal/ledger"
	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/tenant"
	"github.com/fluxo-dev/fluxo/internal/validation"
)

// Service provides business logic for payables and receivables.
type Service struct {
	stores store.Provider
	log    zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates an obligations Service.
func NewService(stores store.Provider, log zerolog.Logger) *Service {
	return &Service{
		stores: stores,
		log:    log,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// CreateParams holds the fields of a new payable or receivable.
type CreateParams struct {
	Kind         model.ObligationKind `validate:"oneof=payable receivable"`
	Description  string               `validate:"required,max=255"`
	Amount       decimal.Decimal
	DueDate      time.Time `validate:"required"`
	AccountID    int       `validate:"gte=0"`
	Category     string    `validate:"max=60"`
	Counterparty string    `validate:"max=120"`
}

// Create records one open obligation.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, p CreateParams) (model.Obligation, error) {
	if err := checkCreate(scope, p); err != nil {
		return model.Obligation{}, err
	}
	if !money.ValidPositive(p.Amount) {
		return model.Obligation{}, fmt.Errorf("amount %s: %w", p.Amount, model.ErrInvalidAmount)
	}

	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return model.Obligation{}, err
	}

	o := s.newObligation(p, p.Amount, p.DueDate)
	err = st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := checkAccount(ctx, tx, p.AccountID); err != nil {
			return err
		}
		return tx.InsertObligation(ctx, o)
	})
	if err != nil {
		return model.Obligation{}, err
	}

	s.log.Info().
		Str("tenant", scope.TenantID).
		Str("obligation_id", o.ID).
		Str("kind", string(o.Kind)).
		Str("amount", o.Amount.StringFixed(2)).
		Msg("obligation created")
	return o, nil
}

// CreateInstallments records one obligation per installment in a single
// transaction. The first installment heads the group; the rest point at it
// through ParentID. Amounts and dates come from items, so both Split and
// FromOverride schedules are accepted.
func (s *Service) CreateInstallments(ctx context.Context, scope tenant.Scope, p CreateParams, items []installment.Installment) ([]model.Obligation, error) {
	if err := checkCreate(scope, p); err != nil {
		return nil, err
	}
	if len(items) < 2 {
		return nil, fmt.Errorf("%d installments: %w", len(items), model.ErrInvalidCount)
	}
	for _, it := range items {
		if !money.ValidPositive(it.Amount) {
			return nil, fmt.Errorf("installment %d amount %s: %w", it.Index, it.Amount, model.ErrInvalidAmount)
		}
	}

	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return nil, err
	}

	out := make([]model.Obligation, len(items))
	for i, it := range items {
		o := s.newObligation(p, it.Amount, it.DueDate)
		o.Description = fmt.Sprintf("%s (%d/%d)", p.Description, i+1, len(items))
		o.Installment = i + 1
		o.Installments = len(items)
		if i > 0 {
			o.ParentID = out[0].ID
		}
		out[i] = o
	}

	err = st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := checkAccount(ctx, tx, p.AccountID); err != nil {
			return err
		}
		for _, o := range out {
			if err := tx.InsertObligation(ctx, o); err != nil {
				return fmt.Errorf("inserting installment %d: %w", o.Installment, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tenant", scope.TenantID).
		Str("obligation_id", out[0].ID).
		Str("kind", string(p.Kind)).
		Int("installments", len(out)).
		Str("total", installment.Total(items).StringFixed(2)).
		Msg("installments created")
	return out, nil
}

// SettleParams identifies the obligation to settle and where the money goes.
type SettleParams struct {
	Kind      model.ObligationKind `validate:"oneof=payable receivable"`
	ID        string               `validate:"required"`
	AccountID int                  `validate:"gt=0"`
	Method    string               `validate:"max=60"`
	// On is the settlement date; zero means now.
	On time.Time
}

// Settle marks an open obligation paid (payable) or received (receivable)
// and appends the matching ledger movement. Both writes share one
// transaction: if either fails neither is kept.
func (s *Service) Settle(ctx context.Context, scope tenant.Scope, p SettleParams) (model.Obligation, error) {
	if err := validation.Struct(p); err != nil {
		return model.Obligation{}, err
	}
	if !scope.Includes(p.AccountID) {
		return model.Obligation{}, fmt.Errorf("account %d: %w", p.AccountID, model.ErrNotFound)
	}

	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return model.Obligation{}, err
	}

	now := s.now().UTC()
	settledAt := now
	if !p.On.IsZero() {
		settledAt = p.On.UTC()
	}

	var settled model.Obligation
	var movementID string
	err = st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.GetObligation(ctx, p.Kind, p.ID)
		if err != nil {
			return err
		}
		if !visible(scope, o) {
			return fmt.Errorf("%s %s: %w", p.Kind, p.ID, model.ErrNotFound)
		}
		if o.Status != model.StatusOpen {
			return fmt.Errorf("%s %s is %s: %w", p.Kind, p.ID, o.Status, model.ErrInvalidState)
		}

		acct, err := tx.GetAccount(ctx, p.AccountID)
		if err != nil {
			return err
		}
		if !acct.Active {
			return fmt.Errorf("account %d is inactive: %w", p.AccountID, model.ErrInvalidState)
		}

		o.Status = p.Kind.SettledStatus()
		o.SettledAt = &settledAt
		o.Method = p.Method
		o.AccountID = p.AccountID
		if err := tx.UpdateObligation(ctx, o); err != nil {
			return fmt.Errorf("updating %s %s: %w", p.Kind, p.ID, err)
		}

		movementID, err = ledger.AppendTx(ctx, tx, ledger.AppendParams{
			AccountID:   p.AccountID,
			Type:        p.Kind.MovementType(),
			Amount:      o.Amount,
			Description: o.Description,
			Date:        settledAt,
			Origin:      model.Origin{Table: p.Kind.Table(), ID: o.ID},
		}, now)
		if err != nil {
			return err
		}
		settled = o
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", scope.TenantID).Str("obligation_id", p.ID).Msg("settlement rolled back")
		return model.Obligation{}, err
	}

	s.log.Info().
		Str("tenant", scope.TenantID).
		Str("obligation_id", settled.ID).
		Str("movement_id", movementID).
		Int("account_id", settled.AccountID).
		Str("status", string(settled.Status)).
		Msg("obligation settled")
	return settled, nil
}

// Cancel moves an open obligation to cancelled.
func (s *Service) Cancel(ctx context.Context, scope tenant.Scope, kind model.ObligationKind, id string) (model.Obligation, error) {
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return model.Obligation{}, err
	}

	var cancelled model.Obligation
	err = st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.GetObligation(ctx, kind, id)
		if err != nil {
			return err
		}
		if !visible(scope, o) {
			return fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
		}
		if o.Status != model.StatusOpen {
			return fmt.Errorf("%s %s is %s: %w", kind, id, o.Status, model.ErrInvalidState)
		}
		o.Status = model.StatusCancelled
		cancelled = o
		return tx.UpdateObligation(ctx, o)
	})
	if err != nil {
		return model.Obligation{}, err
	}

	s.log.Info().Str("tenant", scope.TenantID).Str("obligation_id", id).Msg("obligation cancelled")
	return cancelled, nil
}

// Get returns one obligation.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, kind model.ObligationKind, id string) (model.Obligation, error) {
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return model.Obligation{}, err
	}
	o, err := st.GetObligation(ctx, kind, id)
	if err != nil {
		return model.Obligation{}, err
	}
	if !visible(scope, o) {
		return model.Obligation{}, fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
	}
	return o, nil
}

// List returns the obligations matching filter ordered by due date.
func (s *Service) List(ctx context.Context, scope tenant.Scope, filter store.ObligationFilter) ([]model.Obligation, error) {
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return nil, err
	}
	all, err := st.ListObligations(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]model.Obligation, 0, len(all))
	for _, o := range all {
		if visible(scope, o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Installment < out[j].Installment
	})
	return out, nil
}

func (s *Service) newObligation(p CreateParams, amount decimal.Decimal, due time.Time) model.Obligation {
	y, m, d := due.Date()
	return model.Obligation{
		ID:           s.newID(),
		Kind:         p.Kind,
		Description:  p.Description,
		Amount:       amount,
		DueDate:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Status:       model.StatusOpen,
		AccountID:    p.AccountID,
		Category:     p.Category,
		Counterparty: p.Counterparty,
		CreatedAt:    s.now().UTC(),
	}
}

func checkCreate(scope tenant.Scope, p CreateParams) error {
	if err := validation.Struct(p); err != nil {
		return err
	}
	if p.AccountID != 0 && !scope.Includes(p.AccountID) {
		return fmt.Errorf("account %d: %w", p.AccountID, model.ErrNotFound)
	}
	return nil
}

func checkAccount(ctx context.Context, tx store.Tx, accountID int) error {
	if accountID == 0 {
		return nil
	}
	_, err := tx.GetAccount(ctx, accountID)
	return err
}

// visible hides obligations linked to accounts outside a restricted scope.
// Unlinked obligations belong to the whole tenant.
func visible(scope tenant.Scope, o model.Obligation) bool {
	return o.AccountID == 0 || scope.Includes(o.AccountID)
}
