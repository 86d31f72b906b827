// Package ledger records account movements. The ledger is append-only:
// balances are always derived from it and nothing here updates or deletes
// a movement once written.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fluxo-dev/fluxo/internal/id"
	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/tenant"
	"github.com/fluxo-dev/fluxo/internal/validation"
)

// Service provides business logic for ledger movements.
type Service struct {
	stores store.Provider
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a ledger Service.
func NewService(stores store.Provider, log zerolog.Logger) *Service {
	return &Service{stores: stores, log: log, now: time.Now}
}

// AppendParams holds parameters for a single movement.
type AppendParams struct {
	AccountID   int `validate:"gt=0"`
	Type        model.MovementType
	Amount      decimal.Decimal
	Description string    `validate:"max=255"`
	Date        time.Time `validate:"required"`
	Origin      model.Origin
}

// Append writes one movement and returns its ID.
func (s *Service) Append(ctx context.Context, scope tenant.Scope, p AppendParams) (string, error) {
	if err := validation.Struct(p); err != nil {
		return "", err
	}
	if !p.Type.Valid() {
		return "", fmt.Errorf("movement type %q: %w", p.Type, model.ErrInvalidType)
	}
	if !money.ValidPositive(p.Amount) {
		return "", fmt.Errorf("amount %s: %w", p.Amount, model.ErrInvalidAmount)
	}
	if !scope.Includes(p.AccountID) {
		return "", fmt.Errorf("account %d: %w", p.AccountID, model.ErrNotFound)
	}

	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return "", err
	}

	var movementID string
	err = st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		movementID, err = AppendTx(ctx, tx, p, s.now())
		return err
	})
	if err != nil {
		return "", err
	}

	s.log.Info().
		Str("tenant", scope.TenantID).
		Str("movement_id", movementID).
		Int("account_id", p.AccountID).
		Str("type", string(p.Type)).
		Str("amount", p.Amount.StringFixed(2)).
		Msg("movement appended")
	return movementID, nil
}

// AppendTx writes one movement inside an existing transaction. Callers that
// change other records in the same unit of work (settlement) use this so the
// movement commits or rolls back with them. Input is assumed validated.
func AppendTx(ctx context.Context, tx store.Tx, p AppendParams, now time.Time) (string, error) {
	if _, err := tx.GetAccount(ctx, p.AccountID); err != nil {
		return "", err
	}

	date := dateOnly(p.Date)
	mid, err := nextID(ctx, tx, date)
	if err != nil {
		return "", err
	}

	m := model.Movement{
		ID:          mid.String(),
		AccountID:   p.AccountID,
		Type:        p.Type,
		Amount:      p.Amount,
		Description: p.Description,
		Origin:      p.Origin,
		Date:        date,
		CreatedAt:   now.UTC(),
	}
	if err := tx.InsertMovement(ctx, m); err != nil {
		return "", fmt.Errorf("inserting movement %s: %w", m.ID, err)
	}
	return m.ID, nil
}

// TransferParams holds parameters for moving money between two accounts.
type TransferParams struct {
	From        int `validate:"gt=0"`
	To          int `validate:"gt=0"`
	Amount      decimal.Decimal
	Description string    `validate:"max=255"`
	Date        time.Time `validate:"required"`
}

// Transfer writes a debit on From and a credit on To as one entry. Both legs
// share the entry ID as their origin, so either both persist or neither does.
func (s *Service) Transfer(ctx context.Context, scope tenant.Scope, p TransferParams) (string, error) {
	if err := validation.Struct(p); err != nil {
		return "", err
	}
	if p.From == p.To {
		return "", fmt.Errorf("account %d to itself: %w", p.From, model.ErrInvalidTransfer)
	}
	if !money.ValidPositive(p.Amount) {
		return "", fmt.Errorf("amount %s: %w", p.Amount, model.ErrInvalidAmount)
	}
	for _, acct := range []int{p.From, p.To} {
		if !scope.Includes(acct) {
			return "", fmt.Errorf("account %d: %w", acct, model.ErrNotFound)
		}
	}

	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return "", err
	}

	var entryID string
	err = st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, acctID := range []int{p.From, p.To} {
			acct, err := tx.GetAccount(ctx, acctID)
			if err != nil {
				return err
			}
			if !acct.Active {
				return fmt.Errorf("account %d is inactive: %w", acctID, model.ErrInvalidState)
			}
		}

		date := dateOnly(p.Date)
		mid, err := nextID(ctx, tx, date)
		if err != nil {
			return err
		}
		entryID = mid.String()
		origin := model.Origin{Table: model.OriginTransfer, ID: entryID}
		now := s.now().UTC()

		legs := []model.Movement{
			{
				ID:          mid.Leg(0),
				AccountID:   p.From,
				Type:        model.Debit,
				Amount:      p.Amount,
				Description: p.Description,
				Origin:      origin,
				Date:        date,
				CreatedAt:   now,
			},
			{
				ID:          mid.Leg(1),
				AccountID:   p.To,
				Type:        model.Credit,
				Amount:      p.Amount,
				Description: p.Description,
				Origin:      origin,
				Date:        date,
				CreatedAt:   now,
			},
		}
		for _, leg := range legs {
			if err := tx.InsertMovement(ctx, leg); err != nil {
				return fmt.Errorf("inserting transfer leg %s: %w", leg.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", scope.TenantID).Int("from", p.From).Int("to", p.To).Msg("transfer rolled back")
		return "", err
	}

	s.log.Info().
		Str("tenant", scope.TenantID).
		Str("movement_id", entryID).
		Int("from", p.From).
		Int("to", p.To).
		Str("amount", p.Amount.StringFixed(2)).
		Msg("transfer recorded")
	return entryID, nil
}

// Movements lists the movements visible in scope that match filter, in ID order.
func (s *Service) Movements(ctx context.Context, scope tenant.Scope, filter store.MovementFilter) ([]model.Movement, error) {
	if filter.AccountID != 0 && !scope.Includes(filter.AccountID) {
		return nil, nil
	}
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return nil, err
	}
	all, err := st.ListMovements(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]model.Movement, 0, len(all))
	for _, m := range all {
		if scope.Includes(m.AccountID) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Check runs ValidateMovements over the whole ledger of the tenant.
func (s *Service) Check(ctx context.Context, scope tenant.Scope) ([]ValidationError, error) {
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return nil, err
	}
	accts, err := st.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	movements, err := st.ListMovements(ctx, store.MovementFilter{})
	if err != nil {
		return nil, err
	}
	return ValidateMovements(movements, NewAccountSet(accts)), nil
}

func nextID(ctx context.Context, tx store.Tx, date time.Time) (id.Movement, error) {
	first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	existing, err := tx.ListMovements(ctx, store.MovementFilter{From: first, To: last})
	if err != nil {
		return id.Movement{}, err
	}
	ids := make([]string, len(existing))
	for i, m := range existing {
		ids[i] = m.ID
	}
	return id.Next(ids, date), nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
