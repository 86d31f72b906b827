// Package store defines the persistence contracts the ledger core runs on.
// Backends live in the filestore and pgstore subpackages.
package store

import (
	"context"
	"slices"
	"time"

	"github.com/fluxo-dev/fluxo/internal/model"
)

// MovementFilter selects ledger movements. Zero fields do not filter.
type MovementFilter struct {
	AccountID   int
	From        time.Time // inclusive, on Movement.Date
	To          time.Time // inclusive, on Movement.Date
	OriginTable string
	OriginID    string
}

// Match reports whether m passes the filter.
func (f MovementFilter) Match(m model.Movement) bool {
	if f.AccountID != 0 && m.AccountID != f.AccountID {
		return false
	}
	if !f.From.IsZero() && m.Date.Before(dayStart(f.From)) {
		return false
	}
	if !f.To.IsZero() && !m.Date.Before(dayStart(f.To).AddDate(0, 0, 1)) {
		return false
	}
	if f.OriginTable != "" && m.Origin.Table != f.OriginTable {
		return false
	}
	if f.OriginID != "" && m.Origin.ID != f.OriginID {
		return false
	}
	return true
}

// ObligationFilter selects payables or receivables. Zero fields do not filter.
type ObligationFilter struct {
	Kind        model.ObligationKind
	Statuses    []model.ObligationStatus
	DueFrom     time.Time // inclusive
	DueTo       time.Time // inclusive
	SettledFrom time.Time // inclusive, on SettledAt
	SettledTo   time.Time // inclusive, on SettledAt
	ParentID    string
}

// Match reports whether o passes the filter.
func (f ObligationFilter) Match(o model.Obligation) bool {
	if f.Kind != "" && o.Kind != f.Kind {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
		return false
	}
	if !f.DueFrom.IsZero() && o.DueDate.Before(dayStart(f.DueFrom)) {
		return false
	}
	if !f.DueTo.IsZero() && !o.DueDate.Before(dayStart(f.DueTo).AddDate(0, 0, 1)) {
		return false
	}
	if !f.SettledFrom.IsZero() || !f.SettledTo.IsZero() {
		if o.SettledAt == nil {
			return false
		}
		if !f.SettledFrom.IsZero() && o.SettledAt.Before(dayStart(f.SettledFrom)) {
			return false
		}
		if !f.SettledTo.IsZero() && !o.SettledAt.Before(dayStart(f.SettledTo).AddDate(0, 0, 1)) {
			return false
		}
	}
	if f.ParentID != "" && o.ParentID != f.ParentID {
		return false
	}
	return true
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Reader is the read side shared by stores and transactions. Lookups of a
// missing row return an error wrapping model.ErrNotFound.
type Reader interface {
	GetAccount(ctx context.Context, id int) (model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]model.Movement, error)
	GetObligation(ctx context.Context, kind model.ObligationKind, id string) (model.Obligation, error)
	ListObligations(ctx context.Context, filter ObligationFilter) ([]model.Obligation, error)
}

// Tx is a unit of work. Movements can only be inserted: there is no update
// or delete path for the ledger.
type Tx interface {
	Reader
	InsertAccount(ctx context.Context, acct model.Account) error
	UpdateAccount(ctx context.Context, acct model.Account) error
	InsertMovement(ctx context.Context, m model.Movement) error
	InsertObligation(ctx context.Context, o model.Obligation) error
	UpdateObligation(ctx context.Context, o model.Obligation) error
}

// Store is one tenant's data.
type Store interface {
	Reader
	// WithTx runs fn in a transaction. Every write made through the Tx is
	// discarded if fn returns an error.
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}

// Provider resolves the Store of a tenant.
type Provider interface {
	For(ctx context.Context, tenantID string) (Store, error)
	Close() error
}
