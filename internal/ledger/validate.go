package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fluxo-dev/fluxo/internal/id"
	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
)

// Ledger invariants checked by ValidateMovements.
const (
	InvariantPositive   = 1
	InvariantCents      = 2
	InvariantType       = 3
	InvariantAccount    = 4
	InvariantTransfer   = 5
	InvariantUniqueID   = 6
	InvariantMovementID = 7
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	MovementID  string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.MovementID, e.Description)
}

// Join folds violations into one error, or nil when there are none.
func Join(verrs []ValidationError) error {
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, len(verrs))
	for i, ve := range verrs {
		errs[i] = ve
	}
	return fmt.Errorf("ledger validation failed: %w", errors.Join(errs...))
}

// AccountChecker tests whether an account ID exists.
type AccountChecker interface {
	Exists(id int) bool
}

// AccountSet is an AccountChecker over a fixed list of accounts.
type AccountSet map[int]bool

// NewAccountSet builds an AccountSet from accts.
func NewAccountSet(accts []model.Account) AccountSet {
	set := make(AccountSet, len(accts))
	for _, a := range accts {
		set[a.ID] = true
	}
	return set
}

// Exists implements AccountChecker.
func (s AccountSet) Exists(id int) bool { return s[id] }

// ValidateMovements checks a set of ledger movements.
func ValidateMovements(movements []model.Movement, accounts AccountChecker) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool, len(movements))
	transfers := make(map[string][]model.Movement)
	var transferOrder []string

	for _, m := range movements {
		if !m.Amount.IsPositive() {
			errs = append(errs, ValidationError{
				Invariant:   InvariantPositive,
				MovementID:  m.ID,
				Description: fmt.Sprintf("amount %s is not positive", m.Amount),
			})
		}
		if !money.IsCents(m.Amount) {
			errs = append(errs, ValidationError{
				Invariant:   InvariantCents,
				MovementID:  m.ID,
				Description: fmt.Sprintf("amount %s has more than 2 decimal places", m.Amount),
			})
		}
		if !m.Type.Valid() {
			errs = append(errs, ValidationError{
				Invariant:   InvariantType,
				MovementID:  m.ID,
				Description: fmt.Sprintf("type %q is neither debit nor credit", m.Type),
			})
		}
		if !accounts.Exists(m.AccountID) {
			errs = append(errs, ValidationError{
				Invariant:   InvariantAccount,
				MovementID:  m.ID,
				Description: fmt.Sprintf("unknown account %d", m.AccountID),
			})
		}
		if seen[m.ID] {
			errs = append(errs, ValidationError{
				Invariant:   InvariantUniqueID,
				MovementID:  m.ID,
				Description: "duplicate movement ID",
			})
		}
		seen[m.ID] = true

		mid, err := id.Parse(m.ID)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{
				Invariant:   InvariantMovementID,
				MovementID:  m.ID,
				Description: err.Error(),
			})
		case !mid.InMonthOf(m.Date):
			errs = append(errs, ValidationError{
				Invariant:   InvariantMovementID,
				MovementID:  m.ID,
				Description: fmt.Sprintf("date %s not in %04d-%02d", m.Date.Format("2006-01-02"), mid.Year, int(mid.Month)),
			})
		}

		if m.IsTransfer() {
			if _, ok := transfers[m.Origin.ID]; !ok {
				transferOrder = append(transferOrder, m.Origin.ID)
			}
			transfers[m.Origin.ID] = append(transfers[m.Origin.ID], m)
		}
	}

	// Each transfer is exactly one debit and one credit of the same amount.
	for _, entry := range transferOrder {
		legs := transfers[entry]
		debits, credits := decimal.Zero, decimal.Zero
		var nDebit, nCredit int
		for _, leg := range legs {
			switch leg.Type {
			case model.Debit:
				debits = debits.Add(leg.Amount)
				nDebit++
			case model.Credit:
				credits = credits.Add(leg.Amount)
				nCredit++
			}
		}
		if nDebit != 1 || nCredit != 1 {
			errs = append(errs, ValidationError{
				Invariant:   InvariantTransfer,
				MovementID:  entry,
				Description: fmt.Sprintf("transfer has %d debit and %d credit legs, want 1 and 1", nDebit, nCredit),
			})
			continue
		}
		if !debits.Equal(credits) {
			errs = append(errs, ValidationError{
				Invariant:   InvariantTransfer,
				MovementID:  entry,
				Description: fmt.Sprintf("debit (%s) != credit (%s)", debits.StringFixed(2), credits.StringFixed(2)),
			})
		}
	}

	return errs
}
