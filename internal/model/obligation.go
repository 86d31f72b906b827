package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ObligationKind distinguishes accounts payable from accounts receivable.
type ObligationKind string

const (
	Payable    ObligationKind = "payable"
	Receivable ObligationKind = "receivable"
)

// Valid reports whether k is a known kind.
func (k ObligationKind) Valid() bool {
	return k == Payable || k == Receivable
}

// Table returns the origin table name used on settlement movements.
func (k ObligationKind) Table() string {
	if k == Payable {
		return OriginPayables
	}
	return OriginReceivables
}

// SettledStatus is the terminal status reached by settling an obligation of this kind.
func (k ObligationKind) SettledStatus() ObligationStatus {
	if k == Payable {
		return StatusPaid
	}
	return StatusReceived
}

// MovementType is the ledger side written when an obligation of this kind settles.
func (k ObligationKind) MovementType() MovementType {
	if k == Payable {
		return Debit
	}
	return Credit
}

// ObligationStatus is the lifecycle state of a payable or receivable.
type ObligationStatus string

const (
	StatusOpen      ObligationStatus = "open"
	StatusPaid      ObligationStatus = "paid"
	StatusReceived  ObligationStatus = "received"
	StatusCancelled ObligationStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s ObligationStatus) Terminal() bool {
	return s == StatusPaid || s == StatusReceived || s == StatusCancelled
}

// Obligation is a payable or receivable. Installments point at their parent
// through ParentID; the parent is an ordinary row in the same table.
type Obligation struct {
	ID           string
	Kind         ObligationKind
	Description  string
	Amount       decimal.Decimal
	DueDate      time.Time
	Status       ObligationStatus
	AccountID    int    // 0 = not linked yet
	Category     string // classification tag
	Counterparty string // supplier for payables, client for receivables
	Method       string // payment or receipt method
	SettledAt    *time.Time
	ParentID     string // "" = top-level
	Installment  int    // 1-based index, 0 when not an installment
	Installments int
	CreatedAt    time.Time
}
