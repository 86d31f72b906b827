package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType is the side of a ledger movement.
type MovementType string

const (
	Debit  MovementType = "debit"
	Credit MovementType = "credit"
)

// Valid reports whether t is one of the two movement sides.
func (t MovementType) Valid() bool {
	return t == Debit || t == Credit
}

// Origin tables recorded on movements.
const (
	OriginPayables    = "payables"
	OriginReceivables = "receivables"
	OriginTransfer    = "transfer"
	OriginImport      = "import"
)

// Origin tags a movement with the record that produced it.
type Origin struct {
	Table string
	ID    string
}

// IsZero reports whether no origin was recorded.
func (o Origin) IsZero() bool { return o.Table == "" && o.ID == "" }

// Movement is one immutable row in the ledger.
type Movement struct {
	ID          string // "YYYY-MM-NNN", transfers add a leg suffix: "2025-01-004a"
	AccountID   int
	Type        MovementType
	Amount      decimal.Decimal // always positive
	Description string
	Origin      Origin
	Date        time.Time
	CreatedAt   time.Time
}

// EntryGroup returns the movement ID without its leg suffix.
// "2025-01-004a" -> "2025-01-004"
func (m Movement) EntryGroup() string {
	id := m.ID
	i := len(id)
	for i > 0 && id[i-1] >= 'a' && id[i-1] <= 'z' {
		i--
	}
	return strings.TrimSpace(id[:i])
}

// IsTransfer reports whether the movement is one side of a transfer.
func (m Movement) IsTransfer() bool {
	return m.Origin.Table == OriginTransfer
}

// Signed returns the amount as it affects the account balance:
// credits add, debits subtract.
func (m Movement) Signed() decimal.Decimal {
	if m.Type == Debit {
		return m.Amount.Neg()
	}
	return m.Amount
}
