package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is one statement row before it becomes a movement.
type BankTransaction struct {
	Date        time.Time
	Description string
	// Amount is signed from the account holder's side: negative leaves the
	// account, positive enters it.
	Amount decimal.Decimal
	// Reference identifies the row across re-imports of the same statement.
	Reference string
}
