package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a bank or cash account whose balance is derived from the ledger.
type Account struct {
	ID             int
	Name           string
	BankName       string
	Number         string
	InitialBalance decimal.Decimal
	Active         bool
	CreatedAt      time.Time
}
