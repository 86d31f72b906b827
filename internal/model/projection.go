package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProjectionPoint is one day of the cash projection series.
type ProjectionPoint struct {
	Date       time.Time
	Receivable decimal.Decimal
	Payable    decimal.Decimal // negated: money leaving
	Balance    decimal.Decimal
}

// MonthSummary is the month-to-date receipts/payments view shown beside the
// projection. Open amounts are counted by due date, realized ones by
// settlement date.
type MonthSummary struct {
	Month            time.Time
	OpenReceipts     decimal.Decimal
	RealizedReceipts decimal.Decimal
	OpenPayments     decimal.Decimal
	RealizedPayments decimal.Decimal
}

// Receipts is the blended receipts total for the month.
func (s MonthSummary) Receipts() decimal.Decimal {
	return s.OpenReceipts.Add(s.RealizedReceipts)
}

// Payments is the blended payments total for the month.
func (s MonthSummary) Payments() decimal.Decimal {
	return s.OpenPayments.Add(s.RealizedPayments)
}

// Net is receipts minus payments.
func (s MonthSummary) Net() decimal.Decimal {
	return s.Receipts().Sub(s.Payments())
}
