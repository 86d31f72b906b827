// Package installment splits a total into a schedule of due amounts.
package installment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
)

// Interval is the spacing between due dates.
type Interval string

const (
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
)

// ParseInterval accepts "weekly" or "monthly".
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case Weekly, Monthly:
		return Interval(s), nil
	}
	return "", fmt.Errorf("unknown interval %q (want weekly or monthly)", s)
}

// Installment is one entry of a schedule. Index is 1-based.
type Installment struct {
	Index   int
	Amount  decimal.Decimal
	DueDate time.Time
}

// Split divides total into count installments. Every installment but the
// last gets floor(total/count) in cents; the last absorbs the remainder, so
// the amounts always add up to total exactly. A total below one cent per
// installment is rejected with ErrInvalidAmount.
func Split(total decimal.Decimal, count int, firstDue time.Time, interval Interval) ([]Installment, error) {
	if count < 2 {
		return nil, fmt.Errorf("count %d: %w", count, model.ErrInvalidCount)
	}
	if !money.ValidPositive(total) {
		return nil, fmt.Errorf("total %s: %w", total, model.ErrInvalidAmount)
	}
	if interval != Weekly && interval != Monthly {
		return nil, fmt.Errorf("unknown interval %q", interval)
	}

	n := decimal.NewFromInt(int64(count))
	base := money.FloorCents(total.Div(n))
	if !base.IsPositive() {
		return nil, fmt.Errorf("total %s is less than one cent per installment: %w", total, model.ErrInvalidAmount)
	}
	last := money.Round(base.Add(total.Sub(base.Mul(n))))

	out := make([]Installment, count)
	for i := range out {
		amount := base
		if i == count-1 {
			amount = last
		}
		out[i] = Installment{
			Index:   i + 1,
			Amount:  amount,
			DueDate: DueDate(firstDue, i, interval),
		}
	}
	return out, nil
}

// DueDate returns the due date of the installment at zero-based offset i.
// Monthly dates are always computed from firstDue, clamping the day to the
// end of shorter months: Jan 31 gives Feb 29 (2024), then Mar 31.
func DueDate(firstDue time.Time, i int, interval Interval) time.Time {
	if interval == Weekly {
		return firstDue.AddDate(0, 0, 7*i)
	}
	return addMonthsClamped(firstDue, i)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	hh, mm, ss := t.Clock()
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// FromOverride builds a schedule from explicit amounts and dates. Both
// arrays must have exactly count entries. The sum is not
// checked against any total.
func FromOverride(count int, amounts []decimal.Decimal, dates []time.Time) ([]Installment, error) {
	if count < 1 {
		return nil, fmt.Errorf("count %d: %w", count, model.ErrInvalidCount)
	}
	if len(amounts) != count || len(dates) != count {
		return nil, fmt.Errorf("%d amounts and %d dates for %d installments: %w",
			len(amounts), len(dates), count, model.ErrArityMismatch)
	}

	out := make([]Installment, count)
	for i := range out {
		if !money.ValidPositive(amounts[i]) {
			return nil, fmt.Errorf("installment %d amount %s: %w", i+1, amounts[i], model.ErrInvalidAmount)
		}
		if dates[i].IsZero() {
			return nil, fmt.Errorf("installment %d has no due date", i+1)
		}
		out[i] = Installment{Index: i + 1, Amount: amounts[i], DueDate: dates[i]}
	}
	return out, nil
}

// Total adds the amounts of a schedule.
func Total(items []Installment) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}
