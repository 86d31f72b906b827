// Package projection builds the forward-looking cash series shown on the
// dashboard: one point per day, starting from the consolidated balance and
// adding receivables and subtracting payables on their due dates.
package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/tenant"
)

// ErrInvalidRange indicates an end date before the start date.
var ErrInvalidRange = errors.New("invalid date range")

// maxDays caps the length of a series.
const maxDays = 366 * 5

// Counted reports whether an obligation contributes to the projection.
// Settled obligations stay on their due date; cancelled ones drop out.
func Counted(o model.Obligation) bool {
	switch o.Kind {
	case model.Receivable:
		return o.Status == model.StatusOpen || o.Status == model.StatusReceived
	case model.Payable:
		return o.Status == model.StatusOpen || o.Status == model.StatusPaid
	}
	return false
}

// Series returns one point per day in [start, end]. Obligations outside the
// range or not Counted are ignored.
func Series(start, end time.Time, seed decimal.Decimal, obligations []model.Obligation) ([]model.ProjectionPoint, error) {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%s after %s: %w", start.Format(time.DateOnly), end.Format(time.DateOnly), ErrInvalidRange)
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > maxDays {
		return nil, fmt.Errorf("%d days exceeds %d: %w", days, maxDays, ErrInvalidRange)
	}

	receivable := make(map[time.Time]decimal.Decimal)
	payable := make(map[time.Time]decimal.Decimal)
	for _, o := range obligations {
		if !Counted(o) {
			continue
		}
		due := Day(o.DueDate)
		if due.Before(start) || due.After(end) {
			continue
		}
		if o.Kind == model.Receivable {
			receivable[due] = receivable[due].Add(o.Amount)
		} else {
			payable[due] = payable[due].Add(o.Amount)
		}
	}

	points := make([]model.ProjectionPoint, 0, days)
	balance := seed
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		in, out := receivable[d], payable[d]
		balance = balance.Add(in).Sub(out)
		points = append(points, model.ProjectionPoint{
			Date:       d,
			Receivable: in,
			Payable:    out.Neg(),
			Balance:    money.Round(balance),
		})
	}
	return points, nil
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ObligationLister lists the obligations visible in a scope.
type ObligationLister interface {
	List(ctx context.Context, scope tenant.Scope, filter store.ObligationFilter) ([]model.Obligation, error)
}

// BalanceSource provides consolidated balances.
type BalanceSource interface {
	Consolidated(ctx context.Context, scope tenant.Scope, excludeTransfers bool) (decimal.Decimal, error)
}

// Service runs projections against stored obligations.
type Service struct {
	obligations ObligationLister
	balances    BalanceSource
	log         zerolog.Logger
}

// NewService creates a projection Service.
func NewService(obligations ObligationLister, balances BalanceSource, log zerolog.Logger) *Service {
	return &Service{obligations: obligations, balances: balances, log: log}
}

// Project returns the day series for [start, end] starting at seed.
func (s *Service) Project(ctx context.Context, scope tenant.Scope, start, end time.Time, seed decimal.Decimal) ([]model.ProjectionPoint, error) {
	if Day(end).Before(Day(start)) {
		return nil, fmt.Errorf("%s after %s: %w", start.Format(time.DateOnly), end.Format(time.DateOnly), ErrInvalidRange)
	}
	obligations, err := s.obligations.List(ctx, scope, store.ObligationFilter{
		Statuses: []model.ObligationStatus{model.StatusOpen, model.StatusPaid, model.StatusReceived},
		DueFrom:  Day(start),
		DueTo:    Day(end),
	})
	if err != nil {
		return nil, fmt.Errorf("listing obligations: %w", err)
	}
	return Series(start, end, seed, obligations)
}

// Dashboard is the projection for a named window plus the headline balance.
type Dashboard struct {
	Window  Window
	Start   time.Time
	End     time.Time
	Balance decimal.Decimal // consolidated, transfers included
	Seed    decimal.Decimal // consolidated, transfers excluded
	Points  []model.ProjectionPoint
}

// Dashboard resolves window relative to today and projects it, seeded with
// the consolidated balance excluding transfers.
func (s *Service) Dashboard(ctx context.Context, scope tenant.Scope, window Window, today time.Time) (Dashboard, error) {
	start, end, err := window.Range(today)
	if err != nil {
		return Dashboard{}, err
	}
	seed, err := s.balances.Consolidated(ctx, scope, true)
	if err != nil {
		return Dashboard{}, fmt.Errorf("seed balance: %w", err)
	}
	display, err := s.balances.Consolidated(ctx, scope, false)
	if err != nil {
		return Dashboard{}, fmt.Errorf("display balance: %w", err)
	}
	points, err := s.Project(ctx, scope, start, end, seed)
	if err != nil {
		return Dashboard{}, err
	}

	s.log.Debug().
		Str("tenant", scope.TenantID).
		Str("window", string(window)).
		Int("points", len(points)).
		Msg("dashboard projected")
	return Dashboard{Window: window, Start: start, End: end, Balance: display, Seed: seed, Points: points}, nil
}

// MonthSummary totals the receipts and payments of the month containing
// month. Open obligations count by due date; settled ones by settlement date.
func (s *Service) MonthSummary(ctx context.Context, scope tenant.Scope, month time.Time) (model.MonthSummary, error) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	open, err := s.obligations.List(ctx, scope, store.ObligationFilter{
		Statuses: []model.ObligationStatus{model.StatusOpen},
		DueFrom:  first,
		DueTo:    last,
	})
	if err != nil {
		return model.MonthSummary{}, fmt.Errorf("listing open obligations: %w", err)
	}
	settled, err := s.obligations.List(ctx, scope, store.ObligationFilter{
		Statuses:    []model.ObligationStatus{model.StatusPaid, model.StatusReceived},
		SettledFrom: first,
		SettledTo:   last,
	})
	if err != nil {
		return model.MonthSummary{}, fmt.Errorf("listing settled obligations: %w", err)
	}

	sum := model.MonthSummary{
		Month:            first,
		OpenReceipts:     decimal.Zero,
		RealizedReceipts: decimal.Zero,
		OpenPayments:     decimal.Zero,
		RealizedPayments: decimal.Zero,
	}
	for _, o := range open {
		if o.Kind == model.Receivable {
			sum.OpenReceipts = sum.OpenReceipts.Add(o.Amount)
		} else {
			sum.OpenPayments = sum.OpenPayments.Add(o.Amount)
		}
	}
	for _, o := range settled {
		if o.Kind == model.Receivable {
			sum.RealizedReceipts = sum.RealizedReceipts.Add(o.Amount)
		} else {
			sum.RealizedPayments = sum.RealizedPayments.Add(o.Amount)
		}
	}
	return sum, nil
}
