package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/ledger"
	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/obligations"
	"github.com/fluxo-dev/fluxo/internal/projection"
	"github.com/fluxo-dev/fluxo/internal/tenant"
)

type pointJSON struct {
	Date       string `json:"date"`
	Receivable string `json:"receivable"`
	Payable    string `json:"payable"`
	Balance    string `json:"balance"`
}

type projectionJSON struct {
	Window  string      `json:"window,omitempty"`
	Start   string      `json:"start"`
	End     string      `json:"end"`
	Balance string      `json:"balance"`
	Seed    string      `json:"seed"`
	Points  []pointJSON `json:"points"`
}

type balanceJSON struct {
	AccountID int    `json:"account_id"`
	Balance   string `json:"balance"`
	Seed      string `json:"seed"`
}

type accountBalanceJSON struct {
	AccountID int    `json:"account_id"`
	Name      string `json:"name,omitempty"`
	Active    bool   `json:"active"`
	Balance   string `json:"balance"`
	Seed      string `json:"seed"`
}

type balancesJSON struct {
	Accounts []accountBalanceJSON `json:"accounts"`
	Balance  string               `json:"balance"`
	Seed     string               `json:"seed"`
}

type summaryJSON struct {
	Month            string `json:"month"`
	Receipts         string `json:"receipts"`
	Payments         string `json:"payments"`
	Net              string `json:"net"`
	OpenReceipts     string `json:"open_receipts"`
	RealizedReceipts string `json:"realized_receipts"`
	OpenPayments     string `json:"open_payments"`
	RealizedPayments string `json:"realized_payments"`
}

type transferRequest struct {
	From        int             `json:"from"`
	To          int             `json:"to"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
}

type settleRequest struct {
	AccountID int    `json:"account_id"`
	Method    string `json:"method"`
	Date      string `json:"date"`
}

type obligationJSON struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	DueDate   string `json:"due_date"`
	AccountID int    `json:"account_id"`
	SettledAt string `json:"settled_at,omitempty"`
	Method    string `json:"method,omitempty"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// scopeFrom reads the tenant path param and the optional "accounts" query
// (comma-separated IDs) restricting the visible accounts.
func scopeFrom(r *http.Request) (tenant.Scope, error) {
	var ids []int
	if raw := r.URL.Query().Get("accounts"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return tenant.Scope{}, fmt.Errorf("accounts %q: %w", raw, errBadRequest)
			}
			ids = append(ids, id)
		}
	}
	return tenant.New(chi.URLParam(r, "tenant"), ids...)
}

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return projection.Day(fallback), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, errBadRequest)
	}
	return d, nil
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("account id: %w", errBadRequest))
		return
	}

	display, err := s.deps.Balances.Balance(r.Context(), scope, id, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	seed, err := s.deps.Balances.Balance(r.Context(), scope, id, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceJSON{AccountID: id, Balance: money(display), Seed: money(seed)})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.deps.Balances.Snapshot(r.Context(), scope)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := balancesJSON{Accounts: make([]accountBalanceJSON, len(snap.Accounts)), Balance: money(snap.Display), Seed: money(snap.Seed)}
	for i, ab := range snap.Accounts {
		out.Accounts[i] = accountBalanceJSON{
			AccountID: ab.Account.ID,
			Name:      ab.Account.Name,
			Active:    ab.Account.Active,
			Balance:   money(ab.Display),
			Seed:      money(ab.Seed),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleProjection serves either ?window=30d or an explicit ?start&end range.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	today := s.deps.Now()

	if q.Get("start") == "" && q.Get("end") == "" {
		window := s.deps.DefaultWindow
		if raw := q.Get("window"); raw != "" {
			if window, err = projection.ParseWindow(raw); err != nil {
				s.writeError(w, r, fmt.Errorf("%v: %w", err, errBadRequest))
				return
			}
		}
		dash, err := s.deps.Projection.Dashboard(r.Context(), scope, window, today)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toProjectionJSON(string(dash.Window), dash.Start, dash.End, dash.Balance, dash.Seed, dash.Points))
		return
	}

	start, err := parseDate(q.Get("start"), today)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := parseDate(q.Get("end"), today)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	seed, err := s.deps.Balances.Consolidated(r.Context(), scope, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	display, err := s.deps.Balances.Consolidated(r.Context(), scope, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	points, err := s.deps.Projection.Project(r.Context(), scope, start, end, seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectionJSON("", start, end, display, seed, points))
}

func toProjectionJSON(window string, start, end time.Time, display, seed decimal.Decimal, points []model.ProjectionPoint) projectionJSON {
	out := projectionJSON{
		Window:  window,
		Start:   start.Format(time.DateOnly),
		End:     end.Format(time.DateOnly),
		Balance: money(display),
		Seed:    money(seed),
		Points:  make([]pointJSON, len(points)),
	}
	for i, p := range points {
		out.Points[i] = pointJSON{
			Date:       p.Date.Format(time.DateOnly),
			Receivable: money(p.Receivable),
			Payable:    money(p.Payable),
			Balance:    money(p.Balance),
		}
	}
	return out
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	month := s.deps.Now()
	if raw := r.URL.Query().Get("month"); raw != "" {
		if month, err = time.Parse("2006-01", raw); err != nil {
			s.writeError(w, r, fmt.Errorf("month %q: %w", raw, errBadRequest))
			return
		}
	}

	sum, err := s.deps.Projection.MonthSummary(r.Context(), scope, month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryJSON{
		Month:            sum.Month.Format("2006-01"),
		Receipts:         money(sum.Receipts()),
		Payments:         money(sum.Payments()),
		Net:              money(sum.Net()),
		OpenReceipts:     money(sum.OpenReceipts),
		RealizedReceipts: money(sum.RealizedReceipts),
		OpenPayments:     money(sum.OpenPayments),
		RealizedPayments: money(sum.RealizedPayments),
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("decoding body: %v: %w", err, errBadRequest))
		return
	}
	date, err := parseDate(req.Date, s.deps.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entryID, err := s.deps.Ledger.Transfer(r.Context(), scope, ledger.TransferParams{
		From:        req.From,
		To:          req.To,
		Amount:      req.Amount,
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.deps.Metrics.transfers.Inc()
	s.audit(scope.TenantID, auditlog.Entry{
		Action:   auditlog.ActionTransfer,
		Details:  fmt.Sprintf("%d -> %d %s", req.From, req.To, money(req.Amount)),
		RecordID: entryID,
	})
	writeJSON(w, http.StatusCreated, map[string]string{"id": entryID})
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kind := model.Payable
	if chi.URLParam(r, "kind") == "receivables" {
		kind = model.Receivable
	}
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("decoding body: %v: %w", err, errBadRequest))
		return
	}
	on := s.deps.Now()
	if req.Date != "" {
		if on, err = parseDate(req.Date, time.Time{}); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	o, err := s.deps.Obligations.Settle(r.Context(), scope, obligations.SettleParams{
		Kind:      kind,
		ID:        chi.URLParam(r, "id"),
		AccountID: req.AccountID,
		Method:    req.Method,
		On:        on,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.deps.Metrics.settlements.WithLabelValues(string(kind)).Inc()
	s.audit(scope.TenantID, auditlog.Entry{
		Action:   auditlog.ActionSettle,
		Details:  fmt.Sprintf("%s %s on account %d", kind, money(o.Amount), o.AccountID),
		RecordID: o.ID,
	})

	out := obligationJSON{
		ID:        o.ID,
		Kind:      string(o.Kind),
		Status:    string(o.Status),
		Amount:    money(o.Amount),
		DueDate:   o.DueDate.Format(time.DateOnly),
		AccountID: o.AccountID,
		Method:    o.Method,
	}
	if o.SettledAt != nil {
		out.SettledAt = o.SettledAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, out)
}
