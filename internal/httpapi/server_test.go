package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/balance"
	"github.com/fluxo-dev/fluxo/internal/ledger"
	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/obligations"
	"github.com/fluxo-dev/fluxo/internal/projection"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/store/filestore"
	"github.com/fluxo-dev/fluxo/internal/tenant"
)

var today = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	srv     *httptest.Server
	obls    *obligations.Service
	led     *ledger.Service
	scope   tenant.Scope
	mu      sync.Mutex
	audited []auditlog.Entry
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	p := filestore.NewProvider(t.TempDir())
	st, err := p.For(ctx, "acme")
	require.NoError(t, err)
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, a := range []model.Account{
			{ID: 1, Name: "Caixa", InitialBalance: dec("100"), Active: true},
			{ID: 2, Name: "Banco", Active: true},
			{ID: 3, Name: "Antiga", Active: false},
		} {
			if err := tx.InsertAccount(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}))

	f := &fixture{
		obls: obligations.NewService(p, zerolog.Nop()),
		led:  ledger.NewService(p, zerolog.Nop()),
	}
	f.scope, err = tenant.New("acme")
	require.NoError(t, err)

	bal := balance.NewService(p, zerolog.Nop())
	srv := New(Deps{
		Ledger:      f.led,
		Balances:    bal,
		Obligations: f.obls,
		Projection:  projection.NewService(f.obls, bal, zerolog.Nop()),
		Log:         zerolog.Nop(),
		Audit: func(_ string, e auditlog.Entry) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.audited = append(f.audited, e)
		},
		Now: func() time.Time { return today },
	})
	f.srv = httptest.NewServer(srv.Router())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(data) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	f := setup(t)
	status, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestTransferAndBalance(t *testing.T) {
	f := setup(t)

	status, body := f.do(t, http.MethodPost, "/v1/tenants/acme/transfers",
		`{"from":1,"to":2,"amount":"20.00","description":"reforço","date":"2025-06-02"}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "2025-06-001", body["id"])

	status, body = f.do(t, http.MethodGet, "/v1/tenants/acme/accounts/1/balance", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "80.00", body["balance"])
	assert.Equal(t, "100.00", body["seed"])

	status, body = f.do(t, http.MethodGet, "/v1/tenants/acme/balances", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "100.00", body["balance"])
	assert.Len(t, body["accounts"], 3)

	status, body = f.do(t, http.MethodGet, "/v1/tenants/acme/balances?accounts=2", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "20.00", body["balance"])
	assert.Equal(t, "0.00", body["seed"])

	require.Len(t, f.audited, 1)
	assert.Equal(t, auditlog.ActionTransfer, f.audited[0].Action)
	assert.Equal(t, "api", f.audited[0].Actor)
}

func TestTransfer_Errors(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name, path, body string
		status           int
	}{
		{"same account", "/v1/tenants/acme/transfers", `{"from":1,"to":1,"amount":"5"}`, http.StatusUnprocessableEntity},
		{"zero amount", "/v1/tenants/acme/transfers", `{"from":1,"to":2,"amount":"0"}`, http.StatusUnprocessableEntity},
		{"inactive target", "/v1/tenants/acme/transfers", `{"from":1,"to":3,"amount":"5"}`, http.StatusConflict},
		{"unknown account", "/v1/tenants/acme/transfers", `{"from":1,"to":9,"amount":"5"}`, http.StatusNotFound},
		{"bad json", "/v1/tenants/acme/transfers", `{"from":`, http.StatusBadRequest},
		{"bad date", "/v1/tenants/acme/transfers", `{"from":1,"to":2,"amount":"5","date":"02/06/2025"}`, http.StatusBadRequest},
		{"bad tenant", "/v1/tenants/ACME!/transfers", `{"from":1,"to":2,"amount":"5"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, status, body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSettle(t *testing.T) {
	f := setup(t)
	o, err := f.obls.Create(context.Background(), f.scope, obligations.CreateParams{
		Kind: model.Payable, Description: "Aluguel", Amount: dec("60"), DueDate: time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	status, body := f.do(t, http.MethodPost, "/v1/tenants/acme/payables/"+o.ID+"/settle", `{"account_id":1,"method":"pix"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "paid", body["status"])
	assert.Equal(t, "60.00", body["amount"])
	assert.Equal(t, "2025-06-10T12:00:00Z", body["settled_at"])

	status, _ = f.do(t, http.MethodPost, "/v1/tenants/acme/payables/"+o.ID+"/settle", `{"account_id":1}`)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.do(t, http.MethodPost, "/v1/tenants/acme/receivables/"+o.ID+"/settle", `{"account_id":1}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodPost, "/v1/tenants/acme/loans/"+o.ID+"/settle", `{"account_id":1}`)
	assert.Equal(t, http.StatusNotFound, status)

	_, body = f.do(t, http.MethodGet, "/v1/tenants/acme/accounts/1/balance", "")
	assert.Equal(t, "40.00", body["balance"])
}

func TestSettle_MissingAccount(t *testing.T) {
	f := setup(t)
	o, err := f.obls.Create(context.Background(), f.scope, obligations.CreateParams{
		Kind: model.Receivable, Description: "Cliente", Amount: dec("10"), DueDate: today,
	})
	require.NoError(t, err)

	status, body := f.do(t, http.MethodPost, "/v1/tenants/acme/receivables/"+o.ID+"/settle", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status, body)
}

func TestProjection(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.obls.Create(ctx, f.scope, obligations.CreateParams{
		Kind: model.Receivable, Description: "Cliente", Amount: dec("40"), DueDate: time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	status, body := f.do(t, http.MethodGet, "/v1/tenants/acme/projection?window=15d", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "15d", body["window"])
	assert.Equal(t, "2025-06-10", body["start"])
	assert.Equal(t, "2025-06-25", body["end"])
	points := body["points"].([]any)
	require.Len(t, points, 16)
	third := points[2].(map[string]any)
	assert.Equal(t, "2025-06-12", third["date"])
	assert.Equal(t, "40.00", third["receivable"])
	assert.Equal(t, "140.00", third["balance"])

	status, body = f.do(t, http.MethodGet, "/v1/tenants/acme/projection", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "30d", body["window"], "default window")

	status, body = f.do(t, http.MethodGet, "/v1/tenants/acme/projection?start=2025-06-11&end=2025-06-12", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["points"], 2)
	assert.Empty(t, body["window"])

	status, _ = f.do(t, http.MethodGet, "/v1/tenants/acme/projection?start=2025-06-12&end=2025-06-11", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = f.do(t, http.MethodGet, "/v1/tenants/acme/projection?window=1y", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.obls.Create(ctx, f.scope, obligations.CreateParams{
		Kind: model.Receivable, Description: "Cliente", Amount: dec("40"), DueDate: time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = f.obls.Create(ctx, f.scope, obligations.CreateParams{
		Kind: model.Payable, Description: "Luz", Amount: dec("15.50"), DueDate: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	status, body := f.do(t, http.MethodGet, "/v1/tenants/acme/summary", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2025-06", body["month"])
	assert.Equal(t, "40.00", body["receipts"])
	assert.Equal(t, "15.50", body["payments"])
	assert.Equal(t, "24.50", body["net"])

	status, body = f.do(t, http.MethodGet, "/v1/tenants/acme/summary?month=2025-07", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0.00", body["net"])

	status, _ = f.do(t, http.MethodGet, "/v1/tenants/acme/summary?month=julho", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetrics(t *testing.T) {
	f := setup(t)
	f.do(t, http.MethodGet, "/v1/tenants/acme/balances", "")
	f.do(t, http.MethodPost, "/v1/tenants/acme/transfers", `{"from":1,"to":2,"amount":"1"}`)

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `fluxo_http_requests_total{code="200",method="GET",route="/v1/tenants/{tenant}/balances"} 1`)
	assert.Contains(t, text, "fluxo_transfers_total 1")
}
