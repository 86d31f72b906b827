package obligations

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxo-dev/fluxo/internal/installment"
	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/store/filestore"
	"github.com/fluxo-dev/fluxo/internal/tenant"
	"github.com/fluxo-dev/fluxo/internal/validation"
)

var fixedNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newService(p store.Provider) *Service {
	svc := NewService(p, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("obl-%02d", n)
	}
	return svc
}

func setup(t *testing.T) (*Service, store.Provider, tenant.Scope) {
	t.Helper()
	ctx := context.Background()
	p := filestore.NewProvider(t.TempDir())
	st, err := p.For(ctx, "acme")
	require.NoError(t, err)
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertAccount(ctx, model.Account{ID: 1020, Name: "Conta Corrente", Active: true}); err != nil {
			return err
		}
		return tx.InsertAccount(ctx, model.Account{ID: 1030, Name: "Encerrada", Active: false})
	}))
	scope, err := tenant.New("acme")
	require.NoError(t, err)
	return newService(p), p, scope
}

func movements(t *testing.T, p store.Provider) []model.Movement {
	t.Helper()
	st, err := p.For(context.Background(), "acme")
	require.NoError(t, err)
	all, err := st.ListMovements(context.Background(), store.MovementFilter{})
	require.NoError(t, err)
	return all
}

func TestCreate(t *testing.T) {
	svc, _, scope := setup(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, scope, CreateParams{
		Kind:         model.Payable,
		Description:  "Aluguel",
		Amount:       dec("2500.00"),
		DueDate:      time.Date(2025, 3, 5, 17, 45, 0, 0, time.UTC),
		Category:     "fixo",
		Counterparty: "Imobiliária Central",
	})
	require.NoError(t, err)
	assert.Equal(t, "obl-01", o.ID)
	assert.Equal(t, model.StatusOpen, o.Status)
	assert.Equal(t, date(2025, 3, 5), o.DueDate, "due dates are calendar days")

	got, err := svc.Get(ctx, scope, model.Payable, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Imobiliária Central", got.Counterparty)
	assert.True(t, got.Amount.Equal(dec("2500")))

	_, err = svc.Get(ctx, scope, model.Receivable, o.ID)
	assert.ErrorIs(t, err, model.ErrNotFound, "kinds live in separate tables")
}

func TestCreate_Rejects(t *testing.T) {
	svc, _, scope := setup(t)
	ctx := context.Background()
	base := CreateParams{Kind: model.Receivable, Description: "Consultoria", Amount: dec("100"), DueDate: date(2025, 3, 20)}

	p := base
	p.Amount = dec("0")
	_, err := svc.Create(ctx, scope, p)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	p = base
	p.Description = ""
	_, err = svc.Create(ctx, scope, p)
	assert.ErrorIs(t, err, validation.ErrInvalidInput)

	p = base
	p.Kind = "loan"
	_, err = svc.Create(ctx, scope, p)
	assert.ErrorIs(t, err, validation.ErrInvalidInput)

	p = base
	p.AccountID = 777
	_, err = svc.Create(ctx, scope, p)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSettle_Payable(t *testing.T) {
	svc, p, scope := setup(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, scope, CreateParams{Kind: model.Payable, Description: "Fornecedor", Amount: dec("80.00"), DueDate: date(2025, 3, 12)})
	require.NoError(t, err)

	settled, err := svc.Settle(ctx, scope, SettleParams{Kind: model.Payable, ID: o.ID, AccountID: 1020, Method: "pix"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, settled.Status)
	require.NotNil(t, settled.SettledAt)
	assert.Equal(t, fixedNow, *settled.SettledAt)
	assert.Equal(t, 1020, settled.AccountID)
	assert.Equal(t, "pix", settled.Method)

	all := movements(t, p)
	require.Len(t, all, 1)
	m := all[0]
	assert.Equal(t, model.Debit, m.Type)
	assert.Equal(t, 1020, m.AccountID)
	assert.True(t, m.Amount.Equal(dec("80")))
	assert.Equal(t, model.Origin{Table: model.OriginPayables, ID: o.ID}, m.Origin)
	assert.Equal(t, date(2025, 3, 10), m.Date)

	stored, err := svc.Get(ctx, scope, model.Payable, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, stored.Status)
}

func TestSettle_ReceivableOnDate(t *testing.T) {
	svc, p, scope := setup(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, scope, CreateParams{Kind: model.Receivable, Description: "Cliente X", Amount: dec("300"), DueDate: date(2025, 3, 1)})
	require.NoError(t, err)

	settled, err := svc.Settle(ctx, scope, SettleParams{Kind: model.Receivable, ID: o.ID, AccountID: 1020, On: date(2025, 3, 3)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReceived, settled.Status)

	all := movements(t, p)
	require.Len(t, all, 1)
	assert.Equal(t, model.Credit, all[0].Type)
	assert.Equal(t, model.OriginReceivables, all[0].Origin.Table)
	assert.Equal(t, date(2025, 3, 3), all[0].Date)
}

func TestSettle_Twice(t *testing.T) {
	svc, p, scope := setup(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, scope, CreateParams{Kind: model.Payable, Description: "Energia", Amount: dec("150.10"), DueDate: date(2025, 3, 15)})
	require.NoError(t, err)

	_, err = svc.Settle(ctx, scope, SettleParams{Kind: model.Payable, ID: o.ID, AccountID: 1020})
	require.NoError(t, err)

	_, err = svc.Settle(ctx, scope, SettleParams{Kind: model.Payable, ID: o.ID, AccountID: 1020})
	assert.ErrorIs(t, err, model.ErrInvalidState)
	assert.Len(t, movements(t, p), 1, "second settlement must not write a movement")
}

func TestSettle_Rejects(t *testing.T) {
	svc, p, scope := setup(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, scope, CreateParams{Kind: model.Payable, Description: "Internet", Amount: dec("99.90"), DueDate: date(2025, 3, 15)})
	require.NoError(t, err)

	_, err = svc.Settle(ctx, scope, SettleParams{Kind: model.Payable, ID: "missing", AccountID: 1020})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.Settle(ctx, scope, SettleParams{Kind: model.Payable, ID: o.ID, AccountID: 4040})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.Settle(ctx, scope, SettleParams{Kind: model.Payable, ID: o.ID, AccountID: 1030})
	assert.ErrorIs(t, err, model.ErrInvalidState)

	_, err = svc.Settle(ctx, scope, SettleParams{Kind: model.Payable, ID: o.ID})
	assert.ErrorIs(t, err, validation.ErrInvalidInput, "settlement requires a target account")

	_, err = svc.Cancel(ctx, scope, model.Payable, o.ID)
	require.NoError(t, err)
	_, err = svc.Settle(ctx, scope, SettleParams{Kind: model.Payable, ID: o.ID, AccountID: 1020})
	assert.ErrorIs(t, err, model.ErrInvalidState)

	assert.Empty(t, movements(t, p))
}

// brokenLedger fails every movement insert.
type brokenLedger struct{ store.Provider }

type brokenStore struct{ store.Store }

type brokenTx struct{ store.Tx }

var errLedgerDown = errors.New("ledger unavailable")

func (p brokenLedger) For(ctx context.Context, tenantID string) (store.Store, error) {
	st, err := p.Provider.For(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return brokenStore{st}, nil
}

func (s brokenStore) WithTx(ctx context.Context, fn func(context.Context, store.Tx) error) error {
	return s.Store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, brokenTx{tx})
	})
}

func (brokenTx) InsertMovement(context.Context, model.Movement) error { return errLedgerDown }

func TestSettle_LedgerFailureKeepsObligationOpen(t *testing.T) {
	_, p, scope := setup(t)
	ctx := context.Background()

	o, err := newService(p).Create(ctx, scope, CreateParams{Kind: model.Receivable, Description: "Mensalidade", Amount: dec("45"), DueDate: date(2025, 3, 1)})
	require.NoError(t, err)

	_, err = newService(brokenLedger{p}).Settle(ctx, scope, SettleParams{Kind: model.Receivable, ID: o.ID, AccountID: 1020})
	require.ErrorIs(t, err, errLedgerDown)

	stored, err := newService(p).Get(ctx, scope, model.Receivable, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, stored.Status)
	assert.Nil(t, stored.SettledAt)
	assert.Zero(t, stored.AccountID)
	assert.Empty(t, movements(t, p))
}

func TestCancel(t *testing.T) {
	svc, _, scope := setup(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, scope, CreateParams{Kind: model.Receivable, Description: "Projeto", Amount: dec("10"), DueDate: date(2025, 4, 1)})
	require.NoError(t, err)

	c, err := svc.Cancel(ctx, scope, model.Receivable, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, c.Status)

	_, err = svc.Cancel(ctx, scope, model.Receivable, o.ID)
	assert.ErrorIs(t, err, model.ErrInvalidState)

	_, err = svc.Cancel(ctx, scope, model.Receivable, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreateInstallments(t *testing.T) {
	svc, _, scope := setup(t)
	ctx := context.Background()

	items, err := installment.Split(dec("1000.00"), 3, date(2024, 1, 31), installment.Monthly)
	require.NoError(t, err)

	created, err := svc.CreateInstallments(ctx, scope, CreateParams{
		Kind:        model.Payable,
		Description: "Notebook",
		DueDate:     date(2024, 1, 31),
		AccountID:   1020,
	}, items)
	require.NoError(t, err)
	require.Len(t, created, 3)

	head := created[0]
	assert.Equal(t, "Notebook (1/3)", head.Description)
	assert.Empty(t, head.ParentID)
	for i, o := range created {
		assert.Equal(t, i+1, o.Installment)
		assert.Equal(t, 3, o.Installments)
		if i > 0 {
			assert.Equal(t, head.ID, o.ParentID)
		}
	}

	children, err := svc.List(ctx, scope, store.ObligationFilter{Kind: model.Payable, ParentID: head.ID})
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, date(2024, 2, 29), children[0].DueDate)
	assert.Equal(t, "333.34", children[1].Amount.StringFixed(2))
}

func TestCreateInstallments_RollsBackOnError(t *testing.T) {
	svc, _, scope := setup(t)
	ctx := context.Background()
	svc.newID = func() string { return "same-id" }

	items, err := installment.Split(dec("90"), 3, date(2025, 5, 1), installment.Weekly)
	require.NoError(t, err)

	_, err = svc.CreateInstallments(ctx, scope, CreateParams{Kind: model.Receivable, Description: "Curso", DueDate: date(2025, 5, 1)}, items)
	require.Error(t, err)

	all, err := svc.List(ctx, scope, store.ObligationFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "a failed batch leaves no installment behind")
}

func TestCreateInstallments_Override(t *testing.T) {
	svc, _, scope := setup(t)
	ctx := context.Background()

	_, err := installment.FromOverride(2, []decimal.Decimal{dec("10")}, []time.Time{date(2025, 1, 1), date(2025, 2, 1)})
	require.ErrorIs(t, err, model.ErrArityMismatch)

	items, err := installment.FromOverride(2, []decimal.Decimal{dec("10"), dec("25")}, []time.Time{date(2025, 1, 1), date(2025, 2, 1)})
	require.NoError(t, err)
	created, err := svc.CreateInstallments(ctx, scope, CreateParams{Kind: model.Receivable, Description: "Entrada + saldo", DueDate: date(2025, 1, 1)}, items)
	require.NoError(t, err)
	assert.Equal(t, "25.00", created[1].Amount.StringFixed(2))

	_, err = svc.CreateInstallments(ctx, scope, CreateParams{Kind: model.Receivable, Description: "Um só", DueDate: date(2025, 1, 1)}, items[:1])
	assert.ErrorIs(t, err, model.ErrInvalidCount)
}

func TestList_OrderAndScope(t *testing.T) {
	svc, _, scope := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, scope, CreateParams{Kind: model.Payable, Description: "B", Amount: dec("2"), DueDate: date(2025, 3, 20), AccountID: 1020})
	require.NoError(t, err)
	_, err = svc.Create(ctx, scope, CreateParams{Kind: model.Payable, Description: "A", Amount: dec("1"), DueDate: date(2025, 3, 5)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, scope, CreateParams{Kind: model.Receivable, Description: "C", Amount: dec("3"), DueDate: date(2025, 3, 10)})
	require.NoError(t, err)

	all, err := svc.List(ctx, scope, store.ObligationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"A", "C", "B"}, []string{all[0].Description, all[1].Description, all[2].Description})

	other, err := tenant.New("acme", 1030)
	require.NoError(t, err)
	visibleToOther, err := svc.List(ctx, other, store.ObligationFilter{})
	require.NoError(t, err)
	assert.Len(t, visibleToOther, 2, "the payable linked to 1020 is hidden")
}
