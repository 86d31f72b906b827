package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/store/filestore"
	"github.com/fluxo-dev/fluxo/internal/tenant"
)

func setupService(t *testing.T) (*Service, store.Store, tenant.Scope) {
	t.Helper()
	ctx := context.Background()
	p := filestore.NewProvider(t.TempDir())
	st, err := p.For(ctx, "acme")
	require.NoError(t, err)
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertAccount(ctx, model.Account{ID: 1020, Name: "Nubank", Active: true})
	}))
	scope, err := tenant.New("acme")
	require.NoError(t, err)
	return NewService(p, zerolog.Nop()), st, scope
}

func TestImport_Idempotent(t *testing.T) {
	svc, st, scope := setupService(t)
	ctx := context.Background()

	txns, err := (&NubankParser{}).Parse(stringsReader(readFixture(t, "nubank_conta.csv")))
	require.NoError(t, err)

	res, err := svc.Import(ctx, scope, 1020, txns)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Imported)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, []string{"2025-01-001", "2025-01-002", "2025-01-003", "2025-01-004", "2025-01-005"}, res.IDs)

	again, err := svc.Import(ctx, scope, 1020, txns)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Imported)
	assert.Equal(t, 5, again.Skipped)

	movements, err := st.ListMovements(ctx, store.MovementFilter{OriginTable: model.OriginImport})
	require.NoError(t, err)
	require.Len(t, movements, 5)
	assert.Equal(t, model.Debit, movements[0].Type)
	assert.Equal(t, "45.90", movements[0].Amount.StringFixed(2))
	assert.Equal(t, model.Credit, movements[1].Type)
	assert.Equal(t, "nubank_677f01b3-2f4d-4e0e-8a7c-5b1d9e6c3b22", movements[1].Origin.ID)
}

func TestImport_Rejects(t *testing.T) {
	svc, st, scope := setupService(t)
	ctx := context.Background()

	_, err := svc.Import(ctx, scope, 9999, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)

	zero := []model.BankTransaction{
		{Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Description: "tarifa estornada", Amount: decimal.Zero, Reference: "r0"},
	}
	_, err = svc.Import(ctx, scope, 9999, zero)
	assert.ErrorIs(t, err, model.ErrNotFound, "skipped rows do not hide a missing account")

	txns := []model.BankTransaction{
		{Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Description: "ok", Amount: decimal.RequireFromString("10"), Reference: "r1"},
		{Date: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), Description: "bad", Amount: decimal.RequireFromString("0.001"), Reference: "r2"},
	}
	_, err = svc.Import(ctx, scope, 1020, txns)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	movements, err := st.ListMovements(ctx, store.MovementFilter{})
	require.NoError(t, err)
	assert.Empty(t, movements, "a bad row rolls back the whole statement")
}

func TestImport_DedupesPerAccount(t *testing.T) {
	svc, st, scope := setupService(t)
	ctx := context.Background()
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertAccount(ctx, model.Account{ID: 1030, Name: "Inter", Active: true})
	}))

	txns := []model.BankTransaction{
		{Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Description: "pix", Amount: decimal.RequireFromString("25"), Reference: "shared-ref"},
	}
	res, err := svc.Import(ctx, scope, 1020, txns)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	res, err = svc.Import(ctx, scope, 1030, txns)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 0, res.Skipped)

	res, err = svc.Import(ctx, scope, 1030, txns)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 1, res.Skipped)
}

func TestImportFile(t *testing.T) {
	svc, _, scope := setupService(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "import"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "fev.csv"), []byte(readFixture(t, "generic.csv")), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	res, err := svc.ImportFile(context.Background(), scope, dir, files[0], &GenericParser{}, 1020)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "fev.csv"))
	assert.NoError(t, err)
}
