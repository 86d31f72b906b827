package commands

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/config"
	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/store/filestore"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

// run executes the CLI in-process against dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(&globalOptions{now: func() time.Time { return fixedNow }})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--dir", dir}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, "fluxo %s\n%s", strings.Join(args, " "), out)
	return out
}

// newWorkspace initializes a company workspace without git.
func newWorkspace(t *testing.T) string {
	t.Helper()
	t.Setenv("FLUXO_GIT_AUTO_COMMIT", "false")
	t.Setenv("FLUXO_LOG_LEVEL", "error")
	dir := t.TempDir()
	mustRun(t, dir, "init", "--name", "Padaria Sol")
	return dir
}

// createdID pulls the obligation ID out of "Created payable <id>: ...".
func createdID(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 3, out)
	return strings.TrimSuffix(fields[2], ":")
}

func TestInit_CreatesWorkspace(t *testing.T) {
	t.Setenv("FLUXO_GIT_AUTO_COMMIT", "false")
	dir := t.TempDir()

	out := mustRun(t, dir, "init", "--name", "Padaria Sol", "--type", "individual")
	assert.Contains(t, out, "Initialized fluxo workspace")

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "Padaria Sol", cfg.Business.Name)
	assert.Equal(t, "individual", cfg.Business.Type)

	tenantDir := filestore.TenantDir(dir, "default")
	for _, p := range []string{
		filepath.Join(tenantDir, "accounts", "accounts.csv"),
		filepath.Join(tenantDir, "import", "processed"),
		filepath.Join(dir, ".gitignore"),
	} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	entries, err := auditlog.Read(tenantDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, auditlog.ActionInit, entries[0].Action)
	assert.Equal(t, "cli", entries[0].Actor)

	list := mustRun(t, dir, "account", "list")
	assert.Contains(t, list, "Carteira")
	assert.NotContains(t, list, "Aplicações")
}

func TestInit_SecondTenant(t *testing.T) {
	dir := newWorkspace(t)

	_, err := run(t, dir, "init", "--name", "Padaria Sol")
	assert.ErrorContains(t, err, "already initialized")

	out := mustRun(t, dir, "--tenant", "filial", "init", "--name", "Filial")
	assert.Contains(t, out, "Added tenant filial")

	_, err = os.Stat(filepath.Join(filestore.TenantDir(dir, "filial"), "accounts", "accounts.csv"))
	assert.NoError(t, err)
}

func TestInit_Rejects(t *testing.T) {
	t.Setenv("FLUXO_GIT_AUTO_COMMIT", "false")

	_, err := run(t, t.TempDir(), "init", "--name", "X", "--type", "cooperative")
	assert.ErrorContains(t, err, "unknown business type")

	_, err = run(t, t.TempDir(), "--tenant", "Not A Slug", "init", "--name", "X")
	assert.Error(t, err)
}

func TestNotAWorkspace(t *testing.T) {
	_, err := run(t, t.TempDir(), "account", "list")
	assert.ErrorContains(t, err, "not a fluxo workspace")
}

func TestAccountAddAndDeactivate(t *testing.T) {
	dir := newWorkspace(t)

	out := mustRun(t, dir, "account", "add", "--id", "2000", "--name", "Cartão", "--initial=-250,00")
	assert.Contains(t, out, "Created account 2000 Cartão (-R$ 250,00)")

	out = mustRun(t, dir, "account", "balance", "2000")
	assert.Contains(t, out, "Account 2000: -R$ 250,00")

	mustRun(t, dir, "account", "deactivate", "2000")
	_, err := run(t, dir, "account", "deactivate", "2000")
	assert.ErrorIs(t, err, model.ErrInvalidState)

	out = mustRun(t, dir, "account", "list")
	assert.Contains(t, out, "inactive")
}

func TestLedgerFlow(t *testing.T) {
	dir := newWorkspace(t)

	out := mustRun(t, dir, "ledger", "append", "--account", "1020", "--type", "credit",
		"--amount", "100", "--description", "Venda balcão", "--date", "2025-01-10")
	assert.Contains(t, out, "Recorded 2025-01-001")

	out = mustRun(t, dir, "ledger", "transfer", "--from", "1020", "--to", "1010",
		"--amount", "30", "--date", "2025-01-11")
	assert.Contains(t, out, "2025-01-002")

	out = mustRun(t, dir, "account", "balance", "1020")
	assert.Contains(t, out, "R$ 70,00")
	out = mustRun(t, dir, "account", "balance", "1020", "--exclude-transfers")
	assert.Contains(t, out, "R$ 100,00")
	out = mustRun(t, dir, "account", "balance")
	assert.Contains(t, out, "Consolidated: R$ 100,00")

	out = mustRun(t, dir, "ledger", "list", "--origin", "transfer")
	assert.Contains(t, out, "2025-01-002a")
	assert.Contains(t, out, "2025-01-002b")
	assert.NotContains(t, out, "2025-01-001")

	out = mustRun(t, dir, "ledger", "check")
	assert.Contains(t, out, "Ledger OK")
}

func TestLedgerRejects(t *testing.T) {
	dir := newWorkspace(t)

	_, err := run(t, dir, "ledger", "append", "--account", "1020", "--type", "credit", "--amount", "10.005")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	_, err = run(t, dir, "ledger", "append", "--account", "1020", "--type", "refund", "--amount", "10")
	assert.ErrorIs(t, err, model.ErrInvalidType)

	_, err = run(t, dir, "ledger", "transfer", "--from", "1020", "--to", "1020", "--amount", "10")
	assert.ErrorIs(t, err, model.ErrInvalidTransfer)

	_, err = run(t, dir, "ledger", "append", "--account", "9999", "--type", "debit", "--amount", "10")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPayableSettle(t *testing.T) {
	dir := newWorkspace(t)

	out := mustRun(t, dir, "payable", "add", "--description", "Aluguel", "--amount", "1.500,00",
		"--due", "2025-02-05", "--supplier", "Imobiliária")
	id := createdID(t, out)

	out = mustRun(t, dir, "payable", "settle", id, "--account", "1020", "--on", "2025-02-05", "--method", "pix")
	assert.Contains(t, out, "(paid)")

	out = mustRun(t, dir, "account", "balance", "1020")
	assert.Contains(t, out, "-R$ 1.500,00")

	_, err := run(t, dir, "payable", "settle", id, "--account", "1020")
	assert.ErrorIs(t, err, model.ErrInvalidState)

	out = mustRun(t, dir, "ledger", "list", "--origin", "payables")
	assert.Contains(t, out, "2025-02-001")

	entries, err := auditlog.Read(filestore.TenantDir(dir, "default"))
	require.NoError(t, err)
	assert.Equal(t, auditlog.ActionSettle, entries[len(entries)-1].Action)
	assert.Equal(t, id, entries[len(entries)-1].RecordID)
}

func TestPayableSettle_DefaultsToClock(t *testing.T) {
	dir := newWorkspace(t)

	out := mustRun(t, dir, "payable", "add", "--description", "Energia", "--amount", "230",
		"--due", "2025-03-15")
	id := createdID(t, out)

	mustRun(t, dir, "payable", "settle", id, "--account", "1020")

	out = mustRun(t, dir, "ledger", "list", "--origin", "payables")
	assert.Contains(t, out, "2025-03-001")
	assert.Contains(t, out, "2025-03-10")
}

func TestReceivableCancel(t *testing.T) {
	dir := newWorkspace(t)

	out := mustRun(t, dir, "receivable", "add", "--description", "Encomenda", "--amount", "80",
		"--due", "2025-03-20", "--client", "Café Lua")
	id := createdID(t, out)

	mustRun(t, dir, "receivable", "cancel", id)
	_, err := run(t, dir, "receivable", "settle", id, "--account", "1020")
	assert.ErrorIs(t, err, model.ErrInvalidState)

	out = mustRun(t, dir, "receivable", "list", "--status", "cancelled")
	assert.Contains(t, out, id)
	out = mustRun(t, dir, "receivable", "list", "--status", "open")
	assert.NotContains(t, out, id)
}

func TestSplit(t *testing.T) {
	dir := newWorkspace(t)

	out := mustRun(t, dir, "receivable", "split", "--description", "Venda parcelada",
		"--total", "1000", "--count", "3", "--first-due", "2024-01-31")
	assert.Contains(t, out, "Venda parcelada (1/3)")
	assert.Contains(t, out, "2024-02-29")
	assert.Contains(t, out, "R$ 333,33")
	assert.Contains(t, out, "R$ 333,34")

	out = mustRun(t, dir, "payable", "split", "--description", "Forno", "--count", "2",
		"--amounts", "100.00,250.50", "--dates", "2025-04-01,2025-05-15")
	assert.Contains(t, out, "R$ 250,50")
	assert.Contains(t, out, "2025-05-15")

	_, err := run(t, dir, "payable", "split", "--description", "Forno", "--count", "3",
		"--amounts", "100,200", "--dates", "2025-04-01,2025-05-15")
	assert.ErrorIs(t, err, model.ErrArityMismatch)

	_, err = run(t, dir, "payable", "split", "--description", "Forno", "--count", "1",
		"--total", "100", "--first-due", "2025-04-01")
	assert.ErrorIs(t, err, model.ErrInvalidCount)
}

func TestProjectAndSummary(t *testing.T) {
	dir := newWorkspace(t)

	mustRun(t, dir, "ledger", "append", "--account", "1020", "--type", "credit", "--amount", "100", "--date", "2025-03-01")
	mustRun(t, dir, "ledger", "transfer", "--from", "1020", "--to", "1010", "--amount", "40", "--date", "2025-03-02")
	mustRun(t, dir, "receivable", "add", "--description", "Encomenda", "--amount", "200", "--due", "2025-03-12")
	mustRun(t, dir, "payable", "add", "--description", "Farinha", "--amount", "50", "--due", "2025-03-15")

	out := mustRun(t, dir, "project", "--start", "2025-03-10", "--end", "2025-03-15")
	assert.Contains(t, out, "Seed balance: R$ 100,00")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2+6)
	last := lines[len(lines)-1]
	assert.Contains(t, last, "2025-03-15")
	assert.Contains(t, last, "-R$ 50,00")
	assert.Contains(t, last, "R$ 250,00")

	out = mustRun(t, dir, "project", "--window", "15d")
	assert.Contains(t, out, "Window 15d: 2025-03-10 to 2025-03-25")

	out = mustRun(t, dir, "project")
	assert.Contains(t, out, "Window 30d")

	_, err := run(t, dir, "project", "--start", "2025-03-15", "--end", "2025-03-10")
	assert.Error(t, err)

	out = mustRun(t, dir, "summary", "--month", "2025-03")
	assert.Contains(t, out, "R$ 200,00")
	assert.Contains(t, out, "R$ 150,00")
}

func TestImport(t *testing.T) {
	dir := newWorkspace(t)
	importDir := filepath.Join(filestore.TenantDir(dir, "default"), "import")

	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "generic.csv"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "fevereiro.csv"), data, 0o644))

	out := mustRun(t, dir, "import", "--account", "1020")
	assert.Contains(t, out, "fevereiro.csv: 3 imported, 0 skipped")
	_, err = os.Stat(filepath.Join(importDir, "processed", "fevereiro.csv"))
	assert.NoError(t, err)

	out = mustRun(t, dir, "account", "balance", "1020")
	assert.Contains(t, out, "R$ 1.307,10")

	// Importing the same statement again changes nothing.
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "again.csv"), data, 0o644))
	out = mustRun(t, dir, "import", "--account", "1020")
	assert.Contains(t, out, "again.csv: 0 imported, 3 skipped")

	out = mustRun(t, dir, "import", "--account", "1020")
	assert.Contains(t, out, "No files to import")

	_, err = run(t, dir, "import", "--account", "1020", "--format", "ofx")
	assert.ErrorContains(t, err, "unknown format")
}

func TestAutoCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("FLUXO_GIT_AUTO_COMMIT", "true")
	t.Setenv("FLUXO_LOG_LEVEL", "error")
	dir := t.TempDir()

	mustRun(t, dir, "init", "--name", "Padaria Sol")
	mustRun(t, dir, "ledger", "append", "--account", "1020", "--type", "credit", "--amount", "10")

	entries, err := auditlog.Read(filestore.TenantDir(dir, "default"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].CommitHash)
	assert.NotEmpty(t, entries[1].CommitHash)
	assert.NotEqual(t, entries[0].CommitHash, entries[1].CommitHash)
}
