// Package filestore keeps each tenant's books as plain CSV files:
//
//	tenants/<tenant>/accounts/accounts.csv
//	tenants/<tenant>/ledger/YYYY/MM/ledger.csv
//	tenants/<tenant>/obligations/{payables,receivables}.csv
//
// Transactions are serialized per tenant. Every file touched inside a
// transaction is snapshotted before its first write and restored if the
// transaction fails, so multi-file writes are all-or-nothing.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/tenant"
)

var (
	_ store.Store    = (*Store)(nil)
	_ store.Tx       = (*fileTx)(nil)
	_ store.Provider = (*Provider)(nil)
)

// Provider hands out one Store per tenant under <root>/tenants/<tenant>.
type Provider struct {
	root   string
	mu     sync.Mutex
	stores map[string]*Store
}

// NewProvider creates a Provider rooted at a workspace directory.
func NewProvider(root string) *Provider {
	return &Provider{root: root, stores: make(map[string]*Store)}
}

// TenantDir returns the directory holding a tenant's files.
func TenantDir(root, tenantID string) string {
	return filepath.Join(root, "tenants", tenantID)
}

// For returns the Store of tenantID, creating its directory on first use.
func (p *Provider) For(_ context.Context, tenantID string) (store.Store, error) {
	if _, err := tenant.New(tenantID); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stores[tenantID]; ok {
		return s, nil
	}
	dir := TenantDir(p.root, tenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tenant dir: %w", err)
	}
	s := Open(dir)
	p.stores[tenantID] = s
	return s, nil
}

// Close is a no-op; files are opened per operation.
func (p *Provider) Close() error { return nil }

// Store is a single tenant's CSV books.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// Open returns a Store over dir. Nothing is read until first use.
func Open(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the tenant directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) GetAccount(ctx context.Context, id int) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.dir, id)
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readAccounts(ctx, s.dir)
}

func (s *Store) ListMovements(ctx context.Context, filter store.MovementFilter) ([]model.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listMovements(ctx, s.dir, filter)
}

func (s *Store) GetObligation(ctx context.Context, kind model.ObligationKind, id string) (model.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getObligation(ctx, s.dir, kind, id)
}

func (s *Store) ListObligations(ctx context.Context, filter store.ObligationFilter) ([]model.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listObligations(ctx, s.dir, filter)
}

// WithTx runs fn with exclusive access to the tenant's files.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fileTx{dir: s.dir, snapshots: make(map[string]snapshot)}
	if err := fn(ctx, tx); err != nil {
		if rerr := tx.rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("filestore: rollback: %w", rerr))
		}
		return err
	}
	return nil
}

type snapshot struct {
	absent bool
	data   []byte
}

type fileTx struct {
	dir       string
	snapshots map[string]snapshot
	order     []string
}

func (t *fileTx) GetAccount(ctx context.Context, id int) (model.Account, error) {
	return getAccount(ctx, t.dir, id)
}

func (t *fileTx) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return readAccounts(ctx, t.dir)
}

func (t *fileTx) ListMovements(ctx context.Context, filter store.MovementFilter) ([]model.Movement, error) {
	return listMovements(ctx, t.dir, filter)
}

func (t *fileTx) GetObligation(ctx context.Context, kind model.ObligationKind, id string) (model.Obligation, error) {
	return getObligation(ctx, t.dir, kind, id)
}

func (t *fileTx) ListObligations(ctx context.Context, filter store.ObligationFilter) ([]model.Obligation, error) {
	return listObligations(ctx, t.dir, filter)
}

func (t *fileTx) InsertAccount(ctx context.Context, acct model.Account) error {
	accts, err := readAccounts(ctx, t.dir)
	if err != nil {
		return err
	}
	for _, a := range accts {
		if a.ID == acct.ID {
			return fmt.Errorf("account %d already exists", acct.ID)
		}
	}
	accts = append(accts, acct)
	sort.Slice(accts, func(i, j int) bool { return accts[i].ID < accts[j].ID })
	return t.writeAccounts(accts)
}

func (t *fileTx) UpdateAccount(ctx context.Context, acct model.Account) error {
	accts, err := readAccounts(ctx, t.dir)
	if err != nil {
		return err
	}
	for i := range accts {
		if accts[i].ID == acct.ID {
			accts[i] = acct
			return t.writeAccounts(accts)
		}
	}
	return fmt.Errorf("account %d: %w", acct.ID, model.ErrNotFound)
}

func (t *fileTx) writeAccounts(accts []model.Account) error {
	var buf bytes.Buffer
	if err := WriteAccounts(&buf, accts); err != nil {
		return err
	}
	return t.writeFile(accountsPath(t.dir), buf.Bytes())
}

// InsertMovement appends one row to the movement's month file.
func (t *fileTx) InsertMovement(ctx context.Context, m model.Movement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := monthPath(t.dir, m.Date.Year(), int(m.Date.Month()))

	existing, err := readMovementFile(path)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.ID == m.ID {
			return fmt.Errorf("movement %s already exists", m.ID)
		}
	}

	if err := t.snapshot(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintln(f, MovementsHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := AppendMovements(f, []model.Movement{m}); err != nil {
		return fmt.Errorf("appending movement: %w", err)
	}
	return f.Sync()
}

func (t *fileTx) InsertObligation(ctx context.Context, o model.Obligation) error {
	all, err := readObligations(ctx, t.dir, o.Kind)
	if err != nil {
		return err
	}
	for _, e := range all {
		if e.ID == o.ID {
			return fmt.Errorf("%s %s already exists", o.Kind, o.ID)
		}
	}
	return t.writeObligations(o.Kind, append(all, o))
}

func (t *fileTx) UpdateObligation(ctx context.Context, o model.Obligation) error {
	all, err := readObligations(ctx, t.dir, o.Kind)
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID == o.ID {
			all[i] = o
			return t.writeObligations(o.Kind, all)
		}
	}
	return fmt.Errorf("%s %s: %w", o.Kind, o.ID, model.ErrNotFound)
}

func (t *fileTx) writeObligations(kind model.ObligationKind, all []model.Obligation) error {
	var buf bytes.Buffer
	if err := WriteObligations(&buf, all); err != nil {
		return err
	}
	return t.writeFile(obligationsPath(t.dir, kind), buf.Bytes())
}

// snapshot records the current content of path once per transaction.
func (t *fileTx) snapshot(path string) error {
	if _, ok := t.snapshots[path]; ok {
		return nil
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		t.snapshots[path] = snapshot{absent: true}
	case err != nil:
		return fmt.Errorf("snapshot %s: %w", path, err)
	default:
		t.snapshots[path] = snapshot{data: data}
	}
	t.order = append(t.order, path)
	return nil
}

// writeFile replaces path via a temp file and rename.
func (t *fileTx) writeFile(path string, data []byte) error {
	if err := t.snapshot(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func (t *fileTx) rollback() error {
	var errs []error
	for i := len(t.order) - 1; i >= 0; i-- {
		path := t.order[i]
		snap := t.snapshots[path]
		if snap.absent {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if err := os.WriteFile(path, snap.data, 0o644); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func accountsPath(dir string) string {
	return filepath.Join(dir, "accounts", "accounts.csv")
}

func monthPath(dir string, year, month int) string {
	return filepath.Join(dir, "ledger", fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), "ledger.csv")
}

func obligationsPath(dir string, kind model.ObligationKind) string {
	return filepath.Join(dir, "obligations", string(kind)+"s.csv")
}

func readAccounts(ctx context.Context, dir string) ([]model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(accountsPath(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening accounts: %w", err)
	}
	defer f.Close()
	return ReadAccounts(f)
}

func getAccount(ctx context.Context, dir string, id int) (model.Account, error) {
	accts, err := readAccounts(ctx, dir)
	if err != nil {
		return model.Account{}, err
	}
	for _, a := range accts {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Account{}, fmt.Errorf("account %d: %w", id, model.ErrNotFound)
}

func readMovementFile(path string) ([]model.Movement, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	movements, err := ReadMovements(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return movements, nil
}

func listMovements(ctx context.Context, dir string, filter store.MovementFilter) ([]model.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Lexical order of YYYY/MM paths is chronological.
	paths, err := filepath.Glob(filepath.Join(dir, "ledger", "[0-9][0-9][0-9][0-9]", "[0-9][0-9]", "ledger.csv"))
	if err != nil {
		return nil, fmt.Errorf("listing ledger files: %w", err)
	}
	sort.Strings(paths)

	var out []model.Movement
	for _, path := range paths {
		if !monthInRange(path, filter.From, filter.To) {
			continue
		}
		movements, err := readMovementFile(path)
		if err != nil {
			return nil, err
		}
		for _, m := range movements {
			if filter.Match(m) {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// monthInRange skips month files that cannot hold movements in [from, to].
func monthInRange(path string, from, to time.Time) bool {
	monthDir := filepath.Dir(path)
	month, err1 := strconv.Atoi(filepath.Base(monthDir))
	year, err2 := strconv.Atoi(filepath.Base(filepath.Dir(monthDir)))
	if err1 != nil || err2 != nil {
		return true
	}
	key := year*12 + month
	if !from.IsZero() && key < from.Year()*12+int(from.Month()) {
		return false
	}
	if !to.IsZero() && key > to.Year()*12+int(to.Month()) {
		return false
	}
	return true
}

func readObligations(ctx context.Context, dir string, kind model.ObligationKind) ([]model.Obligation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown obligation kind %q", kind)
	}
	f, err := os.Open(obligationsPath(dir, kind))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %ss: %w", kind, err)
	}
	defer f.Close()
	return ReadObligations(f, kind)
}

func getObligation(ctx context.Context, dir string, kind model.ObligationKind, id string) (model.Obligation, error) {
	all, err := readObligations(ctx, dir, kind)
	if err != nil {
		return model.Obligation{}, err
	}
	for _, o := range all {
		if o.ID == id {
			return o, nil
		}
	}
	return model.Obligation{}, fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
}

func listObligations(ctx context.Context, dir string, filter store.ObligationFilter) ([]model.Obligation, error) {
	kinds := []model.ObligationKind{model.Payable, model.Receivable}
	if filter.Kind != "" {
		kinds = []model.ObligationKind{filter.Kind}
	}

	var out []model.Obligation
	for _, kind := range kinds {
		all, err := readObligations(ctx, dir, kind)
		if err != nil {
			return nil, err
		}
		for _, o := range all {
			if filter.Match(o) {
				out = append(out, o)
			}
		}
	}
	return out, nil
}
