package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/fluxo-dev/fluxo/internal/accounts"
	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/balance"
	"github.com/fluxo-dev/fluxo/internal/config"
	"github.com/fluxo-dev/fluxo/internal/gitops"
	"github.com/fluxo-dev/fluxo/internal/importer"
	"github.com/fluxo-dev/fluxo/internal/ledger"
	"github.com/fluxo-dev/fluxo/internal/logger"
	"github.com/fluxo-dev/fluxo/internal/obligations"
	"github.com/fluxo-dev/fluxo/internal/projection"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/store/filestore"
	"github.com/fluxo-dev/fluxo/internal/store/pgstore"
	"github.com/fluxo-dev/fluxo/internal/tenant"
)

const actorCLI = "cli"

// app is the wiring behind one command invocation.
type app struct {
	dir    string
	cfg    *config.Config
	log    zerolog.Logger
	scope  tenant.Scope
	stores store.Provider
	now    func() time.Time

	accounts    *accounts.Service
	ledger      *ledger.Service
	balances    *balance.Service
	obligations *obligations.Service
	projection  *projection.Service
	importer    *importer.Service

	closers []io.Closer
}

// openApp loads the workspace config and builds the services.
func openApp(ctx context.Context, opts *globalOptions) (*app, error) {
	dir, err := filepath.Abs(opts.dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(filepath.Join(dir, config.FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s is not a fluxo workspace (run `fluxo init` first)", dir)
		}
		return nil, err
	}

	scope, err := tenant.New(opts.tenant, opts.scope...)
	if err != nil {
		return nil, err
	}

	log, logCloser, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, err
	}
	log = log.With().Str("tenant", scope.TenantID).Logger()

	a := &app{
		dir:     dir,
		cfg:     cfg,
		log:     log,
		scope:   scope,
		now:     opts.now,
		closers: []io.Closer{logCloser},
	}

	stores, err := openStores(ctx, dir, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.stores = stores
	a.closers = append(a.closers, stores)

	a.accounts = accounts.NewService(stores, logger.WithComponent(log, "accounts"))
	a.ledger = ledger.NewService(stores, logger.WithComponent(log, "ledger"))
	a.balances = balance.NewService(stores, logger.WithComponent(log, "balance"))
	a.obligations = obligations.NewService(stores, logger.WithComponent(log, "obligations"))
	a.projection = projection.NewService(a.obligations, a.balances, logger.WithComponent(log, "projection"))
	a.importer = importer.NewService(stores, logger.WithComponent(log, "importer"))
	return a, nil
}

func openStores(ctx context.Context, dir string, cfg *config.Config) (store.Provider, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		p, err := pgstore.Open(cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		if err := p.Migrate(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	default:
		return filestore.NewProvider(dir), nil
	}
}

// loadDotEnv reads <dir>/.env when present. Variables already set win.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Close releases the store and the log file, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func (a *app) tenantDir() string {
	return filestore.TenantDir(a.dir, a.scope.TenantID)
}

func (a *app) today() time.Time {
	return projection.Day(a.now())
}

// record commits the workspace when auto-commit is on and appends an audit
// entry carrying the commit hash. Failures here never undo the write.
func (a *app) record(ctx context.Context, action, details, recordID string) {
	entry := auditlog.Entry{
		Timestamp: a.now().UTC(),
		Actor:     actorCLI,
		Action:    action,
		Details:   details,
		RecordID:  recordID,
	}

	if a.cfg.Git.AutoCommit && gitops.IsRepo(a.dir) {
		msg := fmt.Sprintf("%s(%s): %s", action, a.scope.TenantID, details)
		hash, err := gitops.CommitAll(ctx, a.dir, msg, a.cfg.Git.AuthorName, a.cfg.Git.AuthorEmail)
		if err != nil {
			a.log.Warn().Err(err).Msg("auto-commit failed")
		}
		entry.CommitHash = hash
	}

	if err := auditlog.Append(a.tenantDir(), entry); err != nil {
		a.log.Warn().Err(err).Msg("writing audit log failed")
	}
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, opts *globalOptions, fn func(*app) error) error {
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
