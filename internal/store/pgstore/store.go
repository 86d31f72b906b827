// Package pgstore implements the store contracts on PostgreSQL through
// database/sql and the pgx driver. All tenants share the tables; every
// statement is scoped by tenant_id.
package pgstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/tenant"
)

//go:embed schema.sql
var schema string

var (
	_ store.Store    = (*Store)(nil)
	_ store.Tx       = (*pgTx)(nil)
	_ store.Provider = (*Provider)(nil)
)

// Provider hands out tenant-scoped stores over one connection pool.
type Provider struct {
	db *sql.DB
}

// Open connects to dsn with the pgx driver.
func Open(dsn string) (*Provider, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Provider{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Provider {
	return &Provider{db: db}
}

// Migrate creates the tables if they do not exist.
func (p *Provider) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

// For returns the Store of tenantID.
func (p *Provider) For(_ context.Context, tenantID string) (store.Store, error) {
	if _, err := tenant.New(tenantID); err != nil {
		return nil, err
	}
	return &Store{db: p.db, queries: queries{q: p.db, tenant: tenantID}}, nil
}

// Close closes the pool.
func (p *Provider) Close() error { return p.db.Close() }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is one tenant's view of the database.
type Store struct {
	db *sql.DB
	queries
}

// WithTx runs fn in a serializable transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("pgstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &pgTx{queries: queries{q: tx, tenant: s.tenant}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgstore: commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	queries
}

type queries struct {
	q      querier
	tenant string
}

const accountColumns = `id, name, bank_name, number, initial_balance, active, created_at`

func scanAccount(sc interface{ Scan(...any) error }) (model.Account, error) {
	var a model.Account
	err := sc.Scan(&a.ID, &a.Name, &a.BankName, &a.Number, &a.InitialBalance, &a.Active, &a.CreatedAt)
	return a, err
}

func (q queries) GetAccount(ctx context.Context, id int) (model.Account, error) {
	row := q.q.QueryRowContext(ctx, `select `+accountColumns+` from accounts where tenant_id = $1 and id = $2`, q.tenant, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("pgstore: get account: %w", err)
	}
	return a, nil
}

func (q queries) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := q.q.QueryContext(ctx, `select `+accountColumns+` from accounts where tenant_id = $1 order by id`, q.tenant)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("pgstore: scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q queries) InsertAccount(ctx context.Context, a model.Account) error {
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := q.q.ExecContext(ctx, `
		insert into accounts (tenant_id, id, name, bank_name, number, initial_balance, active, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		q.tenant, a.ID, a.Name, a.BankName, a.Number, a.InitialBalance, a.Active, created)
	if err != nil {
		return fmt.Errorf("pgstore: insert account: %w", err)
	}
	return nil
}

func (q queries) UpdateAccount(ctx context.Context, a model.Account) error {
	res, err := q.q.ExecContext(ctx, `
		update accounts set name = $3, bank_name = $4, number = $5, initial_balance = $6, active = $7
		where tenant_id = $1 and id = $2`,
		q.tenant, a.ID, a.Name, a.BankName, a.Number, a.InitialBalance, a.Active)
	if err != nil {
		return fmt.Errorf("pgstore: update account: %w", err)
	}
	return requireOne(res, fmt.Sprintf("account %d", a.ID))
}

const movementColumns = `id, account_id, type, amount, description, related_table, related_id, date, created_at`

func (q queries) ListMovements(ctx context.Context, f store.MovementFilter) ([]model.Movement, error) {
	where := []string{"tenant_id = $1"}
	args := []any{q.tenant}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.AccountID != 0 {
		add("account_id = $%d", f.AccountID)
	}
	if !f.From.IsZero() {
		add("date >= $%d", dateOnly(f.From))
	}
	if !f.To.IsZero() {
		add("date <= $%d", dateOnly(f.To))
	}
	if f.OriginTable != "" {
		add("related_table = $%d", f.OriginTable)
	}
	if f.OriginID != "" {
		add("related_id = $%d", f.OriginID)
	}

	query := `select ` + movementColumns + ` from movements where ` + strings.Join(where, " and ") + ` order by id`
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list movements: %w", err)
	}
	defer rows.Close()

	var out []model.Movement
	for rows.Next() {
		var m model.Movement
		var typ string
		if err := rows.Scan(&m.ID, &m.AccountID, &typ, &m.Amount, &m.Description, &m.Origin.Table, &m.Origin.ID, &m.Date, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgstore: scan movement: %w", err)
		}
		m.Type = model.MovementType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q queries) InsertMovement(ctx context.Context, m model.Movement) error {
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := q.q.ExecContext(ctx, `
		insert into movements (tenant_id, id, account_id, type, amount, description, related_table, related_id, date, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		q.tenant, m.ID, m.AccountID, string(m.Type), m.Amount, m.Description, m.Origin.Table, m.Origin.ID, dateOnly(m.Date), created)
	if err != nil {
		return fmt.Errorf("pgstore: insert movement: %w", err)
	}
	return nil
}

const obligationColumns = `kind, id, description, amount, due_date, status, account_id, category, counterparty, method, settled_at, parent_id, installment, installments, created_at`

func scanObligation(sc interface{ Scan(...any) error }) (model.Obligation, error) {
	var (
		o         model.Obligation
		kind      string
		status    string
		accountID sql.NullInt64
		settledAt sql.NullTime
		parentID  sql.NullString
	)
	err := sc.Scan(&kind, &o.ID, &o.Description, &o.Amount, &o.DueDate, &status, &accountID,
		&o.Category, &o.Counterparty, &o.Method, &settledAt, &parentID, &o.Installment, &o.Installments, &o.CreatedAt)
	if err != nil {
		return model.Obligation{}, err
	}
	o.Kind = model.ObligationKind(kind)
	o.Status = model.ObligationStatus(status)
	o.AccountID = int(accountID.Int64)
	if settledAt.Valid {
		t := settledAt.Time
		o.SettledAt = &t
	}
	o.ParentID = parentID.String
	return o, nil
}

func (q queries) GetObligation(ctx context.Context, kind model.ObligationKind, id string) (model.Obligation, error) {
	row := q.q.QueryRowContext(ctx, `select `+obligationColumns+` from obligations where tenant_id = $1 and kind = $2 and id = $3`,
		q.tenant, string(kind), id)
	o, err := scanObligation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Obligation{}, fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
	}
	if err != nil {
		return model.Obligation{}, fmt.Errorf("pgstore: get obligation: %w", err)
	}
	return o, nil
}

func (q queries) ListObligations(ctx context.Context, f store.ObligationFilter) ([]model.Obligation, error) {
	where := []string{"tenant_id = $1"}
	args := []any{q.tenant}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			args = append(args, string(s))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, "status in ("+strings.Join(placeholders, ", ")+")")
	}
	if !f.DueFrom.IsZero() {
		add("due_date >= $%d", dateOnly(f.DueFrom))
	}
	if !f.DueTo.IsZero() {
		add("due_date <= $%d", dateOnly(f.DueTo))
	}
	if !f.SettledFrom.IsZero() {
		add("settled_at >= $%d", dateOnly(f.SettledFrom))
	}
	if !f.SettledTo.IsZero() {
		add("settled_at < $%d", dateOnly(f.SettledTo).AddDate(0, 0, 1))
	}
	if f.ParentID != "" {
		add("parent_id = $%d", f.ParentID)
	}

	query := `select ` + obligationColumns + ` from obligations where ` + strings.Join(where, " and ") + ` order by kind, created_at, id`
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list obligations: %w", err)
	}
	defer rows.Close()

	var out []model.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("pgstore: scan obligation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (q queries) InsertObligation(ctx context.Context, o model.Obligation) error {
	created := o.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := q.q.ExecContext(ctx, `
		insert into obligations (tenant_id, kind, id, description, amount, due_date, status, account_id, category,
			counterparty, method, settled_at, parent_id, installment, installments, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		q.tenant, string(o.Kind), o.ID, o.Description, o.Amount, dateOnly(o.DueDate), string(o.Status),
		nullInt(o.AccountID), o.Category, o.Counterparty, o.Method, nullTime(o.SettledAt), nullString(o.ParentID),
		o.Installment, o.Installments, created)
	if err != nil {
		return fmt.Errorf("pgstore: insert obligation: %w", err)
	}
	return nil
}

func (q queries) UpdateObligation(ctx context.Context, o model.Obligation) error {
	res, err := q.q.ExecContext(ctx, `
		update obligations set status = $4, account_id = $5, method = $6, settled_at = $7
		where tenant_id = $1 and kind = $2 and id = $3`,
		q.tenant, string(o.Kind), o.ID, string(o.Status), nullInt(o.AccountID), o.Method, nullTime(o.SettledAt))
	if err != nil {
		return fmt.Errorf("pgstore: update obligation: %w", err)
	}
	return requireOne(res, fmt.Sprintf("%s %s", o.Kind, o.ID))
}

func requireOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgstore: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
