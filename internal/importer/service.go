package importer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/fluxo-dev/fluxo/internal/ledger"
	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
	"github.com/fluxo-dev/fluxo/internal/store"
	"github.com/fluxo-dev/fluxo/internal/tenant"
)

// Result counts what an import did.
type Result struct {
	Imported int
	Skipped  int
	IDs      []string
}

// Service writes parsed statements into the ledger.
type Service struct {
	stores store.Provider
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates an import Service.
func NewService(stores store.Provider, log zerolog.Logger) *Service {
	return &Service{stores: stores, log: log, now: time.Now}
}

// Import appends one movement per transaction on accountID: money in as a
// credit, money out as a debit, tagged with origin "import" and the
// statement reference. References already imported on the same account are skipped, so a
// statement can be imported twice safely. The batch is one transaction.
func (s *Service) Import(ctx context.Context, scope tenant.Scope, accountID int, txns []model.BankTransaction) (Result, error) {
	if !scope.Includes(accountID) {
		return Result{}, fmt.Errorf("account %d: %w", accountID, model.ErrNotFound)
	}
	st, err := s.stores.For(ctx, scope.TenantID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		res = Result{}
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return err
		}
		existing, err := tx.ListMovements(ctx, store.MovementFilter{AccountID: accountID, OriginTable: model.OriginImport})
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(existing))
		for _, m := range existing {
			seen[m.Origin.ID] = true
		}

		now := s.now()
		for _, txn := range txns {
			if seen[txn.Reference] || txn.Amount.IsZero() {
				res.Skipped++
				continue
			}
			if !money.IsCents(txn.Amount) {
				return fmt.Errorf("importing %s: amount %s: %w", txn.Reference, txn.Amount, model.ErrInvalidAmount)
			}
			typ := model.Credit
			if txn.Amount.IsNegative() {
				typ = model.Debit
			}
			id, err := ledger.AppendTx(ctx, tx, ledger.AppendParams{
				AccountID:   accountID,
				Type:        typ,
				Amount:      txn.Amount.Abs(),
				Description: txn.Description,
				Date:        txn.Date,
				Origin:      model.Origin{Table: model.OriginImport, ID: txn.Reference},
			}, now)
			if err != nil {
				return fmt.Errorf("importing %s: %w", txn.Reference, err)
			}
			seen[txn.Reference] = true
			res.Imported++
			res.IDs = append(res.IDs, id)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Info().
		Str("tenant", scope.TenantID).
		Int("account_id", accountID).
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Msg("statement imported")
	return res, nil
}

// ImportFile parses one file from <dir>/import/, imports it and moves it to
// import/processed/ on success.
func (s *Service) ImportFile(ctx context.Context, scope tenant.Scope, dir string, file FileInfo, p Parser, accountID int) (Result, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return Result{}, fmt.Errorf("opening %s: %w", file.Name, err)
	}
	txns, err := p.Parse(f)
	f.Close()
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", file.Name, err)
	}

	res, err := s.Import(ctx, scope, accountID, txns)
	if err != nil {
		return Result{}, err
	}
	if err := MarkProcessed(dir, file.Name); err != nil {
		return res, err
	}
	return res, nil
}
