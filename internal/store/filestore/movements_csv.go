package filestore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fluxo-dev/fluxo/internal/model"
)

// MovementsHeader is the CSV header for ledger.csv.
const MovementsHeader = "movement_id,date,account_id,type,amount,description,related_table,related_id,created_at"

const (
	dateFormat     = "2006-01-02"
	mvNumFields    = 9
	mvColID        = 0
	mvColDate      = 1
	mvColAcctID    = 2
	mvColType      = 3
	mvColAmount    = 4
	mvColDesc      = 5
	mvColRelTable  = 6
	mvColRelID     = 7
	mvColCreatedAt = 8
)

// ReadMovements reads all movements from a ledger.csv reader.
func ReadMovements(r io.Reader) ([]model.Movement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = mvNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var movements []model.Movement
	for i, rec := range records[1:] {
		m, err := UnmarshalMovement(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		movements = append(movements, m)
	}
	return movements, nil
}

// AppendMovements appends rows to an existing ledger.csv writer (no header).
func AppendMovements(w io.Writer, movements []model.Movement) error {
	cw := csv.NewWriter(w)
	for i, m := range movements {
		if err := cw.Write(MarshalMovement(m)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalMovement converts a Movement to a CSV row.
func MarshalMovement(m model.Movement) []string {
	row := make([]string, mvNumFields)
	row[mvColID] = m.ID
	row[mvColDate] = m.Date.Format(dateFormat)
	row[mvColAcctID] = strconv.Itoa(m.AccountID)
	row[mvColType] = string(m.Type)
	row[mvColAmount] = m.Amount.StringFixed(2)
	row[mvColDesc] = m.Description
	row[mvColRelTable] = m.Origin.Table
	row[mvColRelID] = m.Origin.ID
	if !m.CreatedAt.IsZero() {
		row[mvColCreatedAt] = m.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalMovement converts a CSV row to a Movement.
func UnmarshalMovement(record []string) (model.Movement, error) {
	if len(record) != mvNumFields {
		return model.Movement{}, fmt.Errorf("expected %d fields, got %d", mvNumFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[mvColDate])
	if err != nil {
		return model.Movement{}, fmt.Errorf("parsing date %q: %w", record[mvColDate], err)
	}

	accountID, err := strconv.Atoi(record[mvColAcctID])
	if err != nil {
		return model.Movement{}, fmt.Errorf("parsing account_id %q: %w", record[mvColAcctID], err)
	}

	amount, err := decimal.NewFromString(record[mvColAmount])
	if err != nil {
		return model.Movement{}, fmt.Errorf("parsing amount %q: %w", record[mvColAmount], err)
	}

	var created time.Time
	if record[mvColCreatedAt] != "" {
		created, err = time.Parse(time.RFC3339, record[mvColCreatedAt])
		if err != nil {
			return model.Movement{}, fmt.Errorf("parsing created_at %q: %w", record[mvColCreatedAt], err)
		}
	}

	return model.Movement{
		ID:          record[mvColID],
		AccountID:   accountID,
		Type:        model.MovementType(strings.ToLower(record[mvColType])),
		Amount:      amount,
		Description: record[mvColDesc],
		Origin:      model.Origin{Table: record[mvColRelTable], ID: record[mvColRelID]},
		Date:        date,
		CreatedAt:   created,
	}, nil
}
