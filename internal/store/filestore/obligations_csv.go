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

// ObligationsHeader is the CSV header for payables.csv and receivables.csv.
const ObligationsHeader = "id,description,amount,due_date,status,account_id,category,counterparty,method,settled_at,parent_id,installment,installments,created_at"

const (
	obNumFields    = 14
	obColID        = 0
	obColDesc      = 1
	obColAmount    = 2
	obColDue       = 3
	obColStatus    = 4
	obColAcctID    = 5
	obColCategory  = 6
	obColCparty    = 7
	obColMethod    = 8
	obColSettledAt = 9
	obColParent    = 10
	obColInst      = 11
	obColInstCount = 12
	obColCreatedAt = 13
)

// ReadObligations reads an obligations CSV. The kind is implied by the file.
func ReadObligations(r io.Reader, kind model.ObligationKind) ([]model.Obligation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = obNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", kind, err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var out []model.Obligation
	for i, rec := range records[1:] {
		o, err := UnmarshalObligation(rec, kind)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// WriteObligations writes an obligations CSV including the header.
func WriteObligations(w io.Writer, obligations []model.Obligation) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(ObligationsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, o := range obligations {
		if err := cw.Write(MarshalObligation(o)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalObligation converts an Obligation to a CSV row.
func MarshalObligation(o model.Obligation) []string {
	row := make([]string, obNumFields)
	row[obColID] = o.ID
	row[obColDesc] = o.Description
	row[obColAmount] = o.Amount.StringFixed(2)
	row[obColDue] = o.DueDate.Format(dateFormat)
	row[obColStatus] = string(o.Status)
	if o.AccountID != 0 {
		row[obColAcctID] = strconv.Itoa(o.AccountID)
	}
	row[obColCategory] = o.Category
	row[obColCparty] = o.Counterparty
	row[obColMethod] = o.Method
	if o.SettledAt != nil {
		row[obColSettledAt] = o.SettledAt.UTC().Format(time.RFC3339)
	}
	row[obColParent] = o.ParentID
	if o.Installment != 0 {
		row[obColInst] = strconv.Itoa(o.Installment)
		row[obColInstCount] = strconv.Itoa(o.Installments)
	}
	if !o.CreatedAt.IsZero() {
		row[obColCreatedAt] = o.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalObligation converts a CSV row to an Obligation of the given kind.
func UnmarshalObligation(record []string, kind model.ObligationKind) (model.Obligation, error) {
	if len(record) != obNumFields {
		return model.Obligation{}, fmt.Errorf("expected %d fields, got %d", obNumFields, len(record))
	}

	amount, err := decimal.NewFromString(record[obColAmount])
	if err != nil {
		return model.Obligation{}, fmt.Errorf("parsing amount %q: %w", record[obColAmount], err)
	}

	due, err := time.Parse(dateFormat, record[obColDue])
	if err != nil {
		return model.Obligation{}, fmt.Errorf("parsing due_date %q: %w", record[obColDue], err)
	}

	o := model.Obligation{
		ID:           record[obColID],
		Kind:         kind,
		Description:  record[obColDesc],
		Amount:       amount,
		DueDate:      due,
		Status:       model.ObligationStatus(record[obColStatus]),
		Category:     record[obColCategory],
		Counterparty: record[obColCparty],
		Method:       record[obColMethod],
		ParentID:     record[obColParent],
	}

	if record[obColAcctID] != "" {
		o.AccountID, err = strconv.Atoi(record[obColAcctID])
		if err != nil {
			return model.Obligation{}, fmt.Errorf("parsing account_id %q: %w", record[obColAcctID], err)
		}
	}

	if record[obColSettledAt] != "" {
		settled, err := time.Parse(time.RFC3339, record[obColSettledAt])
		if err != nil {
			return model.Obligation{}, fmt.Errorf("parsing settled_at %q: %w", record[obColSettledAt], err)
		}
		o.SettledAt = &settled
	}

	if record[obColInst] != "" {
		o.Installment, err = strconv.Atoi(record[obColInst])
		if err != nil {
			return model.Obligation{}, fmt.Errorf("parsing installment %q: %w", record[obColInst], err)
		}
		o.Installments, err = strconv.Atoi(record[obColInstCount])
		if err != nil {
			return model.Obligation{}, fmt.Errorf("parsing installments %q: %w", record[obColInstCount], err)
		}
	}

	if record[obColCreatedAt] != "" {
		o.CreatedAt, err = time.Parse(time.RFC3339, record[obColCreatedAt])
		if err != nil {
			return model.Obligation{}, fmt.Errorf("parsing created_at %q: %w", record[obColCreatedAt], err)
		}
	}

	return o, nil
}
