package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/money"
)

// GenericParser reads "date,description,amount[,reference]" files with ISO
// dates. Amounts may use a decimal comma ("-1.234,56").
type GenericParser struct{}

const (
	genericColDate   = 0
	genericColDesc   = 1
	genericColAmount = 2
	genericColRef    = 3
)

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Header returns the required leading columns.
func (p *GenericParser) Header() []string { return []string{"date", "description", "amount"} }

// Parse reads a generic CSV and returns BankTransactions.
func (p *GenericParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	records, err := readRecords(r, -1)
	if err != nil {
		return nil, fmt.Errorf("reading generic CSV: %w", err)
	}

	var txns []model.BankTransaction
	for i, rec := range records {
		if len(rec) < 3 {
			return nil, fmt.Errorf("row %d: want at least 3 fields, got %d", i+2, len(rec))
		}
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[genericColDate]))
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec[genericColDate], err)
		}
		amount, err := money.Parse(rec[genericColAmount])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		desc := strings.TrimSpace(rec[genericColDesc])
		ref := ""
		if len(rec) > genericColRef {
			ref = strings.TrimSpace(rec[genericColRef])
		}
		if ref == "" {
			ref = makeRef("generic", date, desc, amount.Mul(decimal.NewFromInt(100)).IntPart())
		}
		txns = append(txns, model.BankTransaction{Date: date, Description: desc, Amount: amount, Reference: ref})
	}
	return txns, nil
}

// NubankParser parses Nubank checking account exports:
// "Data,Valor,Identificador,Descrição" with DD/MM/YYYY dates.
type NubankParser struct{}

const (
	nubankDateFormat = "02/01/2006"
	nubankNumFields  = 4
	nubankColDate    = 0
	nubankColAmount  = 1
	nubankColID      = 2
	nubankColDesc    = 3
)

// Format returns the parser name.
func (p *NubankParser) Format() string { return "nubank" }

// Header returns the export's columns.
func (p *NubankParser) Header() []string {
	return []string{"data", "valor", "identificador", "descrição"}
}

// Parse reads a Nubank CSV and returns BankTransactions.
func (p *NubankParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	records, err := readRecords(r, nubankNumFields)
	if err != nil {
		return nil, fmt.Errorf("reading nubank CSV: %w", err)
	}

	var txns []model.BankTransaction
	for i, rec := range records {
		date, err := time.Parse(nubankDateFormat, rec[nubankColDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec[nubankColDate], err)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(rec[nubankColAmount]))
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount %q: %w", i+2, rec[nubankColAmount], err)
		}
		txns = append(txns, model.BankTransaction{
			Date:        date,
			Description: strings.TrimSpace(rec[nubankColDesc]),
			Amount:      amount,
			Reference:   "nubank_" + strings.TrimSpace(rec[nubankColID]),
		})
	}
	return txns, nil
}

// readRecords reads all rows after the header.
func readRecords(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
