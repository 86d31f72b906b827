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

// AccountsHeader is the CSV header for accounts.csv.
const AccountsHeader = "account_id,name,bank_name,number,initial_balance,active,created_at"

const (
	acctNumFields  = 7
	acctColID      = 0
	acctColName    = 1
	acctColBank    = 2
	acctColNumber  = 3
	acctColInitial = 4
	acctColActive  = 5
	acctColCreated = 6
)

// ReadAccounts reads accounts.csv.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = acctNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes accounts.csv including the header.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(AccountsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, acctNumFields)
	row[acctColID] = strconv.Itoa(acct.ID)
	row[acctColName] = acct.Name
	row[acctColBank] = acct.BankName
	row[acctColNumber] = acct.Number
	row[acctColInitial] = acct.InitialBalance.StringFixed(2)
	row[acctColActive] = strconv.FormatBool(acct.Active)
	if !acct.CreatedAt.IsZero() {
		row[acctColCreated] = acct.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != acctNumFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", acctNumFields, len(record))
	}

	id, err := strconv.Atoi(record[acctColID])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing account_id %q: %w", record[acctColID], err)
	}

	initial, err := decimal.NewFromString(record[acctColInitial])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing initial_balance %q: %w", record[acctColInitial], err)
	}

	active, err := strconv.ParseBool(record[acctColActive])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing active %q: %w", record[acctColActive], err)
	}

	var created time.Time
	if record[acctColCreated] != "" {
		created, err = time.Parse(time.RFC3339, record[acctColCreated])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing created_at %q: %w", record[acctColCreated], err)
		}
	}

	return model.Account{
		ID:             id,
		Name:           record[acctColName],
		BankName:       record[acctColBank],
		Number:         record[acctColNumber],
		InitialBalance: initial,
		Active:         active,
		CreatedAt:      created,
	}, nil
}
