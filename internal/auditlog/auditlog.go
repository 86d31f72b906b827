// Package auditlog keeps an append-only CSV trail of the write operations
// run against a tenant workspace (logs/audit-log.csv).
package auditlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp  time.Time
	Actor      string // cli or api
	Action     string
	Details    string
	RecordID   string // movement, obligation or file the action touched
	CommitHash string // empty unless the workspace was auto-committed
}

// Actions recorded by the CLI and HTTP API.
const (
	ActionInit              = "init"
	ActionAccountCreate     = "account_create"
	ActionAccountDeactivate = "account_deactivate"
	ActionMovementAppend    = "movement_append"
	ActionTransfer          = "transfer"
	ActionObligationAdd     = "obligation_add"
	ActionInstallmentsAdd   = "installments_add"
	ActionSettle            = "settle"
	ActionCancel            = "cancel"
	ActionImport            = "import"
)

var columns = []string{"timestamp", "actor", "action", "details", "record_id", "commit_hash"}

// Header is the first line of audit-log.csv.
const Header = "timestamp,actor,action,details,record_id,commit_hash"

// RelPath is the log location inside a tenant directory.
var RelPath = filepath.Join("logs", "audit-log.csv")

// locks serializes appends per file; the HTTP API audits from concurrent
// requests.
var locks sync.Map // path -> *sync.Mutex

func lockFor(path string) *sync.Mutex {
	mu, _ := locks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Record returns e as a CSV row in column order.
func (e Entry) Record() []string {
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Actor,
		e.Action,
		e.Details,
		e.RecordID,
		e.CommitHash,
	}
}

// ParseRecord is the inverse of Entry.Record.
func ParseRecord(rec []string) (Entry, error) {
	if len(rec) != len(columns) {
		return Entry{}, fmt.Errorf("want %d fields, got %d", len(columns), len(rec))
	}
	ts, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", rec[0], err)
	}
	return Entry{
		Timestamp:  ts,
		Actor:      rec[1],
		Action:     rec[2],
		Details:    rec[3],
		RecordID:   rec[4],
		CommitHash: rec[5],
	}, nil
}

// Append adds entries to the log under tenantDir. The file and its header
// are created on first use.
func Append(tenantDir string, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	path := filepath.Join(tenantDir, RelPath)
	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		_ = w.Write(columns)
	}
	for _, e := range entries {
		_ = w.Write(e.Record())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing audit log: %w", err)
	}
	return f.Close()
}

// Filter narrows Query results. Zero fields match everything.
type Filter struct {
	Action   string
	RecordID string
	Since    time.Time // inclusive
}

func (f Filter) match(e Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.RecordID != "" && e.RecordID != f.RecordID {
		return false
	}
	return f.Since.IsZero() || !e.Timestamp.Before(f.Since)
}

// Read returns every entry of the log under tenantDir in write order, or
// nil when nothing has been logged yet.
func Read(tenantDir string) ([]Entry, error) {
	return Query(tenantDir, Filter{})
}

// Query returns the entries matching f in write order.
func Query(tenantDir string, f Filter) ([]Entry, error) {
	file, err := os.Open(filepath.Join(tenantDir, RelPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer file.Close()
	return scan(file, f)
}

func scan(r io.Reader, f Filter) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(columns)

	var out []Entry
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading audit log: %w", err)
		}
		if line == 1 {
			continue
		}
		e, err := ParseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if f.match(e) {
			out = append(out, e)
		}
	}
}
