// Package importer turns bank statement exports into ledger movements.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/fluxo-dev/fluxo/internal/model"
)

// FormatAuto asks the registry to pick a parser from the file header.
const FormatAuto = "auto"

// Parser converts a bank CSV file into BankTransactions.
type Parser interface {
	Format() string
	// Header is the leading columns of the file, lower case.
	Header() []string
	Parse(r io.Reader) ([]model.BankTransaction, error)
}

// Registry holds parsers by format name.
type Registry struct {
	byName map[string]Parser
	order  []string
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Parser)}
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&GenericParser{})
	r.Register(&NubankParser{})
	return r
}

// Register adds p. Registering the same format twice panics.
func (r *Registry) Register(p Parser) {
	name := strings.ToLower(p.Format())
	if _, dup := r.byName[name]; dup {
		panic("importer: format registered twice: " + name)
	}
	r.byName[name] = p
	r.order = append(r.order, name)
}

// Get looks a parser up by format, ignoring case. Nil when unknown.
func (r *Registry) Get(format string) Parser {
	return r.byName[strings.ToLower(format)]
}

// Formats returns the registered names in sorted order.
func (r *Registry) Formats() []string {
	out := slices.Clone(r.order)
	slices.Sort(out)
	return out
}

// Detect returns the first registered parser whose header is a prefix of
// the header row of the file at path.
func (r *Registry) Detect(path string) (Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	row, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", filepath.Base(path), err)
	}
	for i := range row {
		row[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(row[i], "\ufeff")))
	}
	for _, name := range r.order {
		p := r.byName[name]
		if len(row) >= len(p.Header()) && slices.Equal(row[:len(p.Header())], p.Header()) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%s: no parser recognizes header %q", filepath.Base(path), strings.Join(row, ","))
}

// Resolve returns the parser named format, detecting it from the file when
// format is FormatAuto.
func (r *Registry) Resolve(format, path string) (Parser, error) {
	if strings.EqualFold(format, FormatAuto) {
		return r.Detect(path)
	}
	if p := r.Get(format); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("unknown format %q (want %s or one of: %s)",
		format, FormatAuto, strings.Join(r.Formats(), ", "))
}

// FileInfo describes a statement waiting in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

var (
	inbox     = "import"
	processed = filepath.Join("import", "processed")
)

// Scan lists the .csv files waiting in <dir>/import/, sorted by name.
// Hidden files and subdirectories are ignored.
func Scan(dir string) ([]FileInfo, error) {
	src := filepath.Join(dir, inbox)
	entries, err := os.ReadDir(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", src, err)
	}

	var files []FileInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		files = append(files, FileInfo{Name: name, Path: filepath.Join(src, name), Size: info.Size()})
	}
	return files, nil
}

// MarkProcessed moves name from import/ into import/processed/.
func MarkProcessed(dir, name string) error {
	dst := filepath.Join(dir, processed)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if err := os.Rename(filepath.Join(dir, inbox, name), filepath.Join(dst, name)); err != nil {
		return fmt.Errorf("archiving %s: %w", name, err)
	}
	return nil
}

// makeRef derives a stable reference such as
// "generic_20250103_PADARIASAO_-1250" for rows without an identifier.
func makeRef(source string, date time.Time, desc string, cents int64) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(desc) {
		if b.Len() == 10 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf("%s_%s_%s_%d", source, date.Format("20060102"), b.String(), cents)
}
