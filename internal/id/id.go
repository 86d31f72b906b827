// Package id formats and parses ledger movement identifiers.
//
// A movement ID is "YYYY-MM-NNN": the business month of the movement and a
// sequence that restarts every month. Movements written together as one entry
// (the two sides of a transfer) share the sequence and carry a leg suffix:
// "2025-01-004a", "2025-01-004b".
package id

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrMalformed is returned by Parse.
var ErrMalformed = errors.New("malformed movement ID")

// Movement is a parsed movement ID without its leg suffix.
type Movement struct {
	Year  int
	Month time.Month
	Seq   int
}

// For returns the ID with sequence seq in the month of date.
func For(date time.Time, seq int) Movement {
	return Movement{Year: date.Year(), Month: date.Month(), Seq: seq}
}

func (m Movement) String() string {
	return fmt.Sprintf("%04d-%02d-%03d", m.Year, int(m.Month), m.Seq)
}

// Leg returns the ID of leg i of the entry: 0 -> "a", 1 -> "b".
func (m Movement) Leg(i int) string {
	return m.String() + string(rune('a'+i))
}

// InMonthOf reports whether the ID belongs to the month of t.
func (m Movement) InMonthOf(t time.Time) bool {
	return m.Year == t.Year() && m.Month == t.Month()
}

// Parse reads "2025-01-001" or a leg ID such as "2025-01-001b".
func Parse(s string) (Movement, error) {
	base := EntryGroup(s)
	// Fixed layout: 4-digit year, 2-digit month, at least 3-digit sequence.
	if len(base) < 11 || base[4] != '-' || base[7] != '-' {
		return Movement{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	year, err1 := strconv.Atoi(base[:4])
	month, err2 := strconv.Atoi(base[5:7])
	seq, err3 := strconv.Atoi(base[8:])
	if err := errors.Join(err1, err2, err3); err != nil {
		return Movement{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if month < 1 || month > 12 || seq < 1 {
		return Movement{}, fmt.Errorf("%w: %q out of range", ErrMalformed, s)
	}
	return Movement{Year: year, Month: time.Month(month), Seq: seq}, nil
}

// EntryGroup strips the leg suffix: "2025-01-001a" -> "2025-01-001".
func EntryGroup(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z' {
		i--
	}
	return s[:i]
}

// Next returns the first unused ID in the month of date given the IDs
// already written. IDs of other months and unparsable ones are ignored.
func Next(existing []string, date time.Time) Movement {
	next := For(date, 1)
	for _, s := range existing {
		m, err := Parse(s)
		if err != nil || !m.InMonthOf(date) {
			continue
		}
		if m.Seq >= next.Seq {
			next.Seq = m.Seq + 1
		}
	}
	return next
}
