package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovement_String(t *testing.T) {
	assert.Equal(t, "2025-01-001", For(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), 1).String())
	assert.Equal(t, "2025-12-099", Movement{Year: 2025, Month: time.December, Seq: 99}.String())
	assert.Equal(t, "2025-03-1000", Movement{Year: 2025, Month: time.March, Seq: 1000}.String())
}

func TestMovement_Leg(t *testing.T) {
	entry := Movement{Year: 2025, Month: time.January, Seq: 4}
	assert.Equal(t, "2025-01-004a", entry.Leg(0))
	assert.Equal(t, "2025-01-004b", entry.Leg(1))
	assert.Equal(t, entry.String(), EntryGroup(entry.Leg(1)))
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Movement{
		"2025-01-001":  {2025, time.January, 1},
		"2025-12-099":  {2025, time.December, 99},
		"2025-02-004b": {2025, time.February, 4},
		"2025-03-1000": {2025, time.March, 1000},
	} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "not-valid", "2025-01", "xxxx-01-001", "2025-13-001", "2025-01-000", "2025/01/001"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}

func TestNext(t *testing.T) {
	jan := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-01-001", Next(nil, jan).String())

	existing := []string{"2025-01-001", "2025-01-002a", "2025-01-002b", "2025-02-007", "garbage"}
	assert.Equal(t, "2025-01-003", Next(existing, jan).String())
	assert.Equal(t, "2025-02-008", Next(existing, feb).String())
	assert.True(t, Next(existing, feb).InMonthOf(feb))
}
