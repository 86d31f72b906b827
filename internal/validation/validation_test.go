package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required"`
	Count int    `validate:"gte=2"`
	Kind  string `validate:"oneof=payable receivable"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sample{Name: "x", Count: 2, Kind: "payable"}))

	err := Struct(sample{Count: 1, Kind: "loan"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "Name must satisfy required")
	assert.Contains(t, err.Error(), "Count must satisfy gte=2")
	assert.Contains(t, err.Error(), "Kind must satisfy oneof=payable receivable")
}
