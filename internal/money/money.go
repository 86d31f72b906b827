// Package money holds the fixed-point helpers shared by the ledger core.
// Every amount is a decimal with two fraction digits; nothing here uses floats.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var hundred = decimal.NewFromInt(100)

// FloorCents truncates d down to whole cents: floor(d*100)/100.
func FloorCents(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Floor().Div(hundred)
}

// Round rounds d half away from zero to two fraction digits.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsCents reports whether d has no more than two fraction digits.
func IsCents(d decimal.Decimal) bool {
	scaled := d.Mul(hundred)
	return scaled.Equal(scaled.Floor())
}

// ValidPositive reports whether d is a strictly positive whole-cent amount.
func ValidPositive(d decimal.Decimal) bool {
	return d.IsPositive() && IsCents(d)
}

// Sum adds the given amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Parse reads an amount written either as "1234.56" or with a decimal comma
// and dot grouping as "1.234,56".
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders d as "R$ 1.234,56". Presentation only.
func FormatBRL(d decimal.Decimal) string {
	d = Round(d)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	units := d.IntPart()
	cents := d.Sub(decimal.NewFromInt(units)).Mul(hundred).IntPart()
	return fmt.Sprintf("%sR$ %s,%02d", sign, brl.Sprintf("%d", units), cents)
}
