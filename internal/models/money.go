package models

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCents is the largest amount a DECIMAL(10,2) column holds.
const MaxCents int64 = 9_999_999_999

// maxAmountLen bounds the input before any decimal arithmetic runs on it.
const maxAmountLen = 24

var (
	hundred = decimal.NewFromInt(100)

	// Plain digits only: exponents would let a short input force a huge rescale.
	amountRe = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// ParseAmount parses a decimal amount into cents, rounding half away from
// zero at two places.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("amount must be >= 0")
	}
	if len(s) > maxAmountLen {
		return 0, fmt.Errorf("amount is too long")
	}
	if !amountRe.MatchString(s) {
		return 0, fmt.Errorf("amount %q is not a decimal number", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a decimal number", s)
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(MaxCents)) {
		return 0, fmt.Errorf("amount exceeds maximum")
	}
	return cents.IntPart(), nil
}

// CentsToDecimal converts stored cents back to a two-place decimal.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatCents renders cents with exactly two decimal places.
func FormatCents(cents int64) string {
	return CentsToDecimal(cents).StringFixed(2)
}
