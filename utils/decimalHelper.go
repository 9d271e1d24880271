package utils

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// LineAmountTolerance is the absolute tolerance for line-level price/amount checks.
// Invoice source numbers are rounded to 2 decimals during parsing, so anything
// tighter than one cent produces false positives from rounding alone.
// The tolerance is absolute, not relative, for every invoice currency/magnitude.
var LineAmountTolerance = decimal.NewFromFloat(0.02)

// NearlyEqual reports whether |a - b| <= tolerance.
func NearlyEqual(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// NearlyEqualAmount compares two monetary amounts with the line tolerance.
func NearlyEqualAmount(a, b decimal.Decimal) bool {
	return NearlyEqual(a, b, LineAmountTolerance)
}

// Percentage returns amount * rate / 100, rounded to 4 places.
func Percentage(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).DivRound(decimal.NewFromInt(100), 4)
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}
