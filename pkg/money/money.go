// Package money centralizes fixed-point monetary arithmetic. All balances,
// amounts and fees carry exactly two fractional digits; callers must never
// reach for float64 when mutating a balance.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every monetary value.
const Scale = 2

// Zero is the canonical zero amount.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// Round2 rounds to two fractional digits, half up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Add returns a+b at ledger scale.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return Round2(a.Add(b))
}

// Sub returns a-b at ledger scale.
func Sub(a, b decimal.Decimal) decimal.Decimal {
	return Round2(a.Sub(b))
}

// ClampFloor returns d, floored at zero.
func ClampFloor(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Parse converts raw input into a monetary amount, rejecting values with more
// than two fractional digits.
func Parse(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.Exponent() < -Scale {
		return decimal.Zero, fmt.Errorf("amount %q exceeds %d decimal places", value, Scale)
	}
	return d, nil
}

// ValidAmount reports whether d is a positive amount at ledger scale.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Exponent() >= -Scale
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
