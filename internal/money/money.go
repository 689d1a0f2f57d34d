package money

import "github.com/shopspring/decimal"

// All monetary values round half-up to two decimal places. Rounding is
// applied wherever an amount is produced, never re-applied on reads, so
// stored amounts compare exactly.

// Round normalizes an amount to two decimal places, half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Zero is the canonical zero amount.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// Sum adds amounts without intermediate rounding and rounds the result.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return Round(total)
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}

// IsNegative reports whether the amount is strictly less than zero.
func IsNegative(d decimal.Decimal) bool {
	return d.LessThan(decimal.Zero)
}
