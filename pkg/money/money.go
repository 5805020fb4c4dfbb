// Package money provides currency amount conventions shared by the loan
// engine: a fixed two-decimal scale with banker's rounding.
package money

import "github.com/shopspring/decimal"

// Amount is a currency amount. All monetary arithmetic in the engine flows
// through decimal.Decimal; values are only rounded at the points where an
// amount becomes owed or paid.
type Amount = decimal.Decimal

// Scale is the number of decimal places carried by settled amounts.
const Scale = 2

var (
	// Zero is the zero amount.
	Zero = decimal.Zero

	// Hundred is used for percent-to-fraction conversions.
	Hundred = decimal.NewFromInt(100)
)

// New returns an amount from an integer number of currency units.
func New(units int64) Amount {
	return decimal.NewFromInt(units)
}

// FromFloat returns an amount from a float64. Intended for configuration
// input, not for intermediate arithmetic.
func FromFloat(f float64) Amount {
	return decimal.NewFromFloat(f)
}

// Round rounds an amount to the currency scale using banker's (half-even)
// rounding.
func Round(a Amount) Amount {
	return a.RoundBank(Scale)
}

// RateFraction converts an annual percentage rate (e.g. 12.5) to a fraction
// (0.125).
func RateFraction(annualRate Amount) Amount {
	return annualRate.Div(Hundred)
}

// Min returns the smaller of two amounts.
func Min(a, b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of two amounts.
func Max(a, b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// IsZero reports whether the amount is exactly zero at the currency scale.
func IsZero(a Amount) bool {
	return Round(a).IsZero()
}

// IsPositive reports whether the amount is positive at the currency scale.
func IsPositive(a Amount) bool {
	return Round(a).IsPositive()
}
