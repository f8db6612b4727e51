// Package money provides currency-aware amount handling on top of
// go-money's ISO-4217 tables and shopspring/decimal precision arithmetic.
// KWD and other three-decimal currencies are handled via the currency's
// fraction data rather than a hardcoded cents assumption.
package money

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// IsKnownCurrency reports whether code is a valid ISO-4217 currency code.
func IsKnownCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// Fraction returns the number of decimal places for the currency.
// Unknown currencies default to 2.
func Fraction(code string) int {
	c := money.GetCurrency(code)
	if c == nil {
		return 2
	}
	return c.Fraction
}

// ToMinorUnits converts a decimal amount to the currency's minor units
// (fils for KWD, cents for USD).
func ToMinorUnits(amount decimal.Decimal, code string) int64 {
	mult := decimal.New(1, int32(Fraction(code)))
	return amount.Mul(mult).Round(0).IntPart()
}

// FromMinorUnits converts minor units back to a decimal amount.
func FromMinorUnits(minor int64, code string) decimal.Decimal {
	return decimal.New(minor, -int32(Fraction(code)))
}

// Format renders an amount with its currency symbol, e.g. "KD 3.500".
func Format(amount decimal.Decimal, code string) string {
	return money.New(ToMinorUnits(amount, code), code).Display()
}
