package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

var hundred = decimal.NewFromInt(100)

// FromDecimal converts a major-unit amount into minor units rounding half-up to two places.
func FromDecimal(d decimal.Decimal) Money {
	return d.Round(2).Mul(hundred).IntPart()
}

// ToDecimal converts minor units into a major-unit decimal.
func ToDecimal(m Money) decimal.Decimal {
	return decimal.New(m, -2)
}

// FromFloat converts a backend float amount into minor units.
func FromFloat(f float64) Money {
	return FromDecimal(decimal.NewFromFloat(f))
}

// ToFloat converts minor units into the float representation the backend expects.
func ToFloat(m Money) float64 {
	f, _ := ToDecimal(m).Float64()
	return f
}

// Format renders an amount with two decimals and the currency code.
func Format(m Money, currency string) string {
	if currency == "" {
		return ToDecimal(m).StringFixed(2)
	}
	return fmt.Sprintf("%s %s", currency, ToDecimal(m).StringFixed(2))
}
