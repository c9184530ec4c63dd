package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultMarkup is applied to the ingredient cost of manufactured articles.
var DefaultMarkup = decimal.RequireFromString("1.7")

// Constituent is one ingredient used to derive a manufactured article price.
type Constituent struct {
	UnitCost Money
	Quantity decimal.Decimal
}

// ParseMarkup parses a configured markup factor.
func ParseMarkup(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultMarkup, nil
	}
	m, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse markup: %w", err)
	}
	if !m.IsPositive() {
		return decimal.Zero, fmt.Errorf("markup must be positive, got %s", raw)
	}
	return m, nil
}

// DerivedPrice returns round2(sum(unit cost * quantity) * markup). No
// constituents yields zero.
func DerivedPrice(constituents []Constituent, markup decimal.Decimal) Money {
	cost := decimal.Zero
	for _, c := range constituents {
		cost = cost.Add(ToDecimal(c.UnitCost).Mul(c.Quantity))
	}
	return FromDecimal(cost.Mul(markup))
}
