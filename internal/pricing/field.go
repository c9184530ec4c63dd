package pricing

import "github.com/shopspring/decimal"

// PriceField tracks the sale price of an article being authored. The derived
// value follows the ingredient list until a manual price is entered; recipe
// changes made meanwhile are applied when the override is cleared.
type PriceField struct {
	manual  bool
	value   Money
	derived Money

	recipe []Constituent
	markup decimal.Decimal
	stale  bool
}

// SetManual stores a manual price. Zero or negative clears the override.
func (f *PriceField) SetManual(v Money) {
	if v <= 0 {
		f.ClearManual()
		return
	}
	f.manual = true
	f.value = v
}

// ClearManual reverts to the derived price.
func (f *PriceField) ClearManual() {
	f.manual = false
	f.value = 0
	if f.stale {
		f.derived = DerivedPrice(f.recipe, f.markup)
		f.stale = false
	}
}

// Recompute refreshes the derived price from the ingredient list. While a
// manual price is active the list is only remembered.
func (f *PriceField) Recompute(constituents []Constituent, markup decimal.Decimal) {
	f.recipe = append(f.recipe[:0], constituents...)
	f.markup = markup
	if f.manual {
		f.stale = true
		return
	}
	f.derived = DerivedPrice(f.recipe, markup)
	f.stale = false
}

// Manual reports whether a manual override is active.
func (f *PriceField) Manual() bool { return f.manual }

// Derived returns the price derived before the manual override, if any.
func (f *PriceField) Derived() Money { return f.derived }

// Effective returns the price that will be submitted.
func (f *PriceField) Effective() Money {
	if f.manual {
		return f.value
	}
	return f.derived
}
