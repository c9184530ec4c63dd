package pricing

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal    Money `json:"subtotal"`
	DeliveryFee Money `json:"deliveryFee"`
	Total       Money `json:"total"`
}

// Subtotal sums quantity times unit price ignoring non-positive quantities.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Compute calculates order totals for the given lines. shipping reports whether
// the order is delivered to an address rather than picked up.
func Compute(items []Item, rule DeliveryRule, shipping bool) Summary {
	subtotal := Subtotal(items)
	fee := rule.FeeFor(shipping, subtotal)
	return Summary{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal + fee,
	}
}
