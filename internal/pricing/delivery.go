package pricing

// DeliveryRule holds the fixed delivery fee and the subtotal from which delivery is free.
type DeliveryRule struct {
	Fee           Money
	FreeThreshold Money
}

// DefaultDeliveryRule charges 3.99 below a 25.00 subtotal.
var DefaultDeliveryRule = DeliveryRule{Fee: 399, FreeThreshold: 2500}

// FeeFor returns the delivery fee. Pickup orders and subtotals at or above the
// threshold are free.
func (r DeliveryRule) FeeFor(shipping bool, subtotal Money) Money {
	if !shipping {
		return 0
	}
	if subtotal >= r.FreeThreshold {
		return 0
	}
	if r.Fee < 0 {
		return 0
	}
	return r.Fee
}
