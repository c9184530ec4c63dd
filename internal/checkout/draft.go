// Package checkout sequences the checkout steps and submits orders.
package checkout

import (
	"github.com/noah-isme/toko-storefront/internal/order"
)

// Step is a checkout stage. Steps only advance in declaration order.
type Step string

const (
	StepInformation  Step = "INFORMATION"
	StepDelivery     Step = "DELIVERY"
	StepPayment      Step = "PAYMENT"
	StepConfirmation Step = "CONFIRMATION"
)

var stepOrder = []Step{StepInformation, StepDelivery, StepPayment, StepConfirmation}

func (s Step) index() int {
	for i, st := range stepOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Step) next() (Step, bool) {
	i := s.index()
	if i < 0 || i+1 >= len(stepOrder) {
		return "", false
	}
	return stepOrder[i+1], true
}

func (s Step) previous() (Step, bool) {
	i := s.index()
	if i <= 0 {
		return "", false
	}
	return stepOrder[i-1], true
}

// Draft is the checkout context collected so far.
type Draft struct {
	Step          Step                `json:"step"`
	DeliveryType  order.DeliveryType  `json:"deliveryType,omitempty"`
	PaymentMethod order.PaymentMethod `json:"paymentMethod,omitempty"`
	AddressID     *int64              `json:"addressId,omitempty"`
}

func (d Draft) clone() Draft {
	if d.AddressID != nil {
		id := *d.AddressID
		d.AddressID = &id
	}
	return d
}
