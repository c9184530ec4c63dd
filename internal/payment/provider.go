// Package payment adapts external payment gateways to the checkout.
package payment

import (
	"context"
	"errors"

	"github.com/noah-isme/toko-storefront/internal/order"
)

// ErrNotReady is returned when the gateway client has not been initialised.
var ErrNotReady = errors.New("payment: gateway not ready")

// Preference is the hosted checkout opened for an order.
type Preference struct {
	ID                string `json:"id"`
	InitPoint         string `json:"initPoint"`
	ExternalReference string `json:"externalReference,omitempty"`
}

// Gateway creates hosted checkout preferences.
type Gateway interface {
	Name() string
	Ready() bool
	CreatePreference(ctx context.Context, p order.Payload) (Preference, error)
}
