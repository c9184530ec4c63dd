package checkout

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
)

var (
	ErrNotInCheckout         = errors.New("checkout: not started")
	ErrEmptyCart             = errors.New("checkout: cart is empty")
	ErrWrongStep             = errors.New("checkout: action not allowed at this step")
	ErrStockBlocked          = errors.New("checkout: stock errors block progression")
	ErrAuthRequired          = errors.New("checkout: authentication required")
	ErrDeliveryTypeRequired  = errors.New("checkout: delivery type required")
	ErrAddressRequired       = errors.New("checkout: address required for delivery")
	ErrPaymentMethodRequired = errors.New("checkout: payment method required")
	ErrCashRequiresPickup    = errors.New("checkout: cash is only accepted for pickup")
	ErrGatewayNotReady       = errors.New("checkout: payment gateway not initialised")
	ErrTerminal              = errors.New("checkout: confirmation is the last step")
)

// Outcome of a backward move.
type Outcome string

const (
	Moved        Outcome = "MOVED"
	ExitedToCart Outcome = "EXITED_TO_CART"
)

// Readiness reports whether the gateway client is initialised.
type Readiness interface {
	Ready() bool
}

// Guard carries the facts forward transitions are checked against.
type Guard struct {
	StockErrors   []string
	Authenticated bool
}

// Machine applies step transitions to a Draft. It holds no per-session state.
type Machine struct {
	Gateway Readiness
	Logger  zerolog.Logger
}

// Enter starts a draft. Authenticated shoppers skip INFORMATION.
func (m Machine) Enter(authenticated bool) Draft {
	d := Draft{Step: StepInformation}
	if authenticated {
		d.Step = StepDelivery
	}
	m.record("", d.Step, "entered")
	return d
}

// Next advances one step or leaves d untouched and returns the refusal.
func (m Machine) Next(d *Draft, g Guard) error {
	to, ok := d.Step.next()
	if err := m.forwardGuard(*d, g, ok); err != nil {
		m.record(d.Step, to, reason(err))
		return err
	}
	from := d.Step
	d.Step = to
	m.record(from, to, "ok")
	return nil
}

func (m Machine) forwardGuard(d Draft, g Guard, hasNext bool) error {
	if len(g.StockErrors) > 0 {
		return ErrStockBlocked
	}
	switch d.Step {
	case StepInformation:
		if !g.Authenticated {
			return ErrAuthRequired
		}
	case StepDelivery:
		if !d.DeliveryType.Valid() {
			return ErrDeliveryTypeRequired
		}
		if d.DeliveryType == order.Delivery && d.AddressID == nil {
			return ErrAddressRequired
		}
	case StepPayment:
		if !d.PaymentMethod.Valid() {
			return ErrPaymentMethodRequired
		}
		if d.PaymentMethod == order.Cash && d.DeliveryType != order.Pickup {
			return ErrCashRequiresPickup
		}
		if d.PaymentMethod == order.Gateway && (m.Gateway == nil || !m.Gateway.Ready()) {
			return ErrGatewayNotReady
		}
	}
	if !hasNext {
		return ErrTerminal
	}
	return nil
}

// Previous steps back. From DELIVERY an authenticated shopper leaves checkout,
// an anonymous one returns to INFORMATION. INFORMATION itself exits.
func (m Machine) Previous(d *Draft, authenticated bool) Outcome {
	from := d.Step
	if from == StepInformation || (from == StepDelivery && authenticated) {
		m.record(from, "", "exited")
		return ExitedToCart
	}
	to, _ := from.previous()
	d.Step = to
	m.record(from, to, "back")
	return Moved
}

// SelectDelivery sets the delivery type and address at the DELIVERY step.
// Choosing delivery drops a previous cash selection; pickup drops the address.
func (m Machine) SelectDelivery(d *Draft, t order.DeliveryType, addressID *int64) error {
	if d.Step != StepDelivery {
		return ErrWrongStep
	}
	if !t.Valid() {
		return ErrDeliveryTypeRequired
	}
	if t == order.Delivery && addressID == nil {
		return ErrAddressRequired
	}
	d.DeliveryType = t
	switch t {
	case order.Delivery:
		id := *addressID
		d.AddressID = &id
		if d.PaymentMethod == order.Cash {
			d.PaymentMethod = ""
		}
	case order.Pickup:
		d.AddressID = nil
	}
	return nil
}

// SelectPayment sets the payment method at the PAYMENT step.
func (m Machine) SelectPayment(d *Draft, method order.PaymentMethod) error {
	if d.Step != StepPayment {
		return ErrWrongStep
	}
	if !method.Valid() {
		return ErrPaymentMethodRequired
	}
	if method == order.Cash && d.DeliveryType != order.Pickup {
		return ErrCashRequiresPickup
	}
	d.PaymentMethod = method
	return nil
}

func (m Machine) record(from, to Step, result string) {
	obs.Inc(obs.CheckoutStepTotal, stepLabel(from), stepLabel(to), result)
	m.Logger.Info().Str("from", string(from)).Str("to", string(to)).Str("result", result).Msg("checkout_step")
}

func stepLabel(s Step) string {
	if s == "" {
		return "none"
	}
	return string(s)
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrStockBlocked):
		return "stock"
	case errors.Is(err, ErrAuthRequired):
		return "auth"
	case errors.Is(err, ErrDeliveryTypeRequired), errors.Is(err, ErrAddressRequired):
		return "delivery"
	case errors.Is(err, ErrPaymentMethodRequired), errors.Is(err, ErrCashRequiresPickup):
		return "payment"
	case errors.Is(err, ErrGatewayNotReady):
		return "gateway"
	case errors.Is(err, ErrTerminal):
		return "terminal"
	default:
		return "error"
	}
}
