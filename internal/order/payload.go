// Package order assembles the order payload and creates orders on the backend.
package order

import (
	"net/http"
	"time"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/product"
)

// DeliveryType says how the order reaches the customer.
type DeliveryType string

const (
	Delivery DeliveryType = "DELIVERY"
	Pickup   DeliveryType = "PICKUP"
)

// Valid reports whether d is a known delivery type.
func (d DeliveryType) Valid() bool { return d == Delivery || d == Pickup }

// PaymentMethod selects the submission branch.
type PaymentMethod string

const (
	Cash    PaymentMethod = "CASH"
	Gateway PaymentMethod = "GATEWAY"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool { return m == Cash || m == Gateway }

// StatePending is the state every new order is created with.
const StatePending = "PENDIENTE"

const dateLayout = "2006-01-02"

// Line references exactly one of an article or a promotion.
type Line struct {
	Cantidad    int     `json:"cantidad" validate:"gte=1"`
	SubTotal    float64 `json:"subTotal" validate:"gt=0"`
	ArticuloID  *int64  `json:"articuloId,omitempty" validate:"required_without=PromocionID,excluded_with=PromocionID"`
	PromocionID *int64  `json:"promocionId,omitempty" validate:"required_without=ArticuloID,excluded_with=ArticuloID"`
}

// Payload is the body sent to order creation and to the payment gateway.
type Payload struct {
	FechaPedido string        `json:"fechaPedido" validate:"required"`
	Estado      string        `json:"estado" validate:"required"`
	TipoEnvio   DeliveryType  `json:"tipoEnvio" validate:"required,oneof=DELIVERY PICKUP"`
	FormaPago   PaymentMethod `json:"formaPago" validate:"required,oneof=CASH GATEWAY"`
	Total       float64       `json:"total" validate:"gt=0"`
	ClienteID   int64         `json:"clienteId" validate:"gt=0"`
	DomicilioID *int64        `json:"domicilioId,omitempty" validate:"required_if=TipoEnvio DELIVERY,excluded_if=TipoEnvio PICKUP"`
	Detalles    []Line        `json:"detalles" validate:"min=1,dive"`
}

// Draft carries what the checkout collected.
type Draft struct {
	Cart          cart.Snapshot
	DeliveryType  DeliveryType
	PaymentMethod PaymentMethod
	CustomerID    int64
	AddressID     *int64
	Rule          pricing.DeliveryRule
	Now           time.Time
}

// Build assembles the payload and the totals it was computed from.
func Build(d Draft) (Payload, pricing.Summary) {
	summary := pricing.Compute(d.Cart.PricingItems(), d.Rule, d.DeliveryType == Delivery)
	p := Payload{
		FechaPedido: d.Now.Format(dateLayout),
		Estado:      StatePending,
		TipoEnvio:   d.DeliveryType,
		FormaPago:   d.PaymentMethod,
		Total:       pricing.ToFloat(summary.Total),
		ClienteID:   d.CustomerID,
		Detalles:    make([]Line, 0, len(d.Cart.Lines)),
	}
	if d.DeliveryType == Delivery && d.AddressID != nil {
		id := *d.AddressID
		p.DomicilioID = &id
	}
	for _, l := range d.Cart.Lines {
		line := product.Match(l.Item,
			func(a product.Article) Line { return Line{ArticuloID: ref(a.ID)} },
			func(pr product.Promotion) Line { return Line{PromocionID: ref(pr.ID)} },
		)
		line.Cantidad = l.Quantity
		line.SubTotal = pricing.ToFloat(l.Subtotal)
		p.Detalles = append(p.Detalles, line)
	}
	return p, summary
}

func ref(id int64) *int64 { return &id }

// Validate checks the payload before it leaves the service.
func (p Payload) Validate() error {
	fields := map[string]string{}
	if err := common.Validator().Struct(p); err != nil {
		fields = common.FieldErrors(err)
	}
	if p.FormaPago == Cash && p.TipoEnvio == Delivery {
		fields["formaPago"] = "CASH is only accepted for PICKUP"
	}
	if len(fields) == 0 {
		return nil
	}
	return common.NewAppError("VALIDATION_FAILED", "order payload is invalid", http.StatusUnprocessableEntity, nil).
		WithDetails(fields)
}
