package checkout

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/toko-storefront/internal/address"
	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/payment"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/stock"
)

// AddressFinder checks that an address belongs to the customer.
type AddressFinder interface {
	Find(ctx context.Context, customerID, addressID int64) (address.Address, error)
}

// Handler exposes the checkout flow over HTTP.
type Handler struct {
	Sessions  *Sessions
	Machine   Machine
	Submitter *Submitter
	Addresses AddressFinder
	Rule      pricing.DeliveryRule
	Currency  string
}

type deliveryRequest struct {
	DeliveryType order.DeliveryType `json:"deliveryType" validate:"required,oneof=DELIVERY PICKUP"`
	AddressID    *int64             `json:"addressId" validate:"omitempty,gt=0"`
}

type paymentRequest struct {
	PaymentMethod order.PaymentMethod `json:"paymentMethod" validate:"required,oneof=CASH GATEWAY"`
}

// Enter handles POST /api/v1/checkout.
func (h *Handler) Enter(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	_, authenticated := identity(r)
	if _, err := sess.Enter(h.Machine, authenticated); err != nil {
		h.writeError(w, sess, err)
		return
	}
	h.respond(w, r, http.StatusOK, sess)
}

// Get handles GET /api/v1/checkout.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, ok := sess.Draft(); !ok {
		h.writeError(w, sess, ErrNotInCheckout)
		return
	}
	h.respond(w, r, http.StatusOK, sess)
}

// Cancel handles DELETE /api/v1/checkout.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// SelectDelivery handles PUT /api/v1/checkout/delivery.
func (h *Handler) SelectDelivery(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req deliveryRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if req.DeliveryType == order.Delivery && req.AddressID != nil && h.Addresses != nil {
		ident, ok := identity(r)
		if !ok {
			h.writeError(w, sess, ErrAuthRequired)
			return
		}
		if _, err := h.Addresses.Find(r.Context(), ident.ID, *req.AddressID); err != nil {
			h.writeError(w, sess, err)
			return
		}
	}
	if _, err := sess.SelectDelivery(h.Machine, req.DeliveryType, req.AddressID); err != nil {
		h.writeError(w, sess, err)
		return
	}
	h.respond(w, r, http.StatusOK, sess)
}

// SelectPayment handles PUT /api/v1/checkout/payment.
func (h *Handler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if _, err := sess.SelectPayment(h.Machine, req.PaymentMethod); err != nil {
		h.writeError(w, sess, err)
		return
	}
	h.respond(w, r, http.StatusOK, sess)
}

// Next handles POST /api/v1/checkout/next.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	_, authenticated := identity(r)
	if _, err := sess.Next(h.Machine, authenticated); err != nil {
		h.writeError(w, sess, err)
		return
	}
	h.respond(w, r, http.StatusOK, sess)
}

// Previous handles POST /api/v1/checkout/previous.
func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	_, authenticated := identity(r)
	_, outcome, err := sess.Previous(h.Machine, authenticated)
	if err != nil {
		h.writeError(w, sess, err)
		return
	}
	if outcome == ExitedToCart {
		common.Data(w, http.StatusOK, map[string]any{"outcome": outcome, "redirect": "/carrito"})
		return
	}
	h.respond(w, r, http.StatusOK, sess)
}

// Submit handles POST /api/v1/checkout/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	ident, _ := identity(r)
	res, err := h.Submitter.Submit(r.Context(), sess, ident)
	if err != nil {
		h.writeError(w, sess, err)
		return
	}
	status := http.StatusCreated
	if res.PaymentMethod == order.Gateway {
		status = http.StatusAccepted
	}
	common.Data(w, status, res)
}

// Return handles GET /api/v1/checkout/return?collection_status=&external_reference=.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	res, err := h.Submitter.Resume(r.Context(), sess, q.Get("collection_status"), q.Get("external_reference"))
	if err != nil {
		h.writeError(w, sess, err)
		return
	}
	switch res.Outcome {
	case ResumeApproved:
		common.Data(w, http.StatusOK, res)
	case ResumePending:
		common.JSON(w, http.StatusAccepted, map[string]any{
			"data": res,
			"notice": common.ErrorBody{
				Code:    "PAYMENT_PENDING",
				Message: "the payment is still being processed",
			},
		})
	default:
		common.JSONError(w, http.StatusPaymentRequired, "PAYMENT_REJECTED",
			"the payment was not approved, choose another payment method", res)
	}
}

type view struct {
	Draft            Draft           `json:"draft"`
	Summary          pricing.Summary `json:"summary"`
	Currency         string          `json:"currency"`
	TotalItems       int             `json:"totalItems"`
	StockErrors      []string        `json:"stockErrors"`
	GatewayReady     bool            `json:"gatewayReady"`
	GatewayInitiated bool            `json:"gatewayInitiated"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, sess *Session) {
	draft, _ := sess.Draft()
	snap := sess.Cart().Snapshot()
	stockErrors := sess.StockErrors()
	if stockErrors == nil {
		stockErrors = []string{}
	}
	v := view{
		Draft:        draft,
		Summary:      pricing.Compute(snap.PricingItems(), h.Rule, draft.DeliveryType == order.Delivery),
		Currency:     h.Currency,
		TotalItems:   snap.TotalItems,
		StockErrors:  stockErrors,
		GatewayReady: h.Machine.Gateway != nil && h.Machine.Gateway.Ready(),
	}
	if h.Submitter != nil && h.Submitter.Store != nil {
		v.GatewayInitiated, _ = h.Submitter.Store.GatewayInitiated(r.Context(), sess.ID)
	}
	obs.Annotate(r.Context(), "checkout_step", string(draft.Step))
	common.Data(w, status, v)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	if h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sessions not configured", nil)
		return nil, false
	}
	sess, err := h.Sessions.Get(r.Context())
	if err != nil {
		common.WriteError(w, err, "unable to resolve session")
		return nil, false
	}
	return sess, true
}

func identity(r *http.Request) (session.Identity, bool) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok || !ident.Active() {
		return session.Identity{}, false
	}
	return ident, true
}

func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := common.DecodeJSON(r, dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return false
	}
	if err := common.Validator().Struct(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request payload", common.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, sess *Session, err error) {
	var stockErr *StockError
	var statusErr *backend.StatusError
	switch {
	case errors.As(err, &stockErr):
		if stockErr.Unavailable {
			common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", stock.UnavailableMessage, stockErr.Messages)
			return
		}
		common.JSONError(w, http.StatusConflict, "STOCK_SHORTAGE", "some items are not available in the requested quantity", stockErr.Messages)
	case errors.Is(err, ErrStockBlocked):
		common.JSONError(w, http.StatusConflict, "STEP_BLOCKED", "stock errors must be resolved first", map[string]any{
			"reason":      reason(err),
			"stockErrors": sess.StockErrors(),
		})
	case errors.Is(err, ErrAuthRequired), errors.Is(err, ErrDeliveryTypeRequired), errors.Is(err, ErrAddressRequired),
		errors.Is(err, ErrPaymentMethodRequired), errors.Is(err, ErrCashRequiresPickup),
		errors.Is(err, ErrGatewayNotReady), errors.Is(err, ErrTerminal):
		common.JSONError(w, http.StatusConflict, "STEP_BLOCKED", err.Error(), map[string]any{"reason": reason(err)})
	case errors.Is(err, payment.ErrNotReady):
		common.JSONError(w, http.StatusConflict, "STEP_BLOCKED", err.Error(), map[string]any{"reason": "gateway"})
	case errors.Is(err, ErrNotInCheckout):
		common.JSONError(w, http.StatusConflict, "CHECKOUT_NOT_STARTED", "checkout has not been started", nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusConflict, "EMPTY_CART", "the cart is empty", nil)
	case errors.Is(err, ErrWrongStep), errors.Is(err, ErrNotConfirmed):
		common.JSONError(w, http.StatusConflict, "WRONG_STEP", err.Error(), nil)
	case errors.Is(err, ErrSubmitInProgress):
		common.JSONError(w, http.StatusConflict, "SUBMIT_IN_PROGRESS", "the order is already being submitted", nil)
	case errors.Is(err, ErrPaymentInFlight):
		common.JSONError(w, http.StatusConflict, "PAYMENT_IN_FLIGHT", "a payment is already in progress for this cart", nil)
	case errors.Is(err, ErrNothingToResume):
		common.JSONError(w, http.StatusConflict, "NOTHING_TO_RESUME", "there is no payment to resume", nil)
	case errors.Is(err, address.ErrNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "address not found", map[string]string{"addressId": "does not belong to the customer"})
	case errors.Is(err, backend.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "the service is unavailable, try again", nil)
	case errors.Is(err, context.DeadlineExceeded):
		common.JSONError(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "the request timed out, try again", nil)
	case errors.As(err, &statusErr):
		common.JSONError(w, http.StatusUnprocessableEntity, "ORDER_REJECTED", "the order was rejected", map[string]int{"upstreamStatus": statusErr.StatusCode})
	default:
		common.WriteError(w, err, "unable to process checkout")
	}
}
