package cart

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/product"
)

// View is the part of a live session the cart endpoints need.
type View interface {
	Cart() *Store
	StockErrors() []string
}

// Sessions resolves the live session of a request.
type Sessions interface {
	Lookup(r *http.Request) (View, error)
}

// ItemSource loads purchasable items by key.
type ItemSource interface {
	Item(ctx context.Context, key product.Key) (product.Item, error)
}

// Handler wires the session cart to HTTP.
type Handler struct {
	Sessions Sessions
	Items    ItemSource
	Currency string
	Now      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Get returns the cart snapshot and the latest stock validation result.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, view)
}

// AddItem adds a purchasable item, merging with an existing line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	if h.Items == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	var payload struct {
		Kind     product.Kind `json:"kind"`
		ID       int64        `json:"id"`
		Quantity int          `json:"quantity"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if !payload.Kind.Valid() || payload.ID <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "kind and id are required", nil)
		return
	}
	key := product.Key{Kind: payload.Kind, ID: payload.ID}
	if payload.Quantity > MaxQuantity || view.Cart().GetItemQuantity(key)+payload.Quantity > MaxQuantity {
		quantityLimit(w)
		return
	}
	item, err := h.Items.Item(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if promo, ok := item.(product.Promotion); ok && !promo.ActiveAt(h.now()) {
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMOTION_INACTIVE", "promotion is not available today", nil)
		return
	}
	view.Cart().AddToCart(item, payload.Quantity)
	h.respond(w, http.StatusOK, view)
}

// UpdateItem sets the quantity of a line; zero removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	key, err := product.ParseKey(chi.URLParam(r, "lineId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line id", nil)
		return
	}
	var payload struct {
		Quantity *int `json:"quantity"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil || payload.Quantity == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "quantity is required", nil)
		return
	}
	if *payload.Quantity > MaxQuantity {
		quantityLimit(w)
		return
	}
	if !view.Cart().IsInCart(key) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "line not in cart", nil)
		return
	}
	view.Cart().UpdateQuantity(key, *payload.Quantity)
	h.respond(w, http.StatusOK, view)
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	key, err := product.ParseKey(chi.URLParam(r, "lineId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line id", nil)
		return
	}
	view.Cart().RemoveFromCart(key)
	h.respond(w, http.StatusOK, view)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	view.Cart().ClearCart()
	h.respond(w, http.StatusOK, view)
}

func quantityLimit(w http.ResponseWriter) {
	common.JSONError(w, http.StatusUnprocessableEntity, "QUANTITY_LIMIT", "quantity exceeds the per-line limit", map[string]int{"max": MaxQuantity})
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) (View, bool) {
	if h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sessions not configured", nil)
		return nil, false
	}
	view, err := h.Sessions.Lookup(r)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return view, true
}

func (h *Handler) respond(w http.ResponseWriter, status int, view View) {
	snap := view.Cart().Snapshot()
	stockErrors := view.StockErrors()
	if stockErrors == nil {
		stockErrors = []string{}
	}
	common.Data(w, status, map[string]any{
		"lines":       snap.Lines,
		"totalItems":  snap.TotalItems,
		"totalAmount": snap.TotalAmount,
		"version":     snap.Version,
		"currency":    h.Currency,
		"stockErrors": stockErrors,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if common.IsAppError(err) {
		common.WriteError(w, err, "")
		return
	}
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not found", nil)
	case errors.Is(err, backend.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "catalog is unavailable, try again", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update cart", nil)
	}
}
