package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
)

// Handler serves the order confirmation view.
type Handler struct {
	Client *Client
}

// Get handles GET /api/v1/orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Client == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order client not configured", nil)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Client.Get(r.Context(), id)
	if err != nil {
		var se *backend.StatusError
		switch {
		case errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusForbidden):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		case errors.Is(err, backend.ErrUnavailable):
			common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "orders are unavailable, try again", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		}
		return
	}
	common.Data(w, http.StatusOK, ord)
}
