package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/product"
)

// Handler exposes item lookups used by the storefront product pages.
type Handler struct {
	Service *Service
}

// Item returns one purchasable item by its key, e.g. /catalog/items/promotion:3.
func (h *Handler) Item(w http.ResponseWriter, r *http.Request) {
	key, err := product.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item key", nil)
		return
	}
	item, err := h.Service.Item(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, product.Envelope{Item: item})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not found", nil)
	case errors.Is(err, backend.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "catalog is unavailable, try again", nil)
	default:
		common.WriteError(w, err, "unable to load item")
	}
}
