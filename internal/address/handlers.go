package address

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
)

// Handler exposes the address book of the authenticated customer.
type Handler struct {
	Service *Service
}

// List handles GET /api/v1/addresses.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "address service not configured", nil)
		return
	}
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	addresses, err := h.Service.List(r.Context(), ident.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, addresses)
}

// Create handles POST /api/v1/addresses.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "address service not configured", nil)
		return
	}
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	var req Input
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	created, err := h.Service.Create(r.Context(), ident.ID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

// Localities handles GET /api/v1/addresses/localities.
func (h *Handler) Localities(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "address service not configured", nil)
		return
	}
	list, err := h.Service.Localities(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, list)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var se *backend.StatusError
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err, "")
	case errors.Is(err, backend.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "addresses are unavailable, try again", nil)
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "customer not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
