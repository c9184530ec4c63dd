package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
)

// OrderCreator places the order a sandbox preference refers to.
type OrderCreator interface {
	Create(ctx context.Context, p order.Payload) (order.Created, error)
}

// Sandbox is a local gateway for development. It places the order directly and
// returns a hosted page served by SandboxHandler that bounces back to the
// storefront with the chosen collection status.
type Sandbox struct {
	Orders OrderCreator
	Host   string
	Logger zerolog.Logger
}

// Name implements Gateway.
func (s *Sandbox) Name() string { return "sandbox" }

// Ready implements Gateway.
func (s *Sandbox) Ready() bool { return s != nil && s.Orders != nil }

// CreatePreference implements Gateway.
func (s *Sandbox) CreatePreference(ctx context.Context, p order.Payload) (Preference, error) {
	if !s.Ready() {
		return Preference{}, ErrNotReady
	}
	created, err := s.Orders.Create(ctx, p)
	if err != nil {
		obs.Inc(obs.PaymentPreferenceTotal, s.Name(), "error")
		return Preference{}, err
	}
	id := "SANDBOX-" + uuid.NewString()
	ref := strconv.FormatInt(created.ID, 10)
	q := url.Values{"external_reference": {ref}}
	obs.Inc(obs.PaymentPreferenceTotal, s.Name(), "ok")
	s.Logger.Info().Str("preference_id", id).Str("external_reference", ref).Msg("payment_preference_created")
	return Preference{
		ID:                id,
		InitPoint:         fmt.Sprintf("%s/sandbox/checkout/%s?%s", strings.TrimRight(s.host(), "/"), id, q.Encode()),
		ExternalReference: ref,
	}, nil
}

func (s *Sandbox) host() string {
	if h := strings.TrimSpace(s.Host); h != "" {
		return h
	}
	return "http://localhost:8080"
}

// SandboxHandler plays the hosted checkout page of the sandbox gateway.
type SandboxHandler struct {
	ReturnURL string
}

// Checkout handles GET /sandbox/checkout/{preferenceID}?external_reference=&status=.
// status defaults to approved.
func (h SandboxHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "preferenceID") == "" || h.ReturnURL == "" {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown preference", nil)
		return
	}
	status := ParseStatus(r.URL.Query().Get("status"))
	if status == StatusUnknown {
		status = StatusApproved
	}
	target, err := url.Parse(h.ReturnURL)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "invalid return url", nil)
		return
	}
	q := target.Query()
	q.Set("collection_status", string(status))
	q.Set("external_reference", r.URL.Query().Get("external_reference"))
	q.Set("preference_id", chi.URLParam(r, "preferenceID"))
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
