package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/payment"
)

func samplePayload() order.Payload {
	articleID := int64(12)
	return order.Payload{
		FechaPedido: "2026-05-04",
		Estado:      order.StatePending,
		TipoEnvio:   order.Pickup,
		FormaPago:   order.Gateway,
		Total:       30,
		ClienteID:   7,
		Detalles:    []order.Line{{Cantidad: 3, SubTotal: 30, ArticuloID: &articleID}},
	}
}

func backendClient(t *testing.T, h http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := backend.NewHTTPClient(backend.Options{Timeout: time.Second, BreakerMinRequests: 10})
	return backend.NewClient(srv.URL, hc, zerolog.Nop())
}

func TestParseStatus(t *testing.T) {
	require.Equal(t, payment.StatusApproved, payment.ParseStatus(" Approved "))
	require.Equal(t, payment.StatusInProcess, payment.ParseStatus("in_process"))
	require.True(t, payment.ParseStatus("pending").Pending())
	require.True(t, payment.ParseStatus("in_process").Pending())
	require.Equal(t, payment.StatusRejected, payment.ParseStatus("rejected"))
	require.Equal(t, payment.StatusUnknown, payment.ParseStatus("null"))
	require.Equal(t, payment.StatusUnknown, payment.ParseStatus(""))
}

func TestBackendGatewayReadyRequiresPublicKey(t *testing.T) {
	g := &payment.BackendGateway{Backend: &backend.Client{}}
	require.False(t, g.Ready())
	_, err := g.CreatePreference(context.Background(), samplePayload())
	require.ErrorIs(t, err, payment.ErrNotReady)

	g.PublicKey = "APP_USR-123"
	require.True(t, g.Ready())
}

func TestBackendGatewayCreatesPreference(t *testing.T) {
	client := backendClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pagos/preferencia", r.URL.Path)
		require.Equal(t, "https://shop.local/checkout/return", r.URL.Query().Get("backUrl"))
		var body order.Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, order.Gateway, body.FormaPago)
		_, _ = w.Write([]byte(`{"id":"pref-1","initPoint":"https://gateway.example/init?pref=pref-1"}`))
	})
	g := &payment.BackendGateway{Backend: client, PublicKey: "k", ReturnURL: "https://shop.local/checkout/return"}

	pref, err := g.CreatePreference(context.Background(), samplePayload())
	require.NoError(t, err)
	require.Equal(t, "pref-1", pref.ID)
	require.Equal(t, "https://gateway.example/init?pref=pref-1", pref.InitPoint)
}

func TestBackendGatewayRejectsRelativeInitPoint(t *testing.T) {
	client := backendClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pref-1","initPoint":"/relative"}`))
	})
	g := &payment.BackendGateway{Backend: client, PublicKey: "k"}
	_, err := g.CreatePreference(context.Background(), samplePayload())
	require.Error(t, err)
}

type stubOrders struct {
	calls int
}

func (s *stubOrders) Create(context.Context, order.Payload) (order.Created, error) {
	s.calls++
	return order.Created{ID: 41}, nil
}

func TestSandboxRoundTrip(t *testing.T) {
	orders := &stubOrders{}
	g := &payment.Sandbox{Orders: orders, Host: "http://shop.local/"}
	require.True(t, g.Ready())

	pref, err := g.CreatePreference(context.Background(), samplePayload())
	require.NoError(t, err)
	require.Equal(t, 1, orders.calls)
	require.Equal(t, "41", pref.ExternalReference)
	require.True(t, strings.HasPrefix(pref.InitPoint, "http://shop.local/sandbox/checkout/SANDBOX-"))

	r := chi.NewRouter()
	r.Get("/sandbox/checkout/{preferenceID}", payment.SandboxHandler{ReturnURL: "http://shop.local/api/v1/checkout/return"}.Checkout)

	init, err := url.Parse(pref.InitPoint)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, init.RequestURI()+"&status=rejected", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/api/v1/checkout/return", loc.Path)
	require.Equal(t, "rejected", loc.Query().Get("collection_status"))
	require.Equal(t, "41", loc.Query().Get("external_reference"))
}

func TestSandboxNotReadyWithoutOrders(t *testing.T) {
	var g *payment.Sandbox
	require.False(t, g.Ready())
}
