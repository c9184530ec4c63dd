package address_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/address"
	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/session"
)

func newService(t *testing.T, h http.HandlerFunc) *address.Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := backend.NewHTTPClient(backend.Options{Timeout: time.Second, BreakerMinRequests: 10})
	return &address.Service{Backend: backend.NewClient(srv.URL, hc, zerolog.Nop())}
}

func TestListAndFind(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/clientes/7/domicilios", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":4,"calle":"San Martin","numero":120,"cp":5500,"localidad":{"id":1,"nombre":"Mendoza"}}]`))
	})
	list, err := svc.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Mendoza", list[0].Localidad.Nombre)

	found, err := svc.Find(context.Background(), 7, 4)
	require.NoError(t, err)
	require.Equal(t, 120, found.Numero)

	_, err = svc.Find(context.Background(), 7, 5)
	require.ErrorIs(t, err, address.ErrNotFound)
}

func TestCreateValidatesBeforeCallingBackend(t *testing.T) {
	called := false
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	_, err := svc.Create(context.Background(), 7, address.Input{Calle: " ", Numero: 0})
	require.Error(t, err)
	require.False(t, called)
}

func TestCreateHandler(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Belgrano", body["calle"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9,"calle":"Belgrano","numero":55,"cp":5501,"localidad":{"id":2}}`))
	})
	h := &address.Handler{Service: svc}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/addresses",
		strings.NewReader(`{"calle":"Belgrano","numero":55,"cp":5501,"localidad":{"id":2}}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), session.Identity{ID: 7, Role: "CLIENTE"}))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":9`)
}

func TestHandlerRequiresIdentity(t *testing.T) {
	h := &address.Handler{Service: &address.Service{}}
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvalidPayloadReturnsFieldErrors(t *testing.T) {
	h := &address.Handler{Service: newService(t, func(http.ResponseWriter, *http.Request) {})}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/addresses", strings.NewReader(`{"calle":"X","numero":1,"cp":0,"localidad":{"id":0}}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), session.Identity{ID: 7}))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
	require.Contains(t, rec.Body.String(), `"cp"`)
}
