package backend_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/backend"
)

func newClient(t *testing.T, h http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := backend.NewHTTPClient(backend.Options{
		Timeout:             time.Second,
		BreakerMinRequests:  1,
		BreakerFailureRatio: 0.5,
		BreakerOpenFor:      time.Minute,
	})
	return backend.NewClient(srv.URL+"/", hc, zerolog.Nop())
}

func TestDoDecodesSuccess(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pedidos", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":42}`))
	})
	var out struct {
		ID int64 `json:"id"`
	}
	ctx := backend.WithToken(context.Background(), "tok")
	require.NoError(t, cl.Do(ctx, http.MethodPost, "/pedidos", map[string]int{"a": 1}, &out))
	require.Equal(t, int64(42), out.ID)
}

func TestDoReturnsStatusError(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"sin stock"}`))
	})
	err := cl.Do(context.Background(), http.MethodPost, "/x", nil, nil)
	var se *backend.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusConflict, se.StatusCode)
	require.JSONEq(t, `{"message":"sin stock"}`, string(se.Body))
	require.True(t, cl.Healthy())
}

func TestDoMapsServerErrorsToUnavailable(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := cl.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.ErrorIs(t, err, backend.ErrUnavailable)
	require.False(t, cl.Healthy())

	err = cl.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestDoReturnsContextError(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cl.Do(ctx, http.MethodGet, "/x", nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, cl.Healthy())
}
