package resilience_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/resilience"
)

func TestHTTPClientPassesClientErrorsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	cl := resilience.HTTPClient{Client: srv.Client(), Breaker: breaker, Timeout: time.Second}
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"a":1}`))
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, `{"a":1}`, string(body))
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestHTTPClientServerErrorOpensBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	cl := resilience.HTTPClient{Client: srv.Client(), Breaker: breaker}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := cl.Do(context.Background(), req)
	var upstream *resilience.UpstreamError
	require.True(t, errors.As(err, &upstream))
	require.Equal(t, http.StatusBadGateway, upstream.StatusCode)

	_, err = cl.Do(context.Background(), req)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, int32(1), calls.Load())
}

func TestHTTPClientRetriesWithReplayedBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	cl := resilience.HTTPClient{
		Client:      srv.Client(),
		Breaker:     resilience.NewBreaker(5, 0.9, time.Minute).WithTarget("replay"),
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
		Retryable:   func(*http.Request) bool { return true },
	}
	req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("payload"))
	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "payload", string(body))
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.RetriesTotal.WithLabelValues("replay")))
}

func TestHTTPClientNeverRetriesUnsafeMethods(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cl := resilience.HTTPClient{
		Client:      srv.Client(),
		Breaker:     resilience.NewBreaker(10, 0.9, time.Minute),
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		Retryable:   resilience.SafeMethods,
	}

	post, _ := http.NewRequest(http.MethodPost, srv.URL+"/pedidos", strings.NewReader(`{}`))
	_, err := cl.Do(context.Background(), post)
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())

	get, _ := http.NewRequest(http.MethodGet, srv.URL+"/articulos/1", nil)
	_, err = cl.Do(context.Background(), get)
	require.Error(t, err)
	require.Equal(t, int32(4), calls.Load())
}
