package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/common"
)

func withSession(sid string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/submit", nil)
	if sid == "" {
		return req
	}
	return req.WithContext(common.WithSessionID(req.Context(), sid))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRuleEnforcesBudgetPerSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rule := Rule{Scope: "submit", Window: time.Second, Max: 1, Limiter: Limiter{Client: client, Prefix: "ratelimit:"}}
	h := rule.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	require.Equal(t, http.StatusOK, serve(h, withSession("sid-1")).Code)

	rec := serve(h, withSession("sid-1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")

	require.Equal(t, http.StatusOK, serve(h, withSession("sid-2")).Code, "each session has its own budget")
}

func TestRuleKeyFallsBackToClientIP(t *testing.T) {
	rule := Rule{Scope: "stock"}
	req := withSession("")
	req.RemoteAddr = "10.0.0.7:4312"
	require.Equal(t, "stock:ip:10.0.0.7", rule.Key(req))
	require.Equal(t, "stock:sid:abc", rule.Key(withSession("abc")))
}

func TestRuleLetsRequestsThroughWhenLimiterFails(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	var seen error
	rule := Rule{Scope: "err", Window: time.Second, Max: 1, Limiter: Limiter{Client: client}, OnError: func(err error) { seen = err }}
	h := rule.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	require.Equal(t, http.StatusNoContent, serve(h, withSession("sid")).Code)
	require.Error(t, seen)
}
