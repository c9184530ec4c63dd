package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

// Rule is a per-shopper budget of Max requests per Window. Scope keeps the
// budgets of different routes apart on a shared limiter.
type Rule struct {
	Scope  string
	Window time.Duration
	Max    int

	Limiter Limiter
	// OnError observes limiter failures; the request is let through.
	OnError func(error)
}

// Key identifies the shopper by session, or by client address before a
// session cookie exists.
func (rule Rule) Key(r *http.Request) string {
	if id := common.SessionID(r.Context()); id != "" {
		return rule.Scope + ":sid:" + id
	}
	return rule.Scope + ":ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Middleware answers 429 RATE_LIMITED once the budget is spent.
func (rule Rule) Middleware(next http.Handler) http.Handler {
	limit := strconv.Itoa(max(rule.Max, 0))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt, err := rule.Limiter.Allow(r.Context(), rule.Key(r), rule.Window, rule.Max)
		if err != nil {
			if rule.OnError != nil {
				rule.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		obs.Inc(obs.RateLimitedTotal, rule.Scope)
		wait := math.Ceil(time.Until(resetAt).Seconds())
		h.Set("Retry-After", strconv.Itoa(int(max(wait, 0))))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, slow down", nil)
	})
}
