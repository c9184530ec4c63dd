package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-storefront/internal/common"
)

const defaultCSRFName = "X-CSRF-Token"

// CSRF protects the cookie-bound storefront session using the double-submit technique.
// Safe requests receive a token cookie when none is present; mutating requests must echo it in a header.
type CSRF struct {
	Header string
	Cookie string
	Secure bool
	// Skip exempts paths such as the sandbox return redirect.
	Skip func(r *http.Request) bool
}

func (c CSRF) names() (string, string) {
	header := strings.TrimSpace(c.Header)
	if header == "" {
		header = defaultCSRFName
	}
	cookie := strings.TrimSpace(c.Cookie)
	if cookie == "" {
		cookie = header
	}
	return header, cookie
}

// Middleware enforces that non-idempotent requests include a CSRF token header matching a cookie.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName, cookieName := c.names()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if safeMethod(r.Method) {
			if cookie, err := r.Cookie(cookieName); err != nil || strings.TrimSpace(cookie.Value) == "" {
				c.issue(w, cookieName)
			}
			next.ServeHTTP(w, r)
			return
		}
		if c.Skip != nil && c.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		if token == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "missing csrf token", nil)
			return
		}

		cookie, err := r.Cookie(cookieName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "missing csrf cookie", nil)
			return
		}

		if subtleConstantTimeCompare(token, cookie.Value) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "invalid csrf token", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// The cookie stays readable by scripts so the storefront can echo it.
func (c CSRF) issue(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    uuid.NewString(),
		Path:     "/",
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

func subtleConstantTimeCompare(a, b string) int {
	if len(a) != len(b) {
		return 0
	}
	if len(a) == 0 {
		return 1
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b))
}
