package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
)

type identityKey struct{}

// WithIdentity stores the authenticated identity on ctx.
func WithIdentity(ctx context.Context, ident session.Identity) context.Context {
	ctx = common.WithUserID(ctx, strconv.FormatInt(ident.ID, 10))
	ctx = common.WithRole(ctx, ident.Role)
	return context.WithValue(ctx, identityKey{}, ident)
}

// IdentityFrom returns the identity attached by the middleware.
func IdentityFrom(ctx context.Context) (session.Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(session.Identity)
	return ident, ok
}

// Middleware resolves the shopper identity. A valid bearer token wins and is
// persisted to the session block; otherwise the block saved earlier in the
// session is used, which is what carries the shopper across a payment redirect.
type Middleware struct {
	Verifier     *Verifier
	Store        *session.Store
	AccessCookie string
	Logger       zerolog.Logger
}

// Authenticate attaches the identity when one can be resolved. It never rejects.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(m.resolve(r)))
	})
}

// RequireAuth rejects requests without an active identity. It expects
// Authenticate to have run.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFrom(r.Context())
		if !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		if !ident.Active() {
			common.JSONError(w, http.StatusForbidden, "ACCOUNT_DEACTIVATED", "account is deactivated", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) resolve(r *http.Request) context.Context {
	ctx := r.Context()
	sid := session.IDFrom(ctx)
	if token := m.extractToken(r); token != "" && m.Verifier != nil {
		ident, err := m.Verifier.Parse(token)
		if err == nil {
			if m.Store != nil && sid != "" {
				if err := m.Store.SaveIdentity(ctx, sid, ident); err != nil {
					m.Logger.Warn().Err(err).Msg("session_identity_save_failed")
				}
			}
			return backend.WithToken(WithIdentity(ctx, ident), token)
		}
		m.Logger.Debug().Err(err).Msg("access_token_rejected")
	}
	if m.Store == nil || sid == "" {
		return ctx
	}
	ident, ok, err := m.Store.Identity(ctx, sid)
	if err != nil {
		m.Logger.Warn().Err(err).Msg("session_identity_load_failed")
		return ctx
	}
	if !ok {
		return ctx
	}
	return WithIdentity(ctx, ident)
}

func (m Middleware) extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.AccessCookie != "" {
		if cookie, err := r.Cookie(m.AccessCookie); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
