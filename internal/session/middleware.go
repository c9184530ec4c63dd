package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

// Cookie issues and reads the session cookie.
type Cookie struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

func (c Cookie) name() string {
	if strings.TrimSpace(c.Name) == "" {
		return "sid"
	}
	return c.Name
}

// Middleware makes sure every request carries a session id, issuing a new
// cookie when the incoming one is missing or malformed.
func (c Cookie) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if ck, err := r.Cookie(c.name()); err == nil {
			if parsed, err := uuid.Parse(ck.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		// refresh on every request so the cookie follows the idle window
		cookie := &http.Cookie{
			Name:     c.name(),
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: c.SameSite,
		}
		if c.MaxAge > 0 {
			cookie.MaxAge = int(c.MaxAge.Seconds())
		}
		http.SetCookie(w, cookie)
		obs.Annotate(r.Context(), "session_id", id)
		next.ServeHTTP(w, r.WithContext(common.WithSessionID(r.Context(), id)))
	})
}

// IDFrom returns the session id set by the middleware.
func IDFrom(ctx context.Context) string {
	return common.SessionID(ctx)
}
