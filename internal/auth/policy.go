package auth

import (
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ClaimPolicy lists the registered claims a backend token must satisfy.
// Empty fields are not checked.
type ClaimPolicy struct {
	Issuer   string
	Audience string
	Skew     time.Duration
	Required []string
}

// Check validates exp, nbf and iat against now plus the configured claims.
func (p ClaimPolicy) Check(tok jwt.Token, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	opts := []jwt.ValidateOption{jwt.WithClock(jwt.ClockFunc(func() time.Time { return now }))}
	if p.Skew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(p.Skew))
	}
	if p.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.Issuer))
	}
	if p.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.Audience))
	}
	for _, name := range p.Required {
		opts = append(opts, jwt.WithRequiredClaim(name))
	}
	return jwt.Validate(tok, opts...)
}
