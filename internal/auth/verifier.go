package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// Claim names carried by backend-issued access tokens.
const (
	ClaimRole        = "rol"
	ClaimUsername    = "username"
	ClaimEmail       = "email"
	ClaimPhone       = "telefono"
	ClaimDeactivated = "fechaBaja"
)

// Verifier validates backend-issued access tokens and extracts the identity.
type Verifier struct {
	Secret    []byte
	Algorithm jwa.SignatureAlgorithm
	Policy    ClaimPolicy
	Now       func() time.Time
}

// NewVerifier builds an HS256 verifier.
func NewVerifier(secret, issuer, audience string) *Verifier {
	return &Verifier{
		Secret:    []byte(secret),
		Algorithm: jwa.HS256,
		Policy: ClaimPolicy{
			Issuer:   issuer,
			Audience: audience,
			Skew:     30 * time.Second,
			Required: []string{jwt.SubjectKey},
		},
	}
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func unauthorized(err error) error {
	return common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
}

// Parse validates token and returns the identity it describes.
func (v *Verifier) Parse(token string) (session.Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return session.Identity{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return session.Identity{}, unauthorized(err)
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return session.Identity{}, unauthorized(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.Secret), jwt.WithValidate(false))
	if err != nil {
		return session.Identity{}, unauthorized(err)
	}
	if err := v.Policy.Check(parsed, v.now()); err != nil {
		return session.Identity{}, unauthorized(err)
	}
	id, err := strconv.ParseInt(parsed.Subject(), 10, 64)
	if err != nil || id <= 0 {
		return session.Identity{}, unauthorized(fmt.Errorf("subject %q is not a customer id", parsed.Subject()))
	}
	return session.Identity{
		ID:          id,
		Role:        stringClaim(parsed, ClaimRole),
		Username:    stringClaim(parsed, ClaimUsername),
		Email:       stringClaim(parsed, ClaimEmail),
		Phone:       stringClaim(parsed, ClaimPhone),
		Deactivated: boolClaim(parsed, ClaimDeactivated),
	}, nil
}

func stringClaim(tok jwt.Token, name string) string {
	raw, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}

// boolClaim accepts a boolean or a non-empty deactivation date.
func boolClaim(tok jwt.Token, name string) bool {
	raw, ok := tok.Get(name)
	if !ok || raw == nil {
		return false
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	default:
		return false
	}
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		switch {
		case alg == "":
			return "", errors.New("auth: token missing algorithm")
		case alg == jwa.NoSignature:
			return "", errors.New("auth: token uses none algorithm")
		case algorithm == "":
			algorithm = alg
		case algorithm != alg:
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}
