package session

import (
	"context"
	"fmt"

	"github.com/noah-isme/toko-storefront/internal/cache"
)

// Store keeps the durable per-session keys.
type Store struct {
	cache *cache.JSON
}

// NewStore wraps a JSON cache whose TTL bounds how long state survives.
func NewStore(c *cache.JSON) *Store {
	return &Store{cache: c}
}

func authKey(id string) string    { return fmt.Sprintf("sess:%s:auth", id) }
func gatewayKey(id string) string { return fmt.Sprintf("sess:%s:gateway_initiated", id) }
func pendingKey(id string) string { return fmt.Sprintf("sess:%s:pending_order", id) }

// SaveIdentity stores the authenticated-session block.
func (s *Store) SaveIdentity(ctx context.Context, id string, ident Identity) error {
	return s.cache.SetJSON(ctx, authKey(id), ident)
}

// Identity loads the authenticated-session block.
func (s *Store) Identity(ctx context.Context, id string) (Identity, bool, error) {
	var ident Identity
	ok, err := s.cache.GetJSON(ctx, authKey(id), &ident)
	return ident, ok, err
}

// ClearIdentity removes the authenticated-session block.
func (s *Store) ClearIdentity(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, authKey(id))
}

// SetGatewayInitiated marks a payment redirect as in flight.
func (s *Store) SetGatewayInitiated(ctx context.Context, id string) error {
	return s.cache.SetJSON(ctx, gatewayKey(id), true)
}

// GatewayInitiated reports whether a payment redirect is in flight.
func (s *Store) GatewayInitiated(ctx context.Context, id string) (bool, error) {
	var flag bool
	ok, err := s.cache.GetJSON(ctx, gatewayKey(id), &flag)
	return ok && flag, err
}

// ClearGatewayInitiated removes the redirect marker.
func (s *Store) ClearGatewayInitiated(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, gatewayKey(id))
}

// SavePendingOrder stores the draft snapshot used to resume after a redirect.
func (s *Store) SavePendingOrder(ctx context.Context, id string, draft any) error {
	return s.cache.SetJSON(ctx, pendingKey(id), draft)
}

// LoadPendingOrder decodes the pending draft into dst.
func (s *Store) LoadPendingOrder(ctx context.Context, id string, dst any) (bool, error) {
	return s.cache.GetJSON(ctx, pendingKey(id), dst)
}

// ClearPendingOrder removes the pending draft.
func (s *Store) ClearPendingOrder(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, pendingKey(id))
}
