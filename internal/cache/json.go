// Package cache stores JSON documents in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSON wraps Redis helpers for JSON payloads.
type JSON struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a cache helper. A zero ttl stores keys without expiry.
func New(client *redis.Client, ttl time.Duration) *JSON {
	return &JSON{client: client, ttl: ttl}
}

// TTL returns the configured expiry.
func (c *JSON) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *JSON) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *JSON) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Exists reports whether key is present.
func (c *JSON) Exists(ctx context.Context, key string) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

// Delete removes the keys.
func (c *JSON) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
