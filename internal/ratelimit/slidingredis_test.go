package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := Limiter{Client: client, Prefix: "ratelimit:", Now: func() time.Time { return now }}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "submit:sid:abc", window, max)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if remaining != max-(i+1) {
			t.Fatalf("unexpected remaining: %d", remaining)
		}
		now = now.Add(500 * time.Millisecond)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, "submit:sid:abc", window, max)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("expected third request to be rejected")
	}
	if remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", remaining)
	}
	if want := time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC); !reset.Equal(want) {
		t.Fatalf("expected reset at oldest hit + window %v, got %v", want, reset)
	}
	if n, _ := client.ZCard(ctx, "ratelimit:submit:sid:abc").Result(); n != int64(max) {
		t.Fatalf("expected rejected hit to be dropped, got %d members", n)
	}

	// first hit leaves the window, one slot frees up
	now = now.Add(1100 * time.Millisecond)
	allowed, _, _, err = limiter.Allow(ctx, "submit:sid:abc", window, max)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatal("expected request after the oldest hit expired to be allowed")
	}
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "submit:sid:abc", time.Minute, 3)
	if err != nil || !allowed || remaining != 3 {
		t.Fatalf("expected disabled limiter to allow, got allowed=%v remaining=%d err=%v", allowed, remaining, err)
	}
}
