package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter is a sliding window limiter over Redis sorted sets scored in milliseconds. Checkout
// submission and cart mutations share one limiter with scoped keys.
type Limiter struct {
	Client redis.UniversalClient
	Prefix string
	Now    func() time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow records a hit for key and reports whether it fits in the window.
// Rejected hits are not kept, so a client that backs off recovers once the
// oldest accepted hit leaves the window. reset is when that happens.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error) {
	now := l.now()
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	redisKey := l.Prefix + key
	member := uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, now.Add(window), err
	}

	reset = now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		reset = time.UnixMilli(int64(oldest[0].Score)).Add(window)
	}

	current := int(countCmd.Val())
	if current > max {
		if err := l.Client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return false, 0, reset, err
		}
		return false, 0, reset, nil
	}
	return true, max - current, reset, nil
}
