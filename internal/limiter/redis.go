package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the subset of *redis.Client the store needs.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

// Redis is a fixed-window counter store backed by INCR + EXPIRE.
//
// INCR and EXPIRE are separate round trips. Two first hits racing in the same
// window may both set the expiry; the limit stays approximate, which is acceptable.
type Redis struct {
	rdb Counter
}

// NewRedis constructs a Redis-backed store over a client such as *redis.Client.
func NewRedis(rdb Counter) *Redis { return &Redis{rdb: rdb} }

// Hit implements Store.
func (s *Redis) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	ttl, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	// go-redis reports -1 (no expiry) and -2 (no key) unscaled. A key without
	// expiry means the EXPIRE after the first INCR was lost.
	if ttl == -1 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}
	return count, ttl, nil
}
