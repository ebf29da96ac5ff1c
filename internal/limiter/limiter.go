// Package limiter implements fixed-window request rate limiting on top of a shared
// counter store. Store failures never block callers: the limiter fails open.
package limiter

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// KeyPrefix namespaces every counter key.
const KeyPrefix = "rate_limit:"

// Store counts hits per key within a fixed window.
type Store interface {
	// Hit increments the counter for key, starting a new window of the given length
	// when the counter is fresh, and returns the new count and the time left in the window.
	// A non-positive ttl means the store could not report it.
	Hit(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Result is the outcome of a single rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// ResetAtMillis returns the reset time as epoch milliseconds.
func (r Result) ResetAtMillis() int64 { return r.ResetAt.UnixMilli() }

// RetryAfter is the time until the window resets, never negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter applies fixed-window limits using a Store.
type Limiter struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New constructs a Limiter. A nil logger is replaced by a no-op logger.
func New(store Store, log *zap.Logger, opts ...Option) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Limiter{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit counts one request for identifier and reports whether it fits in the
// current window. Non-positive limit or window disables limiting.
func (l *Limiter) Limit(ctx context.Context, identifier string, limit int, window time.Duration) Result {
	now := l.now()
	open := Result{Allowed: true, Limit: limit, Remaining: max(limit, 0), ResetAt: now.Add(window)}
	if limit <= 0 || window <= 0 || l.store == nil {
		return open
	}

	count, ttl, err := l.store.Hit(ctx, KeyPrefix+identifier, window)
	if err != nil {
		l.log.Warn("rate limiter store unavailable, allowing request",
			zap.String("identifier", identifier),
			zap.Error(err),
		)
		return open
	}

	if ttl <= 0 || ttl > window {
		ttl = window
	}
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: int(remaining),
		ResetAt:   now.Add(ttl),
	}
}

// LimitPreset is Limit with a named preset.
func (l *Limiter) LimitPreset(ctx context.Context, identifier string, p Preset) Result {
	return l.Limit(ctx, identifier, p.Limit, p.Window)
}
