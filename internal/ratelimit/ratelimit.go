// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Store increments the counter for key and reports the count within the
// current window and the time until that window resets.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, reset time.Duration, err error)
}

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewLimiter(store Store, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, limit: limit, window: window, logger: logger.With("component", "ratelimit")}
}

// Check records a request for key. Store failures allow the request.
func (l *Limiter) Check(ctx context.Context, key string) Decision {
	count, reset, err := l.store.Hit(ctx, key, l.window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request", "key", key, "error", err)
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}
	}

	d := Decision{Limit: l.limit, Allowed: count <= int64(l.limit)}
	if remaining := int64(l.limit) - count; remaining > 0 {
		d.Remaining = int(remaining)
	}
	if !d.Allowed {
		d.RetryAfter = reset
	}
	return d
}
