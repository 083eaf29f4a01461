package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limit describes a fixed-window budget: at most Max requests per Window.
// The window is anchored to the key's own last request, not to wall-clock
// boundaries, matching the persisted counter semantics. This is not a true
// sliding window; a burst straddling a window boundary can exceed Max within
// one Window span.
type Limit struct {
	Max    int
	Window time.Duration
}

// Result is the outcome of a single rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds a denied caller should wait, floored
// at 1 so the header is never zero.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Store is the counter backend. Take records one request against key and
// reports whether it fit in the window. A Take must be atomic with respect to
// concurrent Takes on the same key.
type Store interface {
	Take(ctx context.Context, key string, limit Limit) (Result, error)
}

// Limiter wraps a Store with key construction.
type Limiter struct {
	store Store
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store}
}

// Key builds the canonical counter key for an (actor, action) pair.
func Key(action, actorID string) string {
	return fmt.Sprintf("rate_limit:%s:%s", action, actorID)
}

// Check records one request for action by actorID and returns the decision.
func (l *Limiter) Check(ctx context.Context, action, actorID string, limit Limit) (Result, error) {
	return l.store.Take(ctx, Key(action, actorID), limit)
}
