package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/surgeonmatch/surgeonmatch/internal/gateway/auth"
)

// CounterStore is the persistent counter backend. Increment must be atomic
// and return the post-increment value; the TTL applies only when the
// increment created the key.
type CounterStore interface {
	Count(ctx context.Context, key string) (int64, error)
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is the number of seconds until the current window ends.
	Reset int
	// Window is the accounting period length in seconds.
	Window int
}

// Limiter enforces fixed tumbling windows per (identity, endpoint). Window
// boundaries are aligned to multiples of the period, so a burst straddling a
// boundary can admit up to twice the limit across the two windows; that is
// the intended tradeoff, not a bug to fix.
type Limiter struct {
	store         CounterStore
	defaultLimit  int
	defaultPeriod time.Duration

	now func() time.Time
}

func New(store CounterStore, defaultLimit int, defaultPeriod time.Duration) *Limiter {
	return &Limiter{
		store:         store,
		defaultLimit:  defaultLimit,
		defaultPeriod: defaultPeriod,
		now:           time.Now,
	}
}

// Check charges one request for the identity on the given endpoint and
// reports whether it is admitted. Expired windows are simply absent keys;
// they are never reset in place.
func (l *Limiter) Check(ctx context.Context, identity *auth.Identity, endpoint string) (Result, error) {
	limit := l.defaultLimit
	if identity.RateLimit != nil {
		limit = *identity.RateLimit
	}
	period := l.defaultPeriod
	if identity.RateLimitPeriod != nil {
		period = *identity.RateLimitPeriod
	}

	return l.CheckKey(ctx, identity.ID+":"+endpoint, limit, period)
}

// CheckKey is the raw-key form of Check, used by the rate-limit
// introspection endpoint. Both forms share the same window semantics.
func (l *Limiter) CheckKey(ctx context.Context, key string, limit int, period time.Duration) (Result, error) {
	periodSec := int64(period / time.Second)
	if periodSec <= 0 {
		periodSec = 60
		period = time.Minute
	}

	now := l.now().Unix()
	boundary := now / periodSec * periodSec
	reset := int(boundary + periodSec - now)
	counterKey := fmt.Sprintf("ratelimit:%s:%d", key, boundary)

	rejected := Result{Allowed: false, Limit: limit, Remaining: 0, Reset: reset, Window: int(periodSec)}

	count, err := l.store.Count(ctx, counterKey)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit read failed: %w", err)
	}
	if count >= int64(limit) {
		return rejected, nil
	}

	newCount, err := l.store.Increment(ctx, counterKey, period)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit increment failed: %w", err)
	}
	// A concurrent request may have taken the last slot between the read and
	// the increment; the atomic post-increment value decides.
	if newCount > int64(limit) {
		return rejected, nil
	}

	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(newCount),
		Reset:     reset,
		Window:    int(periodSec),
	}, nil
}
