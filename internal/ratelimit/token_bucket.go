package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket is the smoother alternative to FixedWindow: max tokens refilled
// evenly across window. Limiters are process-local and dropped after a full
// idle window.
type TokenBucket struct {
	mu       sync.Mutex
	limiters map[string]*bucket
	max      int
	window   time.Duration
	now      func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewTokenBucket(max int, window time.Duration) *TokenBucket {
	max, window = sanitize(max, window)
	return &TokenBucket{
		limiters: make(map[string]*bucket),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

func (t *TokenBucket) WithClock(now func() time.Time) *TokenBucket {
	t.now = now
	return t
}

func (t *TokenBucket) Allow(_ context.Context, key string) (Result, error) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for k, b := range t.limiters {
		if now.Sub(b.lastSeen) > t.window {
			delete(t.limiters, k)
		}
	}

	b, ok := t.limiters[key]
	if !ok {
		every := t.window / time.Duration(t.max)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), t.max)}
		t.limiters[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	res := Result{
		Allowed:   allowed,
		Limit:     t.max,
		Remaining: int(tokens),
		ResetAt:   now,
	}
	if tokens < 1 {
		wait := time.Duration((1 - tokens) / float64(b.limiter.Limit()) * float64(time.Second))
		res.ResetAt = now.Add(wait)
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}

	return res, nil
}
