// Package ratelimit throttles requests per client identifier.
//
// The default policy is a fixed window: each key gets a counter that starts at
// the first request and resets once the window has elapsed. Bursts across a
// window boundary (up to 2x the limit) are a known property of the algorithm.
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const unknownClient = "unknown"

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Policy decides whether one more request for key is allowed.
type Policy interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Counter is the state of one fixed window.
type Counter struct {
	Count   int
	ResetAt time.Time
}

// Store keeps window counters. The in-process MemoryStore is the default; a
// shared cache can implement it to enforce limits across replicas.
type Store interface {
	Get(ctx context.Context, key string, now time.Time) (Counter, bool, error)
	// Increment starts a new window with count 1 when key has no live counter,
	// otherwise it adds one to the live counter. It must be atomic per key.
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error)
	// Expire drops every counter whose window ended before now.
	Expire(ctx context.Context, now time.Time) error
}

const (
	StrategyFixedWindow = "fixed_window"
	StrategyTokenBucket = "token_bucket"
)

// New builds a policy for strategy; unknown strategies get the fixed window.
// sanitize keeps a misconfigured limiter usable: at least one request per
// window, and a window of at least a second.
func sanitize(max int, window time.Duration) (int, time.Duration) {
	if max < 1 {
		max = 1
	}
	if window < time.Second {
		window = time.Second
	}
	return max, window
}

func New(strategy string, store Store, max int, window time.Duration) Policy {
	if strategy == StrategyTokenBucket {
		return NewTokenBucket(max, window)
	}
	return NewFixedWindow(store, max, window)
}

// ClientIdentifier returns the first X-Forwarded-For hop, then X-Real-IP, and
// falls back to a shared "unknown" bucket.
func ClientIdentifier(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	return unknownClient
}
