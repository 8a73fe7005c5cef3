package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type FixedWindow struct {
	store  Store
	max    int
	window time.Duration
	now    func() time.Time
}

func NewFixedWindow(store Store, max int, window time.Duration) *FixedWindow {
	max, window = sanitize(max, window)
	return &FixedWindow{
		store:  store,
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (f *FixedWindow) WithClock(now func() time.Time) *FixedWindow {
	f.now = now
	return f
}

func (f *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	now := f.now()

	if err := f.store.Expire(ctx, now); err != nil {
		return Result{}, fmt.Errorf("expire counters: %w", err)
	}

	counter, err := f.store.Increment(ctx, key, f.window, now)
	if err != nil {
		return Result{}, fmt.Errorf("increment counter: %w", err)
	}

	if counter.Count > f.max {
		return Result{
			Allowed: false,
			Limit:   f.max,
			ResetAt: counter.ResetAt,
		}, nil
	}

	return Result{
		Allowed:   true,
		Limit:     f.max,
		Remaining: f.max - counter.Count,
		ResetAt:   counter.ResetAt,
	}, nil
}

type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]Counter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]Counter),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string, now time.Time) (Counter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || now.After(c.ResetAt) {
		return Counter{}, false, nil
	}
	return c, true, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || now.After(c.ResetAt) {
		c = Counter{Count: 1, ResetAt: now.Add(window)}
	} else {
		c.Count++
	}
	s.counters[key] = c

	return c, nil
}

func (s *MemoryStore) Expire(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, c := range s.counters {
		if now.After(c.ResetAt) {
			delete(s.counters, k)
		}
	}
	return nil
}

// Len is the number of live and not yet purged counters.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
