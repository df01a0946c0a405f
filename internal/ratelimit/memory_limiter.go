package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	hits []time.Time
}

// MemoryLimiter keeps sliding windows in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Check implements Limiter. It never fails.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	bkt, ok := m.buckets[key]
	if !ok {
		bkt = &bucket{hits: make([]time.Time, 0, 8)}
		m.buckets[key] = bkt
	}

	bkt.hits = keepRecent(bkt.hits, windowStart)

	allowed := len(bkt.hits) < limit
	if allowed {
		bkt.hits = append(bkt.hits, now)
	}

	resetAt := now.Add(window)
	if len(bkt.hits) > 0 {
		resetAt = bkt.hits[0].Add(window)
	}

	return &Result{
		Allowed:   allowed,
		Remaining: max(limit-len(bkt.hits), 0),
		ResetAt:   resetAt,
	}, nil
}

// Cleanup drops buckets without hits in the last maxAge and returns how many were dropped.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, bkt := range m.buckets {
		if len(bkt.hits) == 0 || bkt.hits[len(bkt.hits)-1].Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func keepRecent(hits []time.Time, windowStart time.Time) []time.Time {
	first := 0
	for first < len(hits) && !hits[first].After(windowStart) {
		first++
	}
	if first == 0 {
		return hits
	}

	n := copy(hits, hits[first:])
	return hits[:n]
}
