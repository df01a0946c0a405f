// Package idempotency drops Telegram updates that were already processed,
// e.g. redelivered after a webhook timeout or by a second instance.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a processed update is remembered.
const DefaultTTL = 24 * time.Hour

// Guard remembers processed keys.
type Guard interface {
	// Claim records key and reports whether this caller is the first to claim it
	// within the guard's TTL.
	Claim(ctx context.Context, key string) (bool, error)
}

// MemoryGuard is a single-instance Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

var _ Guard = (*MemoryGuard)(nil)

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, key string) (bool, error) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if expires, ok := g.seen[key]; ok && now.Before(expires) {
		return false, nil
	}

	// Expired keys are swept while the map is small relative to traffic.
	if len(g.seen) > 0 && len(g.seen)%1024 == 0 {
		for k, expires := range g.seen {
			if !now.Before(expires) {
				delete(g.seen, k)
			}
		}
	}

	g.seen[key] = now.Add(g.ttl)
	return true, nil
}
