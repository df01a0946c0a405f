package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/itpomosh-bot/pkg/config"
)

func TestMemoryLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(context.Background(), "k", 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i < 2, result.Allowed, "hit %d", i)
	}

	now = now.Add(30 * time.Second)
	result, _ := limiter.Check(context.Background(), "k", 2, time.Minute)
	assert.False(t, result.Allowed)
	assert.Equal(t, now.Add(30*time.Second), result.ResetAt)

	now = now.Add(31 * time.Second)
	result, _ = limiter.Check(context.Background(), "k", 2, time.Minute)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)

	_, _ = limiter.Check(context.Background(), "other", 2, time.Minute)
	assert.Equal(t, 2, limiter.Len())

	now = now.Add(time.Hour)
	assert.Equal(t, 2, limiter.Cleanup(time.Minute))
	assert.Zero(t, limiter.Len())
}

type brokenLimiter struct{}

func (brokenLimiter) Check(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, assert.AnError
}

func TestAdaptiveLimiterFallsBackToStricterMemory(t *testing.T) {
	limiter := NewAdaptiveLimiter(brokenLimiter{}, NewMemoryLimiter(), testLogger())

	allowed := 0
	for i := 0; i < 10; i++ {
		result, err := limiter.Check(context.Background(), "k", 4, time.Minute)
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
}

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		Limit:     20,
		Window:    time.Minute,
		Whitelist: []int64{42},
	})

	assert.True(t, rules.Enabled())
	assert.True(t, rules.IsWhitelisted(42))
	assert.False(t, rules.IsWhitelisted(7))

	limit, window := rules.PerUser()
	assert.Equal(t, 20, limit)
	assert.Equal(t, time.Minute, window)

	assert.False(t, NewRules(config.RateLimitConfig{Enabled: true}).Enabled())
	assert.False(t, NewRules(config.RateLimitConfig{Limit: 5, Window: time.Second}).Enabled())
	assert.Equal(t, "user:42", UserKey(42))
}
