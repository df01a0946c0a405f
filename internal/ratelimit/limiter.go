// Package ratelimit throttles users who send messages faster than allowed.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts events per key in a sliding window.
// A rejected event is not counted. Errors mean the backend failed, not that the limit was hit.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// UserKey is the limiter key for a chat user.
func UserKey(userID int64) string {
	return "user:" + itoa(userID)
}
