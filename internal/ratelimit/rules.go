package ratelimit

import (
	"strconv"
	"time"

	"github.com/Proton-105/itpomosh-bot/pkg/config"
)

// Rules is the configured per-user policy.
type Rules struct {
	enabled   bool
	limit     int
	window    time.Duration
	whitelist map[int64]struct{}
}

// NewRules builds rules from configuration. A non-positive limit or window disables limiting.
func NewRules(cfg config.RateLimitConfig) *Rules {
	r := &Rules{
		enabled:   cfg.Enabled && cfg.Limit > 0 && cfg.Window > 0,
		limit:     cfg.Limit,
		window:    cfg.Window,
		whitelist: make(map[int64]struct{}, len(cfg.Whitelist)),
	}
	for _, id := range cfg.Whitelist {
		r.whitelist[id] = struct{}{}
	}
	return r
}

func (r *Rules) Enabled() bool {
	return r != nil && r.enabled
}

// IsWhitelisted reports whether userID bypasses limits, e.g. operators.
func (r *Rules) IsWhitelisted(userID int64) bool {
	if r == nil {
		return false
	}
	_, ok := r.whitelist[userID]
	return ok
}

// PerUser returns how many messages a user may send per window.
func (r *Rules) PerUser() (int, time.Duration) {
	return r.limit, r.window
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
