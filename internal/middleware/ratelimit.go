package middleware

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/itpomosh-bot/internal/bot/handlers"
	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/internal/ratelimit"
	"github.com/Proton-105/itpomosh-bot/internal/session"
	"github.com/Proton-105/itpomosh-bot/pkg/metrics"
)

// Replier produces a localized notice for a user.
type Replier interface {
	Reply(ctx context.Context, userID int64, key string) session.Outbound
}

// RateLimitMiddleware enforces per-user rate limits for incoming Telegram updates.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	replier Replier
	log     *slog.Logger
}

func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, replier Replier, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		replier: replier,
		log:     log,
	}
}

// Handle rejects updates over the per-user limit with a short notice.
// Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		if m.limiter == nil || !m.rules.Enabled() {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil || m.rules.IsWhitelisted(sender.ID) {
			return next(c)
		}

		ctx := handlers.RequestContext(c)
		limit, window := m.rules.PerUser()

		result, err := m.limiter.Check(ctx, ratelimit.UserKey(sender.ID), limit, window)
		if err != nil {
			m.log.WarnContext(ctx, "rate limiter error", slog.Int64("user_id", sender.ID), slog.Any("error", err))
			return next(c)
		}
		if result.Allowed {
			return next(c)
		}

		metrics.RecordRateLimited()
		m.log.WarnContext(ctx, "rate limit exceeded",
			slog.Int64("user_id", sender.ID),
			slog.Time("reset_at", result.ResetAt),
		)

		if m.replier == nil {
			return nil
		}
		return c.Send(m.replier.Reply(ctx, sender.ID, errors.ReplyRateLimited).Text)
	}
}
