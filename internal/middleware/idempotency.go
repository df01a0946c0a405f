package middleware

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/itpomosh-bot/internal/bot/handlers"
	"github.com/Proton-105/itpomosh-bot/internal/idempotency"
	"github.com/Proton-105/itpomosh-bot/pkg/metrics"
)

// Idempotency skips updates whose key was already claimed. When the guard
// itself fails the update is processed anyway.
func Idempotency(guard idempotency.Guard, log *slog.Logger) handlers.Middleware {
	if guard == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			key := updateKey(c)
			if key == "" {
				return next(c)
			}

			ctx := handlers.RequestContext(c)
			claimed, err := guard.Claim(ctx, key)
			if err != nil {
				log.WarnContext(ctx, "idempotency guard unavailable", slog.String("key", key), slog.Any("error", err))
				return next(c)
			}
			if !claimed {
				metrics.RecordDuplicateUpdate()
				log.InfoContext(ctx, "duplicate update skipped", slog.String("key", key))
				return nil
			}

			return next(c)
		}
	}
}

func updateKey(c telebot.Context) string {
	var (
		chatID    int64
		messageID int
	)
	if msg := c.Message(); msg != nil {
		messageID = msg.ID
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
	}
	return idempotency.UpdateKey(c.Update().ID, chatID, messageID)
}
