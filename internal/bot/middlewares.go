package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/itpomosh-bot/internal/bot/handlers"
	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/internal/middleware"
	"github.com/Proton-105/itpomosh-bot/pkg/logger"
)

// CorrelationMiddleware gives every update its own request context with a correlation id.
func CorrelationMiddleware() handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			ctx := logger.WithCorrelationID(context.Background(), "")
			handlers.WithRequestContext(c, ctx)
			return next(c)
		}
	}
}

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler, replier middleware.Replier) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				ctx := handlers.RequestContext(c)
				log.ErrorContext(ctx, "panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

				key := errors.ReplyGenericError
				if errHandler != nil {
					key, _ = errHandler.Handle(ctx, fmt.Errorf("panic recovered: %v", r))
				}

				if replier != nil && c.Sender() != nil {
					if sendErr := c.Send(replier.Reply(ctx, c.Sender().ID, key).Text); sendErr != nil {
						log.ErrorContext(ctx, "failed to notify user about panic", slog.Any("error", sendErr))
					}
				}

				err = nil
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware reports errors that escape the handlers, typically
// failed sends. The user has already been answered, or cannot be.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			err := next(c)
			if err == nil || errHandler == nil {
				return err
			}

			errHandler.Handle(handlers.RequestContext(c), errors.NewNotificationError("telegram", err))
			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			start := time.Now()
			ctx := handlers.RequestContext(c)

			userID := int64(0)
			if c.Sender() != nil {
				userID = c.Sender().ID
			}

			log.DebugContext(ctx, "handling update",
				slog.Int64("user_id", userID),
				slog.String("update_id", strconv.Itoa(c.Update().ID)),
			)
			err := next(c)
			log.InfoContext(ctx, "handled update",
				slog.Int64("user_id", userID),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}
