package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

// Handler processes a single update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

const requestContextKey = "request_context"

// WithRequestContext attaches ctx to the update so later handlers share it.
func WithRequestContext(c telebot.Context, ctx context.Context) {
	c.Set(requestContextKey, ctx)
}

// RequestContext returns the context attached to the update, or a background one.
func RequestContext(c telebot.Context) context.Context {
	if ctx, ok := c.Get(requestContextKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}
