package handlers

import (
	"context"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/itpomosh-bot/internal/dialog"
	"github.com/Proton-105/itpomosh-bot/internal/session"
)

// Sessions runs dialog turns.
type Sessions interface {
	Handle(ctx context.Context, in session.Inbound) (session.Outbound, error)
}

// Keyboards renders reply hints as Telegram markup.
type Keyboards interface {
	Markup(locale string, hints dialog.Hints) *telebot.ReplyMarkup
}

// NewMessageHandler feeds every text or shared contact into the dialog and
// sends the reply back with its keyboard.
func NewMessageHandler(sessions Sessions, keyboards Keyboards, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			log.Warn("message without sender ignored")
			return nil
		}

		in := session.Inbound{
			UserID: sender.ID,
			Name:   displayName(sender),
			Text:   messageText(c),
		}

		ctx := RequestContext(c)
		out, err := sessions.Handle(ctx, in)
		if err != nil {
			// already reported by the session; the user still gets out.Text
			log.DebugContext(ctx, "turn failed", slog.Int64("user_id", sender.ID), slog.Any("error", err))
		}
		if out.Text == "" {
			return nil
		}

		if markup := keyboards.Markup(out.Locale, out.Hints); markup != nil {
			return c.Send(out.Text, markup)
		}
		return c.Send(out.Text)
	}
}

func displayName(u *telebot.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// messageText prefers a shared contact's phone number over the caption text.
func messageText(c telebot.Context) string {
	if msg := c.Message(); msg != nil && msg.Contact != nil && msg.Contact.PhoneNumber != "" {
		return msg.Contact.PhoneNumber
	}
	return c.Text()
}
