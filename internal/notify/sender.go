package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	telebot "gopkg.in/telebot.v3"

	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
)

const (
	ChannelWebhook  = "webhook"
	ChannelTelegram = "telegram"
	ChannelLog      = "log"
)

// Sender delivers a message to operators.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Channel() string
}

// webhookPayload is the body the operator form relay accepts.
type webhookPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// WebhookSender posts messages as JSON to an HTTP endpoint.
type WebhookSender struct {
	url    string
	name   string
	client *http.Client
}

// NewWebhookSender creates a sender posting to url. name fills the "name" field.
func NewWebhookSender(url, name string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookSender{
		url:    url,
		name:   name,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSender) Channel() string { return ChannelWebhook }

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(webhookPayload{Name: s.name, Phone: "System", Message: msg.Text})
	if err != nil {
		return errors.Permanent(fmt.Errorf("marshal webhook payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return errors.Permanent(fmt.Errorf("build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.NewNotificationError(ChannelWebhook, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return errors.Permanent(err)
		}
		return errors.NewNotificationError(ChannelWebhook, err)
	}

	return nil
}

// ChatSender is the part of *telebot.Bot used to reach the operator chat.
type ChatSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramSender writes messages to an operator chat through the bot itself.
type TelegramSender struct {
	bot  ChatSender
	chat telebot.ChatID
}

func NewTelegramSender(bot ChatSender, chatID int64) *TelegramSender {
	return &TelegramSender{bot: bot, chat: telebot.ChatID(chatID)}
}

func (s *TelegramSender) Channel() string { return ChannelTelegram }

func (s *TelegramSender) Send(_ context.Context, msg Message) error {
	if _, err := s.bot.Send(s.chat, msg.Text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return errors.NewNotificationError(ChannelTelegram, err)
	}
	return nil
}

// LogSender writes messages to the log. Used when no operator channel is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Channel() string { return ChannelLog }

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.InfoContext(ctx, "operator notification",
		slog.String("kind", string(msg.Kind)),
		slog.String("text", msg.Text),
	)
	return nil
}
