package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/internal/jobs"
	"github.com/Proton-105/itpomosh-bot/internal/notify"
)

// NotifyHandler delivers queued operator notifications.
type NotifyHandler struct {
	sender notify.Sender
	log    *slog.Logger
}

func NewNotifyHandler(sender notify.Sender, log *slog.Logger) *NotifyHandler {
	if log == nil {
		log = slog.Default()
	}
	return &NotifyHandler{sender: sender, log: log}
}

// ProcessTask sends the message. Transient failures are returned for asynq to
// retry; malformed payloads and permanent failures skip retrying.
func (h *NotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := jobs.ParseNotifyPayload(t)
	if err != nil {
		h.log.ErrorContext(ctx, "notify: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode notify payload: %v: %w", err, asynq.SkipRetry)
	}

	err = h.sender.Send(ctx, notify.Message{Kind: notify.Kind(payload.Kind), Text: payload.Text})
	if err == nil {
		return nil
	}
	if errors.IsRetryable(err) || errors.IsCircuitOpen(err) {
		return err
	}
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}
