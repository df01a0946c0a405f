package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/itpomosh-bot/internal/jobs"
	"github.com/Proton-105/itpomosh-bot/internal/state"
	"github.com/Proton-105/itpomosh-bot/pkg/metrics"
)

type StateCleanupHandler struct {
	storage state.Storage
	log     *slog.Logger
}

func NewStateCleanupHandler(storage state.Storage, log *slog.Logger) *StateCleanupHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StateCleanupHandler{storage: storage, log: log}
}

func (h *StateCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := jobs.ParseStateCleanupPayload(t)
	if err != nil {
		return fmt.Errorf("decode cleanup payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.OlderThan <= 0 {
		payload.OlderThan = 24 * time.Hour
	}

	removed, err := h.storage.CleanupOldStates(ctx, payload.OlderThan)
	if err != nil {
		return fmt.Errorf("cleanup old states: %w", err)
	}

	metrics.RecordStatesCleaned(removed)
	h.log.InfoContext(ctx, "state cleanup finished",
		slog.Int64("removed", removed),
		slog.Duration("older_than", payload.OlderThan),
	)
	return nil
}
