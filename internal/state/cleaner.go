package state

import (
	"context"
	"log/slog"
	"time"
)

const defaultCycleTimeout = time.Minute

// Cleaner periodically removes user states that have not been touched for maxAge.
type Cleaner struct {
	storage  Storage
	log      *slog.Logger
	maxAge   time.Duration
	interval time.Duration
	timeout  time.Duration
	onCycle  func(removed int64, err error)
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(storage Storage, log *slog.Logger, maxAge, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		storage:  storage,
		log:      log,
		maxAge:   maxAge,
		interval: interval,
		timeout:  defaultCycleTimeout,
		onCycle:  func(int64, error) {},
	}
}

// OnCycle registers a callback invoked after every cleanup cycle.
func (c *Cleaner) OnCycle(fn func(removed int64, err error)) {
	if fn != nil {
		c.onCycle = fn
	}
}

// Run starts the cleanup loop until the context is cancelled. A cycle that is
// already running when ctx is cancelled is allowed to finish.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("state cleaner stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			// Cancellation may race with the tick; never start a cycle after it.
			if ctx.Err() != nil {
				continue
			}
			_, _ = c.RunOnce(ctx)
		}
	}
}

// RunOnce performs one cleanup cycle detached from ctx cancellation.
func (c *Cleaner) RunOnce(ctx context.Context) (int64, error) {
	cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	removed, err := c.storage.CleanupOldStates(cycleCtx, c.maxAge)
	c.onCycle(removed, err)
	if err != nil {
		c.log.Error("state cleanup failed", slog.Any("error", err))
		return removed, err
	}

	if removed > 0 {
		c.log.Info("stale user states removed", slog.Int64("count", removed), slog.Duration("max_age", c.maxAge))
	}

	return removed, nil
}
