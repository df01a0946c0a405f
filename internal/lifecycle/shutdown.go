// Package lifecycle coordinates readiness and ordered shutdown of the process.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Shutdown runs registered hooks one after another in registration order,
// so producers stop before the stores they write to are closed.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	log   *slog.Logger
	once  sync.Once
	err   error
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn})
}

// Execute runs every hook once. A failing hook does not stop the ones after it.
// Later calls return the result of the first.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.run(ctx)
	})
	return s.err
}

func (s *Shutdown) run(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []error
	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			s.log.Error("shutdown hook skipped", slog.String("hook", h.Name), slog.Any("error", err))
			continue
		}

		hookStart := time.Now()
		if err := h.Fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
			continue
		}

		s.log.Info("shutdown hook completed", slog.String("hook", h.Name), slog.Duration("elapsed", time.Since(hookStart)))
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}
