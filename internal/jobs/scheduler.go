package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Scheduler enqueues periodic tasks. With several bot instances sharing one
// Redis, every instance may run a scheduler; tasks are deduplicated by asynq.Unique.
type Scheduler interface {
	RegisterStateCleanup(interval, maxAge time.Duration) error
	Start() error
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC}),
		log:            log,
	}
}

// RegisterStateCleanup schedules CleanupOldStates every interval.
func (s *scheduler) RegisterStateCleanup(interval, maxAge time.Duration) error {
	task, err := NewStateCleanupTask(maxAge)
	if err != nil {
		return err
	}

	cronspec := fmt.Sprintf("@every %s", interval)
	if _, err := s.asynqScheduler.Register(cronspec, task, asynq.Unique(interval)); err != nil {
		return fmt.Errorf("register state cleanup: %w", err)
	}

	s.log.InfoContext(context.Background(), "scheduler: registered state cleanup",
		slog.String("cronspec", cronspec),
		slog.Duration("max_age", maxAge),
	)
	return nil
}

// Start runs the scheduler in the background until Shutdown.
func (s *scheduler) Start() error {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	if err := s.asynqScheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
