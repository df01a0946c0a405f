package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	"github.com/Proton-105/itpomosh-bot/internal/jobs"
	"github.com/Proton-105/itpomosh-bot/pkg/logger"
)

const (
	defaultSendTimeout    = 10 * time.Second
	defaultEnqueueTimeout = time.Second
)

// Dispatcher hands notifications off without blocking the caller.
// With a queue they become asynq tasks; otherwise they are sent from a
// detached goroutine bounded by timeout. Enqueueing happens on the caller's
// path and is bounded by the shorter enqueueTimeout.
type Dispatcher struct {
	sender         Sender
	queue          jobs.Manager
	formatter      Formatter
	timeout        time.Duration
	enqueueTimeout time.Duration
	maxRetry       int
	log            *slog.Logger
	wg             sync.WaitGroup
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueue routes deliveries through an asynq queue.
func WithQueue(queue jobs.Manager, maxRetry int) DispatcherOption {
	return func(d *Dispatcher) {
		d.queue = queue
		d.maxRetry = maxRetry
	}
}

func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithEnqueueTimeout bounds how long Dispatch waits for the queue before
// falling back to a direct send.
func WithEnqueueTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.enqueueTimeout = timeout
		}
	}
}

func NewDispatcher(sender Sender, formatter Formatter, log *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		sender:         sender,
		formatter:      formatter,
		timeout:        defaultSendTimeout,
		enqueueTimeout: defaultEnqueueTimeout,
		log:            log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OrderEvent notifies operators about an order change.
func (d *Dispatcher) OrderEvent(ctx context.Context, event domain.OrderEvent) {
	d.Dispatch(ctx, d.formatter.FromEvent(event))
}

// Failure notifies operators about an internal error.
func (d *Dispatcher) Failure(ctx context.Context, errType string, details map[string]string) {
	d.Dispatch(ctx, d.formatter.Error(errType, details))
}

// Dispatch schedules msg for delivery and returns immediately.
// Delivery failures are logged, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	correlationID := logger.CorrelationIDFromContext(ctx)

	if d.queue != nil {
		err := d.enqueue(ctx, msg)
		if err == nil {
			return
		}
		d.log.WarnContext(ctx, "notification enqueue failed, sending directly",
			slog.String("kind", string(msg.Kind)),
			slog.Any("error", err),
		)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(logger.WithCorrelationID(context.Background(), correlationID), d.timeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, msg); err != nil {
			d.log.ErrorContext(sendCtx, "notification delivery failed",
				slog.String("channel", d.sender.Channel()),
				slog.String("kind", string(msg.Kind)),
				slog.Any("error", err),
			)
		}
	}()
}

func (d *Dispatcher) enqueue(ctx context.Context, msg Message) error {
	task, err := jobs.NewNotifyTask(jobs.NotifyPayload{Kind: string(msg.Kind), Text: msg.Text}, d.maxRetry)
	if err != nil {
		return err
	}

	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.enqueueTimeout)
	defer cancel()

	_, err = d.queue.Enqueue(enqueueCtx, task)
	return err
}

// Wait blocks until every direct delivery started so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
