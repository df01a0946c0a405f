package notify

import (
	"context"

	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/pkg/metrics"
)

// Reliable retries transient delivery failures and stops calling a channel
// that keeps failing until its breaker lets a probe through.
type Reliable struct {
	next    Sender
	breaker *errors.CircuitBreaker
	retries int
}

// NewReliable wraps next. maxAttempts counts the first try.
func NewReliable(next Sender, breaker *errors.CircuitBreaker, maxAttempts int) *Reliable {
	if breaker == nil {
		breaker = errors.NewCircuitBreaker()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Reliable{next: next, breaker: breaker, retries: maxAttempts - 1}
}

func (r *Reliable) Channel() string { return r.next.Channel() }

func (r *Reliable) Send(ctx context.Context, msg Message) error {
	err := errors.WithRetryN(ctx, r.retries, func() error {
		return r.breaker.Call(func() error {
			return r.next.Send(ctx, msg)
		})
	})

	status := "sent"
	switch {
	case err == nil:
	case errors.IsCircuitOpen(err):
		status = "circuit_open"
	default:
		status = "failed"
	}
	metrics.RecordNotification(r.next.Channel(), status)

	return err
}
