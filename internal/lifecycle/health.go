package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/Proton-105/itpomosh-bot/internal/health"
)

// ErrShuttingDown is reported by readiness once shutdown has begun.
var ErrShuttingDown = errors.New("shutting down")

// ErrNotReady is reported when a dependency check fails.
var ErrNotReady = errors.New("dependencies unavailable")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) (health.Report, error)
}

// Probes answers liveness unconditionally and readiness from dependency checks.
type Probes struct {
	checker  *health.Checker
	draining atomic.Bool
	log      *slog.Logger
}

var _ HealthChecker = (*Probes)(nil)

// NewProbes creates probes over checker. A nil checker is always ready.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

func (p *Probes) Liveness(ctx context.Context) error {
	p.log.DebugContext(ctx, "liveness probe called")
	return nil
}

func (p *Probes) Readiness(ctx context.Context) (health.Report, error) {
	report := health.Report{Healthy: true, Components: map[string]string{}}
	if p.checker != nil {
		report = p.checker.Check(ctx)
	}

	if p.draining.Load() {
		report.Healthy = false
		return report, ErrShuttingDown
	}
	if !report.Healthy {
		return report, ErrNotReady
	}
	return report, nil
}

// MarkDraining makes readiness fail so load balancers stop routing to the process.
func (p *Probes) MarkDraining() {
	p.draining.Store(true)
}
