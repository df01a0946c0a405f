package lifecycle_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/itpomosh-bot/internal/health"
	"github.com/Proton-105/itpomosh-bot/internal/lifecycle"
)

func TestShutdown_RunsHooksInOrder(t *testing.T) {
	s := lifecycle.NewShutdown(nil)

	var order []string
	for _, name := range []string{"bot", "http", "worker", "redis", "database"} {
		name := name
		s.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	s.Register("nil", nil)

	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, []string{"bot", "http", "worker", "redis", "database"}, order)
}

func TestShutdown_ContinuesAfterFailure(t *testing.T) {
	s := lifecycle.NewShutdown(nil)
	boom := stderrors.New("boom")

	var ran []string
	s.Register("first", func(context.Context) error { ran = append(ran, "first"); return boom })
	s.Register("second", func(context.Context) error { ran = append(ran, "second"); return nil })

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "first")
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestShutdown_ExecutesOnce(t *testing.T) {
	s := lifecycle.NewShutdown(nil)

	calls := 0
	s.Register("hook", func(context.Context) error { calls++; return nil })

	require.NoError(t, s.Execute(context.Background()))
	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestShutdown_ExpiredContextSkipsHooks(t *testing.T) {
	s := lifecycle.NewShutdown(nil)

	called := false
	s.Register("hook", func(context.Context) error { called = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestProbes_Readiness(t *testing.T) {
	healthy := true
	checker := health.NewChecker(nil)
	checker.AddCheck("database", checkFunc(func(context.Context) error {
		if healthy {
			return nil
		}
		return stderrors.New("down")
	}))

	p := lifecycle.NewProbes(checker, nil)
	require.NoError(t, p.Liveness(context.Background()))

	report, err := p.Readiness(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Healthy)

	healthy = false
	report, err = p.Readiness(context.Background())
	assert.ErrorIs(t, err, lifecycle.ErrNotReady)
	assert.Equal(t, "down", report.Components["database"])

	healthy = true
	p.MarkDraining()
	report, err = p.Readiness(context.Background())
	assert.ErrorIs(t, err, lifecycle.ErrShuttingDown)
	assert.False(t, report.Healthy)
	require.NoError(t, p.Liveness(context.Background()))
}

func TestProbes_NilCheckerIsReady(t *testing.T) {
	p := lifecycle.NewProbes(nil, nil)

	report, err := p.Readiness(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Healthy)
}
