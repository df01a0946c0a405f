// Package metrics holds the bot's prometheus collectors.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/itpomosh-bot/internal/state"
)

var (
	dialogTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_turns_total",
			Help: "Total number of dialog turns labeled by outcome",
		},
		[]string{"status"},
	)
	dialogTurnDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialog_turn_duration_seconds",
			Help:    "Duration of dialog turns in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of state transitions",
		},
		[]string{"from", "to"},
	)
	orderEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_total",
			Help: "Total number of order lifecycle events by kind and source",
		},
		[]string{"kind", "source"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Operator notifications by channel and delivery status",
		},
		[]string{"channel", "status"},
	)
	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_updates_total",
			Help: "Updates dropped by the per-user rate limiter",
		},
	)
	duplicateUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicate_updates_total",
			Help: "Telegram updates skipped because they were already handled",
		},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	statesCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "user_states_cleaned_total",
			Help: "Stale user states removed by the cleaner",
		},
	)
	activeUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_users",
			Help: "Current number of users with a stored dialog state",
		},
	)
	usersByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "users_by_state",
			Help: "Number of users per state",
		},
		[]string{"state"},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "code"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordTurn counts a dialog turn and its duration.
func RecordTurn(status string, duration time.Duration) {
	status = orUnknown(status)

	dialogTurnsTotal.WithLabelValues(status).Inc()
	dialogTurnDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStateTransition tracks dialog transitions.
func RecordStateTransition(from, to state.State) {
	stateTransitionsTotal.WithLabelValues(orUnknown(string(from)), orUnknown(string(to))).Inc()
}

// RecordOrderEvent counts order lifecycle events.
func RecordOrderEvent(kind, source string) {
	orderEventsTotal.WithLabelValues(orUnknown(kind), orUnknown(source)).Inc()
}

// RecordNotification counts a notification delivery attempt outcome.
func RecordNotification(channel, status string) {
	notificationsTotal.WithLabelValues(orUnknown(channel), orUnknown(status)).Inc()
}

// RecordRateLimited counts an update rejected by the rate limiter.
func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// RecordDuplicateUpdate counts an update skipped as a redelivery.
func RecordDuplicateUpdate() {
	duplicateUpdatesTotal.Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(orUnknown(errType), orUnknown(severity)).Inc()
}

// RecordStatesCleaned adds removed states to the cleanup counter.
func RecordStatesCleaned(n int64) {
	if n > 0 {
		statesCleanedTotal.Add(float64(n))
	}
}

// RecordHTTPRequest observes one served HTTP request.
func RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, orUnknown(route), statusCode(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, orUnknown(route)).Observe(duration.Seconds())
}

// SetActiveUsers updates the gauge for current active users.
func SetActiveUsers(count int) {
	activeUsers.Set(float64(count))
}

// SetUsersByState updates the gauge for the given state.
func SetUsersByState(s state.State, count int) {
	usersByState.WithLabelValues(orUnknown(string(s))).Set(float64(count))
}

// StateCounter reports how many users sit in each dialog state.
type StateCounter interface {
	CountStates(ctx context.Context) (map[state.State]int, error)
}

// StateCollector periodically gathers state counts and emits gauge metrics.
type StateCollector struct {
	counter  StateCounter
	interval time.Duration
	log      *slog.Logger
}

// NewStateCollector builds a collector bound to counter.
func NewStateCollector(counter StateCounter, interval time.Duration, log *slog.Logger) *StateCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &StateCollector{counter: counter, interval: interval, log: log}
}

// Run polls the counter until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.counter == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Collect(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("failed to collect state metrics", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Collect refreshes the gauges once. Every known state is reported, zero included.
func (c *StateCollector) Collect(ctx context.Context) error {
	counts, err := c.counter.CountStates(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	SetActiveUsers(total)

	usersByState.Reset()
	for _, s := range state.All() {
		SetUsersByState(s, counts[s])
		delete(counts, s)
	}
	for s, n := range counts {
		SetUsersByState(s, n)
	}

	return nil
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func statusCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
