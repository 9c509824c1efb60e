// Package metrics holds the Prometheus instruments for the orchestration
// core. One Metrics value is created at startup and shared by the turn
// runner, router, and dispatcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the service's instruments against one registry.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal      *prometheus.CounterVec
	duplicatesTotal *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	hopBudgetAborts prometheus.Counter
	emergenciesHit  prometheus.Counter
	turnDuration    *prometheus.HistogramVec
}

// New builds the instrument set on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sahayak_turns_total",
				Help: "Turns processed, by channel and final status",
			},
			[]string{"channel", "status"},
		),
		duplicatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sahayak_duplicate_events_total",
				Help: "Inbound events dropped by the dedup cache",
			},
			[]string{"channel"},
		),
		handlerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sahayak_handler_failures_total",
				Help: "Handler invocations that errored, panicked, or timed out",
			},
			[]string{"handler"},
		),
		hopBudgetAborts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sahayak_hop_budget_aborts_total",
				Help: "Turns terminated by the routing hop budget",
			},
		),
		emergenciesHit: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sahayak_emergency_turns_total",
				Help: "Turns short-circuited to the emergency handler",
			},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sahayak_turn_duration_seconds",
				Help:    "Wall time per turn from accept to dispatch",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"channel"},
		),
	}

	m.registry.MustRegister(
		m.turnsTotal,
		m.duplicatesTotal,
		m.handlerFailures,
		m.hopBudgetAborts,
		m.emergenciesHit,
		m.turnDuration,
	)
	return m
}

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Turn statuses recorded by ObserveTurn.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

func (m *Metrics) ObserveTurn(channel, status string, elapsed time.Duration) {
	m.turnsTotal.WithLabelValues(channel, status).Inc()
	m.turnDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
}

func (m *Metrics) DuplicateDropped(channel string) {
	m.duplicatesTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) HandlerFailed(handler string) {
	m.handlerFailures.WithLabelValues(handler).Inc()
}

func (m *Metrics) HopBudgetAborted() {
	m.hopBudgetAborts.Inc()
}

func (m *Metrics) EmergencyRouted() {
	m.emergenciesHit.Inc()
}
