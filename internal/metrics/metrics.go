// Package metrics holds the Prometheus collectors of the ledger and the
// recurring scheduler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeExecuted = "executed"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeExpired  = "expired"
)

type Metrics struct {
	registry *prometheus.Registry

	SchedulerTicks        *prometheus.CounterVec
	SchedulerTickDuration prometheus.Histogram
	RecurringOutcomes     *prometheus.CounterVec
	TransactionsCommitted *prometheus.CounterVec
	EventsPublishFailures prometheus.Counter
	EventsRelayed         prometheus.Counter
	OperatorActions       *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, so several instances
// can live in one process (tests).
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		SchedulerTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_ticks_total",
				Help: "Scheduler ticks by result",
			},
			[]string{"result"},
		),
		SchedulerTickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scheduler_tick_duration_seconds",
				Help:    "Duration of one scheduler tick",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30, 60},
			},
		),
		RecurringOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recurring_outcomes_total",
				Help: "Recurring definitions handled by the scheduler, by outcome",
			},
			[]string{"outcome"},
		),
		TransactionsCommitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_committed_total",
				Help: "Committed ledger transactions by direction",
			},
			[]string{"direction"},
		),
		EventsPublishFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_events_publish_failures_total",
				Help: "Events that could not be handed to the publisher",
			},
		),
		EventsRelayed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_events_relayed_total",
				Help: "Outbox events delivered by the relay after the first publish attempt failed",
			},
		),
		OperatorActions: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "operator_action_duration_seconds",
				Help:    "Duration of operator actions by action and status",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2},
			},
			[]string{"action", "status"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
