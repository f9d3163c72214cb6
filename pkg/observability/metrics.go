package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/memory"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tendril"

// Metrics holds the agent collectors.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	Decisions       *prometheus.CounterVec
	Exhausted       *prometheus.CounterVec
	MemoryRecords   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decision_attempts_total",
				Help:      "Strategy attempts by outcome",
			},
			[]string{"strategy", "outcome"},
		),
		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_attempt_duration_seconds",
				Help:      "Duration of strategy attempts",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"strategy"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Recorded decisions by strategy and chosen event",
			},
			[]string{"strategy", "event"},
		),
		Exhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_exhausted_total",
				Help:      "Decide calls that ran out of attempts",
			},
			[]string{"strategy", "max_attempts"},
		),
		MemoryRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memory_records_total",
				Help:      "Records appended to short-term memory by kind",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Attempts, m.AttemptDuration, m.Decisions, m.Exhausted, m.MemoryRecords)
	}
	return m
}

// Hooks returns decision hooks that feed the collectors.
func (m *Metrics) Hooks() domain.DecisionHooks {
	return domain.DecisionHooks{
		OnAttempt: func(_ context.Context, e *domain.AttemptEvent) {
			m.Attempts.WithLabelValues(e.Strategy, outcome(e)).Inc()
			m.AttemptDuration.WithLabelValues(e.Strategy).Observe(e.Duration.Seconds())
		},
		OnDecision: func(_ context.Context, d *domain.Decision) {
			event := ""
			if d.NextEvent != nil {
				event = d.NextEvent.Type
			}
			m.Decisions.WithLabelValues(d.Strategy, event).Inc()
		},
		OnExhausted: func(_ context.Context, e *domain.AttemptEvent) {
			m.Exhausted.WithLabelValues(e.Strategy, strconv.Itoa(e.MaxAttempts)).Inc()
		},
	}
}

func outcome(e *domain.AttemptEvent) string {
	switch {
	case e.Err != nil:
		return "error"
	case e.Decided:
		return "decided"
	default:
		return "undecided"
	}
}

// Watch counts every record appended to log until the returned function is called.
func (m *Metrics) Watch(log *memory.Log) (stop func()) {
	return log.SubscribeAll(func(ev domain.MemoryEvent) {
		m.MemoryRecords.WithLabelValues(string(ev.Kind)).Inc()
	})
}
