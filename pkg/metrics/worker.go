package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Worker outcomes. The publisher reports the first three, the analytics
// consumer the rest.
const (
	OutcomePublished    = "published"
	OutcomeRetried      = "retried"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeProcessed    = "processed"
	OutcomeDuplicate    = "duplicate"
	OutcomeRedelivered  = "redelivered"
	OutcomeDropped      = "dropped"
)

// WorkerMetrics counts per-event outcomes and times whole batches for the
// background binaries.
type WorkerMetrics struct {
	batches *prometheus.HistogramVec
	events  *prometheus.CounterVec
}

func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		return &WorkerMetrics{}
	}
	m := &WorkerMetrics{
		batches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_batch_duration_seconds",
			Help:    "Time spent on one worker batch or message.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, []string{"worker"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_events_total",
			Help: "Events handled by a worker, by outcome.",
		}, []string{"worker", "outcome"}),
	}
	reg.MustRegister(m.batches, m.events)
	return m
}

func (m *WorkerMetrics) ObserveBatch(worker string, elapsed time.Duration) {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.WithLabelValues(normalizeLabel(worker)).Observe(elapsed.Seconds())
}

func (m *WorkerMetrics) IncOutcome(worker, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(worker), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
