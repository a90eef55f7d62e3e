package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics counts cart mutations by operation.
type CartMetrics struct {
	operations *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart mutations applied, by operation.",
	}, []string{"operation"})
	reg.MustRegister(operations)
	return &CartMetrics{operations: operations}
}

// IncOperation counts one applied cart operation.
func (c *CartMetrics) IncOperation(operation string) {
	if c == nil || c.operations == nil {
		return
	}
	c.operations.WithLabelValues(normalizeLabel(operation)).Inc()
}

// Order submission outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeDeclined = "declined"
	OutcomeFailed   = "failed"
)

// CheckoutMetrics tracks order submissions.
type CheckoutMetrics struct {
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_submissions_total",
		Help: "Order submissions by payment method and outcome.",
	}, []string{"payment_method", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_submission_duration_seconds",
		Help:    "Time spent submitting an order, payment included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"payment_method"})
	reg.MustRegister(submissions, duration)
	return &CheckoutMetrics{submissions: submissions, duration: duration}
}

// ObserveSubmission records one submission attempt.
func (c *CheckoutMetrics) ObserveSubmission(paymentMethod, outcome string, elapsed time.Duration) {
	if c == nil || c.submissions == nil {
		return
	}
	method := normalizeLabel(paymentMethod)
	c.submissions.WithLabelValues(method, normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
