// Package metrics provides Prometheus metrics collection for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/breaker"
)

// Collector holds all Prometheus metrics for the gateway. A nil *Collector
// is valid and records nothing, so tests can omit metrics wiring.
type Collector struct {
	// Invocation metrics
	InvocationsTotal *prometheus.CounterVec
	AttemptDuration  *prometheus.HistogramVec
	RetriesTotal     *prometheus.CounterVec

	// Quota metrics
	QuotaUsed  prometheus.Gauge
	QuotaLimit prometheus.Gauge

	// Rate limiter metrics
	QueueDepth    prometheus.Gauge
	OverloadTotal prometheus.Counter

	// Circuit breaker metrics
	BreakerState       prometheus.Gauge
	BreakerTransitions *prometheus.CounterVec

	// Transformation metrics
	ItemFailuresTotal prometheus.Counter
}

// New creates a metrics collector with all metrics registered on the default
// registry.
func New() *Collector {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a metrics collector registered on reg.
func NewWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		InvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ytgate",
				Name:      "invocations_total",
				Help:      "Total gateway invocations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		AttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ytgate",
				Name:      "attempt_duration_seconds",
				Help:      "Provider call attempt duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ytgate",
				Name:      "retries_total",
				Help:      "Total retry attempts by operation and error kind",
			},
			[]string{"operation", "kind"},
		),
		QuotaUsed: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ytgate",
				Name:      "quota_used",
				Help:      "Quota points used in the current daily window",
			},
		),
		QuotaLimit: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ytgate",
				Name:      "quota_limit",
				Help:      "Configured daily quota limit",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ytgate",
				Name:      "ratelimit_queue_depth",
				Help:      "Requests currently queued at the rate limiter",
			},
		),
		OverloadTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ytgate",
				Name:      "ratelimit_overload_total",
				Help:      "Requests rejected because the admission queue was full",
			},
		),
		BreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ytgate",
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ytgate",
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker transitions by target state",
			},
			[]string{"to"},
		),
		ItemFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ytgate",
				Name:      "transform_item_failures_total",
				Help:      "Per-item validation failures in the transformation pipeline",
			},
		),
	}
}

// ObserveInvocation records one finished invocation.
func (c *Collector) ObserveInvocation(operation, outcome string) {
	if c == nil {
		return
	}
	c.InvocationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveAttempt records one provider call attempt duration.
func (c *Collector) ObserveAttempt(operation string, seconds float64) {
	if c == nil {
		return
	}
	c.AttemptDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveRetry records one retry decision.
func (c *Collector) ObserveRetry(operation, kind string) {
	if c == nil {
		return
	}
	c.RetriesTotal.WithLabelValues(operation, kind).Inc()
}

// SetQuota records the current budget gauges.
func (c *Collector) SetQuota(used, limit int64) {
	if c == nil {
		return
	}
	c.QuotaUsed.Set(float64(used))
	c.QuotaLimit.Set(float64(limit))
}

// SetQueueDepth records the rate limiter queue depth.
func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.QueueDepth.Set(float64(n))
}

// ObserveOverload counts one backpressure rejection.
func (c *Collector) ObserveOverload() {
	if c == nil {
		return
	}
	c.OverloadTotal.Inc()
}

// SetBreakerPhase records the breaker state gauge and transition counter.
func (c *Collector) SetBreakerPhase(phase breaker.Phase, transitioned bool) {
	if c == nil {
		return
	}
	var v float64
	switch phase {
	case breaker.PhaseHalfOpen:
		v = 1
	case breaker.PhaseOpen:
		v = 2
	}
	c.BreakerState.Set(v)
	if transitioned {
		c.BreakerTransitions.WithLabelValues(string(phase)).Inc()
	}
}

// ObserveItemFailures counts per-item validation failures.
func (c *Collector) ObserveItemFailures(n int) {
	if c == nil || n == 0 {
		return
	}
	c.ItemFailuresTotal.Add(float64(n))
}
