/*
Package observability provides Prometheus instrumentation for the Winnow
service: reasoning call volume and latency, convergence stage transitions,
and content-filter substitutions.
*/
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the service's Prometheus collectors.
type Metrics struct {
	ReasoningRequests *prometheus.CounterVec
	ReasoningDuration *prometheus.HistogramVec
	StageTransitions  *prometheus.CounterVec
	FilterSubstituted *prometheus.CounterVec
	WriteFailures     prometheus.Counter
}

// NewMetrics registers the collectors on the given registerer. Pass
// prometheus.DefaultRegisterer in production; a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReasoningRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winnow_reasoning_requests_total",
			Help: "Reasoning service calls by focus and outcome.",
		}, []string{"focus", "outcome"}),
		ReasoningDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "winnow_reasoning_duration_seconds",
			Help:    "Reasoning service call latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"focus"}),
		StageTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winnow_stage_transitions_total",
			Help: "Convergence stage transitions by from/to stage.",
		}, []string{"from", "to"}),
		FilterSubstituted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winnow_filter_substitutions_total",
			Help: "Responses replaced by fallback content after filtering.",
		}, []string{"mode"}),
		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "winnow_write_failures_total",
			Help: "Swallowed persistence write failures.",
		}),
	}
}

// NewNopMetrics returns metrics backed by a throwaway registry.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
