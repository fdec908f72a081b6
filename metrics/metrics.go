// Package metrics implements the Metrics Registry (C16, spec §6): request
// counters, operation latencies, and derived rates such as reuse ratios,
// exposed both as a JSON snapshot and a Prometheus exposition endpoint via
// github.com/prometheus/client_golang.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry tracks counters and latencies for every operation in §6's
// operations table, backed by Prometheus vectors so /metrics and the JSON
// view share one source of truth.
type Registry struct {
	mu sync.RWMutex

	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	gauges   *prometheus.GaugeVec

	// snapshot state for the JSON view, kept alongside the Prometheus
	// vectors since client_golang collectors aren't cheaply readable back
	// out in-process.
	requestCount map[string]int64
	failureCount map[string]int64
	latencySum   map[string]float64
	gaugeValues  map[string]float64
}

// NewRegistry builds a Registry and registers its collectors against reg
// (pass prometheus.NewRegistry() for an isolated registry, or nil to use
// the default global one).
func NewRegistry(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Registry{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graphrag_requests_total",
			Help: "Total operations handled, labeled by operation name.",
		}, []string{"operation"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graphrag_failures_total",
			Help: "Total operation failures, labeled by operation and category.",
		}, []string{"operation", "category"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graphrag_operation_latency_seconds",
			Help:    "Operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		gauges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "graphrag_gauge",
			Help: "Derived point-in-time metrics, labeled by name (e.g. reuse ratios).",
		}, []string{"name"}),

		requestCount: make(map[string]int64),
		failureCount: make(map[string]int64),
		latencySum:   make(map[string]float64),
		gaugeValues:  make(map[string]float64),
	}
}

// RecordRequest increments the request counter for op and adds latencySeconds
// to its latency histogram.
func (r *Registry) RecordRequest(op string, latencySeconds float64) {
	r.requests.WithLabelValues(op).Inc()
	r.latency.WithLabelValues(op).Observe(latencySeconds)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount[op]++
	r.latencySum[op] += latencySeconds
}

// RecordFailure increments the failure counter for op under category (an
// errs.Category value such as "store_failure").
func (r *Registry) RecordFailure(op, category string) {
	r.failures.WithLabelValues(op, category).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.failureCount[op]++
}

// SetGauge records a point-in-time derived value, e.g.
// "reuse_ratio_nodes:default".
func (r *Registry) SetGauge(name string, value float64) {
	r.gauges.WithLabelValues(name).Set(value)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.gaugeValues[name] = value
}

// Snapshot is the JSON view of the registry (spec §6's "metrics (json,
// prom)" operation).
type Snapshot struct {
	Requests map[string]int64   `json:"requests"`
	Failures map[string]int64   `json:"failures"`
	AvgLatencySeconds map[string]float64 `json:"avg_latency_seconds"`
	Gauges   map[string]float64 `json:"gauges"`
}

// JSON returns a point-in-time copy of the registry's counters and
// derived averages.
func (r *Registry) JSON() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Requests:          make(map[string]int64, len(r.requestCount)),
		Failures:          make(map[string]int64, len(r.failureCount)),
		AvgLatencySeconds: make(map[string]float64, len(r.latencySum)),
		Gauges:            make(map[string]float64, len(r.gaugeValues)),
	}
	for k, v := range r.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range r.failureCount {
		snap.Failures[k] = v
	}
	for k, v := range r.latencySum {
		if count := r.requestCount[k]; count > 0 {
			snap.AvgLatencySeconds[k] = v / float64(count)
		}
	}
	for k, v := range r.gaugeValues {
		snap.Gauges[k] = v
	}
	return snap
}

// PrometheusHandler returns an http.Handler serving Prometheus exposition
// format for the global default registry. Collectors registered on a custom
// Registerer passed to NewRegistry are not included.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
