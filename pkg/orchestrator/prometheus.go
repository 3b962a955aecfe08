package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	launches  *prometheus.CounterVec
	reuseHits *prometheus.CounterVec
	errors    *prometheus.CounterVec

	readinessDuration *prometheus.HistogramVec
	teardownDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "stagehand"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_launches_total",
			Help:      "Total number of auxiliary process launches",
		},
		[]string{"process"},
	)

	pmc.reuseHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_reuse_hits_total",
			Help:      "Total number of reuse hits (existing listener, no launch)",
		},
		[]string{"process"},
	)

	pmc.errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_errors_total",
			Help:      "Total number of process errors",
		},
		[]string{"process", "error_type"},
	)

	pmc.readinessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "readiness_duration_seconds",
			Help:      "Time from launch until readiness was signaled",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"process", "status"},
	)

	pmc.teardownDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "teardown_duration_seconds",
			Help:      "Duration of process teardown",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"process"},
	)

	pmc.registry.MustRegister(
		pmc.launches,
		pmc.reuseHits,
		pmc.errors,
		pmc.readinessDuration,
		pmc.teardownDuration,
	)

	return pmc
}

// Registry returns the underlying registry for serving /metrics
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

// ProcessLaunched implements MetricsCollector
func (pmc *PrometheusMetricsCollector) ProcessLaunched(process string) {
	pmc.launches.WithLabelValues(process).Inc()
}

// ProcessReused implements MetricsCollector
func (pmc *PrometheusMetricsCollector) ProcessReused(process string) {
	pmc.reuseHits.WithLabelValues(process).Inc()
}

// ReadinessDuration implements MetricsCollector
func (pmc *PrometheusMetricsCollector) ReadinessDuration(process string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pmc.readinessDuration.WithLabelValues(process, status).Observe(duration.Seconds())
}

// TeardownDuration implements MetricsCollector
func (pmc *PrometheusMetricsCollector) TeardownDuration(process string, duration time.Duration) {
	pmc.teardownDuration.WithLabelValues(process).Observe(duration.Seconds())
}

// ProcessError implements MetricsCollector
func (pmc *PrometheusMetricsCollector) ProcessError(process string, errorType string) {
	pmc.errors.WithLabelValues(process, errorType).Inc()
}
