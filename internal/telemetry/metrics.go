package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration records request latency per method, route and status.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "argowatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

// FailedDeployment tracks consecutive verification failures per application.
// Incremented when a task times out, reset to 0 on a successful rollout.
var FailedDeployment = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "failed_deployment",
		Help: "Per-application count of failed rollout verifications since the last success.",
	},
	[]string{"app_name"},
)

// ProcessedDeploymentsTotal counts verification tasks by verdict.
var ProcessedDeploymentsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "argowatch",
		Name:      "processed_deployments_total",
		Help:      "Total number of rollout verification tasks by terminal status.",
	},
	[]string{"status"},
)

// All returns the argowatch-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		FailedDeployment,
		ProcessedDeploymentsTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTPRequestDuration metric, and any additional service-specific
// collectors passed as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
