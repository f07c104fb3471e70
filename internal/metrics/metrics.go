// Package metrics provides the Prometheus observability context for the
// pipeline. The set is registry-scoped and passed to components instead of
// living in package globals, so tests can assert on isolated instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter, histogram and gauge the pipeline records.
type Metrics struct {
	registry *prometheus.Registry

	// Success counts fully successful pipeline executions.
	Success prometheus.Counter

	// Errors counts failures by module and error type.
	Errors *prometheus.CounterVec

	// ProcessingTime observes end-to-end seconds per successful transcript.
	ProcessingTime prometheus.Histogram

	// InFlight tracks transcripts currently being processed.
	InFlight prometheus.Gauge

	// QueueDepth mirrors the number of queued work items.
	QueueDepth prometheus.Gauge
}

// New builds a Metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Success: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_success_total",
			Help: "Total successful pipeline executions",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_error_total",
			Help: "Total pipeline errors",
		}, []string{"module", "error_type"}),
		ProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_processing_seconds",
			Help:    "Time spent processing each transcript",
			Buckets: prometheus.DefBuckets,
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_in_flight",
			Help: "Number of transcripts currently being processed",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_queue_size",
			Help: "Size of the processing queue",
		}),
	}
}

// RecordError increments the error counter for a module/error type pair.
func (m *Metrics) RecordError(module, errorType string) {
	m.Errors.WithLabelValues(module, errorType).Inc()
}

// Handler exposes the registry for pull-based scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
