// Package prom implements a Prometheus backend for internal/metrics. It is
// pull-based: observations update registered collectors and Flush is a
// no-op. Handler exposes the registry for an HTTP scrape endpoint.
package prom

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datamove/internal/metrics"
)

// Backend implements metrics.Backend on a private Prometheus registry.
type Backend struct {
	registry *prometheus.Registry

	stepTotal    *prometheus.CounterVec
	rowsTotal    prometheus.Counter
	batchesTotal prometheus.Counter
	stepDuration *prometheus.HistogramVec
}

// NewBackend constructs the backend and registers its collectors.
func NewBackend() *Backend {
	registry := prometheus.NewRegistry()

	b := &Backend{
		registry: registry,

		stepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.StepTotal,
				Help: "Steps executed, by step and status",
			},
			[]string{"step", "status"},
		),
		rowsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metrics.RowsTotal,
				Help: "Rows written to the target store",
			},
		),
		batchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metrics.BatchesTotal,
				Help: "Insert batches executed",
			},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metrics.StepDurationSeconds,
				Help:    "Step duration in seconds, by step and status",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"step", "status"},
		),
	}

	registry.MustRegister(b.stepTotal, b.rowsTotal, b.batchesTotal, b.stepDuration)
	return b
}

// Handler returns the scrape handler for this backend's registry.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{})
}

// IncCounter implements metrics.Backend. Unknown metric names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.stepTotal.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		b.rowsTotal.Add(delta)
	case metrics.BatchesTotal:
		b.batchesTotal.Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	if name == metrics.StepDurationSeconds {
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	}
}

// Flush implements metrics.Backend; Prometheus is pull-based.
func (b *Backend) Flush() error { return nil }

// Close implements metrics.Backend.
func (b *Backend) Close() error { return nil }

var _ metrics.Backend = (*Backend)(nil)
