// Package metrics defines the minimal instrumentation surface the engine
// emits through. Backends (Datadog, Prometheus) live in subpackages; core
// code depends only on Backend so no vendor types leak into the engine.
package metrics

// Metric names emitted by the engine. Backends switch on these.
const (
	StepTotal           = "datamove_step_total"
	RowsTotal           = "datamove_rows_total"
	BatchesTotal        = "datamove_batches_total"
	StepDurationSeconds = "datamove_step_duration_seconds"
)

// Labels attaches dimensions to a metric observation.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush pushes buffered observations to the sink, for backends that
	// buffer. Pull-based backends return nil.
	Flush() error

	// Close stops background work and performs a final Flush.
	Close() error
}

// Noop discards everything. It is the default backend so call sites never
// nil-check.
type Noop struct{}

func (Noop) IncCounter(string, float64, Labels)       {}
func (Noop) ObserveHistogram(string, float64, Labels) {}
func (Noop) Flush() error                             { return nil }
func (Noop) Close() error                             { return nil }

var _ Backend = Noop{}
