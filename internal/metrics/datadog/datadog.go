// Package datadog implements a Datadog backend for internal/metrics.
//
// Flushing model: observations are buffered in-memory under a mutex, a
// background loop submits them on a ticker (default once per minute), and
// Close performs one final flush. Long-running moves therefore produce a
// time series rather than a single spike at exit, and short commands still
// get their tail flush.
//
// Buffers are reset even when submission fails; the engine never blocks on
// the metrics path.
package datadog

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"datamove/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to
	// "datamove".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// Defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these; tests use
	// them to avoid real clocks, tickers, and network submission.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the slice of the Datadog SDK the backend needs. The
// SDK exposes a concrete *datadogV2.MetricsApi; depending on this interface
// instead lets tests substitute a fake without HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	stepCounts      map[string]float64
	rowCount        float64
	batchCount      float64
	durationSamples map[string][]float64
}

// NewBackend constructs a Datadog backend using the official client and
// starts the flush loop. Datadog client construction does not touch the
// network; submission errors surface from Flush.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "datamove"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := append([]string{"job:" + job}, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}
	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,

		stepCounts:      make(map[string]float64),
		durationSamples: make(map[string][]float64),
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Close once;
// a second call panics on the closed channel, which matches the usual Go
// close-once contract for process-lifetime backends.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown metric names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StepTotal:
		b.stepCounts[stepStatusKey(labels["step"], labels["status"])] += delta
	case metrics.RowsTotal:
		b.rowCount += delta
	case metrics.BatchesTotal:
		b.batchCount += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if name == metrics.StepDurationSeconds {
		k := stepStatusKey(labels["step"], labels["status"])
		b.durationSamples[k] = append(b.durationSamples[k], value)
	}
}

// snapshot is the detached buffer state a flush submits. Flush resets
// buffers under the lock and builds the payload out-of-lock.
type snapshot struct {
	stepCounts      map[string]float64
	rowCount        float64
	batchCount      float64
	durationSamples map[string][]float64
}

func (s snapshot) isEmpty() bool {
	return len(s.stepCounts) == 0 &&
		s.rowCount == 0 &&
		s.batchCount == 0 &&
		len(s.durationSamples) == 0
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		stepCounts:      b.stepCounts,
		rowCount:        b.rowCount,
		batchCount:      b.batchCount,
		durationSamples: b.durationSamples,
	}
	b.stepCounts = make(map[string]float64)
	b.rowCount = 0
	b.batchCount = 0
	b.durationSamples = make(map[string][]float64)
	return s
}

// Flush submits buffered metrics and resets local buffers. Returns nil when
// there is nothing to submit.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs the Datadog series for a snapshot at a fixed
// timestamp. Pure, so the naming/tagging contract is unit-testable.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.stepCounts)+len(s.durationSamples)*6+2)

	for k, v := range s.stepCounts {
		if v == 0 {
			continue
		}
		step, status := splitStepStatusKey(k)
		tags := withTags(b.baseTags, "step:"+step, "status:"+status)
		series = append(series, countSeries("datamove.step.total", v, tags, nowUnix))
	}

	if s.rowCount != 0 {
		series = append(series, countSeries("datamove.rows.total", s.rowCount, b.baseTags, nowUnix))
	}
	if s.batchCount != 0 {
		series = append(series, countSeries("datamove.batches.total", s.batchCount, b.baseTags, nowUnix))
	}

	for k, samples := range s.durationSamples {
		if len(samples) == 0 {
			continue
		}
		cp := append([]float64(nil), samples...)
		sort.Float64s(cp)

		step, status := splitStepStatusKey(k)
		tags := withTags(b.baseTags, "step:"+step, "status:"+status)
		const prefix = "datamove.step.duration_seconds"
		series = append(series,
			gaugeSeries(prefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
			gaugeSeries(prefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
			gaugeSeries(prefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
			gaugeSeries(prefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
			gaugeSeries(prefix+".max", cp[len(cp)-1], tags, nowUnix),
			gaugeSeries(prefix+".samples", float64(len(cp)), tags, nowUnix),
		)
	}

	return series
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func stepStatusKey(step, status string) string {
	return step + "\x00" + status
}

func splitStepStatusKey(k string) (step, status string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// ParseTagsCSV parses comma-separated tags like "env:prod,service:loader".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ metrics.Backend = (*Backend)(nil)
