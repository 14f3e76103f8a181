package datadog

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"datamove/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// newTestBackend constructs a backend with all seams stubbed: a fake
// submitter, a fixed clock, and a ticker slow enough to never fire during a
// test.
func newTestBackend(t *testing.T, fake *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:   "test",
		submitter: fake,
		now:       func() time.Time { return time.Unix(1700000000, 0) },
		newTicker: func(time.Duration) *time.Ticker { return time.NewTicker(time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func TestFlushSubmitsAndResets(t *testing.T) {
	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)

	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "provision", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 100, nil)
	b.IncCounter(metrics.BatchesTotal, 3, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.5, metrics.Labels{"step": "load", "status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := fake.count(); got != 1 {
		t.Fatalf("submissions=%d, want 1", got)
	}

	payload, ok := fake.last()
	if !ok || len(payload.Series) == 0 {
		t.Fatalf("expected a non-empty payload")
	}

	names := map[string]bool{}
	for _, s := range payload.Series {
		names[s.Metric] = true
	}
	for _, want := range []string{
		"datamove.step.total",
		"datamove.rows.total",
		"datamove.batches.total",
		"datamove.step.duration_seconds.p50",
		"datamove.step.duration_seconds.max",
	} {
		if !names[want] {
			t.Errorf("missing series %q in %v", want, names)
		}
	}

	// Second flush has nothing buffered and must not submit.
	if err := b.Flush(); err != nil {
		t.Fatalf("empty Flush: %v", err)
	}
	if got := fake.count(); got != 1 {
		t.Fatalf("submissions after empty flush=%d, want 1", got)
	}
}

func TestIgnoredObservations(t *testing.T) {
	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)

	b.IncCounter("unrelated_total", 1, nil)
	b.IncCounter(metrics.RowsTotal, 0, nil)
	b.IncCounter(metrics.RowsTotal, -5, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{"step": "load", "status": "ok"})
	b.ObserveHistogram("unrelated_seconds", 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := fake.count(); got != 0 {
		t.Fatalf("submissions=%d, want 0", got)
	}
}

func TestCloseFlushesTail(t *testing.T) {
	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)

	b.IncCounter(metrics.RowsTotal, 1, nil)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := fake.count(); got != 1 {
		t.Fatalf("submissions=%d, want 1", got)
	}
}

func TestStepStatusKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		step   string
		status string
	}{
		{name: "normal", step: "provision", status: "ok"},
		{name: "empty_step", step: "", status: "ok"},
		{name: "empty_status", step: "load", status: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			step, status := splitStepStatusKey(stepStatusKey(tc.step, tc.status))
			if step != tc.step || status != tc.status {
				t.Fatalf("round trip (%q,%q) != (%q,%q)", step, status, tc.step, tc.status)
			}
		})
	}
}

func TestPercentileNearestRank(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		p    float64
		want float64
	}{
		{p: 0, want: 1},
		{p: 0.5, want: 6},
		{p: 0.9, want: 9},
		{p: 1, want: 10},
	}
	for _, tc := range tests {
		if got := percentileNearestRank(sorted, tc.p); got != tc.want {
			t.Errorf("p%.0f=%v, want %v", tc.p*100, got, tc.want)
		}
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Errorf("empty sample percentile=%v, want 0", got)
	}
}

func TestParseTagsCSV(t *testing.T) {
	got := ParseTagsCSV(" env:prod , service:loader ,, ")
	want := []string{"env:prod", "service:loader"}
	if len(got) != len(want) {
		t.Fatalf("ParseTagsCSV=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParseTagsCSV[%d]=%q, want %q", i, got[i], want[i])
		}
	}
}
