package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollector_RecordBatch(t *testing.T) {
	c := NewPrometheusCollector("test")

	c.RecordBatch(BatchRecord{
		Outcome:  OutcomePartial,
		Duration: 3 * time.Second,
		Images:   1,
		Tasks: []TaskRecord{
			{Index: 0, Result: TaskResultSuccess, Latency: time.Second},
			{Index: 1, Result: "upstream", Status: 503, Latency: time.Second},
			{Index: 2, Result: TaskResultUnclaimed},
		},
	})
	c.RecordBatch(BatchRecord{Outcome: OutcomeInvalid})

	if got := testutil.ToFloat64(c.batchesTotal.WithLabelValues(OutcomePartial)); got != 1 {
		t.Errorf("partial batches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.batchesTotal.WithLabelValues(OutcomeInvalid)); got != 1 {
		t.Errorf("invalid batches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.imagesTotal); got != 1 {
		t.Errorf("images = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.tasksTotal.WithLabelValues(TaskResultUnclaimed)); got != 1 {
		t.Errorf("unclaimed tasks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.upstreamStatus.WithLabelValues("503")); got != 1 {
		t.Errorf("upstream 503 = %v, want 1", got)
	}
	// Unclaimed tasks have no latency to observe.
	if got := testutil.CollectAndCount(c.taskDuration); got != 2 {
		t.Errorf("task duration series = %d, want 2", got)
	}
}

func TestPrometheusCollector_IndependentRegistries(t *testing.T) {
	a := NewPrometheusCollector("")
	b := NewPrometheusCollector("")

	a.RecordHTTPRequest("POST", "/api/generate", 200, time.Second)

	if got := testutil.ToFloat64(b.httpRequestsTotal.WithLabelValues("POST", "/api/generate", "200")); got != 0 {
		t.Errorf("second collector saw %v requests", got)
	}
}

func TestPrometheusCollector_TrackInFlight(t *testing.T) {
	c := NewPrometheusCollector("test")

	done := c.TrackInFlight()
	if got := testutil.ToFloat64(c.inFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
	done()
	if got := testutil.ToFloat64(c.inFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestPrometheusCollector_Handler(t *testing.T) {
	c := NewPrometheusCollector("test")
	c.RecordBatch(BatchRecord{Outcome: OutcomeSuccess, Images: 2})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`test_generate_requests_total{outcome="success"} 1`,
		`test_images_returned_total 2`,
		`go_goroutines`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
