package webui

import (
	"context"
	"errors"
	"sync"
	"time"

	"nanobanana/imagegen"
	"nanobanana/metrics"
)

// fakeGenerator returns canned results and remembers what it was given.
type fakeGenerator struct {
	mu        sync.Mutex
	result    *imagegen.AggregateResult
	err       error
	panicWith interface{}
	bodies    [][]byte
	ids       []string
}

func (f *fakeGenerator) Generate(ctx context.Context, body []byte) (*imagegen.AggregateResult, error) {
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	id, _ := imagegen.RequestIDFromContext(ctx)
	f.ids = append(f.ids, id)
	f.mu.Unlock()

	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.result, f.err
}

func (f *fakeGenerator) lastRequestID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) == 0 {
		return ""
	}
	return f.ids[len(f.ids)-1]
}

// fakeHistory implements HistorySource.
type fakeHistory struct {
	batches []metrics.BatchRecord
	count   int64
	err     error
	limits  []int
}

func (f *fakeHistory) RecentBatches(ctx context.Context, limit int) ([]metrics.BatchRecord, error) {
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.batches) {
		return f.batches[:limit], nil
	}
	return f.batches, nil
}

func (f *fakeHistory) CountBatches(ctx context.Context) (int64, error) {
	return f.count, f.err
}

var errHistoryDown = errors.New("database is locked")

func newTestStore(records ...metrics.BatchRecord) *metrics.MetricsStore {
	store := metrics.NewMetricsStore(metrics.StoreConfig{HistoryCapacity: 10, Version: "test"}, time.Now().Add(-90*time.Second))
	for _, rec := range records {
		store.RecordBatch(rec)
	}
	return store
}

func batchRecord(id, outcome string) metrics.BatchRecord {
	return metrics.BatchRecord{
		RequestID:  id,
		StartTime:  time.Now(),
		Duration:   1200 * time.Millisecond,
		Outcome:    outcome,
		Requested:  2,
		Successful: 2,
		Images:     2,
	}
}

func sampleResult() *imagegen.AggregateResult {
	return &imagegen.AggregateResult{
		Images:  []imagegen.ImageRef{imagegen.NewImageRef("https://cdn.example.com/a.png")},
		Stats:   imagegen.Stats{Requested: 2, Successful: 1, Failed: 1},
		Warning: "1 of 2 image generations failed",
	}
}
