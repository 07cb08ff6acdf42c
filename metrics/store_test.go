package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func batch(id, outcome string, requested, successful int) BatchRecord {
	return BatchRecord{
		RequestID:  id,
		StartTime:  time.Now(),
		Duration:   2 * time.Second,
		Outcome:    outcome,
		Requested:  requested,
		Successful: successful,
		Failed:     requested - successful,
		Images:     successful,
	}
}

func TestNewMetricsStore_DefaultsCapacity(t *testing.T) {
	store := NewMetricsStore(StoreConfig{}, time.Now())
	if store.cap != 100 {
		t.Errorf("cap = %d, want 100", store.cap)
	}
}

func TestMetricsStore_RecordBatch_Totals(t *testing.T) {
	store := NewMetricsStore(DefaultStoreConfig(), time.Now())

	rec := batch("a", OutcomePartial, 4, 1)
	rec.Tasks = []TaskRecord{
		{Index: 0, Result: TaskResultSuccess, Latency: time.Second},
		{Index: 1, Result: "timeout", Latency: 15 * time.Second},
		{Index: 2, Result: "upstream", Status: 500},
		{Index: 3, Result: TaskResultUnclaimed},
	}
	store.RecordBatch(rec)
	store.RecordBatch(batch("b", OutcomeSuccess, 2, 2))

	m := store.GetBatchMetrics()
	if m.TotalBatches != 2 {
		t.Errorf("TotalBatches = %d, want 2", m.TotalBatches)
	}
	if m.ByOutcome[OutcomePartial] != 1 || m.ByOutcome[OutcomeSuccess] != 1 {
		t.Errorf("ByOutcome = %v", m.ByOutcome)
	}
	if m.TasksRequested != 6 || m.TasksSuccessful != 3 {
		t.Errorf("tasks = %d/%d, want 3/6", m.TasksSuccessful, m.TasksRequested)
	}
	if m.ImagesReturned != 3 {
		t.Errorf("ImagesReturned = %d, want 3", m.ImagesReturned)
	}
	if m.SuccessRate != 50 {
		t.Errorf("SuccessRate = %v, want 50", m.SuccessRate)
	}
	if m.AvgDuration != 2*time.Second {
		t.Errorf("AvgDuration = %v, want 2s", m.AvgDuration)
	}
	if m.TasksByResult[TaskResultUnclaimed] != 1 || m.TasksByResult["timeout"] != 1 {
		t.Errorf("TasksByResult = %v", m.TasksByResult)
	}
}

func TestMetricsStore_GetBatchMetrics_ReturnsCopies(t *testing.T) {
	store := NewMetricsStore(DefaultStoreConfig(), time.Now())
	store.RecordBatch(batch("a", OutcomeSuccess, 1, 1))

	m := store.GetBatchMetrics()
	m.ByOutcome[OutcomeSuccess] = 99

	if got := store.GetBatchMetrics().ByOutcome[OutcomeSuccess]; got != 1 {
		t.Errorf("store mutated through returned map: %d", got)
	}
}

func TestMetricsStore_GetRecentBatches(t *testing.T) {
	store := NewMetricsStore(StoreConfig{HistoryCapacity: 3}, time.Now())
	for i := 0; i < 5; i++ {
		store.RecordBatch(batch(fmt.Sprintf("r%d", i), OutcomeSuccess, 1, 1))
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"zero limit", 0, nil},
		{"negative limit", -1, nil},
		{"one", 1, []string{"r4"}},
		{"all retained", 3, []string{"r4", "r3", "r2"}},
		{"limit above capacity", 10, []string{"r4", "r3", "r2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := store.GetRecentBatches(tt.limit)
			if got == nil {
				t.Fatal("GetRecentBatches returned nil slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].RequestID != id {
					t.Errorf("[%d] = %s, want %s", i, got[i].RequestID, id)
				}
			}
		})
	}
}

func TestMetricsStore_GetSystemStatus(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []string
		want     string
	}{
		{"no batches", nil, SystemHealthRunning},
		{"only validation errors", []string{OutcomeInvalid, OutcomeConfigError}, SystemHealthRunning},
		{"all upstream failed", []string{OutcomeAllFailed, OutcomeInvalid, OutcomeInsufficientQuota}, SystemHealthDegraded},
		{"one partial recovers", []string{OutcomeAllFailed, OutcomePartial}, SystemHealthRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMetricsStore(StoreConfig{Version: "1.2.3"}, time.Now().Add(-time.Minute))
			for i, o := range tt.outcomes {
				store.RecordBatch(batch(fmt.Sprint(i), o, 1, 0))
			}
			status := store.GetSystemStatus()
			if status.Health != tt.want {
				t.Errorf("Health = %s, want %s", status.Health, tt.want)
			}
			if status.Version != "1.2.3" {
				t.Errorf("Version = %s", status.Version)
			}
			if status.Uptime < time.Minute {
				t.Errorf("Uptime = %v, want >= 1m", status.Uptime)
			}
		})
	}
}

func TestMetricsStore_ConcurrentRecord(t *testing.T) {
	store := NewMetricsStore(StoreConfig{HistoryCapacity: 10}, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.RecordBatch(batch(fmt.Sprint(i), OutcomeSuccess, 1, 1))
			_ = store.GetRecentBatches(5)
		}(i)
	}
	wg.Wait()

	if got := store.GetBatchMetrics().TotalBatches; got != 50 {
		t.Errorf("TotalBatches = %d, want 50", got)
	}
	if got := len(store.GetRecentBatches(100)); got != 10 {
		t.Errorf("retained = %d, want 10", got)
	}
}
