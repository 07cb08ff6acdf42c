package metrics

import (
	"sync"
	"time"
)

// degradedWindow is how many recent batches decide the health status.
const degradedWindow = 10

// MetricsStore keeps a fixed-size ring of recent batches plus running totals.
//
//	store := NewMetricsStore(DefaultStoreConfig(), time.Now())
//	store.RecordBatch(rec)
//	totals := store.GetBatchMetrics()
type MetricsStore struct {
	mu sync.RWMutex

	history []BatchRecord
	cap     int
	head    int
	size    int

	totalBatches    int64
	byOutcome       map[string]int64
	tasksRequested  int64
	tasksSuccessful int64
	tasksByResult   map[string]int64
	imagesReturned  int64
	totalDuration   time.Duration

	startTime time.Time
	version   string
}

// StoreConfig configures the MetricsStore.
type StoreConfig struct {
	HistoryCapacity int
	Version         string
}

// DefaultStoreConfig keeps the last 100 batches.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{HistoryCapacity: 100, Version: "dev"}
}

// NewMetricsStore creates a store; startTime is the base for uptime.
func NewMetricsStore(config StoreConfig, startTime time.Time) *MetricsStore {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = 100
	}
	return &MetricsStore{
		history:       make([]BatchRecord, capacity),
		cap:           capacity,
		byOutcome:     make(map[string]int64),
		tasksByResult: make(map[string]int64),
		startTime:     startTime,
		version:       config.Version,
	}
}

// RecordBatch implements Recorder.
func (s *MetricsStore) RecordBatch(rec BatchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = rec
	s.head = (s.head + 1) % s.cap
	if s.size < s.cap {
		s.size++
	}

	s.totalBatches++
	s.byOutcome[rec.Outcome]++
	s.tasksRequested += int64(rec.Requested)
	s.tasksSuccessful += int64(rec.Successful)
	s.imagesReturned += int64(rec.Images)
	s.totalDuration += rec.Duration
	for _, t := range rec.Tasks {
		s.tasksByResult[t.Result]++
	}
}

// GetBatchMetrics implements MetricsCollector.
func (s *MetricsStore) GetBatchMetrics() BatchMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := BatchMetrics{
		TotalBatches:    s.totalBatches,
		ByOutcome:       make(map[string]int64, len(s.byOutcome)),
		TasksRequested:  s.tasksRequested,
		TasksSuccessful: s.tasksSuccessful,
		TasksByResult:   make(map[string]int64, len(s.tasksByResult)),
		ImagesReturned:  s.imagesReturned,
	}
	for k, v := range s.byOutcome {
		m.ByOutcome[k] = v
	}
	for k, v := range s.tasksByResult {
		m.TasksByResult[k] = v
	}
	if s.tasksRequested > 0 {
		m.SuccessRate = float64(s.tasksSuccessful) / float64(s.tasksRequested) * 100
	}
	if s.totalBatches > 0 {
		m.AvgDuration = s.totalDuration / time.Duration(s.totalBatches)
	}
	return m
}

// GetRecentBatches implements MetricsCollector.
func (s *MetricsStore) GetRecentBatches(limit int) []BatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentLocked(limit)
}

func (s *MetricsStore) recentLocked(limit int) []BatchRecord {
	if limit <= 0 || s.size == 0 {
		return []BatchRecord{}
	}
	if limit > s.size {
		limit = s.size
	}

	out := make([]BatchRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - 1 - i + s.cap) % s.cap
		out[i] = s.history[idx]
	}
	return out
}

// GetSystemStatus implements MetricsCollector. The service is degraded when
// every one of the last few batches that reached the upstream failed.
func (s *MetricsStore) GetSystemStatus() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := SystemHealthRunning
	upstreamBatches, failures := 0, 0
	for _, rec := range s.recentLocked(degradedWindow) {
		switch rec.Outcome {
		case OutcomeSuccess, OutcomePartial:
			upstreamBatches++
		case OutcomeAllFailed, OutcomeInsufficientQuota:
			upstreamBatches++
			failures++
		}
	}
	if upstreamBatches > 0 && failures == upstreamBatches {
		health = SystemHealthDegraded
	}

	return SystemStatus{
		Health:    health,
		Version:   s.version,
		Uptime:    time.Since(s.startTime),
		LastCheck: time.Now(),
	}
}

var _ MetricsCollector = (*MetricsStore)(nil)
