// Package metrics records the outcome of generation batches: an in-memory
// history for the dashboard API and Prometheus collectors for scraping.
package metrics

import "time"

// Batch outcomes, also used as Prometheus label values.
const (
	OutcomeSuccess           = "success"
	OutcomePartial           = "partial"
	OutcomeInsufficientQuota = "insufficient_quota"
	OutcomeAllFailed         = "all_failed"
	OutcomeInvalid           = "invalid"
	OutcomeConfigError       = "config_error"
	OutcomeInternalError     = "internal_error"
)

// Task results. Unclaimed marks tasks the batch deadline cut off before they
// started.
const (
	TaskResultSuccess   = "success"
	TaskResultUnclaimed = "unclaimed"
)

// TaskRecord is the result of one task within a batch.
type TaskRecord struct {
	Index   int           `json:"index"`
	Result  string        `json:"result"`
	Status  int           `json:"status,omitempty"`
	Latency time.Duration `json:"latency"`
}

// BatchRecord describes one generation request. It never holds prompts or
// images.
type BatchRecord struct {
	RequestID   string        `json:"request_id"`
	StartTime   time.Time     `json:"start_time"`
	Duration    time.Duration `json:"duration"`
	Mode        string        `json:"mode,omitempty"`
	AspectRatio string        `json:"aspect_ratio,omitempty"`
	Outcome     string        `json:"outcome"`
	Requested   int           `json:"requested"`
	Successful  int           `json:"successful"`
	Failed      int           `json:"failed"`
	Images      int           `json:"images"`
	ErrorMsg    string        `json:"error_msg,omitempty"`
	Tasks       []TaskRecord  `json:"tasks,omitempty"`
}

// BatchMetrics aggregates every batch recorded since startup.
type BatchMetrics struct {
	TotalBatches    int64            `json:"total_batches"`
	ByOutcome       map[string]int64 `json:"by_outcome"`
	TasksRequested  int64            `json:"tasks_requested"`
	TasksSuccessful int64            `json:"tasks_successful"`
	TasksByResult   map[string]int64 `json:"tasks_by_result"`
	ImagesReturned  int64            `json:"images_returned"`
	SuccessRate     float64          `json:"success_rate"`
	AvgDuration     time.Duration    `json:"avg_duration"`
}

// SystemStatus is the process summary served by the dashboard API.
type SystemStatus struct {
	Health    string        `json:"health"`
	Version   string        `json:"version"`
	Uptime    time.Duration `json:"uptime"`
	LastCheck time.Time     `json:"last_check"`
}

// Health values for SystemStatus.
const (
	SystemHealthRunning  = "running"
	SystemHealthDegraded = "degraded"
)
