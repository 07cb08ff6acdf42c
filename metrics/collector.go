package metrics

// Recorder receives one record per finished generation request.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RecordBatch(rec BatchRecord)
}

// MetricsCollector is a Recorder that can also answer dashboard queries.
type MetricsCollector interface {
	Recorder

	// GetBatchMetrics returns totals since startup.
	GetBatchMetrics() BatchMetrics

	// GetRecentBatches returns up to limit records, most recent first.
	GetRecentBatches(limit int) []BatchRecord

	// GetSystemStatus returns health, version and uptime.
	GetSystemStatus() SystemStatus
}

// MultiRecorder fans a record out to several recorders in order.
type MultiRecorder []Recorder

// RecordBatch implements Recorder.
func (m MultiRecorder) RecordBatch(rec BatchRecord) {
	for _, r := range m {
		if r != nil {
			r.RecordBatch(rec)
		}
	}
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(rec BatchRecord)

// RecordBatch implements Recorder.
func (f RecorderFunc) RecordBatch(rec BatchRecord) {
	f(rec)
}
