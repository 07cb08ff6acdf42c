package logging

import (
	"time"

	"go.uber.org/zap"
)

// Field keys shared by the HTTP layer and the generator.
const (
	KeyRequestID = "request_id"
	KeyTaskIndex = "task_index"
)

// RequestID tags an entry with the inbound request's correlation id.
func RequestID(id string) zap.Field {
	return zap.String(KeyRequestID, id)
}

// TaskIndex tags an entry with the position of a generation task in its batch.
func TaskIndex(i int) zap.Field {
	return zap.Int(KeyTaskIndex, i)
}

// ElapsedMs records the time since start in whole milliseconds.
func ElapsedMs(start time.Time) zap.Field {
	return zap.Int64("elapsed_ms", time.Since(start).Milliseconds())
}

// BatchStats records the three batch counters as flat fields.
//
//	logger.Info("batch finished", logging.BatchStats(4, 3, 1)...)
func BatchStats(requested, successful, failed int) []zap.Field {
	return []zap.Field{
		zap.Int("requested", requested),
		zap.Int("successful", successful),
		zap.Int("failed", failed),
	}
}
