package db

import (
	"path/filepath"
	"testing"
	"time"

	"nanobanana/metrics"
)

// newTestRepository opens a migrated database in a temp dir.
func newTestRepository(t *testing.T) (*HistoryRepository, *Database) {
	t.Helper()
	database, err := NewDatabase(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewHistoryRepository(database), database
}

func sampleBatch(id string, started time.Time) metrics.BatchRecord {
	return metrics.BatchRecord{
		RequestID:   id,
		StartTime:   started,
		Duration:    1500 * time.Millisecond,
		Mode:        "image-to-image",
		AspectRatio: "1344x768",
		Outcome:     metrics.OutcomePartial,
		Requested:   3,
		Successful:  1,
		Failed:      2,
		Images:      1,
		ErrorMsg:    "",
		Tasks: []metrics.TaskRecord{
			{Index: 0, Result: metrics.TaskResultSuccess, Latency: 1200 * time.Millisecond},
			{Index: 1, Result: "upstream", Status: 502, Latency: 300 * time.Millisecond},
			{Index: 2, Result: metrics.TaskResultUnclaimed},
		},
	}
}
