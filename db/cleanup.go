package db

import (
	"context"
	"fmt"
	"time"
)

// PruneResult reports what a retention run removed.
type PruneResult struct {
	BatchesDeleted int64
	TasksDeleted   int64
	Duration       time.Duration
}

// Prune deletes batches started before cutoff, and their tasks, in one
// transaction.
func (r *HistoryRepository) Prune(ctx context.Context, cutoff time.Time) (PruneResult, error) {
	start := time.Now()
	result := PruneResult{}

	conn, err := r.conn()
	if err != nil {
		return result, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cutoffMs := cutoff.UnixMilli()

	// Tasks first: the cascade only fires when foreign keys are on for this
	// connection.
	res, err := tx.ExecContext(ctx, `
		DELETE FROM batch_tasks
		WHERE batch_id IN (SELECT id FROM batches WHERE started_at_ms < ?)`, cutoffMs)
	if err != nil {
		return result, fmt.Errorf("failed to delete tasks: %w", err)
	}
	if result.TasksDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected for tasks: %w", err)
	}

	res, err = tx.ExecContext(ctx, "DELETE FROM batches WHERE started_at_ms < ?", cutoffMs)
	if err != nil {
		return result, fmt.Errorf("failed to delete batches: %w", err)
	}
	if result.BatchesDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected for batches: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit prune: %w", err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

// RetentionConfig configures the retention scheduler.
type RetentionConfig struct {
	// Retention is how long batches are kept.
	Retention time.Duration
	// Interval is how often pruning runs.
	Interval time.Duration
	// OnPrune is called after each run (optional).
	OnPrune func(result PruneResult, err error)
}

// DefaultRetentionConfig keeps 30 days and prunes daily.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Retention: 30 * 24 * time.Hour,
		Interval:  24 * time.Hour,
	}
}

// StartRetention prunes immediately, then every Interval, until ctx is
// cancelled. The returned channel closes when the goroutine exits.
//
//	ctx, cancel := context.WithCancel(context.Background())
//	done := StartRetention(ctx, repo, DefaultRetentionConfig())
//	defer func() { cancel(); <-done }()
func StartRetention(ctx context.Context, repo *HistoryRepository, config RetentionConfig) <-chan struct{} {
	if config.Retention <= 0 {
		config.Retention = DefaultRetentionConfig().Retention
	}
	if config.Interval <= 0 {
		config.Interval = DefaultRetentionConfig().Interval
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		run := func() {
			result, err := repo.Prune(ctx, time.Now().Add(-config.Retention))
			if config.OnPrune != nil {
				config.OnPrune(result, err)
			}
		}

		run()
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
	return done
}
