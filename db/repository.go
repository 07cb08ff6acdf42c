package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nanobanana/metrics"
)

// HistoryRepository reads and writes batch records.
type HistoryRepository struct {
	db *Database
}

// NewHistoryRepository creates a repository over an open, migrated Database.
func NewHistoryRepository(db *Database) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) conn() (*sql.DB, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	conn := r.db.DB()
	if conn == nil {
		return nil, fmt.Errorf("database connection is closed")
	}
	return conn, nil
}

// InsertBatch stores rec and its task rows in one transaction and returns the
// batch row id.
func (r *HistoryRepository) InsertBatch(ctx context.Context, rec metrics.BatchRecord) (int64, error) {
	conn, err := r.conn()
	if err != nil {
		return 0, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO batches (
			request_id, started_at_ms, duration_ms, mode, aspect_ratio,
			outcome, requested, successful, failed, images, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID,
		rec.StartTime.UnixMilli(),
		rec.Duration.Milliseconds(),
		rec.Mode,
		rec.AspectRatio,
		rec.Outcome,
		rec.Requested,
		rec.Successful,
		rec.Failed,
		rec.Images,
		rec.ErrorMsg,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get batch id: %w", err)
	}

	if len(rec.Tasks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO batch_tasks (batch_id, task_index, result, status, latency_ms)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("failed to prepare task insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range rec.Tasks {
			if _, err := stmt.ExecContext(ctx, id, t.Index, t.Result, t.Status, t.Latency.Milliseconds()); err != nil {
				return 0, fmt.Errorf("failed to insert task %d: %w", t.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return id, nil
}

// RecentBatches returns up to limit batches, most recent first, with their
// tasks in index order.
func (r *HistoryRepository) RecentBatches(ctx context.Context, limit int) ([]metrics.BatchRecord, error) {
	if limit <= 0 {
		return []metrics.BatchRecord{}, nil
	}
	conn, err := r.conn()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT id, request_id, started_at_ms, duration_ms, mode, aspect_ratio,
		       outcome, requested, successful, failed, images, error_message
		FROM batches
		ORDER BY started_at_ms DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}

	records := []metrics.BatchRecord{}
	positions := make(map[int64]int)
	for rows.Next() {
		var (
			id                    int64
			startedMs, durationMs int64
			rec                   metrics.BatchRecord
		)
		if err := rows.Scan(&id, &rec.RequestID, &startedMs, &durationMs, &rec.Mode, &rec.AspectRatio,
			&rec.Outcome, &rec.Requested, &rec.Successful, &rec.Failed, &rec.Images, &rec.ErrorMsg); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		rec.StartTime = time.UnixMilli(startedMs)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		positions[id] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate batches: %w", err)
	}
	// The pool has one connection; release it before the next query.
	rows.Close()

	if len(records) == 0 {
		return records, nil
	}
	if err := r.attachTasks(ctx, conn, records, positions, limit); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *HistoryRepository) attachTasks(ctx context.Context, conn *sql.DB, records []metrics.BatchRecord, positions map[int64]int, limit int) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT batch_id, task_index, result, status, latency_ms
		FROM batch_tasks
		WHERE batch_id IN (
			SELECT id FROM batches ORDER BY started_at_ms DESC, id DESC LIMIT ?
		)
		ORDER BY batch_id, task_index`, limit)
	if err != nil {
		return fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			batchID   int64
			latencyMs int64
			task      metrics.TaskRecord
		)
		if err := rows.Scan(&batchID, &task.Index, &task.Result, &task.Status, &latencyMs); err != nil {
			return fmt.Errorf("failed to scan task: %w", err)
		}
		pos, ok := positions[batchID]
		if !ok {
			// Inserted between the two queries.
			continue
		}
		task.Latency = time.Duration(latencyMs) * time.Millisecond
		records[pos].Tasks = append(records[pos].Tasks, task)
	}
	return rows.Err()
}

// CountBatches returns the number of stored batches.
func (r *HistoryRepository) CountBatches(ctx context.Context) (int64, error) {
	conn, err := r.conn()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM batches").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count batches: %w", err)
	}
	return n, nil
}

// OutcomeCounts returns the number of batches per outcome started at or
// after since.
func (r *HistoryRepository) OutcomeCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	conn, err := r.conn()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT outcome, COUNT(*) FROM batches
		WHERE started_at_ms >= ?
		GROUP BY outcome`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
