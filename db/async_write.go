package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"nanobanana/logging"
	"nanobanana/metrics"
)

// Writer defaults.
const (
	DefaultQueueCapacity = 100
	DefaultWriteTimeout  = 5 * time.Second
)

// HistoryWriterConfig configures a HistoryWriter.
type HistoryWriterConfig struct {
	// QueueCapacity is how many records may wait for SQLite.
	QueueCapacity int
	// WriteTimeout bounds each insert.
	WriteTimeout time.Duration
}

// DefaultHistoryWriterConfig returns the default configuration.
func DefaultHistoryWriterConfig() HistoryWriterConfig {
	return HistoryWriterConfig{
		QueueCapacity: DefaultQueueCapacity,
		WriteTimeout:  DefaultWriteTimeout,
	}
}

// batchInserter is the part of HistoryRepository the writer needs.
type batchInserter interface {
	InsertBatch(ctx context.Context, rec metrics.BatchRecord) (int64, error)
}

// HistoryWriter is a metrics.Recorder that persists records on a background
// goroutine, so request handlers never wait on SQLite. When the queue is full
// records are dropped and counted.
type HistoryWriter struct {
	repo    batchInserter
	logger  *logging.Logger
	queue   chan metrics.BatchRecord
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewHistoryWriter creates a writer; call Start before recording.
func NewHistoryWriter(repo *HistoryRepository, logger *logging.Logger, config HistoryWriterConfig) *HistoryWriter {
	return newHistoryWriter(repo, logger, config)
}

func newHistoryWriter(repo batchInserter, logger *logging.Logger, config HistoryWriterConfig) *HistoryWriter {
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultQueueCapacity
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &HistoryWriter{
		repo:    repo,
		logger:  logger.Named("history"),
		queue:   make(chan metrics.BatchRecord, config.QueueCapacity),
		timeout: config.WriteTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the background goroutine. Repeated calls are no-ops.
func (w *HistoryWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

func (w *HistoryWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case rec := <-w.queue:
			w.write(rec)
		}
	}
}

// drain writes whatever is still queued when the writer stops.
func (w *HistoryWriter) drain() {
	for {
		select {
		case rec := <-w.queue:
			w.write(rec)
		default:
			return
		}
	}
}

func (w *HistoryWriter) write(rec metrics.BatchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if _, err := w.repo.InsertBatch(ctx, rec); err != nil {
		w.failed.Add(1)
		w.logger.Warn("failed to persist batch record",
			logging.RequestID(rec.RequestID),
			zap.Error(err))
		return
	}
	w.written.Add(1)
}

// RecordBatch implements metrics.Recorder. It never blocks.
func (w *HistoryWriter) RecordBatch(rec metrics.BatchRecord) {
	select {
	case w.queue <- rec:
	default:
		w.dropped.Add(1)
		w.logger.Warn("history queue full, dropping batch record",
			logging.RequestID(rec.RequestID),
			zap.Int("capacity", cap(w.queue)))
	}
}

// Pending returns the number of queued records.
func (w *HistoryWriter) Pending() int {
	return len(w.queue)
}

// Written returns how many records were persisted.
func (w *HistoryWriter) Written() int64 {
	return w.written.Load()
}

// Dropped returns how many records were discarded because the queue was full.
func (w *HistoryWriter) Dropped() int64 {
	return w.dropped.Load()
}

// Failed returns how many inserts returned an error.
func (w *HistoryWriter) Failed() int64 {
	return w.failed.Load()
}

// Stop drains the queue and waits for the goroutine, or returns ctx.Err()
// when ctx ends first.
func (w *HistoryWriter) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ metrics.Recorder = (*HistoryWriter)(nil)
