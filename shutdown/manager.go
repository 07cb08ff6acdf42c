package shutdown

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"nanobanana/core"
	"nanobanana/logging"
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 30 * time.Second

// Manager ties together the operation tracker, the cleanup registry and
// signal handling.
//
//	manager := shutdown.NewManager(logger)
//	manager.Register("http-server", 10, shutdown.HTTPServer(srv))
//	manager.Start()
//	<-manager.Context().Done()
//	err := manager.Shutdown()
type Manager struct {
	logger   *logging.Logger
	timeout  time.Duration
	mu       sync.Mutex
	started  bool
	shutdown bool
	exitCode int

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *ShutdownRegistry
	signals  *SignalCounter

	sigChan chan os.Signal
	exit    func(code int)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout sets the shutdown deadline. Default is 30 seconds.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithExitFunc replaces os.Exit for the forced exit on a second signal.
func WithExitFunc(exit func(code int)) ManagerOption {
	return func(m *Manager) {
		m.exit = exit
	}
}

// NewManager creates a Manager. A nil logger discards output.
func NewManager(logger *logging.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:   logger.Named("shutdown"),
		timeout:  DefaultTimeout,
		exitCode: core.ExitCodeSuccess,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewOperationTracker(),
		registry: NewShutdownRegistry(),
		sigChan:  make(chan os.Signal, 1),
		exit:     os.Exit,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("received second signal, forcing exit")
		m.exit(core.ExitCodeError)
	})
	return m
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup step; lower priorities run first.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("registered shutdown handler",
		zap.String("name", name),
		zap.Int("priority", priority))
}

// Start listens for SIGINT and SIGTERM. The first signal cancels Context;
// the second exits immediately. Repeated calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			if m.signals.Increment() == 1 {
				m.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
				m.setExitCode(signalExitCode(sig))
				m.cancel()
			}
		}
	}()
}

// Trigger starts shutdown without a signal, e.g. when the server fails.
func (m *Manager) Trigger(reason string) {
	m.logger.Info("shutdown triggered", zap.String("reason", reason))
	m.cancel()
}

func (m *Manager) setExitCode(code int) {
	m.mu.Lock()
	m.exitCode = code
	m.mu.Unlock()
}

// ExitCode is the process exit code implied by the signal that stopped the
// service, or ExitCodeSuccess.
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

func signalExitCode(sig os.Signal) int {
	if sig == syscall.SIGTERM {
		return core.ExitCodeSIGTERM
	}
	return core.ExitCodeSIGINT
}

// Shutdown rejects new operations, waits for running ones and runs the
// cleanup steps, all within the configured timeout. Cleanup always gets at
// least one second. Later calls return nil.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	m.cancel()
	startTime := time.Now()
	m.logger.Info("initiating graceful shutdown",
		zap.Duration("timeout", m.timeout),
		zap.Int64("in_flight", m.tracker.ActiveCount()),
		zap.Int("handlers", m.registry.Count()))

	m.tracker.Close()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), m.timeout)
	if err := m.tracker.Wait(waitCtx); err != nil {
		m.logger.Warn("timed out waiting for in-flight requests",
			zap.Int64("remaining", m.tracker.ActiveCount()))
	}
	cancelWait()

	remaining := m.timeout - time.Since(startTime)
	if remaining < time.Second {
		remaining = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	errs := m.registry.Shutdown(ctx)
	for _, err := range errs {
		m.logger.Error("cleanup step failed", zap.Error(err))
	}

	if started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown had %d errors", len(errs))
	}
	m.logger.Info("graceful shutdown completed", zap.Duration("duration", time.Since(startTime)))
	return nil
}

// Wait blocks until shutdown begins.
func (m *Manager) Wait() {
	<-m.ctx.Done()
}

// WrapOperation runs fn as a tracked operation. It returns ErrTrackerClosed
// without calling fn once shutdown has begun.
func (m *Manager) WrapOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	if !m.tracker.Start() {
		m.logger.Debug("operation rejected, shutting down", zap.String("operation", name))
		return ErrTrackerClosed
	}
	defer m.tracker.Done()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// Middleware tracks each request as an operation and answers 503 once
// shutdown has begun.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.tracker.Start() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Connection", "close")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Server is shutting down"})
			return
		}
		defer m.tracker.Done()
		next.ServeHTTP(w, r)
	})
}

// ActiveOperations returns the number of running operations.
func (m *Manager) ActiveOperations() int64 {
	return m.tracker.ActiveCount()
}

// IsShuttingDown reports whether shutdown has begun.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown || m.tracker.IsClosed()
}

// RegisteredHandlers returns cleanup step names in execution order.
func (m *Manager) RegisteredHandlers() []string {
	return m.registry.Names()
}
