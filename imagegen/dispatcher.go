package imagegen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nanobanana/logging"
)

// Timeout defaults and floor applied by DispatchConfig.Normalize.
const (
	DefaultTaskTimeout = 15 * time.Second
	MinTimeout         = time.Second
)

var (
	errTaskTimeout    = errors.New("imagegen: generation timed out")
	errGlobalDeadline = errors.New("imagegen: overall generation deadline exceeded")
)

// DispatchConfig bounds one batch. Zero values mean "use the default".
type DispatchConfig struct {
	MaxConcurrent int
	TaskTimeout   time.Duration
	GlobalTimeout time.Duration
}

// Normalize resolves defaults for a batch of taskCount tasks: concurrency
// defaults to taskCount and is clamped to [1, taskCount]; the task timeout
// defaults to 15s, the global deadline to the task timeout, and both are
// floored at one second. A global deadline shorter than the task timeout is
// kept as configured.
func (c DispatchConfig) Normalize(taskCount int) DispatchConfig {
	return c.normalize(taskCount, MinTimeout)
}

func (c DispatchConfig) normalize(taskCount int, floor time.Duration) DispatchConfig {
	if taskCount < 1 {
		taskCount = 1
	}
	out := c
	if out.MaxConcurrent <= 0 || out.MaxConcurrent > taskCount {
		out.MaxConcurrent = taskCount
	}
	if out.TaskTimeout <= 0 {
		out.TaskTimeout = DefaultTaskTimeout
	}
	if out.TaskTimeout < floor {
		out.TaskTimeout = floor
	}
	if out.GlobalTimeout <= 0 {
		out.GlobalTimeout = out.TaskTimeout
	}
	if out.GlobalTimeout < floor {
		out.GlobalTimeout = floor
	}
	return out
}

type taskIndexKey struct{}

// TaskIndexFromContext returns the index of the task whose context this is.
func TaskIndexFromContext(ctx context.Context) (int, bool) {
	i, ok := ctx.Value(taskIndexKey{}).(int)
	return i, ok
}

// Dispatcher runs a batch of tasks against a Provider with a fixed number of
// workers, a timeout per task and a deadline for the whole batch.
//
// Workers claim tasks through a shared atomic cursor, so each task is started
// at most once and outcome i always belongs to task i. Every task runs under
// a child of the batch context: the per-task timer cancels only that child,
// while the batch deadline cancels all of them.
type Dispatcher struct {
	provider Provider
	config   DispatchConfig
	logger   *logging.Logger
	floor    time.Duration
}

// NewDispatcher creates a Dispatcher. A nil logger discards output.
func NewDispatcher(provider Provider, cfg DispatchConfig, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Dispatcher{
		provider: provider,
		config:   cfg,
		logger:   logger.Named("dispatcher"),
		floor:    MinTimeout,
	}
}

// Config returns the configuration the dispatcher will normalize per batch.
func (d *Dispatcher) Config() DispatchConfig {
	return d.config
}

// Dispatch runs tasks and returns one slot per task. A slot is nil only when
// the batch deadline (or ctx) ended before the task was claimed. Task
// failures are recorded in the slots; Dispatch itself never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []GenerationTask) []*TaskOutcome {
	outcomes := make([]*TaskOutcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	cfg := d.config.normalize(len(tasks), d.floor)
	if cfg.GlobalTimeout < cfg.TaskTimeout {
		d.logger.Debug("overall deadline shorter than task timeout",
			zap.Duration("task_timeout", cfg.TaskTimeout),
			zap.Duration("overall_timeout", cfg.GlobalTimeout))
	}

	batchCtx, cancel := context.WithTimeoutCause(ctx, cfg.GlobalTimeout, errGlobalDeadline)
	defer cancel()

	var cursor atomic.Int64
	var g errgroup.Group
	for w := 0; w < cfg.MaxConcurrent; w++ {
		g.Go(func() error {
			for {
				if batchCtx.Err() != nil {
					return nil
				}
				i := int(cursor.Add(1) - 1)
				if i >= len(tasks) {
					return nil
				}
				outcomes[i] = d.runTask(batchCtx, tasks[i], cfg.TaskTimeout)
			}
		})
	}
	_ = g.Wait()

	if batchCtx.Err() != nil {
		d.logger.Warn("batch ended early",
			zap.Int("tasks", len(tasks)),
			zap.Int("unclaimed", countNil(outcomes)),
			zap.NamedError("cause", context.Cause(batchCtx)))
	}
	return outcomes
}

type callResult struct {
	completion *Completion
	err        error
}

// runTask races one upstream call against the task context.
func (d *Dispatcher) runTask(batchCtx context.Context, task GenerationTask, timeout time.Duration) *TaskOutcome {
	started := time.Now()
	taskCtx, cancel := context.WithTimeoutCause(batchCtx, timeout, errTaskTimeout)
	defer cancel()
	taskCtx = context.WithValue(taskCtx, taskIndexKey{}, task.Index)

	d.logger.Debug("task started", logging.TaskIndex(task.Index))

	// Buffered so the call goroutine never blocks after losing the race.
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("imagegen: provider panic: %v", r)}
			}
		}()
		completion, err := d.provider.Complete(taskCtx, task.Payload)
		done <- callResult{completion: completion, err: err}
	}()

	outcome := awaitCall(taskCtx, done)
	outcome.Latency = time.Since(started)

	if outcome.Failure != nil {
		d.logger.Debug("task failed",
			logging.TaskIndex(task.Index),
			zap.Stringer("kind", outcome.Failure.Kind),
			zap.Int("status", outcome.Failure.Status),
			zap.String("message", outcome.Failure.Message),
			zap.Duration("latency", outcome.Latency))
	} else {
		d.logger.Debug("task succeeded",
			logging.TaskIndex(task.Index),
			zap.Duration("latency", outcome.Latency))
	}
	return outcome
}

// awaitCall waits for the call result or the end of taskCtx. A result that
// is already waiting wins over an expired context.
func awaitCall(taskCtx context.Context, done <-chan callResult) *TaskOutcome {
	select {
	case res := <-done:
		return classify(taskCtx, res)
	case <-taskCtx.Done():
		select {
		case res := <-done:
			return classify(taskCtx, res)
		default:
			return &TaskOutcome{Failure: cancellationFailure(taskCtx)}
		}
	}
}

// classify maps a finished provider call to an outcome.
func classify(taskCtx context.Context, res callResult) *TaskOutcome {
	if res.err == nil {
		if res.completion == nil {
			return &TaskOutcome{Failure: &TaskFailure{Kind: FailureMalformedResponse, Message: "empty completion"}}
		}
		return &TaskOutcome{Completion: res.completion}
	}

	var upstream *UpstreamError
	var malformed *MalformedResponseError
	switch {
	case errors.As(res.err, &upstream):
		// A transport error caused by our own cancellation is a timeout or abort.
		if upstream.Status == 0 && taskCtx.Err() != nil {
			return &TaskOutcome{Failure: cancellationFailure(taskCtx)}
		}
		return &TaskOutcome{Failure: &TaskFailure{Kind: FailureUpstream, Status: upstream.Status, Message: upstream.Message}}
	case errors.As(res.err, &malformed):
		return &TaskOutcome{Failure: &TaskFailure{Kind: FailureMalformedResponse, Message: malformed.Error()}}
	case taskCtx.Err() != nil:
		return &TaskOutcome{Failure: cancellationFailure(taskCtx)}
	default:
		return &TaskOutcome{Failure: &TaskFailure{Kind: FailureUpstream, Message: res.err.Error()}}
	}
}

// cancellationFailure distinguishes the task's own timer from batch-level
// cancellation by the context cause.
func cancellationFailure(taskCtx context.Context) *TaskFailure {
	cause := context.Cause(taskCtx)
	if errors.Is(cause, errTaskTimeout) {
		return &TaskFailure{Kind: FailureTimeout, Message: "Generation timed out"}
	}
	msg := "Generation aborted"
	if cause != nil {
		msg = cause.Error()
	}
	return &TaskFailure{Kind: FailureAborted, Message: msg}
}

func countNil(outcomes []*TaskOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o == nil {
			n++
		}
	}
	return n
}
