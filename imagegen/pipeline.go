package imagegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nanobanana/core"
	"nanobanana/logging"
	"nanobanana/metrics"
)

// maxLoggedFailure bounds the upstream message copied into logs.
const maxLoggedFailure = 500

type requestIDKey struct{}

// ContextWithRequestID attaches a correlation id that Generate reuses instead
// of minting its own.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation id set by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// Generator runs the whole pipeline for one request: validation, task
// building, dispatch and aggregation. It records one metrics.BatchRecord per
// call, whatever the outcome.
//
// Thread-Safety: Generator is safe for concurrent use; each call owns its
// tasks and outcomes.
type Generator struct {
	config     *core.Config
	dispatcher *Dispatcher
	logger     *logging.Logger
	recorder   metrics.Recorder
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithRecorder sets the sink for batch records. Use metrics.MultiRecorder to
// feed several.
func WithRecorder(r metrics.Recorder) GeneratorOption {
	return func(g *Generator) {
		g.recorder = r
	}
}

// NewGenerator assembles a Generator. cfg supplies the upstream credential
// check; the dispatcher carries the provider and batch limits.
//
// Example:
//
//	provider, _ := NewOpenRouterProvider(cfg)
//	dispatcher := NewDispatcher(provider, DispatchConfig{
//		MaxConcurrent: cfg.MaxConcurrent,
//		TaskTimeout:   cfg.TaskTimeout,
//		GlobalTimeout: cfg.GlobalTimeout,
//	}, logger)
//	generator, err := NewGenerator(cfg, dispatcher, logger, WithRecorder(store))
func NewGenerator(cfg *core.Config, dispatcher *Dispatcher, logger *logging.Logger, opts ...GeneratorOption) (*Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("imagegen: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	g := &Generator{
		config:     cfg,
		dispatcher: dispatcher,
		logger:     logger.Named("generator"),
		recorder:   metrics.RecorderFunc(func(metrics.BatchRecord) {}),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.recorder == nil {
		g.recorder = metrics.RecorderFunc(func(metrics.BatchRecord) {})
	}
	return g, nil
}

// Generate validates body and runs the batch.
//
// Errors:
//   - *ValidationError for a malformed body or a missing field
//   - *core.ConfigError when no upstream credential is configured
//   - *BatchError wrapping ErrInsufficientQuota or ErrAllGenerationsFailed
//     when no task succeeded
func (g *Generator) Generate(ctx context.Context, body []byte) (*AggregateResult, error) {
	started := time.Now()
	requestID, ok := RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	log := g.logger.With(logging.RequestID(requestID))
	rec := metrics.BatchRecord{RequestID: requestID, StartTime: started}
	defer func() {
		rec.Duration = time.Since(started)
		if rec.Outcome == "" {
			rec.Outcome = metrics.OutcomeInternalError
		}
		g.recorder.RecordBatch(rec)
	}()

	log.Info("generation request received",
		zap.Int("body_bytes", len(body)),
		zap.Bool("has_api_key", g.config.UpstreamAPIKey != ""))

	req, err := ParseGenerationRequest(body)
	if err != nil {
		rec.Outcome = metrics.OutcomeInvalid
		rec.ErrorMsg = err.Error()
		log.Warn("request rejected", zap.Error(err))
		return nil, err
	}
	if req.AspectRatioKey != "" && !IsKnownAspectRatio(req.AspectRatioKey) {
		log.Debug("unknown aspect ratio, using default",
			zap.String("aspect_ratio", req.AspectRatioKey),
			zap.Strings("supported", AspectRatioKeys()))
	}
	rec.Mode = string(req.Mode)
	rec.AspectRatio = ResolveAspectRatio(req.AspectRatioKey).String()
	rec.Requested = req.RequestedCount

	if err := g.config.RequireUpstreamKey(); err != nil {
		rec.Outcome = metrics.OutcomeConfigError
		rec.ErrorMsg = err.Error()
		rec.Failed = req.RequestedCount
		log.Error("upstream credential missing", zap.Error(err))
		return nil, err
	}

	tasks := BuildTasks(req)
	log.Info("dispatching generation tasks",
		zap.String("mode", string(req.Mode)),
		zap.String("aspect_ratio", rec.AspectRatio),
		zap.Int("tasks", len(tasks)),
		zap.Bool("has_reference", tasks[0].Payload.HasImage()))

	outcomes := g.dispatcher.Dispatch(ctx, tasks)
	rec.Tasks = taskRecords(outcomes)

	result, err := Aggregate(outcomes, req.RequestedCount)
	if err != nil {
		rec.Failed = req.RequestedCount
		rec.ErrorMsg = err.Error()
		rec.Outcome = metrics.OutcomeAllFailed
		if errors.Is(err, ErrInsufficientQuota) {
			rec.Outcome = metrics.OutcomeInsufficientQuota
		}

		fields := []zap.Field{logging.ElapsedMs(started)}
		var batchErr *BatchError
		if errors.As(err, &batchErr) && batchErr.First != nil {
			fields = append(fields,
				zap.Stringer("kind", batchErr.First.Kind),
				zap.Int("status", batchErr.First.Status),
				zap.String("message", TruncateForLog(batchErr.First.Message, maxLoggedFailure)))
		}
		log.Error("all generation requests failed", fields...)
		return nil, err
	}

	rec.Successful = result.Stats.Successful
	rec.Failed = result.Stats.Failed
	rec.Images = len(result.Images)
	rec.Outcome = metrics.OutcomeSuccess
	if result.Stats.Failed > 0 {
		rec.Outcome = metrics.OutcomePartial
		log.Warn(result.Warning)
	}

	log.Info("generation finished",
		append(logging.BatchStats(result.Stats.Requested, result.Stats.Successful, result.Stats.Failed),
			zap.Int("images", len(result.Images)),
			logging.ElapsedMs(started))...)
	return result, nil
}

// taskRecords converts outcomes for the metrics sink. Nil slots are tasks
// the batch deadline cut off before they started.
func taskRecords(outcomes []*TaskOutcome) []metrics.TaskRecord {
	records := make([]metrics.TaskRecord, len(outcomes))
	for i, o := range outcomes {
		records[i] = metrics.TaskRecord{Index: i}
		switch {
		case o == nil:
			records[i].Result = metrics.TaskResultUnclaimed
		case o.Succeeded():
			records[i].Result = metrics.TaskResultSuccess
			records[i].Latency = o.Latency
		default:
			records[i].Result = o.Failure.Kind.String()
			records[i].Status = o.Failure.Status
			records[i].Latency = o.Latency
		}
	}
	return records
}
