package imagegen

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"nanobanana/core"
	"nanobanana/logging"
	"nanobanana/metrics"
)

type recordSink struct {
	mu      sync.Mutex
	records []metrics.BatchRecord
}

func (s *recordSink) RecordBatch(rec metrics.BatchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *recordSink) last(t *testing.T) metrics.BatchRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) != 1 {
		t.Fatalf("recorded %d batches, want 1", len(s.records))
	}
	return s.records[0]
}

func newTestGenerator(t *testing.T, apiKey string, p Provider, logger *logging.Logger) (*Generator, *recordSink) {
	t.Helper()
	d := newTestDispatcher(p, DispatchConfig{TaskTimeout: 200 * time.Millisecond, GlobalTimeout: time.Second})
	sink := &recordSink{}
	g, err := NewGenerator(&core.Config{UpstreamAPIKey: apiKey}, d, logger, WithRecorder(sink))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g, sink
}

func TestNewGenerator_RequiresDependencies(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{}, DispatchConfig{})
	if _, err := NewGenerator(nil, d, nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewGenerator(&core.Config{}, nil, nil); err == nil {
		t.Error("expected error for nil dispatcher")
	}
	if _, err := NewGenerator(&core.Config{}, d, nil, WithRecorder(nil)); err != nil {
		t.Errorf("nil recorder should fall back to a no-op: %v", err)
	}
}

func TestGenerator_Generate_PartialSuccess(t *testing.T) {
	p := &fakeProvider{fn: func(ctx context.Context, i int) (*Completion, error) {
		if i == 2 {
			return completionWithImages(imageURLFor(i)), nil
		}
		return nil, &UpstreamError{Status: 500, Message: "boom"}
	}}
	g, sink := newTestGenerator(t, "sk-or-test", p, nil)

	result, err := g.Generate(context.Background(), []byte(`{"prompt":"a cat","numImages":4,"aspectRatio":"4:3"}`))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Stats != (Stats{Requested: 4, Successful: 1, Failed: 3}) {
		t.Errorf("Stats = %+v", result.Stats)
	}
	if result.Warning != "3 of 4 image generations failed" {
		t.Errorf("Warning = %q", result.Warning)
	}

	rec := sink.last(t)
	if rec.Outcome != metrics.OutcomePartial {
		t.Errorf("Outcome = %q", rec.Outcome)
	}
	if rec.AspectRatio != "1152x896" || rec.Mode != string(ModeTextToImage) {
		t.Errorf("record = %+v", rec)
	}
	if rec.Requested != 4 || rec.Successful != 1 || rec.Failed != 3 || rec.Images != 1 {
		t.Errorf("counts = %+v", rec)
	}
	if len(rec.Tasks) != 4 || rec.Tasks[2].Result != metrics.TaskResultSuccess || rec.Tasks[0].Status != 500 {
		t.Errorf("Tasks = %+v", rec.Tasks)
	}
	if rec.RequestID == "" {
		t.Error("RequestID not assigned")
	}
}

func TestGenerator_Generate_ValidationErrorRunsNoTask(t *testing.T) {
	var calls atomic.Int32
	p := &fakeProvider{fn: func(context.Context, int) (*Completion, error) {
		calls.Add(1)
		return nil, nil
	}}
	g, sink := newTestGenerator(t, "sk-or-test", p, nil)

	_, err := g.Generate(context.Background(), []byte(`{"prompt":""}`))
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != ReasonMissingPrompt {
		t.Fatalf("err = %v, want missing prompt", err)
	}
	if calls.Load() != 0 {
		t.Errorf("provider called %d times", calls.Load())
	}
	if rec := sink.last(t); rec.Outcome != metrics.OutcomeInvalid {
		t.Errorf("Outcome = %q", rec.Outcome)
	}
}

func TestGenerator_Generate_ValidationBeforeCredential(t *testing.T) {
	g, _ := newTestGenerator(t, "", &fakeProvider{}, nil)

	_, err := g.Generate(context.Background(), []byte(`not json`))
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != ReasonMalformedBody {
		t.Errorf("err = %v, want malformed body", err)
	}
}

func TestGenerator_Generate_MissingCredential(t *testing.T) {
	var calls atomic.Int32
	p := &fakeProvider{fn: func(context.Context, int) (*Completion, error) {
		calls.Add(1)
		return nil, nil
	}}
	g, sink := newTestGenerator(t, "", p, nil)

	_, err := g.Generate(context.Background(), []byte(`{"prompt":"a cat"}`))
	if core.GetErrorCode(err) != core.ErrCodeMissingAuth {
		t.Fatalf("err = %v, want MISSING_AUTH", err)
	}
	if calls.Load() != 0 {
		t.Errorf("provider called %d times", calls.Load())
	}
	if rec := sink.last(t); rec.Outcome != metrics.OutcomeConfigError {
		t.Errorf("Outcome = %q", rec.Outcome)
	}
}

func TestGenerator_Generate_InsufficientQuota(t *testing.T) {
	p := &fakeProvider{fn: func(context.Context, int) (*Completion, error) {
		return nil, &UpstreamError{Status: 402, Message: "Insufficient credits"}
	}}
	g, sink := newTestGenerator(t, "sk-or-test", p, nil)

	_, err := g.Generate(context.Background(), []byte(`{"prompt":"a cat","numImages":2}`))
	if !errors.Is(err, ErrInsufficientQuota) {
		t.Fatalf("err = %v, want ErrInsufficientQuota", err)
	}
	rec := sink.last(t)
	if rec.Outcome != metrics.OutcomeInsufficientQuota || rec.Failed != 2 {
		t.Errorf("record = %+v", rec)
	}
}

func TestGenerator_Generate_QuotaFailureWithSuccessIsPartial(t *testing.T) {
	p := &fakeProvider{fn: func(ctx context.Context, i int) (*Completion, error) {
		if i == 0 {
			return nil, &UpstreamError{Status: 402, Message: "Insufficient credits"}
		}
		return completionWithImages(imageURLFor(i)), nil
	}}
	g, sink := newTestGenerator(t, "sk-or-test", p, nil)

	result, err := g.Generate(context.Background(), []byte(`{"prompt":"a cat","numImages":2}`))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Stats != (Stats{Requested: 2, Successful: 1, Failed: 1}) {
		t.Errorf("Stats = %+v", result.Stats)
	}
	if result.Warning == "" {
		t.Error("Warning is empty")
	}
	if len(result.Images) != 1 || result.Images[0].ImageURL.URL != imageURLFor(1) {
		t.Errorf("Images = %+v", result.Images)
	}

	rec := sink.last(t)
	if rec.Outcome != metrics.OutcomePartial {
		t.Errorf("Outcome = %q, want partial", rec.Outcome)
	}
	if len(rec.Tasks) != 2 || rec.Tasks[0].Status != 402 {
		t.Errorf("Tasks = %+v", rec.Tasks)
	}
}

func TestGenerator_Generate_LogsUnknownAspectRatio(t *testing.T) {
	p := &fakeProvider{fn: func(ctx context.Context, i int) (*Completion, error) {
		return completionWithImages(imageURLFor(i)), nil
	}}
	obsCore, logs := observer.New(zapcore.DebugLevel)
	g, sink := newTestGenerator(t, "sk-or-test", p, logging.NewLoggerFromCore(obsCore, false))

	if _, err := g.Generate(context.Background(), []byte(`{"prompt":"a cat","aspectRatio":"21:9"}`)); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	entries := logs.FilterMessage("unknown aspect ratio, using default").All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["aspect_ratio"]; got != "21:9" {
		t.Errorf("aspect_ratio = %v", got)
	}
	if rec := sink.last(t); rec.AspectRatio != "1024x1024" {
		t.Errorf("AspectRatio = %q, want square default", rec.AspectRatio)
	}
}

func TestGenerator_Generate_UsesContextRequestID(t *testing.T) {
	p := &fakeProvider{fn: func(ctx context.Context, i int) (*Completion, error) {
		return completionWithImages(imageURLFor(i)), nil
	}}
	obsCore, logs := observer.New(zapcore.DebugLevel)
	g, sink := newTestGenerator(t, "sk-or-test", p, logging.NewLoggerFromCore(obsCore, false))

	ctx := ContextWithRequestID(context.Background(), "req-123")
	if _, err := g.Generate(ctx, []byte(`{"prompt":"a cat"}`)); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if rec := sink.last(t); rec.RequestID != "req-123" {
		t.Errorf("RequestID = %q", rec.RequestID)
	}
	finished := logs.FilterMessage("generation finished").All()
	if len(finished) != 1 {
		t.Fatalf("got %d 'generation finished' entries", len(finished))
	}
	if got := finished[0].ContextMap()[logging.KeyRequestID]; got != "req-123" {
		t.Errorf("logged request_id = %v", got)
	}
}

func TestGenerator_Generate_LogsFirstFailure(t *testing.T) {
	p := &fakeProvider{fn: func(context.Context, int) (*Completion, error) {
		return nil, &UpstreamError{Status: 503, Message: "overloaded"}
	}}
	obsCore, logs := observer.New(zap.InfoLevel)
	g, _ := newTestGenerator(t, "sk-or-test", p, logging.NewLoggerFromCore(obsCore, false))

	_, err := g.Generate(context.Background(), []byte(`{"prompt":"a cat"}`))
	if !errors.Is(err, ErrAllGenerationsFailed) {
		t.Fatalf("err = %v", err)
	}

	entries := logs.FilterMessage("all generation requests failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d failure entries", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(503) || fields["message"] != "overloaded" {
		t.Errorf("fields = %v", fields)
	}
}

func TestRequestIDFromContext(t *testing.T) {
	if _, ok := RequestIDFromContext(context.Background()); ok {
		t.Error("found id in plain context")
	}
	if _, ok := RequestIDFromContext(ContextWithRequestID(context.Background(), "")); ok {
		t.Error("empty id reported as present")
	}
}
