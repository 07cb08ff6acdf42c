package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core, false), logs
}

func TestNewLogger_WritesJSONFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, err := NewLogger(Options{FilePath: logPath, Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger.LogFilePath() != logPath || logger.IsDevelopment() {
		t.Errorf("logger = %+v", logger)
	}

	logger.Debug("batch started", zap.Int("requested", 2))
	_ = logger.Sync()

	f, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("log file is empty")
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry[FieldMessage] != "batch started" || entry[FieldLevel] != "debug" {
		t.Errorf("entry = %v", entry)
	}
	if entry["requested"] != float64(2) {
		t.Errorf("requested = %v", entry["requested"])
	}
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	logger, err := NewLogger(Options{DevMode: true})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger.LogFilePath() != "" || !logger.IsDevelopment() {
		t.Errorf("logger = %+v", logger)
	}
	if !logger.Zap().Core().Enabled(zapcore.DebugLevel) {
		t.Error("dev mode should enable debug")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	logger, err := NewLogger(Options{DevMode: true, Level: "warn"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger.Zap().Core().Enabled(zapcore.InfoLevel) {
		t.Error("LOG_LEVEL=warn should disable info")
	}
}

func TestLogger_RedactsFields(t *testing.T) {
	logger, logs := observedLogger(zapcore.DebugLevel)

	key := "sk-or-v1-" + strings.Repeat("a1", 20)
	image := "data:image/png;base64," + strings.Repeat("QUJD", 100)

	logger.Info("upstream call",
		zap.String("authorization", "Bearer "+key),
		zap.String("detail", "using key "+key),
		zap.String("reference", image),
		zap.Error(errors.New("rejected "+key)),
		zap.Int("max_tokens", 2048),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	fields := entries[0].ContextMap()

	if fields["authorization"] != RedactedPlaceholder {
		t.Errorf("authorization = %v", fields["authorization"])
	}
	if got := fields["detail"].(string); strings.Contains(got, key) {
		t.Errorf("detail leaked key: %q", got)
	}
	if got := fields["reference"].(string); got != "data:image/png;base64,<400 chars>" {
		t.Errorf("reference = %q", got)
	}
	if got := fields["error"].(string); strings.Contains(got, key) {
		t.Errorf("error leaked key: %q", got)
	}
	if fields["max_tokens"] != int64(2048) {
		t.Errorf("max_tokens = %v, should not be treated as a secret", fields["max_tokens"])
	}
}

func TestLogger_SugaredRedaction(t *testing.T) {
	logger, logs := observedLogger(zapcore.InfoLevel)

	logger.Infow("config", "OPENROUTER_API_KEY", "anything", "model", "google/gemini")
	logger.Warnw("odd", "note", "token=abcdefghijkl")

	all := logs.All()
	if len(all) != 2 {
		t.Fatalf("got %d entries", len(all))
	}
	if all[0].ContextMap()["OPENROUTER_API_KEY"] != RedactedPlaceholder {
		t.Errorf("key not redacted: %v", all[0].ContextMap())
	}
	if all[0].ContextMap()["model"] != "google/gemini" {
		t.Errorf("model altered: %v", all[0].ContextMap())
	}
	if all[1].ContextMap()["note"] != RedactedPlaceholder {
		t.Errorf("note = %v", all[1].ContextMap()["note"])
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	logger, logs := observedLogger(zapcore.DebugLevel)

	child := logger.Named("dispatcher").With(RequestID("req-1"))
	child.Debug("task claimed", TaskIndex(3))

	entry := logs.All()[0]
	if entry.LoggerName != "dispatcher" {
		t.Errorf("LoggerName = %q", entry.LoggerName)
	}
	ctx := entry.ContextMap()
	if ctx[KeyRequestID] != "req-1" || ctx[KeyTaskIndex] != int64(3) {
		t.Errorf("context = %v", ctx)
	}
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Error("discarded", zap.String("k", "v"))
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() = %v", err)
	}

	var nilLogger *Logger
	if err := nilLogger.Sync(); err != nil {
		t.Errorf("nil Sync() = %v", err)
	}
}
