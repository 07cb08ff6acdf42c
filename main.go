package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"nanobanana/core"
	"nanobanana/core/validation"
	"nanobanana/db"
	"nanobanana/imagegen"
	"nanobanana/logging"
	"nanobanana/metrics"
	"nanobanana/shutdown"
	"nanobanana/webui"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Use fmt here since logger isn't initialized yet
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	config, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return core.ExitCodeConfig
	}

	logger, err := logging.NewLogger(logging.Options{
		DevMode:  config.DevMode,
		Level:    config.LogLevel,
		FilePath: config.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}

	if exitCode := runStartupValidation(config, logger); exitCode != core.ExitCodeSuccess {
		_ = logger.Sync()
		return exitCode
	}

	logger.Info("configuration loaded",
		zap.String("version", core.GetVersionInfo()),
		zap.String("upstream", config.UpstreamBaseURL),
		zap.String("model", config.UpstreamModel),
		zap.Duration("task_timeout", config.TaskTimeout),
		zap.Duration("overall_timeout", config.GlobalTimeout),
		zap.Int("max_concurrent", config.MaxConcurrent),
		zap.Int("max_tokens", config.MaxTokens),
		zap.String("max_body", core.FormatBytes(config.MaxBodyBytes)),
		zap.String("history_db", config.HistoryDBPath),
		zap.Bool("allow_self_signed_certs", config.AllowSelfSignedCerts),
		zap.Bool("dev_mode", config.DevMode),
	)

	manager := shutdown.NewManager(logger)
	a, err := newApp(manager.Context(), config, logger, manager.Middleware)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		_ = logger.Sync()
		return core.ExitCodeError
	}
	a.registerShutdown(manager)
	manager.Start()

	go func() {
		if err := a.server.Start(); err != nil {
			logger.Error("server stopped", zap.Error(err))
			manager.Trigger("server error")
		}
	}()

	manager.Wait()
	if err := manager.Shutdown(); err != nil {
		return core.ExitCodeError
	}
	return manager.ExitCode()
}

// app holds the wired components. History fields are nil when
// HISTORY_DB_PATH is empty.
type app struct {
	config    *core.Config
	logger    *logging.Logger
	store     *metrics.MetricsStore
	prom      *metrics.PrometheusCollector
	database  *db.Database
	history   *db.HistoryRepository
	writer    *db.HistoryWriter
	retention <-chan struct{}
	generator *imagegen.Generator
	server    *webui.Server
}

// newApp builds every component. ctx bounds background work such as
// history retention; cancelling it stops that work.
func newApp(ctx context.Context, config *core.Config, logger *logging.Logger, middleware ...func(http.Handler) http.Handler) (*app, error) {
	a := &app{
		config: config,
		logger: logger,
		store:  metrics.NewMetricsStore(metrics.StoreConfig{HistoryCapacity: 100, Version: core.Version}, time.Now()),
		prom:   metrics.NewPrometheusCollector(metrics.DefaultNamespace),
	}
	recorders := metrics.MultiRecorder{a.store, a.prom}

	if config.HistoryDBPath != "" {
		if err := a.openHistory(ctx); err != nil {
			return nil, err
		}
		recorders = append(recorders, a.writer)
	}

	provider, err := imagegen.NewOpenRouterProvider(config)
	if err != nil {
		a.closeHistory()
		return nil, fmt.Errorf("create provider: %w", err)
	}
	dispatcher := imagegen.NewDispatcher(provider, imagegen.DispatchConfig{
		MaxConcurrent: config.MaxConcurrent,
		TaskTimeout:   config.TaskTimeout,
		GlobalTimeout: config.GlobalTimeout,
	}, logger)
	dc := dispatcher.Config()
	logger.Info("upstream provider ready",
		zap.String("model", provider.Model()),
		zap.String("endpoint", provider.Endpoint()),
		zap.Int("max_concurrent", dc.MaxConcurrent),
		zap.Duration("task_timeout", dc.TaskTimeout),
		zap.Duration("overall_timeout", dc.GlobalTimeout))

	a.generator, err = imagegen.NewGenerator(config, dispatcher, logger, imagegen.WithRecorder(recorders))
	if err != nil {
		a.closeHistory()
		return nil, fmt.Errorf("create generator: %w", err)
	}

	deps := webui.Dependencies{
		Generator:  a.generator,
		Store:      a.store,
		Prometheus: a.prom,
		Logger:     logger,
		Middleware: middleware,
	}
	if a.history != nil {
		deps.History = a.history
	}
	a.server, err = webui.NewServer(webui.ServerConfigFromCore(config), deps)
	if err != nil {
		a.closeHistory()
		return nil, fmt.Errorf("create server: %w", err)
	}
	return a, nil
}

func (a *app) openHistory(ctx context.Context) error {
	database, err := db.NewDatabase(a.config.HistoryDBPath)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return fmt.Errorf("migrate history database: %w", err)
	}

	a.database = database
	a.history = db.NewHistoryRepository(database)
	a.writer = db.NewHistoryWriter(a.history, a.logger, db.DefaultHistoryWriterConfig())
	a.writer.Start()

	log := a.logger.Named("retention")
	a.retention = db.StartRetention(ctx, a.history, db.RetentionConfig{
		Retention: time.Duration(a.config.HistoryRetentionDays) * 24 * time.Hour,
		Interval:  db.DefaultRetentionConfig().Interval,
		OnPrune: func(result db.PruneResult, err error) {
			if err != nil {
				log.Warn("history pruning failed", zap.Error(err))
				return
			}
			log.Info("history pruned",
				zap.Int64("batches", result.BatchesDeleted),
				zap.Int64("tasks", result.TasksDeleted),
				zap.Duration("duration", result.Duration))
		},
	})

	a.logger.Info("history enabled",
		zap.String("path", database.Path()),
		zap.Int("retention_days", a.config.HistoryRetentionDays))
	return nil
}

// closeHistory releases history resources after a failed startup.
func (a *app) closeHistory() {
	if a.writer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = a.writer.Stop(ctx)
		cancel()
	}
	if a.database != nil {
		_ = a.database.Close()
	}
}

// registerShutdown orders cleanup: stop serving, flush history, close the
// database, then flush logs. The retention loop exits on its own once the
// manager context is cancelled.
func (a *app) registerShutdown(m *shutdown.Manager) {
	m.Register("http-server", 10, shutdown.HTTPServer(a.server.HTTPServer()))
	if a.writer != nil {
		m.Register("history-writer", 20, a.writer.Stop)
	}
	if a.retention != nil {
		done := a.retention
		m.Register("history-retention", 20, func(ctx context.Context) error {
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	if a.database != nil {
		m.Register("database", 30, shutdown.Closer(a.database))
	}
	m.Register("logger", 90, shutdown.SyncLogger(a.logger))
}

// runStartupValidation prints the validation suite and maps a failure to
// ExitCodeConfig. Warnings, such as a missing API key, never stop startup.
func runStartupValidation(config *core.Config, logger *logging.Logger) int {
	result := validation.NewValidationSuite(config).
		WithShowProgress(true).
		Validate()

	for _, msg := range result.WarningMessages() {
		logger.Warn("configuration warning", zap.String("message", msg))
	}

	if !result.Success {
		logger.Error("configuration validation failed",
			zap.Int("passed", result.PassedSteps),
			zap.Int("failed", result.FailedSteps),
			zap.Duration("duration", result.Duration),
			zap.Error(result.GetFirstError()),
		)
		return core.ExitCodeConfig
	}

	logger.Info("configuration validation passed",
		zap.Int("checks_passed", result.PassedSteps),
		zap.Int("warnings", result.Warnings),
		zap.Duration("duration", result.Duration),
	)
	return core.ExitCodeSuccess
}
