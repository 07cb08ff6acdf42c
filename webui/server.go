// Package webui is the HTTP surface of the service: the generation endpoint,
// health and dashboard JSON, and the Prometheus scrape endpoint.
package webui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"nanobanana/core"
	"nanobanana/logging"
	"nanobanana/metrics"
)

// Route paths.
const (
	PathGenerate = "/api/generate"
	PathHealth   = "/health"
	PathStatus   = "/api/status"
	PathStats    = "/api/stats"
	PathBatches  = "/api/batches"
	PathMetrics  = "/metrics"
)

// Server wires the handlers, the request logging middleware and any outer
// middleware (such as the shutdown gate) into one http.Server.
type Server struct {
	httpServer   *http.Server
	mux          *http.ServeMux
	config       ServerConfig
	logger       *logging.Logger
	dashboardAPI *DashboardAPI
	generate     *GenerateHandler
}

// ServerConfig configures the Server.
type ServerConfig struct {
	// Host to bind to (default: "0.0.0.0")
	Host string

	// Port to listen on (default: 3000)
	Port int

	// ReadTimeout for HTTP requests (default: 30s)
	ReadTimeout time.Duration

	// WriteTimeout must outlast the generation deadline (default: 60s)
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections (default: 120s)
	IdleTimeout time.Duration

	// MaxBodyBytes caps POST /api/generate bodies (default: 20 MiB)
	MaxBodyBytes int64

	// LogSkipPaths are paths to skip logging
	LogSkipPaths []string

	// API configures the dashboard endpoints
	API DashboardAPIConfig
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         3000,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		MaxBodyBytes: core.DefaultMaxBodyBytes,
		LogSkipPaths: []string{PathHealth, PathMetrics},
		API:          DefaultDashboardAPIConfig(),
	}
}

// ServerConfigFromCore derives a ServerConfig from the service config. The
// write timeout leaves room for the whole generation deadline.
func ServerConfigFromCore(cfg *core.Config) ServerConfig {
	sc := DefaultServerConfig()
	sc.Host = cfg.Host
	sc.Port = cfg.Port
	sc.MaxBodyBytes = cfg.MaxBodyBytes
	if wt := cfg.GlobalTimeout + 30*time.Second; wt > sc.WriteTimeout {
		sc.WriteTimeout = wt
	}
	return sc
}

// Dependencies are the collaborators a Server needs. Generator and Store are
// required.
type Dependencies struct {
	Generator  BatchGenerator
	Store      metrics.MetricsCollector
	History    HistorySource
	Prometheus *metrics.PrometheusCollector
	Logger     *logging.Logger

	// Middleware wraps everything, outermost first.
	Middleware []func(http.Handler) http.Handler
}

// NewServer creates a configured server. It does not listen until Start.
func NewServer(config ServerConfig, deps Dependencies) (*Server, error) {
	if deps.Generator == nil {
		return nil, errors.New("webui: generator is required")
	}
	if deps.Store == nil {
		return nil, errors.New("webui: metrics store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Server{
		mux:          http.NewServeMux(),
		config:       config,
		logger:       logger.Named("server"),
		dashboardAPI: NewDashboardAPI(deps.Store, deps.History, logger, config.API),
		generate:     NewGenerateHandler(deps.Generator, config.MaxBodyBytes, logger),
	}
	// A nil *PrometheusCollector must not become a non-nil interface.
	var httpMetrics HTTPMetrics
	if deps.Prometheus != nil {
		httpMetrics = deps.Prometheus
	}
	s.setupRoutes(deps.Prometheus)

	var handler http.Handler = s.mux
	handler = NewLoggingMiddleware(LoggingMiddlewareConfig{
		Logger:    logger,
		Metrics:   httpMetrics,
		SkipPaths: config.LogSkipPaths,
		Routes:    []string{PathGenerate, PathHealth, PathStatus, PathStats, PathBatches, PathMetrics},
	}).Handler(handler)
	for i := len(deps.Middleware) - 1; i >= 0; i-- {
		handler = deps.Middleware[i](handler)
	}

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	s.logger.Info("server created",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("history_enabled", deps.History != nil),
		zap.Bool("prometheus_enabled", deps.Prometheus != nil))
	return s, nil
}

func (s *Server) setupRoutes(prom *metrics.PrometheusCollector) {
	s.mux.Handle(PathGenerate, s.generate)
	s.mux.HandleFunc(PathHealth, s.handleHealth)
	s.dashboardAPI.RegisterRoutes(s.mux)
	if prom != nil {
		s.mux.Handle(PathMetrics, prom.Handler())
	}
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer exposes the underlying server for shutdown registration.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens on the configured address and blocks until the server is
// shut down. A clean shutdown returns nil.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("webui: listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webui: serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests until
// ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("webui: shutdown: %w", err)
	}
	return nil
}
