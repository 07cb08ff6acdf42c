package webui

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nanobanana/imagegen"
	"nanobanana/logging"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

// HTTPMetrics receives per-request measurements. *metrics.PrometheusCollector
// implements it.
type HTTPMetrics interface {
	RecordHTTPRequest(method, path string, status int, d time.Duration)
	TrackInFlight() func()
}

// LoggingMiddleware assigns each request a correlation id, logs it once it
// completes, and feeds HTTPMetrics when configured.
//
// Thread-safe for concurrent HTTP requests.
type LoggingMiddleware struct {
	logger    *logging.Logger
	metrics   HTTPMetrics
	skipPaths map[string]bool
	routes    map[string]bool
}

// LoggingMiddlewareConfig holds configuration for the LoggingMiddleware
type LoggingMiddlewareConfig struct {
	// Logger for request logging (default: no-op)
	Logger *logging.Logger

	// Metrics is optional.
	Metrics HTTPMetrics

	// SkipPaths are not logged; they are still measured.
	SkipPaths []string

	// Routes are the known paths used as metric labels. Anything else is
	// reported as "other" to keep label cardinality bounded.
	Routes []string
}

// NewLoggingMiddleware creates a LoggingMiddleware.
func NewLoggingMiddleware(config LoggingMiddlewareConfig) *LoggingMiddleware {
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}

	m := &LoggingMiddleware{
		logger:    config.Logger.Named("http"),
		metrics:   config.Metrics,
		skipPaths: make(map[string]bool, len(config.SkipPaths)),
		routes:    make(map[string]bool, len(config.Routes)),
	}
	for _, path := range config.SkipPaths {
		m.skipPaths[path] = true
	}
	for _, path := range config.Routes {
		m.routes[path] = true
	}
	return m
}

// Handler wraps next with request id assignment, logging and metrics.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := requestIDFromHeader(r.Header.Get(HeaderRequestID))
		w.Header().Set(HeaderRequestID, requestID)
		r = r.WithContext(imagegen.ContextWithRequestID(r.Context(), requestID))

		if m.metrics != nil {
			done := m.metrics.TrackInFlight()
			defer done()
		}

		wrapped := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start)

		if m.metrics != nil {
			m.metrics.RecordHTTPRequest(r.Method, m.routeLabel(r.URL.Path), wrapped.statusCode, duration)
		}
		if m.skipPaths[r.URL.Path] {
			return
		}

		fields := []zap.Field{
			logging.RequestID(requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.String("remote_addr", getClientIP(r)),
		}
		switch {
		case wrapped.statusCode >= 500:
			m.logger.Error("request completed", fields...)
		case wrapped.statusCode >= 400:
			m.logger.Warn("request completed", fields...)
		default:
			m.logger.Info("request completed", fields...)
		}
	})
}

func (m *LoggingMiddleware) routeLabel(path string) string {
	if m.routes[path] {
		return path
	}
	return "other"
}

// requestIDFromHeader accepts a caller-supplied id when it is short and
// printable, and mints a new one otherwise.
func requestIDFromHeader(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > 128 {
		return uuid.NewString()
	}
	for _, c := range value {
		if c < 0x21 || c > 0x7e {
			return uuid.NewString()
		}
	}
	return value
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

// WriteHeader captures the status code
func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write captures the bytes written and ensures header is written
func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher if the underlying writer supports it
func (w *responseWriterWrapper) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriterWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// getClientIP extracts the client IP from the request.
// X-Forwarded-For and X-Real-IP win over RemoteAddr for proxied requests.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
