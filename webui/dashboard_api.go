package webui

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"nanobanana/logging"
	"nanobanana/metrics"
)

// HistorySource serves persisted batch records. *db.HistoryRepository
// implements it.
type HistorySource interface {
	RecentBatches(ctx context.Context, limit int) ([]metrics.BatchRecord, error)
	CountBatches(ctx context.Context) (int64, error)
}

// DashboardAPI serves read-only JSON views of recorded batches.
//
// Endpoints:
// - GET /api/status   - health, version and uptime
// - GET /api/stats    - totals since startup
// - GET /api/batches  - recent batches (limit param)
type DashboardAPI struct {
	store        metrics.MetricsCollector
	history      HistorySource
	logger       *logging.Logger
	defaultLimit int
	maxLimit     int
	queryTimeout time.Duration
}

// DashboardAPIConfig configures the DashboardAPI behavior.
type DashboardAPIConfig struct {
	// DefaultLimit is the default number of items to return in list endpoints
	DefaultLimit int

	// MaxLimit is the maximum number of items that can be requested
	MaxLimit int

	// QueryTimeout bounds each history query (default: 5s)
	QueryTimeout time.Duration
}

// DefaultDashboardAPIConfig returns a default configuration.
func DefaultDashboardAPIConfig() DashboardAPIConfig {
	return DashboardAPIConfig{
		DefaultLimit: 20,
		MaxLimit:     100,
		QueryTimeout: 5 * time.Second,
	}
}

// NewDashboardAPI creates a DashboardAPI. history is optional; without it
// /api/batches answers from the in-memory store.
func NewDashboardAPI(store metrics.MetricsCollector, history HistorySource, logger *logging.Logger, config DashboardAPIConfig) *DashboardAPI {
	defaults := DefaultDashboardAPIConfig()
	if config.DefaultLimit < 1 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.MaxLimit < 1 {
		config.MaxLimit = defaults.MaxLimit
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = defaults.QueryTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &DashboardAPI{
		store:        store,
		history:      history,
		logger:       logger.Named("dashboard"),
		defaultLimit: config.DefaultLimit,
		maxLimit:     config.MaxLimit,
		queryTimeout: config.QueryTimeout,
	}
}

// StatusResponse represents the JSON response for /api/status.
type StatusResponse struct {
	Health         string    `json:"health"`
	Version        string    `json:"version"`
	Uptime         string    `json:"uptime"`
	UptimeSecs     float64   `json:"uptime_secs"`
	LastCheck      time.Time `json:"last_check"`
	HistoryEnabled bool      `json:"history_enabled"`
}

// HandleStatus handles GET /api/status requests.
func (api *DashboardAPI) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	status := api.store.GetSystemStatus()
	writeJSON(w, http.StatusOK, StatusResponse{
		Health:         status.Health,
		Version:        status.Version,
		Uptime:         formatUptime(status.Uptime),
		UptimeSecs:     status.Uptime.Seconds(),
		LastCheck:      status.LastCheck,
		HistoryEnabled: api.history != nil,
	})
}

// StatsResponse represents the JSON response for /api/stats.
type StatsResponse struct {
	metrics.BatchMetrics

	// HistoryBatches is the number of persisted batches when history is on.
	HistoryBatches *int64 `json:"history_batches,omitempty"`
}

// HandleStats handles GET /api/stats requests.
func (api *DashboardAPI) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	response := StatsResponse{BatchMetrics: api.store.GetBatchMetrics()}
	if api.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), api.queryTimeout)
		defer cancel()
		if n, err := api.history.CountBatches(ctx); err != nil {
			api.logger.Warn("counting history failed", zap.Error(err))
		} else {
			response.HistoryBatches = &n
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// BatchesResponse represents the JSON response for /api/batches.
type BatchesResponse struct {
	Batches []metrics.BatchRecord `json:"batches"`
	Count   int                   `json:"count"`
	Limit   int                   `json:"limit"`
	Source  string                `json:"source"`
}

// Batch sources reported by /api/batches.
const (
	SourceMemory  = "memory"
	SourceHistory = "history"
)

// HandleBatches handles GET /api/batches requests.
// Query parameters:
// - limit: number of batches to return (default: 20, max: 100)
//
// Batches come from the history store when configured. A failing history
// query falls back to the in-memory store.
func (api *DashboardAPI) HandleBatches(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	limit := api.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > api.maxLimit {
		limit = api.maxLimit
	}

	response := BatchesResponse{Limit: limit, Source: SourceMemory}
	if api.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), api.queryTimeout)
		defer cancel()
		batches, err := api.history.RecentBatches(ctx, limit)
		if err == nil {
			response.Batches = batches
			response.Source = SourceHistory
		} else {
			api.logger.Warn("history query failed, serving in-memory batches", zap.Error(err))
		}
	}
	if response.Source == SourceMemory {
		response.Batches = api.store.GetRecentBatches(limit)
	}
	if response.Batches == nil {
		response.Batches = []metrics.BatchRecord{}
	}
	response.Count = len(response.Batches)

	writeJSON(w, http.StatusOK, response)
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (api *DashboardAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", api.HandleStatus)
	mux.HandleFunc("/api/stats", api.HandleStats)
	mux.HandleFunc("/api/batches", api.HandleBatches)
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   http.StatusText(http.StatusMethodNotAllowed),
		Message: "method not allowed",
	})
	return false
}

// formatUptime renders at most two units, e.g. "45s", "2m 30s", "3d 5h".
func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	const day = 24 * time.Hour

	days := d / day
	hours := (d % day) / time.Hour
	minutes := (d % time.Hour) / time.Minute
	seconds := (d % time.Minute) / time.Second

	switch {
	case days > 0:
		return strconv.Itoa(int(days)) + "d " + strconv.Itoa(int(hours)) + "h"
	case hours > 0:
		return strconv.Itoa(int(hours)) + "h " + strconv.Itoa(int(minutes)) + "m"
	case minutes > 0:
		return strconv.Itoa(int(minutes)) + "m " + strconv.Itoa(int(seconds)) + "s"
	}
	return strconv.Itoa(int(seconds)) + "s"
}
