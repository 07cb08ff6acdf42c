package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Generation defaults. Timeouts are clamped to MinTimeout; the concurrency
// ceiling is resolved per request against the requested image count.
const (
	DefaultUpstreamBaseURL = "https://openrouter.ai/api/v1"
	DefaultUpstreamModel   = "google/gemini-3-pro-image-preview"
	DefaultSiteURL         = "http://localhost:3000"
	DefaultAppTitle        = "Nano Banana Image Editor"

	DefaultTaskTimeout = 15 * time.Second
	MinTimeout         = time.Second
	DefaultMaxTokens   = 2048
	MinMaxTokens       = 256

	DefaultMaxBodyBytes = 20 << 20

	DefaultHistoryRetentionDays = 30
)

// Config holds all configuration values
type Config struct {
	// Upstream generation service
	UpstreamAPIKey  string
	UpstreamBaseURL string
	UpstreamModel   string
	SiteURL         string // sent as HTTP-Referer
	AppTitle        string // sent as X-Title
	MaxTokens       int

	// Dispatch
	TaskTimeout   time.Duration
	GlobalTimeout time.Duration
	MaxConcurrent int // 0 means "one worker per requested image"

	// Server Configuration
	Host                 string
	Port                 int
	MaxBodyBytes         int64
	AllowSelfSignedCerts bool

	// Logging and history
	DevMode       bool
	LogLevel      string
	LogFile       string
	HistoryDBPath string // empty disables the SQLite history store

	HistoryRetentionDays int
}

// LoadConfig loads configuration from environment variables. If CONFIG_FILE
// points at a YAML file its values are used as defaults; environment variables
// always win.
//
// A missing upstream API key is not an error here: requests report it
// individually so the server can still start and serve health checks.
func LoadConfig() (*Config, error) {
	var file FileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		file = *loaded
	}

	taskTimeout := ClampTimeout(
		ParseMillisEnv("GENERATE_TIMEOUT_MS", millis(file.Generate.TimeoutMs)),
		DefaultTaskTimeout,
	)
	// Overall deadline defaults to the per-task timeout, never to a larger value.
	globalTimeout := ClampTimeout(
		ParseMillisEnv("GENERATE_OVERALL_TIMEOUT_MS", millis(file.Generate.OverallTimeoutMs)),
		taskTimeout,
	)

	maxTokens := ParseIntEnv("GENERATE_MAX_TOKENS", file.Generate.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if maxTokens < MinMaxTokens {
		maxTokens = MinMaxTokens
	}

	maxConcurrent := ParseIntEnv("GENERATE_MAX_CONCURRENT", file.Generate.MaxConcurrent)
	if maxConcurrent < 0 {
		maxConcurrent = 0
	}

	siteURL := GetEnvOrDefault("NEXT_PUBLIC_SITE_URL", GetEnvOrDefault("SITE_URL", file.Upstream.SiteURL))
	if siteURL == "" {
		siteURL = DefaultSiteURL
	}

	port := ParseIntEnv("PORT", file.Server.Port)
	if port <= 0 {
		port = 3000
	}

	maxBody := ParseInt64Env("MAX_BODY_BYTES", file.Server.MaxBodyBytes)
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	retentionDays := ParseIntEnv("HISTORY_RETENTION_DAYS", file.History.RetentionDays)
	if retentionDays <= 0 {
		retentionDays = DefaultHistoryRetentionDays
	}

	return &Config{
		UpstreamAPIKey:  GetEnvOrDefault("OPENROUTER_API_KEY", file.Upstream.APIKey),
		UpstreamBaseURL: GetEnvOrDefault("OPENROUTER_BASE_URL", orDefault(file.Upstream.BaseURL, DefaultUpstreamBaseURL)),
		UpstreamModel:   GetEnvOrDefault("OPENROUTER_MODEL", orDefault(file.Upstream.Model, DefaultUpstreamModel)),
		SiteURL:         siteURL,
		AppTitle:        GetEnvOrDefault("APP_TITLE", orDefault(file.Upstream.AppTitle, DefaultAppTitle)),
		MaxTokens:       maxTokens,

		TaskTimeout:   taskTimeout,
		GlobalTimeout: globalTimeout,
		MaxConcurrent: maxConcurrent,

		Host:                 GetEnvOrDefault("HOST", orDefault(file.Server.Host, "0.0.0.0")),
		Port:                 port,
		MaxBodyBytes:         maxBody,
		AllowSelfSignedCerts: ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", file.Server.AllowSelfSignedCerts),

		DevMode:       ParseBoolEnv("DEV_MODE", file.Log.DevMode),
		LogLevel:      GetEnvOrDefault("LOG_LEVEL", file.Log.Level),
		LogFile:       GetEnvOrDefault("LOG_FILE", orDefault(file.Log.File, "app.log")),
		HistoryDBPath: GetEnvOrDefault("HISTORY_DB_PATH", file.History.DBPath),

		HistoryRetentionDays: retentionDays,
	}, nil
}

// ClampTimeout returns def when d is unset and MinTimeout when d is below it.
func ClampTimeout(d, def time.Duration) time.Duration {
	if d <= 0 {
		d = def
	}
	if d < MinTimeout {
		d = MinTimeout
	}
	return d
}

// RequireUpstreamKey returns a ConfigError when no upstream credential is set.
func (c *Config) RequireUpstreamKey() error {
	if c.UpstreamAPIKey == "" {
		return ErrMissingAuth("openrouter")
	}
	return nil
}

// GlobalShorterThanTask reports the misconfiguration where the overall
// deadline can abort tasks before their own timeout elapses.
func (c *Config) GlobalShorterThanTask() bool {
	return c.GlobalTimeout < c.TaskTimeout
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetHTTPClient returns an HTTP client configured with TLS settings based on AllowSelfSignedCerts.
// A zero timeout leaves deadlines to the request context.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg != nil && cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func orDefault(value, def string) string {
	if value != "" {
		return value
	}
	return def
}
