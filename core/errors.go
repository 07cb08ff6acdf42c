package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeEnvFileMissing     = "ENV_FILE_MISSING"
	ErrCodeConfigFile         = "CONFIG_FILE_UNREADABLE"
	ErrCodeInvalidUpstreamURL = "INVALID_UPSTREAM_URL"
	ErrCodeMissingAuth        = "MISSING_AUTH"
	ErrCodeMissingConfig      = "MISSING_CONFIG"
)

// ErrEnvFileMissing returns an error for missing .env file
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy .env.example to .env or export the variables directly",
	}
}

// ErrConfigFileUnreadable returns an error for a CONFIG_FILE that cannot be read
func ErrConfigFileUnreadable(path, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFile,
		Message: fmt.Sprintf("Cannot read config file %s: %s", path, reason),
		Action:  "Fix CONFIG_FILE or unset it to use environment variables only",
	}
}

// ErrInvalidUpstreamURL returns an error for an invalid upstream base URL
func ErrInvalidUpstreamURL(url, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidUpstreamURL,
		Message: fmt.Sprintf("Invalid OPENROUTER_BASE_URL '%s': %s", url, reason),
		Action:  "Set OPENROUTER_BASE_URL to a valid URL (e.g., https://openrouter.ai/api/v1)",
	}
}

// ErrMissingAuth returns an error for missing authentication credentials
func ErrMissingAuth(service string) *ConfigError {
	var action string
	switch service {
	case "openrouter":
		action = "Set OPENROUTER_API_KEY in your .env file"
	default:
		action = fmt.Sprintf("Set the required API key for %s in your .env file", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// IsConfigError checks if an error is (or wraps) a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
