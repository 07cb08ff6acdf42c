package validation

import (
	"fmt"
	"strings"

	"nanobanana/core"
)

// ValidationResult is the outcome of a single configuration check.
// Warning marks a result that is valid enough to start but worth surfacing.
type ValidationResult struct {
	Valid   bool
	Warning bool
	Message string
	Error   error
}

// ConfigValidator checks a loaded core.Config without touching the network.
type ConfigValidator struct {
	cfg     *core.Config
	envPath string
}

// NewConfigValidator creates a validator for cfg that looks for ".env".
func NewConfigValidator(cfg *core.Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg, envPath: ".env"}
}

// WithEnvPath sets a custom path for the .env file.
func (v *ConfigValidator) WithEnvPath(path string) *ConfigValidator {
	v.envPath = path
	return v
}

// CheckEnvFile reports a missing .env as a warning: every setting can also
// come from the process environment or CONFIG_FILE.
func (v *ConfigValidator) CheckEnvFile() ValidationResult {
	if err := CheckFileExists(v.envPath); err != nil {
		return ValidationResult{
			Valid:   true,
			Warning: true,
			Message: "No .env file, using process environment",
			Error:   core.ErrEnvFileMissing(v.envPath),
		}
	}
	return ValidationResult{Valid: true, Message: "Environment file found"}
}

// CheckUpstreamURL validates OPENROUTER_BASE_URL.
func (v *ConfigValidator) CheckUpstreamURL() ValidationResult {
	if err := ValidateUpstreamURL(v.cfg.UpstreamBaseURL); err != nil {
		return ValidationResult{
			Message: "Invalid upstream URL: " + v.cfg.UpstreamBaseURL,
			Error:   core.ErrInvalidUpstreamURL(v.cfg.UpstreamBaseURL, err.Error()),
		}
	}
	return ValidationResult{Valid: true, Message: v.cfg.UpstreamBaseURL}
}

// CheckCredential reports a missing API key. The server still starts and
// answers each generation request with a configuration error instead.
func (v *ConfigValidator) CheckCredential() ValidationResult {
	if err := v.cfg.RequireUpstreamKey(); err != nil {
		return ValidationResult{
			Valid:   true,
			Warning: true,
			Message: "OPENROUTER_API_KEY not set, generation requests will fail",
			Error:   err,
		}
	}
	return ValidationResult{Valid: true, Message: "API key configured"}
}

// CheckModel validates that a model identifier is configured.
func (v *ConfigValidator) CheckModel() ValidationResult {
	if strings.TrimSpace(v.cfg.UpstreamModel) == "" {
		return ValidationResult{
			Message: "OPENROUTER_MODEL is empty",
			Error:   core.ErrMissingConfig("OPENROUTER_MODEL"),
		}
	}
	return ValidationResult{Valid: true, Message: v.cfg.UpstreamModel}
}

// CheckTimeouts warns when the overall deadline is shorter than the per-task
// timeout, which makes the task timeout unreachable.
func (v *ConfigValidator) CheckTimeouts() ValidationResult {
	msg := fmt.Sprintf("task %v, overall %v", v.cfg.TaskTimeout, v.cfg.GlobalTimeout)
	if v.cfg.GlobalShorterThanTask() {
		return ValidationResult{
			Valid:   true,
			Warning: true,
			Message: msg + ": overall deadline will abort tasks before they time out",
		}
	}
	return ValidationResult{Valid: true, Message: msg}
}

// ValidateAll runs every check in order.
func (v *ConfigValidator) ValidateAll() []ValidationResult {
	return []ValidationResult{
		v.CheckEnvFile(),
		v.CheckUpstreamURL(),
		v.CheckCredential(),
		v.CheckModel(),
		v.CheckTimeouts(),
	}
}

// GetFirstError returns the error of the first invalid check, ignoring warnings.
func (v *ConfigValidator) GetFirstError() error {
	for _, r := range v.ValidateAll() {
		if !r.Valid {
			return r.Error
		}
	}
	return nil
}
