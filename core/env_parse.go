package core

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvOrDefault returns the trimmed value of key, or def when unset or blank.
func GetEnvOrDefault(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

// ParseIntEnv parses key as an integer, falling back to def when the variable
// is unset or not a number.
func ParseIntEnv(key string, def int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return def
}

// ParseInt64Env is ParseIntEnv for byte sizes and other int64 settings.
func ParseInt64Env(key string, def int64) int64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return def
}

// ParseBoolEnv accepts true/1/yes/on and false/0/no/off, case-insensitive.
// Anything else yields def.
func ParseBoolEnv(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

// ParseMillisEnv reads key as a whole number of milliseconds. Unset or
// unparseable values yield def; no clamping happens here.
func ParseMillisEnv(key string, def time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
