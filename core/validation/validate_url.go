package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateUpstreamURL checks that raw is an absolute http(s) URL with a host.
func ValidateUpstreamURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("URL must use http or https scheme, got: %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}
