package logging

import (
	"fmt"
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces secrets in log output.
const RedactedPlaceholder = "[REDACTED]"

// dataURLMinPayload is the shortest base64 payload that gets elided.
const dataURLMinPayload = 64

var dataURLPattern = regexp.MustCompile(`data:([a-zA-Z0-9.+/-]+);base64,([A-Za-z0-9+/=_-]+)`)

var sensitivePatterns = []*regexp.Regexp{
	// OpenRouter (sk-or-v1-...) and OpenAI (sk-..., sk-proj-...) keys
	regexp.MustCompile(`(?i)\b(sk-[a-zA-Z0-9_-]{20,})`),
	regexp.MustCompile(`(?i)(AIza[a-zA-Z0-9_-]{35})`),
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(apikey\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{8,})`),
}

// Field names whose values are never logged. A field matches when its name
// equals an entry or ends with "_" plus an entry.
var sensitiveFieldNames = []string{
	"OPENROUTER_API_KEY",
	"API_KEY",
	"APIKEY",
	"AUTHORIZATION",
	"PASSWORD",
	"SECRET",
	"TOKEN",
}

// RedactSensitiveData elides inline base64 payloads and redacts anything that
// looks like a credential.
//
//	RedactSensitiveData("key sk-or-v1-0123456789abcdef0123")  // "key [REDACTED]"
//	RedactSensitiveData("data:image/png;base64,iVBORw0...")  // "data:image/png;base64,<2048 chars>"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := ShortenDataURLs(value)
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// ShortenDataURLs replaces the payload of every base64 data URL longer than
// dataURLMinPayload with its length, keeping the media type.
func ShortenDataURLs(value string) string {
	if !strings.Contains(value, "data:") {
		return value
	}
	return dataURLPattern.ReplaceAllStringFunc(value, func(m string) string {
		sub := dataURLPattern.FindStringSubmatch(m)
		if len(sub[2]) < dataURLMinPayload {
			return m
		}
		return fmt.Sprintf("data:%s;base64,<%d chars>", sub[1], len(sub[2]))
	})
}

// IsSensitiveField reports whether a field name marks its value as secret.
func IsSensitiveField(fieldName string) bool {
	upper := strings.ToUpper(fieldName)
	for _, name := range sensitiveFieldNames {
		if upper == name || strings.HasSuffix(upper, "_"+name) {
			return true
		}
	}
	return false
}

// RedactField returns the placeholder for sensitive field names and the
// scrubbed value otherwise.
func RedactField(fieldName, fieldValue string) string {
	if IsSensitiveField(fieldName) {
		return RedactedPlaceholder
	}
	return RedactSensitiveData(fieldValue)
}

// ContainsSensitiveData reports whether value matches any credential pattern.
func ContainsSensitiveData(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}
