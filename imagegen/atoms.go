package imagegen

import (
	"strings"
	"unicode/utf8"
)

// ChatCompletionsURL joins an OpenAI-compatible base URL with the chat
// completions path.
//
//	ChatCompletionsURL("https://openrouter.ai/api/v1")  // "https://openrouter.ai/api/v1/chat/completions"
//	ChatCompletionsURL("https://openrouter.ai/api/v1/") // same
func ChatCompletionsURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}

// TruncateForLog shortens s to at most max bytes on a rune boundary,
// appending "..." when it cut anything.
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
