package imagegen

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ImageRef is one generated image, serialized as {"image_url":{"url":...}}.
type ImageRef struct {
	ImageURL ImageURL `json:"image_url"`
}

// ImageURL holds the image location: an http(s) URL or a data:image/ URL.
type ImageURL struct {
	URL string `json:"url"`
}

// NewImageRef wraps url in an ImageRef.
func NewImageRef(url string) ImageRef {
	return ImageRef{ImageURL: ImageURL{URL: url}}
}

// IsValidImageURL accepts inline data:image/ payloads and absolute http(s)
// URLs with a host. Everything else, including javascript: and relative
// paths, is rejected.
func IsValidImageURL(raw string) bool {
	if strings.HasPrefix(raw, "data:image/") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// extractStructuredImages reads the message's "images" field.
func extractStructuredImages(msg CompletionMessage) []ImageRef {
	return collectImageParts(msg.Images, false)
}

// extractContentImages scans content parts for image_url entries. Older
// responses carried images there instead of in "images". String content has
// no parts and yields nothing.
func extractContentImages(msg CompletionMessage) []ImageRef {
	content := bytes.TrimSpace(msg.Content)
	if len(content) == 0 || content[0] != '[' {
		return nil
	}
	var parts []openai.ChatMessagePart
	if err := json.Unmarshal(content, &parts); err != nil {
		return nil
	}
	return collectImageParts(parts, true)
}

func collectImageParts(parts []openai.ChatMessagePart, requireType bool) []ImageRef {
	var refs []ImageRef
	for _, part := range parts {
		if requireType && part.Type != openai.ChatMessagePartTypeImageURL {
			continue
		}
		if part.ImageURL == nil || part.ImageURL.URL == "" {
			continue
		}
		if !IsValidImageURL(part.ImageURL.URL) {
			continue
		}
		refs = append(refs, NewImageRef(part.ImageURL.URL))
	}
	return refs
}

// ExtractImages merges both extractors, structured images first.
func ExtractImages(msg CompletionMessage) []ImageRef {
	return append(extractStructuredImages(msg), extractContentImages(msg)...)
}
