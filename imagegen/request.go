package imagegen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bounds on the number of images per request.
const (
	MinImages = 1
	MaxImages = 4
)

// Mode selects between plain generation and editing a reference image.
type Mode string

const (
	ModeTextToImage  Mode = "text-to-image"
	ModeImageToImage Mode = "image-to-image"
)

// GenerationRequest is a validated, normalized generation request.
type GenerationRequest struct {
	Prompt         string
	ReferenceImage string
	AspectRatioKey string
	RequestedCount int
	Mode           Mode
}

// ValidationReason identifies which check rejected a request.
type ValidationReason string

const (
	ReasonMalformedBody    ValidationReason = "malformed_body"
	ReasonMissingPrompt    ValidationReason = "missing_prompt"
	ReasonMissingReference ValidationReason = "missing_reference"
)

// ValidationError is a client error; no task runs when it is returned.
type ValidationError struct {
	Reason  ValidationReason
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("imagegen: %s: %v", e.Message, e.Err)
	}
	return "imagegen: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// rawRequest is the wire shape sent by the web client.
type rawRequest struct {
	Prompt      string          `json:"prompt"`
	ImageBase64 string          `json:"imageBase64"`
	AspectRatio string          `json:"aspectRatio"`
	NumImages   json.RawMessage `json:"numImages"`
	Mode        string          `json:"mode"`
}

// ParseGenerationRequest validates a raw JSON body.
//
// Checks run in order: the body must be a JSON object (an empty body counts
// as {}), prompt must be non-empty, and image-to-image needs a reference
// image. The image count is coerced and clamped, never rejected.
func ParseGenerationRequest(body []byte) (GenerationRequest, error) {
	var raw rawRequest
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
		if trimmed[0] != '{' {
			return GenerationRequest{}, &ValidationError{
				Reason:  ReasonMalformedBody,
				Message: "Invalid JSON body",
				Err:     fmt.Errorf("expected a JSON object"),
			}
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return GenerationRequest{}, &ValidationError{
				Reason:  ReasonMalformedBody,
				Message: "Invalid JSON body",
				Err:     err,
			}
		}
	}

	if raw.Prompt == "" {
		return GenerationRequest{}, &ValidationError{Reason: ReasonMissingPrompt, Message: "Prompt is required"}
	}

	mode := ModeTextToImage
	if Mode(raw.Mode) == ModeImageToImage {
		mode = ModeImageToImage
	}
	if mode == ModeImageToImage && raw.ImageBase64 == "" {
		return GenerationRequest{}, &ValidationError{Reason: ReasonMissingReference, Message: "Reference image is required"}
	}

	req := GenerationRequest{
		Prompt:         raw.Prompt,
		AspectRatioKey: raw.AspectRatio,
		RequestedCount: CoerceCount(raw.NumImages),
		Mode:           mode,
	}
	// The reference image only travels with image-to-image requests.
	if mode == ModeImageToImage {
		req.ReferenceImage = raw.ImageBase64
	}
	return req, nil
}

// CoerceCount turns the numImages field into a count in [MinImages, MaxImages].
// Numbers and numeric strings are accepted; absent, zero, negative or
// non-numeric values become 1 and fractions are truncated.
func CoerceCount(raw json.RawMessage) int {
	n := countValue(raw)
	if math.IsNaN(n) || n == 0 {
		n = MinImages
	}
	n = math.Max(MinImages, math.Min(MaxImages, n))
	return int(math.Trunc(n))
}

func countValue(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return math.NaN()
	}

	switch t := v.(type) {
	case json.Number:
		return parseCount(t.String())
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		return parseCount(s)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

// parseCount parses a decimal count. Out-of-range values keep the ±Inf or
// zero that strconv returns so they clamp like any other number.
func parseCount(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return f
}
