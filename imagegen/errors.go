package imagegen

import (
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Terminal batch errors. Use errors.Is against the value returned by Aggregate.
var (
	ErrInsufficientQuota    = errors.New("imagegen: insufficient upstream credits or max_tokens too high")
	ErrAllGenerationsFailed = errors.New("imagegen: all generation requests failed")
)

// BatchError is returned when no task succeeded. It wraps one of the
// sentinels above and keeps the first failure for logging.
type BatchError struct {
	Kind  error
	First *TaskFailure
}

func (e *BatchError) Error() string {
	if e.First != nil {
		return fmt.Sprintf("%v (first failure: %v)", e.Kind, e.First)
	}
	return e.Kind.Error()
}

func (e *BatchError) Unwrap() error {
	return e.Kind
}

// UpstreamError is a non-success answer from the upstream service, or a
// transport failure (Status 0) before any answer arrived.
type UpstreamError struct {
	Status  int
	Message string
	// API holds the decoded OpenAI-style error object when the body had one.
	API *openai.APIError
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("imagegen: upstream request failed: %s", e.Message)
	}
	return fmt.Sprintf("imagegen: upstream returned %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	if e.API != nil {
		return e.API
	}
	return e.Err
}

// MalformedResponseError is a success status whose body cannot be used.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("imagegen: malformed upstream response: %s: %v", e.Reason, e.Err)
	}
	return "imagegen: malformed upstream response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
