package imagegen

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// FailureKind classifies why a task did not produce a completion.
type FailureKind int

const (
	// FailureTimeout: the per-task timeout fired first.
	FailureTimeout FailureKind = iota + 1
	// FailureAborted: the global deadline or the caller cancelled the task.
	FailureAborted
	// FailureUpstream: the upstream answered with an error status or the
	// request never reached it (Status 0).
	FailureUpstream
	// FailureMalformedResponse: a success status with an unusable body.
	FailureMalformedResponse
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureAborted:
		return "aborted"
	case FailureUpstream:
		return "upstream"
	case FailureMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// TaskFailure records a failed task. It is data handed to the aggregator,
// not an error returned to callers.
type TaskFailure struct {
	Kind    FailureKind
	Message string
	Status  int
}

func (f *TaskFailure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", f.Kind, f.Status, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// CompletionMessage is the assistant message of an upstream completion.
// Content stays raw because it may be a string or a list of parts.
type CompletionMessage struct {
	Role    string                   `json:"role"`
	Content json.RawMessage          `json:"content"`
	Images  []openai.ChatMessagePart `json:"images"`
}

// Completion is the part of an upstream response the aggregator needs.
type Completion struct {
	ID      string
	Model   string
	Message CompletionMessage
	Usage   openai.Usage
}

// TaskOutcome is the terminal result of one task. Exactly one of Completion
// and Failure is set.
type TaskOutcome struct {
	Completion *Completion
	Failure    *TaskFailure
	Latency    time.Duration
}

// Succeeded reports whether the task produced a completion.
func (o *TaskOutcome) Succeeded() bool {
	return o != nil && o.Completion != nil
}
