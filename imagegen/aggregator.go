package imagegen

import "fmt"

// Stats counts the outcome of a batch. Failed is Requested - Successful, so
// tasks that were never claimed count as failed.
type Stats struct {
	Requested  int `json:"requested"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// AggregateResult is the client-facing result of a batch with at least one
// successful task.
type AggregateResult struct {
	Images  []ImageRef `json:"images"`
	Stats   Stats      `json:"stats"`
	Warning string     `json:"warning,omitempty"`
}

// Aggregate turns dispatcher outcomes into a result.
//
// Images from successful tasks are concatenated in task order and truncated
// to requested. With no successes it returns a *BatchError wrapping
// ErrInsufficientQuota when the first failure is an upstream 402, and
// ErrAllGenerationsFailed otherwise.
func Aggregate(outcomes []*TaskOutcome, requested int) (*AggregateResult, error) {
	var firstFailure *TaskFailure
	successful := 0
	images := make([]ImageRef, 0, requested)

	for _, o := range outcomes {
		switch {
		case o.Succeeded():
			successful++
			images = append(images, ExtractImages(o.Completion.Message)...)
		case o != nil && o.Failure != nil && firstFailure == nil:
			firstFailure = o.Failure
		}
	}

	if successful == 0 {
		kind := ErrAllGenerationsFailed
		if firstFailure != nil && firstFailure.Kind == FailureUpstream && firstFailure.Status == 402 {
			kind = ErrInsufficientQuota
		}
		return nil, &BatchError{Kind: kind, First: firstFailure}
	}

	if len(images) > requested {
		images = images[:requested]
	}

	result := &AggregateResult{
		Images: images,
		Stats: Stats{
			Requested:  requested,
			Successful: successful,
			Failed:     requested - successful,
		},
	}
	if result.Stats.Failed > 0 {
		result.Warning = fmt.Sprintf("%d of %d image generations failed", result.Stats.Failed, requested)
	}
	return result, nil
}
