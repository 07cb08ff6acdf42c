package imagegen

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// fakeProvider delegates to fn with the task index from the context.
type fakeProvider struct {
	fn func(ctx context.Context, index int) (*Completion, error)
}

func (f *fakeProvider) Complete(ctx context.Context, _ MessagePayload) (*Completion, error) {
	idx, _ := TaskIndexFromContext(ctx)
	return f.fn(ctx, idx)
}

func imageURLFor(index int) string {
	return fmt.Sprintf("data:image/png;base64,task%d", index)
}

func completionWithImages(urls ...string) *Completion {
	parts := make([]openai.ChatMessagePart, len(urls))
	for i, u := range urls {
		parts[i] = openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: u},
		}
	}
	return &Completion{Message: CompletionMessage{Role: "assistant", Images: parts}}
}

func succeedOutcome(urls ...string) *TaskOutcome {
	return &TaskOutcome{Completion: completionWithImages(urls...)}
}

func failOutcome(kind FailureKind, status int) *TaskOutcome {
	return &TaskOutcome{Failure: &TaskFailure{Kind: kind, Status: status, Message: kind.String()}}
}

func makeTasks(n int) []GenerationTask {
	return BuildTasks(GenerationRequest{Prompt: "p", RequestedCount: n, Mode: ModeTextToImage})
}
