package imagegen

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// MessagePayload is the user message sent upstream for one task: a text part
// and, for image-to-image, the reference image part.
type MessagePayload struct {
	Parts []openai.ChatMessagePart
}

// Message returns the payload as a single user chat message.
func (p MessagePayload) Message() openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: p.Parts,
	}
}

// HasImage reports whether the payload carries a reference image.
func (p MessagePayload) HasImage() bool {
	for _, part := range p.Parts {
		if part.Type == openai.ChatMessagePartTypeImageURL {
			return true
		}
	}
	return false
}

// GenerationTask is one requested image. Tasks of a batch differ only by
// Index; cancellation is owned by the Dispatcher.
type GenerationTask struct {
	Index   int
	Payload MessagePayload
}

// PromptText appends the aspect ratio instruction to the user's prompt.
func PromptText(prompt string, profile AspectRatioProfile) string {
	return fmt.Sprintf("%s\n\nGenerate image in %s aspect ratio (%dx%d).",
		prompt, profile.Label, profile.Width, profile.Height)
}

// BuildTasks returns req.RequestedCount tasks sharing one read-only payload.
func BuildTasks(req GenerationRequest) []GenerationTask {
	profile := ResolveAspectRatio(req.AspectRatioKey)

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: PromptText(req.Prompt, profile),
	}}
	if req.Mode == ModeImageToImage && req.ReferenceImage != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: req.ReferenceImage},
		})
	}
	payload := MessagePayload{Parts: parts}

	tasks := make([]GenerationTask, req.RequestedCount)
	for i := range tasks {
		tasks[i] = GenerationTask{Index: i, Payload: payload}
	}
	return tasks
}
