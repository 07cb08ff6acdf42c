// Package imagegen turns one image generation request into a bounded batch of
// upstream chat-completion calls and aggregates their results.
//
// openrouter_provider.go implements the Provider that talks to OpenRouter's
// OpenAI-compatible chat completions endpoint with image output enabled.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"nanobanana/core"
)

// Provider performs one upstream completion for a task payload.
//
// Implementations must honor ctx: the dispatcher cancels it on the per-task
// timeout and on the batch deadline. Context errors should be returned as-is
// so the dispatcher can tell them apart from upstream failures.
type Provider interface {
	Complete(ctx context.Context, payload MessagePayload) (*Completion, error)
}

// Output modalities requested from the upstream model.
var outputModalities = []string{"image", "text"}

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// OpenRouterProvider implements Provider over HTTP.
//
// It is safe for concurrent use; the http.Client pools connections.
type OpenRouterProvider struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	model     string
	siteURL   string
	appTitle  string
	maxTokens int
}

// OpenRouterProviderConfig holds provider settings.
type OpenRouterProviderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	SiteURL   string // sent as HTTP-Referer
	AppTitle  string // sent as X-Title
	MaxTokens int

	// HTTPClient defaults to a client without its own timeout; deadlines
	// come from the request context.
	HTTPClient *http.Client
}

// NewOpenRouterProvider creates a provider from the service configuration.
// An empty API key is accepted here; callers check it per request.
func NewOpenRouterProvider(cfg *core.Config) (*OpenRouterProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	return NewOpenRouterProviderWithConfig(OpenRouterProviderConfig{
		APIKey:     cfg.UpstreamAPIKey,
		BaseURL:    cfg.UpstreamBaseURL,
		Model:      cfg.UpstreamModel,
		SiteURL:    cfg.SiteURL,
		AppTitle:   cfg.AppTitle,
		MaxTokens:  cfg.MaxTokens,
		HTTPClient: core.GetHTTPClient(cfg, 0),
	})
}

// NewOpenRouterProviderWithConfig creates a provider from explicit settings.
func NewOpenRouterProviderWithConfig(cfg OpenRouterProviderConfig) (*OpenRouterProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = core.DefaultUpstreamBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = core.DefaultUpstreamModel
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = core.DefaultSiteURL
	}
	if cfg.AppTitle == "" {
		cfg.AppTitle = core.DefaultAppTitle
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &OpenRouterProvider{
		client:    cfg.HTTPClient,
		endpoint:  ChatCompletionsURL(cfg.BaseURL),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		siteURL:   cfg.SiteURL,
		appTitle:  cfg.AppTitle,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// chatRequest is an OpenAI chat completion request plus OpenRouter's
// modalities field, which the go-openai request type does not carry.
type chatRequest struct {
	Model      string                         `json:"model"`
	Messages   []openai.ChatCompletionMessage `json:"messages"`
	MaxTokens  int                            `json:"max_tokens,omitempty"`
	Modalities []string                       `json:"modalities"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      CompletionMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage openai.Usage `json:"usage"`
}

// Complete posts the payload as a single user message and returns the first
// choice.
func (p *OpenRouterProvider) Complete(ctx context.Context, payload MessagePayload) (*Completion, error) {
	body, err := json.Marshal(chatRequest{
		Model:      p.model,
		Messages:   []openai.ChatCompletionMessage{payload.Message()},
		MaxTokens:  p.maxTokens,
		Modalities: outputModalities,
	})
	if err != nil {
		return nil, fmt.Errorf("imagegen: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("imagegen: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("HTTP-Referer", p.siteURL)
	req.Header.Set("X-Title", p.appTitle)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &UpstreamError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newUpstreamError(resp.StatusCode, data)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &MalformedResponseError{Reason: "invalid JSON", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &MalformedResponseError{Reason: "no choices"}
	}

	return &Completion{
		ID:      parsed.ID,
		Model:   parsed.Model,
		Message: parsed.Choices[0].Message,
		Usage:   parsed.Usage,
	}, nil
}

// newUpstreamError extracts a message from an error body, trying the OpenAI
// error object, then a bare "error" string, then "message", then the status
// text.
func newUpstreamError(status int, body []byte) *UpstreamError {
	upstream := &UpstreamError{Status: status}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		var apiErr openai.APIError
		var text string
		switch {
		case bytes.HasPrefix(bytes.TrimSpace(envelope.Error), []byte("{")) &&
			json.Unmarshal(envelope.Error, &apiErr) == nil && apiErr.Message != "":
			apiErr.HTTPStatusCode = status
			upstream.API = &apiErr
			upstream.Message = apiErr.Message
		case json.Unmarshal(envelope.Error, &text) == nil && text != "":
			upstream.Message = text
		case envelope.Message != "":
			upstream.Message = envelope.Message
		}
	}

	if upstream.Message == "" {
		upstream.Message = http.StatusText(status)
	}
	if upstream.Message == "" {
		upstream.Message = "upstream request failed"
	}
	return upstream
}

// Model returns the configured model identifier.
func (p *OpenRouterProvider) Model() string {
	return p.model
}

// Endpoint returns the chat completions URL.
func (p *OpenRouterProvider) Endpoint() string {
	return p.endpoint
}

var _ Provider = (*OpenRouterProvider)(nil)
