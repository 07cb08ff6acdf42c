package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"nanobanana/core"
	"nanobanana/imagegen"
	"nanobanana/logging"
)

// Client-facing error messages for POST /api/generate.
const (
	msgInvalidJSON       = "Invalid JSON body"
	msgMissingAPIKey     = "OPENROUTER_API_KEY is missing"
	msgInsufficientQuota = "Insufficient OpenRouter credits or max_tokens too high"
	msgAllFailed         = "All generation requests failed"
	msgInternal          = "Internal server error"
)

// BatchGenerator runs one generation request. *imagegen.Generator
// implements it.
type BatchGenerator interface {
	Generate(ctx context.Context, body []byte) (*imagegen.AggregateResult, error)
}

// GenerateHandler serves POST /api/generate.
type GenerateHandler struct {
	generator    BatchGenerator
	maxBodyBytes int64
	logger       *logging.Logger
}

// NewGenerateHandler creates the handler. A non-positive maxBodyBytes uses
// core.DefaultMaxBodyBytes.
func NewGenerateHandler(generator BatchGenerator, maxBodyBytes int64, logger *logging.Logger) *GenerateHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = core.DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GenerateHandler{
		generator:    generator,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.Named("generate"),
	}
}

// generateResponse is the success envelope.
type generateResponse struct {
	Result *imagegen.AggregateResult `json:"result"`
}

// generateError is the failure envelope. Code is only set for 402.
type generateError struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// ServeHTTP implements http.Handler.
func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, generateError{Error: "Method not allowed"})
		return
	}

	requestID, _ := imagegen.RequestIDFromContext(r.Context())
	log := h.logger.With(logging.RequestID(requestID))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("generation panicked", zap.String("panic", fmt.Sprint(rec)))
			writeJSON(w, http.StatusInternalServerError, generateError{Error: msgInternal})
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("request body too large", zap.String("limit", core.FormatBytes(tooLarge.Limit)))
		} else {
			log.Warn("reading request body failed", zap.Error(err))
		}
		writeJSON(w, http.StatusBadRequest, generateError{Error: msgInvalidJSON})
		return
	}

	result, err := h.generator.Generate(r.Context(), body)
	if err != nil {
		status, resp := errorResponse(err)
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Result: result})
}

// errorResponse maps a pipeline error to its HTTP status and body.
func errorResponse(err error) (int, generateError) {
	var validationErr *imagegen.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, generateError{Error: validationErr.Message}
	}

	if configErr, ok := core.IsConfigError(err); ok {
		if configErr.Code == core.ErrCodeMissingAuth {
			return http.StatusInternalServerError, generateError{Error: msgMissingAPIKey}
		}
		return http.StatusInternalServerError, generateError{Error: configErr.Message}
	}

	switch {
	case errors.Is(err, imagegen.ErrInsufficientQuota):
		return http.StatusPaymentRequired, generateError{Error: msgInsufficientQuota, Code: http.StatusPaymentRequired}
	case errors.Is(err, imagegen.ErrAllGenerationsFailed):
		return http.StatusBadGateway, generateError{Error: msgAllFailed}
	}
	return http.StatusInternalServerError, generateError{Error: err.Error()}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already out; an encode error can only be dropped.
	_ = json.NewEncoder(w).Encode(data)
}
