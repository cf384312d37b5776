// ABOUTME: Chat proxy between the assistant widget and the completion provider
// ABOUTME: Serves POST {message, projectContext} and returns the validated JSON reply string

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// ErrMessageRequired is returned when a chat request has no message.
var ErrMessageRequired = errors.New("message is required")

const maxRequestBytes = 64 << 10

// ChatRequest is the proxy's request body.
type ChatRequest struct {
	Message        string `json:"message"`
	ProjectContext string `json:"projectContext,omitempty"`
}

// ChatResponse is the proxy's success body. Response holds the reply as a
// JSON-encoded string.
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the proxy's failure body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Proxy forwards chat messages to a Completer. It is stateless.
type Proxy struct {
	completer Completer
	logger    *slog.Logger
}

// NewProxy creates a proxy over completer.
func NewProxy(completer Completer) *Proxy {
	return &Proxy{
		completer: completer,
		logger:    slog.Default().With("component", "assistant"),
	}
}

// Ask sends one message and returns the provider's reply content once it has
// been checked against the reply schema.
func (p *Proxy) Ask(ctx context.Context, message, projectContext string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrMessageRequired
	}

	p.logger.Debug("chat request", "message_len", len(message), "has_context", projectContext != "")

	content, err := p.completer.Complete(ctx, []Message{
		{Role: "system", Content: SystemPrompt(projectContext)},
		{Role: "user", Content: message},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if err := ValidateReply(content); err != nil {
		return "", err
	}
	return content, nil
}

// ServeHTTP implements the chat endpoint.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method Not Allowed"})
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		p.logger.Warn("unreadable chat request", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Error processing your request",
			Details: fmt.Sprintf("decode request: %v", err),
		})
		return
	}

	content, err := p.Ask(r.Context(), req.Message, req.ProjectContext)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ChatResponse{Response: content})
	case errors.Is(err, ErrMessageRequired):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Message is required"})
	case errors.Is(err, ErrNonConformingOutput):
		p.logger.Warn("provider output rejected", "error", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   ErrNonConformingOutput.Error(),
			Details: err.Error(),
		})
	default:
		p.logger.Error("chat request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Error processing your request",
			Details: err.Error(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
