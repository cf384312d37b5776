// ABOUTME: Client for OpenAI-compatible chat-completion endpoints
// ABOUTME: Sends one system and one user message and asks for a JSON object back

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoAPIKey is returned by every completion when no API key is configured.
var ErrNoAPIKey = errors.New("assistant API key is not configured")

// Message is one chat message sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces the content of one chat completion.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ClientConfig configures an OpenAIClient.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIClient talks to /chat/completions on an OpenAI-compatible API.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIClient creates a client. An empty APIKey is allowed; completions
// then fail with ErrNoAPIKey.
func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

// HasAPIKey reports whether an API key is configured.
func (c *OpenAIClient) HasAPIKey() bool {
	return c.apiKey != ""
}

type completionRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends messages and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	body, err := json.Marshal(completionRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var out completionResponse
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("provider returned %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decoding response: %w", decodeErr)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("provider returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
