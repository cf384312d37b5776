// ABOUTME: Typed HTTP client for the taskboard JSON API
// ABOUTME: Used by the admin CLI; also answers assistant questions through the chat proxy

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/taskboard/internal/api"
	"github.com/2389/taskboard/internal/assistant"
	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

// DefaultTimeout bounds requests when the caller sets none. Chat calls can
// take as long as the provider does, so it matches the provider default.
const DefaultTimeout = 60 * time.Second

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Message    string
	Details    string
	Fields     map[string]string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
}

// Is maps status codes onto the sentinels callers already know.
func (e *Error) Is(target error) bool {
	switch target {
	case store.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case assistant.ErrNonConformingOutput:
		return e.StatusCode == http.StatusBadGateway
	}
	return false
}

// Client talks to one taskboard server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for baseURL (e.g. "http://127.0.0.1:8080").
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var body struct {
			Error   string            `json:"error"`
			Details string            `json:"details"`
			Fields  map[string]string `json:"fields"`
		}
		if json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.Error
			apiErr.Details = body.Details
			apiErr.Fields = body.Fields
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// SignUp registers an account.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*api.UserResponse, error) {
	var out api.UserResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", api.SignUpRequest{Email: email, Password: password, DisplayName: displayName}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SignIn exchanges credentials for a token and keeps it for later calls.
func (c *Client) SignIn(ctx context.Context, email, password string) (*api.SignInResponse, error) {
	var out api.SignInResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signin", api.SignInRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// SignOut ends the session behind the current token.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*api.UserResponse, error) {
	var out api.UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProjects returns every project, newest first.
func (c *Client) ListProjects(ctx context.Context) ([]api.ProjectResponse, error) {
	var out []api.ProjectResponse
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProject returns one project.
func (c *Client) GetProject(ctx context.Context, id string) (*api.ProjectResponse, error) {
	var out api.ProjectResponse
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, form tracker.ProjectForm) (*api.ProjectResponse, error) {
	var out api.ProjectResponse
	if err := c.do(ctx, http.MethodPost, "/api/projects", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProject applies a partial update.
func (c *Client) UpdateProject(ctx context.Context, id string, patch api.ProjectPatch) (*api.ProjectResponse, error) {
	var out api.ProjectResponse
	if err := c.do(ctx, http.MethodPatch, "/api/projects/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
}

// ListTasks returns tasks, optionally narrowed to a project and status.
func (c *Client) ListTasks(ctx context.Context, projectID, status string) ([]api.TaskResponse, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	if status != "" {
		q.Set("status", status)
	}
	path := "/api/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []api.TaskResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTask returns one task.
func (c *Client) GetTask(ctx context.Context, id string) (*api.TaskResponse, error) {
	var out api.TaskResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, form tracker.TaskForm) (*api.TaskResponse, error) {
	var out api.TaskResponse
	if err := c.do(ctx, http.MethodPost, "/api/tasks", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask applies a partial update.
func (c *Client) UpdateTask(ctx context.Context, id string, patch api.TaskPatch) (*api.TaskResponse, error) {
	var out api.TaskResponse
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

// Ask sends one message to the chat proxy and returns the validated reply
// JSON. It satisfies assistant.Asker, so a Widget can run against a remote
// server.
func (c *Client) Ask(ctx context.Context, message, projectContext string) (string, error) {
	var out assistant.ChatResponse
	err := c.do(ctx, http.MethodPost, "/api/chat", assistant.ChatRequest{Message: message, ProjectContext: projectContext}, &out)
	if err != nil {
		return "", err
	}
	return out.Response, nil
}

// Health reports whether the server answers /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

var _ assistant.Asker = (*Client)(nil)

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
