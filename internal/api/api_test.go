// ABOUTME: Tests for the JSON API
// ABOUTME: Drives the handlers through an httptest server backed by the in-memory store

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/taskboard/internal/assistant"
	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

type staticCompleter string

func (s staticCompleter) Complete(context.Context, []assistant.Message) (string, error) {
	return string(s), nil
}

type testAPI struct {
	t     *testing.T
	srv   *httptest.Server
	store *store.MockStore
	token string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	// users and data live apart so data failures can be injected without breaking auth
	users := store.NewMockStore()
	st := store.NewMockStore()
	verifier, err := auth.NewJWTVerifier([]byte("api-test-secret-0123456789abcdef"))
	require.NoError(t, err)
	identity := auth.NewService(users, verifier, auth.Options{AllowSignup: true})
	gw := tracker.New(st, identity, nil)
	chat := assistant.NewProxy(staticCompleter(`{"answer":"Noted."}`))

	mux := http.NewServeMux()
	New(gw, identity, chat).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testAPI{t: t, srv: srv, store: st}
}

func (a *testAPI) do(method, path string, body any) (*http.Response, []byte) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, r)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp, data
}

func (a *testAPI) signIn() {
	a.t.Helper()
	resp, _ := a.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "ada@example.com", Password: "correct horse", DisplayName: "Ada"})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode)

	resp, body := a.do(http.MethodPost, "/api/auth/signin", SignInRequest{Email: "ada@example.com", Password: "correct horse"})
	require.Equal(a.t, http.StatusOK, resp.StatusCode)
	var out SignInResponse
	require.NoError(a.t, json.Unmarshal(body, &out))
	require.NotEmpty(a.t, out.Token)
	a.token = out.Token
}

func decodeInto[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	a.signIn()

	resp, body := a.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decodeInto[UserResponse](t, body)
	assert.Equal(t, "ada@example.com", me.Email)
	assert.Equal(t, "Ada", me.DisplayName)

	resp, _ = a.do(http.MethodPost, "/api/auth/signout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = a.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "session ended", decodeInto[map[string]string](t, body)["error"])
}

func TestSignUpErrors(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "not-an-email", Password: "correct horse"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "a@example.com", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "a@example.com", Password: "long enough"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = a.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "A@example.com", Password: "long enough"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = a.do(http.MethodPost, "/api/auth/signin", SignInRequest{Email: "a@example.com", Password: "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProjectsCRUD(t *testing.T) {
	a := newTestAPI(t)
	a.signIn()

	resp, body := a.do(http.MethodPost, "/api/projects", tracker.ProjectForm{Name: "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fe := decodeInto[fieldErrorResponse](t, body)
	assert.Equal(t, tracker.MsgProjectNameRequired, fe.Fields["name"])

	resp, body = a.do(http.MethodPost, "/api/projects", tracker.ProjectForm{Name: "Website", Description: "Relaunch"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	p := decodeInto[ProjectResponse](t, body)
	assert.NotEmpty(t, p.ID)
	assert.NotEmpty(t, p.OwnerID)

	resp, body = a.do(http.MethodPatch, "/api/projects/"+p.ID, map[string]string{"description": "Relaunch in May"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decodeInto[ProjectResponse](t, body)
	assert.Equal(t, "Website", patched.Name)
	assert.Equal(t, "Relaunch in May", patched.Description)

	resp, _ = a.do(http.MethodPatch, "/api/projects/"+p.ID, map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = a.do(http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeInto[[]ProjectResponse](t, body), 1)

	resp, _ = a.do(http.MethodDelete, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = a.do(http.MethodDelete, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "deleting a missing project succeeds")

	resp, _ = a.do(http.MethodGet, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTasksCRUD(t *testing.T) {
	a := newTestAPI(t)
	a.signIn()

	_, body := a.do(http.MethodPost, "/api/projects", tracker.ProjectForm{Name: "Budget"})
	p := decodeInto[ProjectResponse](t, body)

	resp, body := a.do(http.MethodPost, "/api/tasks", tracker.TaskForm{Title: "Orphan"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, tracker.MsgProjectRequired, decodeInto[fieldErrorResponse](t, body).Fields["project_id"])

	resp, _ = a.do(http.MethodPost, "/api/tasks", tracker.TaskForm{ProjectID: "nope", Title: "Lost"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = a.do(http.MethodPost, "/api/tasks", tracker.TaskForm{ProjectID: p.ID, Title: "Review the budget", DueDate: "2026-03-01"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := decodeInto[TaskResponse](t, body)
	assert.Equal(t, "todo", task.Status)
	assert.Equal(t, "medium", task.Priority)
	assert.Equal(t, "2026-03-01", task.DueDate)

	resp, body = a.do(http.MethodPatch, "/api/tasks/"+task.ID, map[string]string{"status": "done", "due_date": ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decodeInto[TaskResponse](t, body)
	assert.Equal(t, "done", done.Status)
	assert.Empty(t, done.DueDate)
	assert.True(t, done.UpdatedAt.After(done.CreatedAt))

	resp, _ = a.do(http.MethodPatch, "/api/tasks/"+task.ID, map[string]string{"status": "blocked"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = a.do(http.MethodGet, "/api/tasks?status=done&project_id="+p.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeInto[[]TaskResponse](t, body), 1)

	resp, body = a.do(http.MethodGet, "/api/tasks?status=todo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeInto[[]TaskResponse](t, body))

	resp, _ = a.do(http.MethodGet, "/api/tasks?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(http.MethodDelete, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = a.do(http.MethodGet, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStoreFailureIs500(t *testing.T) {
	a := newTestAPI(t)
	a.signIn()
	a.store.Err = assert.AnError

	resp, body := a.do(http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", decodeInto[map[string]string](t, body)["error"])
}

func TestChatEndpoint(t *testing.T) {
	a := newTestAPI(t)

	// Auth runs before the chat contract, whatever the method or body.
	resp, _ := a.do(http.MethodPost, "/api/chat", assistant.ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = a.do(http.MethodGet, "/api/chat", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = a.do(http.MethodPost, "/api/chat", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	a.signIn()

	resp, body := a.do(http.MethodPost, "/api/chat", assistant.ChatRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeInto[assistant.ChatResponse](t, body)
	assert.JSONEq(t, `{"answer":"Noted."}`, out.Response)

	resp, _ = a.do(http.MethodGet, "/api/chat", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = a.do(http.MethodPost, "/api/chat", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidJSON(t *testing.T) {
	a := newTestAPI(t)
	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/api/auth/signin", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
