// ABOUTME: Tests for the API client against a real API handler
// ABOUTME: Exercises auth, CRUD, error mapping and the chat proxy round trip

package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/taskboard/internal/api"
	"github.com/2389/taskboard/internal/assistant"
	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

type staticCompleter struct {
	content string
	err     error
}

func (s staticCompleter) Complete(context.Context, []assistant.Message) (string, error) {
	return s.content, s.err
}

func newTestClient(t *testing.T, completer assistant.Completer) *Client {
	t.Helper()
	st := store.NewMockStore()
	verifier, err := auth.NewJWTVerifier([]byte("apiclient-test-secret-0123456789a"))
	require.NoError(t, err)
	identity := auth.NewService(st, verifier, auth.Options{AllowSignup: true})
	gw := tracker.New(st, identity, nil)

	mux := http.NewServeMux()
	api.New(gw, identity, assistant.NewProxy(completer)).Register(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("OK")) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return New(srv.URL+"/", "")
}

func signedIn(t *testing.T, completer assistant.Completer) *Client {
	t.Helper()
	c := newTestClient(t, completer)
	ctx := context.Background()
	_, err := c.SignUp(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)
	resp, err := c.SignIn(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, resp.Token, c.Token())
	return c
}

func TestAuthRoundTrip(t *testing.T) {
	c := newTestClient(t, staticCompleter{})
	ctx := context.Background()

	_, err := c.Me(ctx)
	assert.True(t, IsUnauthorized(err))

	_, err = c.SignUp(ctx, "ada@example.com", "correct horse", "Ada")
	require.NoError(t, err)

	_, err = c.SignIn(ctx, "ada@example.com", "wrong horse")
	assert.True(t, IsUnauthorized(err))

	_, err = c.SignIn(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.DisplayName)

	token := c.Token()
	require.NoError(t, c.SignOut(ctx))
	assert.Empty(t, c.Token())

	c.SetToken(token)
	_, err = c.Me(ctx)
	assert.True(t, IsUnauthorized(err), "token must die with its session")
}

func TestProjectAndTaskCRUD(t *testing.T) {
	c := signedIn(t, staticCompleter{})
	ctx := context.Background()

	p, err := c.CreateProject(ctx, tracker.ProjectForm{Name: "Apollo", Description: "Moon"})
	require.NoError(t, err)

	projects, err := c.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, p.ID, projects[0].ID)

	name := "Apollo 11"
	p, err = c.UpdateProject(ctx, p.ID, api.ProjectPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Apollo 11", p.Name)
	assert.Equal(t, "Moon", p.Description)

	t1, err := c.CreateTask(ctx, tracker.TaskForm{ProjectID: p.ID, Title: "Fuel", Priority: "high", DueDate: "2026-07-16"})
	require.NoError(t, err)
	assert.Equal(t, "todo", t1.Status)
	assert.Equal(t, "2026-07-16", t1.DueDate)

	_, err = c.CreateTask(ctx, tracker.TaskForm{ProjectID: p.ID, Title: "Launch"})
	require.NoError(t, err)

	done := "done"
	t1, err = c.UpdateTask(ctx, t1.ID, api.TaskPatch{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, "done", t1.Status)

	tasks, err := c.ListTasks(ctx, p.ID, "done")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Fuel", tasks[0].Title)

	tasks, err = c.ListTasks(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	require.NoError(t, c.DeleteTask(ctx, t1.ID))
	_, err = c.GetTask(ctx, t1.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, c.DeleteProject(ctx, p.ID))
	_, err = c.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFieldErrors(t *testing.T) {
	c := signedIn(t, staticCompleter{})

	_, err := c.CreateTask(context.Background(), tracker.TaskForm{Title: "Orphan"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, tracker.MsgProjectRequired, apiErr.Fields["project_id"])
}

func TestAsk(t *testing.T) {
	c := signedIn(t, staticCompleter{content: `{"answer":"Break it into milestones."}`})

	out, err := c.Ask(context.Background(), "How do I plan this?", "")
	require.NoError(t, err)

	reply, err := assistant.ParseReply(out)
	require.NoError(t, err)
	assert.Equal(t, "Break it into milestones.", reply.Answer)
}

func TestAskNonConformingOutput(t *testing.T) {
	c := signedIn(t, staticCompleter{content: `{"text":"no answer"}`})

	_, err := c.Ask(context.Background(), "How do I plan this?", "")
	assert.ErrorIs(t, err, assistant.ErrNonConformingOutput)
}

func TestAskProviderFailure(t *testing.T) {
	c := signedIn(t, staticCompleter{err: errors.New("provider down")})

	_, err := c.Ask(context.Background(), "Hello", "")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Error processing your request", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "provider down")
}

func TestWidgetOverClient(t *testing.T) {
	c := signedIn(t, staticCompleter{content: `{"answer":"Sure.","taskSuggestion":{"title":"Review budget","description":"Go line by line","priority":"Medium"}}`})

	w := assistant.NewWidget(c, nil)
	conv := &assistant.Conversation{}
	reply, err := w.Send(context.Background(), conv, "Add a task to review the budget")
	require.NoError(t, err)
	require.NotNil(t, reply.TaskSuggestion)
	assert.Equal(t, "Medium", reply.TaskSuggestion.Priority)
	assert.Len(t, conv.Turns(), 2)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, staticCompleter{})
	assert.NoError(t, c.Health(context.Background()))

	bad := New("http://127.0.0.1:1", "")
	assert.Error(t, bad.Health(context.Background()))
}
