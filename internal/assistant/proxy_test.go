// ABOUTME: Tests for the chat proxy HTTP contract
// ABOUTME: Covers method, body validation, success, provider failure and schema rejection

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doChat(t *testing.T, p *Proxy, method, body string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(method, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	var out map[string]string
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestProxy_Success(t *testing.T) {
	fc := &fakeCompleter{content: budgetReply}
	p := NewProxy(fc)

	rec, out := doChat(t, p, http.MethodPost, `{"message":"Add a task to review the budget","projectContext":"{\"name\":\"Finance\"}"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	reply, err := ParseReply(out["response"])
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Answer)
	require.NotNil(t, reply.TaskSuggestion)
	assert.Contains(t, []string{"Low", "Medium", "High"}, reply.TaskSuggestion.Priority)

	require.Len(t, fc.messages, 1)
	msgs := fc.messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, `Current project context: {"name":"Finance"}`)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "Add a task to review the budget", msgs[1].Content)
}

func TestProxy_MethodNotAllowed(t *testing.T) {
	fc := &fakeCompleter{content: budgetReply}
	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec, out := doChat(t, NewProxy(fc), m, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, m)
		assert.Equal(t, "Method Not Allowed", out["error"])
	}
	assert.Empty(t, fc.messages)
}

func TestProxy_MessageRequired(t *testing.T) {
	fc := &fakeCompleter{content: budgetReply}
	for _, body := range []string{`{}`, `{"message":""}`, `{"message":"   "}`} {
		rec, out := doChat(t, NewProxy(fc), http.MethodPost, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Message is required", out["error"])
	}
	assert.Empty(t, fc.messages)
}

func TestProxy_UnreadableBody(t *testing.T) {
	fc := &fakeCompleter{content: budgetReply}
	for _, body := range []string{`not json`, ``, `{"message":`} {
		rec, out := doChat(t, NewProxy(fc), http.MethodPost, body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, body)
		assert.Equal(t, "Error processing your request", out["error"])
		assert.Contains(t, out["details"], "decode request")
	}
	assert.Empty(t, fc.messages)
}

func TestProxy_ProviderFailure(t *testing.T) {
	p := NewProxy(&fakeCompleter{err: errors.New("connection refused")})
	rec, out := doChat(t, p, http.MethodPost, `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error processing your request", out["error"])
	assert.Contains(t, out["details"], "connection refused")
}

func TestProxy_MissingAPIKey(t *testing.T) {
	p := NewProxy(NewOpenAIClient(ClientConfig{BaseURL: "http://127.0.0.1:1"}))
	rec, out := doChat(t, p, http.MethodPost, `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, out["details"], ErrNoAPIKey.Error())
}

func TestProxy_NonConformingOutput(t *testing.T) {
	p := NewProxy(&fakeCompleter{content: `{"reply":"I forgot the format"}`})
	rec, out := doChat(t, p, http.MethodPost, `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "provider returned non-conforming output", out["error"])
	assert.NotEmpty(t, out["details"])

	_, err := p.Ask(context.Background(), "hi", "")
	assert.ErrorIs(t, err, ErrNonConformingOutput)
}

func TestProxy_EmptyAnswerRejected(t *testing.T) {
	for _, content := range []string{`{"answer":""}`, `{"answer":"   "}`} {
		p := NewProxy(&fakeCompleter{content: content})
		rec, out := doChat(t, p, http.MethodPost, `{"message":"hi"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code, content)
		assert.Equal(t, "provider returned non-conforming output", out["error"])
		assert.Empty(t, out["response"])

		_, err := p.Ask(context.Background(), "hi", "")
		assert.ErrorIs(t, err, ErrNonConformingOutput)
	}
}
