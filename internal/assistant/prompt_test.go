// ABOUTME: Tests for system prompt construction
// ABOUTME: Checks project context placement and the JSON instructions

package assistant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/taskboard/internal/store"
)

func TestSystemPrompt(t *testing.T) {
	plain := SystemPrompt("")
	assert.True(t, strings.HasPrefix(plain, "You are an AI assistant for a project management application."))
	assert.NotContains(t, plain, "Current project context:")
	assert.Contains(t, plain, "You MUST respond with a valid JSON object")

	withCtx := SystemPrompt(`{"name":"Website"}`)
	idx := strings.Index(withCtx, `Current project context: {"name":"Website"}`)
	assert.Greater(t, idx, 0)
	assert.Less(t, idx, strings.Index(withCtx, "You MUST respond"))
}

func TestProjectContext(t *testing.T) {
	assert.Equal(t, "", ProjectContext(nil))
	got := ProjectContext(&store.Project{ID: "p1", Name: "Website"})
	assert.Equal(t, `{"id":"p1","name":"Website"}`, got)
}
