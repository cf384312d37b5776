// ABOUTME: System prompt and reply schema for the project assistant
// ABOUTME: Builds the instructions sent ahead of every user message

package assistant

import (
	"encoding/json"
	"strings"

	"github.com/2389/taskboard/internal/store"
)

const assistantInstructions = `You are an AI assistant for a project management application.
Help users manage their projects and tasks efficiently.
If the user's message implies creating a task, include a taskSuggestion in your response.`

const jsonInstructions = `You MUST respond with a valid JSON object that follows this structure:
{
  "answer": "Your helpful response here",
  "taskSuggestion": {
    "title": "Task title if applicable",
    "description": "Task description if applicable",
    "priority": "Low|Medium|High"
  }
}

The taskSuggestion field is optional and should only be included if the user's message implies creating a task.`

// SystemPrompt returns the system message for one chat request.
// projectContext is included verbatim when non-empty.
func SystemPrompt(projectContext string) string {
	var b strings.Builder
	b.WriteString(assistantInstructions)
	if ctx := strings.TrimSpace(projectContext); ctx != "" {
		b.WriteString("\nCurrent project context: ")
		b.WriteString(ctx)
	}
	b.WriteString("\n\n")
	b.WriteString(jsonInstructions)
	return b.String()
}

// ProjectContext describes a project for the prompt as a compact JSON object.
// A nil project yields "".
func ProjectContext(p *store.Project) string {
	if p == nil {
		return ""
	}
	data, err := json.Marshal(struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}{p.ID, p.Name, p.Description})
	if err != nil {
		return ""
	}
	return string(data)
}
