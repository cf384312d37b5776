// ABOUTME: Assistant widget state: conversations, turns and suggested-task creation
// ABOUTME: Sends user messages through an Asker and turns suggestions into real tasks

package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

// Role identifies who spoke a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role       Role
	Content    string
	Suggestion *Suggestion
	At         time.Time
}

// Conversation is the ordered chat history of one browser session.
// It is safe for concurrent use.
type Conversation struct {
	mu             sync.Mutex
	turns          []Turn
	projectContext string
}

// Turns returns a copy of the history, oldest first.
func (c *Conversation) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Turn returns the i'th turn.
func (c *Conversation) Turn(i int) (Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.turns) {
		return Turn{}, false
	}
	return c.turns[i], true
}

// SetProjectContext sets the context string sent with later messages.
func (c *Conversation) SetProjectContext(ctx string) {
	c.mu.Lock()
	c.projectContext = ctx
	c.mu.Unlock()
}

// ProjectContext returns the current context string.
func (c *Conversation) ProjectContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectContext
}

func (c *Conversation) append(t Turn) {
	c.mu.Lock()
	c.turns = append(c.turns, t)
	c.mu.Unlock()
}

// Asker is anything that can answer a chat message with a reply JSON string:
// the in-process Proxy or an HTTP client for the chat endpoint.
type Asker interface {
	Ask(ctx context.Context, message, projectContext string) (string, error)
}

// TaskCreator persists a task.
type TaskCreator interface {
	CreateTask(ctx context.Context, t *store.Task) (*store.Task, error)
}

// Widget drives a conversation.
type Widget struct {
	asker Asker
	tasks TaskCreator
	now   func() time.Time
}

// NewWidget creates a widget. tasks may be nil if suggestions are never materialised.
func NewWidget(asker Asker, tasks TaskCreator) *Widget {
	return &Widget{asker: asker, tasks: tasks, now: time.Now}
}

// Send appends the user's message, asks for a reply and appends it. When the
// reply can't be obtained or parsed the error is returned and only the user
// turn remains.
func (w *Widget) Send(ctx context.Context, conv *Conversation, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrMessageRequired
	}
	conv.append(Turn{Role: RoleUser, Content: message, At: w.now()})

	content, err := w.asker.Ask(ctx, message, conv.ProjectContext())
	if err != nil {
		return nil, err
	}
	reply, err := ParseReply(content)
	if err != nil {
		return nil, err
	}

	conv.append(Turn{Role: RoleAssistant, Content: reply.Answer, Suggestion: reply.TaskSuggestion, At: w.now()})
	return reply, nil
}

// SuggestionForm maps a suggestion to a task form for projectID.
func SuggestionForm(s *Suggestion, projectID string) tracker.TaskForm {
	desc := s.Description
	if s.EstimatedHours != nil && *s.EstimatedHours > 0 {
		est := "Estimated effort: " + strconv.FormatFloat(*s.EstimatedHours, 'f', -1, 64) + "h"
		if desc != "" {
			desc += "\n\n"
		}
		desc += est
	}
	return tracker.TaskForm{
		ProjectID:   projectID,
		Title:       s.Title,
		Description: desc,
		Status:      string(store.StatusTodo),
		Priority:    strings.ToLower(s.Priority),
	}
}

// CreateSuggestedTask validates and creates the task a suggestion describes.
// Form problems come back as tracker.FieldErrors.
func (w *Widget) CreateSuggestedTask(ctx context.Context, s *Suggestion, projectID string) (*store.Task, error) {
	if s == nil {
		return nil, errors.New("no suggestion")
	}
	if w.tasks == nil {
		return nil, errors.New("task creation is not available")
	}
	form := SuggestionForm(s, projectID)
	if err := form.Validate(); err != nil {
		return nil, err
	}
	t, err := w.tasks.CreateTask(ctx, form.ToTask())
	if err != nil {
		return nil, fmt.Errorf("create suggested task: %w", err)
	}
	return t, nil
}
