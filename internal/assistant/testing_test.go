// ABOUTME: Shared fakes for assistant tests
// ABOUTME: Provides a scripted Completer and a recording task creator

package assistant

import (
	"context"
	"sync"

	"github.com/2389/taskboard/internal/store"
)

type fakeCompleter struct {
	mu       sync.Mutex
	content  string
	err      error
	messages [][]Message
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, messages)
	return f.content, f.err
}

type fakeTasks struct {
	created []*store.Task
	err     error
}

func (f *fakeTasks) CreateTask(ctx context.Context, t *store.Task) (*store.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	t.ID = "task-1"
	f.created = append(f.created, t)
	return t, nil
}

const budgetReply = `{"answer":"Sure, here is a task for that.","taskSuggestion":{"title":"Review the budget","description":"Go through Q3 numbers","priority":"High","estimatedHours":2}}`
