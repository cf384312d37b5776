// ABOUTME: Activity notifications for project and task changes
// ABOUTME: Defines the Notifier interface, event kinds, and a no-op implementation

package notify

import (
	"context"
	"fmt"
)

// Kind identifies what happened.
type Kind string

// Event kinds that are worth telling people about.
const (
	TaskCreated    Kind = "task_created"
	TaskCompleted  Kind = "task_completed"
	ProjectDeleted Kind = "project_deleted"
)

// Event describes one activity notice.
type Event struct {
	Kind        Kind
	ProjectID   string
	ProjectName string
	TaskID      string
	TaskTitle   string
	Actor       string // email of the user who made the change, if known
}

// Text renders the event as a one-line chat message.
func (e Event) Text() string {
	by := ""
	if e.Actor != "" {
		by = " by " + e.Actor
	}
	project := e.ProjectName
	if project == "" {
		project = e.ProjectID
	}

	switch e.Kind {
	case TaskCreated:
		return fmt.Sprintf("New task %q in %s%s", e.TaskTitle, project, by)
	case TaskCompleted:
		return fmt.Sprintf("Task %q in %s marked done%s", e.TaskTitle, project, by)
	case ProjectDeleted:
		return fmt.Sprintf("Project %s deleted%s", project, by)
	}
	return fmt.Sprintf("%s: %s %s", e.Kind, project, e.TaskTitle)
}

// Notifier delivers activity events somewhere people will see them.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Event) error { return nil }
