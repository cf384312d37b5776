// ABOUTME: Data-access gateway for projects, tasks and identity
// ABOUTME: One method per operation returning (result, error); logs mutations and emits activity events

package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/notify"
	"github.com/2389/taskboard/internal/store"
)

// Store is the persistence the gateway needs.
type Store interface {
	store.ProjectStore
	store.TaskStore
}

// Gateway is the single entry point the presentation layer, the JSON API and
// the assistant use to read and change data. It never panics across its
// boundary; every failure comes back as an error that wraps the store sentinel.
type Gateway struct {
	store    Store
	identity *auth.Service
	notifier notify.Notifier
	logger   *slog.Logger
}

// New creates a gateway. notifier may be nil.
func New(st Store, identity *auth.Service, notifier notify.Notifier) *Gateway {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Gateway{
		store:    st,
		identity: identity,
		notifier: notifier,
		logger:   slog.Default().With("component", "tracker"),
	}
}

// ListProjects returns every project, newest first.
func (g *Gateway) ListProjects(ctx context.Context) ([]*store.Project, error) {
	projects, err := g.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// GetProject returns one project. Fails with store.ErrNotFound if it doesn't exist.
func (g *Gateway) GetProject(ctx context.Context, id string) (*store.Project, error) {
	p, err := g.store.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// CreateProject inserts a project and returns the stored row. The owner
// defaults to the signed-in user carried by ctx.
func (g *Gateway) CreateProject(ctx context.Context, p *store.Project) (*store.Project, error) {
	if p.OwnerID == "" {
		p.OwnerID = auth.FromContext(ctx).UserID()
	}
	if err := g.store.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	g.logger.Debug("project created", "id", p.ID, "name", p.Name)
	return p, nil
}

// UpdateProject applies a partial update. Last write wins.
func (g *Gateway) UpdateProject(ctx context.Context, id string, u store.ProjectUpdate) (*store.Project, error) {
	p, err := g.store.UpdateProject(ctx, id, u)
	if err != nil {
		return nil, fmt.Errorf("update project %s: %w", id, err)
	}
	g.logger.Debug("project updated", "id", id)
	return p, nil
}

// DeleteProject removes a project. Tasks go with it only if the store cascades.
// Deleting a project that doesn't exist succeeds.
func (g *Gateway) DeleteProject(ctx context.Context, id string) error {
	name := ""
	if p, err := g.store.GetProject(ctx, id); err == nil {
		name = p.Name
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete project %s: %w", id, err)
	}

	if err := g.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	g.logger.Debug("project deleted", "id", id)

	if name != "" {
		g.emit(ctx, notify.Event{Kind: notify.ProjectDeleted, ProjectID: id, ProjectName: name})
	}
	return nil
}

// ListTasks returns tasks matching f, newest first.
func (g *Gateway) ListTasks(ctx context.Context, f store.TaskFilter) ([]*store.Task, error) {
	tasks, err := g.store.ListTasks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns one task. Fails with store.ErrNotFound if it doesn't exist.
func (g *Gateway) GetTask(ctx context.Context, id string) (*store.Task, error) {
	t, err := g.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// CreateTask inserts a task and returns the stored row.
func (g *Gateway) CreateTask(ctx context.Context, t *store.Task) (*store.Task, error) {
	if err := g.store.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	g.logger.Debug("task created", "id", t.ID, "project_id", t.ProjectID)

	g.emit(ctx, notify.Event{
		Kind:        notify.TaskCreated,
		ProjectID:   t.ProjectID,
		ProjectName: g.projectName(ctx, t.ProjectID),
		TaskID:      t.ID,
		TaskTitle:   t.Title,
	})
	return t, nil
}

// UpdateTask applies a partial update. Last write wins.
func (g *Gateway) UpdateTask(ctx context.Context, id string, u store.TaskUpdate) (*store.Task, error) {
	var wasDone bool
	if u.Status != nil && *u.Status == store.StatusDone {
		if before, err := g.store.GetTask(ctx, id); err == nil {
			wasDone = before.Status == store.StatusDone
		}
	}

	t, err := g.store.UpdateTask(ctx, id, u)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	g.logger.Debug("task updated", "id", id, "status", t.Status)

	if t.Status == store.StatusDone && u.Status != nil && !wasDone {
		g.emit(ctx, notify.Event{
			Kind:        notify.TaskCompleted,
			ProjectID:   t.ProjectID,
			ProjectName: g.projectName(ctx, t.ProjectID),
			TaskID:      t.ID,
			TaskTitle:   t.Title,
		})
	}
	return t, nil
}

// DeleteTask removes a task. Deleting a task that doesn't exist succeeds.
func (g *Gateway) DeleteTask(ctx context.Context, id string) error {
	if err := g.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	g.logger.Debug("task deleted", "id", id)
	return nil
}

// SignUp registers a new account.
func (g *Gateway) SignUp(ctx context.Context, email, password, displayName string) (*store.User, error) {
	u, err := g.identity.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	return u, nil
}

// SignIn checks credentials and returns a new explicit session.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	sess, err := g.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return sess, nil
}

// SignOut ends a session.
func (g *Gateway) SignOut(ctx context.Context, sessionID string) error {
	if err := g.identity.SignOut(ctx, sessionID); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// CurrentUser returns the user bound to a live session.
func (g *Gateway) CurrentUser(ctx context.Context, sessionID string) (*store.User, error) {
	u, err := g.identity.CurrentUser(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return u, nil
}

func (g *Gateway) projectName(ctx context.Context, id string) string {
	p, err := g.store.GetProject(ctx, id)
	if err != nil {
		return ""
	}
	return p.Name
}

// emit forwards an event to the notifier. Failures are logged, never returned.
func (g *Gateway) emit(ctx context.Context, ev notify.Event) {
	if sess := auth.FromContext(ctx); sess != nil && sess.User != nil {
		ev.Actor = sess.User.Email
	}
	if err := g.notifier.Notify(ctx, ev); err != nil {
		g.logger.Warn("notification failed", "kind", ev.Kind, "error", err)
	}
}
