// ABOUTME: Store interfaces and data types for taskboard persistence
// ABOUTME: Defines Project, Task, User, Session records and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating a user with an email that is already registered
var ErrEmailExists = errors.New("email already registered")

// ErrConstraint is returned when a row violates a CHECK constraint (empty name, unknown status).
var ErrConstraint = errors.New("constraint violation")

// ErrUnknownProject is returned when a task references a project that does not exist.
var ErrUnknownProject = errors.New("unknown project")

// ErrProjectHasTasks is returned when deleting a project that still owns tasks
// and the schema was created without cascading deletes.
var ErrProjectHasTasks = errors.New("project still has tasks")

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Task statuses, in board order.
const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
)

// Statuses lists every known status in board order.
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusReview, StatusDone}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Label returns the human-readable name of the status.
func (s TaskStatus) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusReview:
		return "Review"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// TaskPriority is the urgency of a task.
type TaskPriority string

// Task priorities.
const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Priorities lists every known priority from lowest to highest.
var Priorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Label returns the capitalised name of the priority.
func (p TaskPriority) Label() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	}
	return string(p)
}

// Project is a named container for tasks.
type Project struct {
	ID          string
	OwnerID     string // user who created it, empty for CLI imports
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Task is a unit of work inside a project.
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time // date only
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectUpdate is a partial project update. Nil fields are left unchanged.
type ProjectUpdate struct {
	Name        *string
	Description *string
}

// TaskUpdate is a partial task update. Nil fields are left unchanged.
// ClearDueDate removes the due date and takes precedence over DueDate.
type TaskUpdate struct {
	ProjectID    *string
	Title        *string
	Description  *string
	Status       *TaskStatus
	Priority     *TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
}

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	ProjectID string
	Status    TaskStatus
}

// User is an account that can sign in.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string // bcrypt hash, empty if passkey-only
	CreatedAt    time.Time
}

// Session is a signed-in browser or API session.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session has passed its expiry at time now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// WebAuthnCredential represents a passkey credential.
type WebAuthnCredential struct {
	ID              string
	UserID          string
	CredentialID    []byte
	PublicKey       []byte
	AttestationType string
	Transports      string // JSON array
	SignCount       uint32
	CreatedAt       time.Time
}

// ProjectStore persists projects.
type ProjectStore interface {
	ListProjects(ctx context.Context) ([]*Project, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	CreateProject(ctx context.Context, p *Project) error
	UpdateProject(ctx context.Context, id string, u ProjectUpdate) (*Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// TaskStore persists tasks.
type TaskStore interface {
	ListTasks(ctx context.Context, f TaskFilter) ([]*Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	CreateTask(ctx context.Context, t *Task) error
	UpdateTask(ctx context.Context, id string, u TaskUpdate) (*Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// UserStore persists accounts, sessions and passkeys.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CountUsers(ctx context.Context) (int, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error

	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	CreateWebAuthnCredential(ctx context.Context, cred *WebAuthnCredential) error
	GetWebAuthnCredentialsByUser(ctx context.Context, userID string) ([]*WebAuthnCredential, error)
	GetWebAuthnCredentialByCredentialID(ctx context.Context, credentialID []byte) (*WebAuthnCredential, error)
	UpdateWebAuthnCredentialSignCount(ctx context.Context, id string, signCount uint32) error
	DeleteWebAuthnCredential(ctx context.Context, id string) error
}

// Store is the complete persistence surface used by the server.
type Store interface {
	ProjectStore
	TaskStore
	UserStore

	Ping(ctx context.Context) error
	Close() error
}
