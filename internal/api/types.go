// ABOUTME: JSON request and response bodies for the API
// ABOUTME: Converts store records to wire form with RFC 3339 timestamps

package api

import (
	"time"

	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

// UserResponse is a user as the API shows it.
type UserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// SignUpRequest is the body of POST /api/auth/signup.
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// SignInRequest is the body of POST /api/auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResponse carries the bearer token for later requests.
type SignInResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// ProjectResponse is a project as the API shows it.
type ProjectResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectPatch is the body of PATCH /api/projects/{id}. Absent fields are kept.
type ProjectPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// TaskResponse is a task as the API shows it.
type TaskResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	DueDate     string    `json:"due_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskPatch is the body of PATCH /api/tasks/{id}. Absent fields are kept;
// an empty due_date clears it.
type TaskPatch struct {
	ProjectID   *string `json:"project_id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"due_date"`
}

func toUser(u *store.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}

func toProject(p *store.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toTask(t *store.Task) TaskResponse {
	r := TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.DueDate != nil {
		r.DueDate = t.DueDate.Format(tracker.DateLayout)
	}
	return r
}
