// ABOUTME: Form validation for project and task input
// ABOUTME: Rejects bad input before any gateway call and converts forms to store records

package tracker

import (
	"sort"
	"strings"
	"time"

	"github.com/2389/taskboard/internal/store"
)

// DateLayout is the format of due dates in forms and JSON.
const DateLayout = "2006-01-02"

// Form error messages shown to users.
const (
	MsgProjectNameRequired = "Project name is required"
	MsgTitleRequired       = "Title is required"
	MsgProjectRequired     = "Project is required"
	MsgInvalidStatus       = "Status must be one of todo, in_progress, review, done"
	MsgInvalidPriority     = "Priority must be one of low, medium, high"
	MsgInvalidDueDate      = "Due date must be a date like 2026-01-31"
)

// FieldErrors maps a form field name to its error message.
type FieldErrors map[string]string

// Error joins the messages in field order so the result is stable.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = fe[f]
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field has an error.
func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// orNil returns nil for an empty FieldErrors so callers can compare against nil.
func (fe FieldErrors) orNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// ProjectForm is the user-editable part of a project.
type ProjectForm struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate returns FieldErrors when the form can't be saved.
func (f ProjectForm) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Name) == "" {
		errs["name"] = MsgProjectNameRequired
	}
	return errs.orNil()
}

// ToProject converts a validated form to a new project record.
func (f ProjectForm) ToProject() *store.Project {
	return &store.Project{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
	}
}

// ToUpdate converts a validated form to a full replacement update.
func (f ProjectForm) ToUpdate() store.ProjectUpdate {
	name := strings.TrimSpace(f.Name)
	desc := strings.TrimSpace(f.Description)
	return store.ProjectUpdate{Name: &name, Description: &desc}
}

// ProjectFormFrom fills a form from an existing project for editing.
func ProjectFormFrom(p *store.Project) ProjectForm {
	return ProjectForm{Name: p.Name, Description: p.Description}
}

// TaskForm is the user-editable part of a task. Empty status and priority
// take their defaults (todo, medium).
type TaskForm struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"` // YYYY-MM-DD or empty
}

// Validate returns FieldErrors when the form can't be saved.
func (f TaskForm) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Title) == "" {
		errs["title"] = MsgTitleRequired
	}
	if strings.TrimSpace(f.ProjectID) == "" {
		errs["project_id"] = MsgProjectRequired
	}
	if f.Status != "" && !store.TaskStatus(f.Status).Valid() {
		errs["status"] = MsgInvalidStatus
	}
	if f.Priority != "" && !store.TaskPriority(f.Priority).Valid() {
		errs["priority"] = MsgInvalidPriority
	}
	if f.DueDate != "" {
		if _, err := time.Parse(DateLayout, f.DueDate); err != nil {
			errs["due_date"] = MsgInvalidDueDate
		}
	}
	return errs.orNil()
}

// ToTask converts a validated form to a new task record.
func (f TaskForm) ToTask() *store.Task {
	t := &store.Task{
		ProjectID:   strings.TrimSpace(f.ProjectID),
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		Status:      store.TaskStatus(f.Status),
		Priority:    store.TaskPriority(f.Priority),
	}
	if t.Status == "" {
		t.Status = store.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = store.PriorityMedium
	}
	t.DueDate = f.dueDate()
	return t
}

// ToUpdate converts a validated form to a full replacement update.
// An empty due date clears it.
func (f TaskForm) ToUpdate() store.TaskUpdate {
	t := f.ToTask()
	u := store.TaskUpdate{
		ProjectID:   &t.ProjectID,
		Title:       &t.Title,
		Description: &t.Description,
		Status:      &t.Status,
		Priority:    &t.Priority,
	}
	if t.DueDate != nil {
		u.DueDate = t.DueDate
	} else {
		u.ClearDueDate = true
	}
	return u
}

func (f TaskForm) dueDate() *time.Time {
	if f.DueDate == "" {
		return nil
	}
	d, err := time.Parse(DateLayout, f.DueDate)
	if err != nil {
		return nil
	}
	return &d
}

// TaskFormFrom fills a form from an existing task for editing.
func TaskFormFrom(t *store.Task) TaskForm {
	f := TaskForm{
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
	}
	if t.DueDate != nil {
		f.DueDate = t.DueDate.Format(DateLayout)
	}
	return f
}
