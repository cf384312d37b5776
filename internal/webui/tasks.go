// ABOUTME: Task pages: list with status filter, detail with inline status change, create, edit and delete
// ABOUTME: New tasks can be preselected to a project with ?project_id=

package webui

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

func (u *UI) handleTasks(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("status")
	if filter == "" {
		filter = tracker.StatusAll
	}
	data := tasksData{Layout: u.layout(w, r, "Tasks", "tasks"), Filter: filter}

	tasks, err := u.gw.ListTasks(r.Context(), store.TaskFilter{})
	if err == nil {
		var projects []*store.Project
		projects, err = u.gw.ListProjects(r.Context())
		data.Tasks = tracker.FilterTasksByStatus(tasks, filter)
		data.ProjectNames = make(map[string]string, len(projects))
		for _, p := range projects {
			data.ProjectNames[p.ID] = p.Name
		}
	}
	if err != nil {
		u.logger.Error("failed to load tasks", "error", err)
		data.Error = bannerGeneric
	}
	u.render(w, http.StatusOK, "tasks.html", data)
}

func (u *UI) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	t, err := u.gw.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		u.gatewayError(w, r, err, "Task not found")
		return
	}
	data := taskDetailData{Layout: u.layout(w, r, t.Title, "tasks"), Task: t}
	if p, err := u.gw.GetProject(r.Context(), t.ProjectID); err == nil {
		data.Project = p
	}
	u.render(w, http.StatusOK, "task_detail.html", data)
}

func (u *UI) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if !u.checkForm(w, r) {
		return
	}
	id := r.PathValue("id")
	status := store.TaskStatus(r.FormValue("status"))
	if !status.Valid() {
		u.renderError(w, r, http.StatusBadRequest, tracker.MsgInvalidStatus)
		return
	}
	if _, err := u.gw.UpdateTask(r.Context(), id, store.TaskUpdate{Status: &status}); err != nil {
		u.gatewayError(w, r, err, "Task not found")
		return
	}
	http.Redirect(w, r, "/tasks/"+id, http.StatusSeeOther)
}

func (u *UI) handleNewTask(w http.ResponseWriter, r *http.Request) {
	form := tracker.TaskForm{
		ProjectID: r.URL.Query().Get("project_id"),
		Status:    string(store.StatusTodo),
		Priority:  string(store.PriorityMedium),
	}
	u.renderTaskForm(w, r, http.StatusOK, "", form, nil, "")
}

func (u *UI) renderTaskForm(w http.ResponseWriter, r *http.Request, status int, id string, form tracker.TaskForm, fe tracker.FieldErrors, banner string) {
	title := "New Task"
	if id != "" {
		title = "Edit Task"
	}
	l := u.layout(w, r, title, "tasks")
	l.Error = banner

	projects, err := u.gw.ListProjects(r.Context())
	if err != nil {
		u.logger.Error("failed to load projects for task form", "error", err)
		l.Error = bannerGeneric
	}
	u.render(w, status, "task_form.html", taskFormData{Layout: l, ID: id, Form: form, Errors: fe, Projects: projects})
}

func taskFormFromRequest(r *http.Request) tracker.TaskForm {
	return tracker.TaskForm{
		ProjectID:   r.FormValue("project_id"),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Status:      r.FormValue("status"),
		Priority:    r.FormValue("priority"),
		DueDate:     r.FormValue("due_date"),
	}
}

func (u *UI) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if !u.checkForm(w, r) {
		return
	}
	form := taskFormFromRequest(r)
	if err := form.Validate(); err != nil {
		var fe tracker.FieldErrors
		errors.As(err, &fe)
		u.renderTaskForm(w, r, http.StatusUnprocessableEntity, "", form, fe, "")
		return
	}

	t, err := u.gw.CreateTask(r.Context(), form.ToTask())
	if err != nil {
		if errors.Is(err, store.ErrUnknownProject) {
			u.renderTaskForm(w, r, http.StatusUnprocessableEntity, "", form, tracker.FieldErrors{"project_id": tracker.MsgProjectRequired}, "")
			return
		}
		u.logger.Error("failed to create task", "error", err)
		u.renderTaskForm(w, r, http.StatusInternalServerError, "", form, nil, bannerGeneric)
		return
	}
	http.Redirect(w, r, "/tasks/"+t.ID, http.StatusSeeOther)
}

func (u *UI) handleEditTask(w http.ResponseWriter, r *http.Request) {
	t, err := u.gw.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		u.gatewayError(w, r, err, "Task not found")
		return
	}
	u.renderTaskForm(w, r, http.StatusOK, t.ID, tracker.TaskFormFrom(t), nil, "")
}

func (u *UI) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	if !u.checkForm(w, r) {
		return
	}
	id := r.PathValue("id")
	form := taskFormFromRequest(r)
	if err := form.Validate(); err != nil {
		var fe tracker.FieldErrors
		errors.As(err, &fe)
		u.renderTaskForm(w, r, http.StatusUnprocessableEntity, id, form, fe, "")
		return
	}

	if _, err := u.gw.UpdateTask(r.Context(), id, form.ToUpdate()); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			u.gatewayError(w, r, err, "Task not found")
		case errors.Is(err, store.ErrUnknownProject):
			u.renderTaskForm(w, r, http.StatusUnprocessableEntity, id, form, tracker.FieldErrors{"project_id": tracker.MsgProjectRequired}, "")
		default:
			u.logger.Error("failed to update task", "id", id, "error", err)
			u.renderTaskForm(w, r, http.StatusInternalServerError, id, form, nil, bannerGeneric)
		}
		return
	}
	http.Redirect(w, r, "/tasks/"+id, http.StatusSeeOther)
}

func (u *UI) handleConfirmDeleteTask(w http.ResponseWriter, r *http.Request) {
	t, err := u.gw.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		u.gatewayError(w, r, err, "Task not found")
		return
	}
	u.render(w, http.StatusOK, "confirm_delete.html", confirmDeleteData{
		Layout: u.layout(w, r, "Delete Task", "tasks"),
		Kind:   "task",
		Name:   t.Title,
		Action: "/tasks/" + t.ID + "/delete",
		Cancel: "/tasks/" + t.ID,
		Next:   "/projects/" + t.ProjectID,
	})
}

func (u *UI) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if !u.checkForm(w, r) {
		return
	}
	id := r.PathValue("id")

	next := "/tasks"
	if p := r.FormValue("next"); localPath(p) {
		next = p
	}

	if err := u.gw.DeleteTask(r.Context(), id); err != nil {
		u.logger.Error("failed to delete task", "id", id, "error", err)
		u.renderError(w, r, http.StatusInternalServerError, bannerGeneric)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// localPath reports whether p is a path on this site. Browsers treat a
// backslash like a slash, so "/\host" is as offsite as "//host".
func localPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}
