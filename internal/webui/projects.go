// ABOUTME: Dashboard and project pages: list, detail, create, edit and delete
// ABOUTME: Forms are validated before any gateway call; deletes go through a confirmation page

package webui

import (
	"errors"
	"net/http"

	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

func (u *UI) handleDashboard(w http.ResponseWriter, r *http.Request) {
	l := u.layout(w, r, "Dashboard", "dashboard")
	d, err := u.gw.Dashboard(r.Context())
	if err != nil {
		u.logger.Error("failed to load dashboard", "error", err)
		l.Error = bannerGeneric
		d = &tracker.Dashboard{}
	}
	u.render(w, http.StatusOK, "dashboard.html", dashboardData{Layout: l, Dashboard: d})
}

func (u *UI) handleProjects(w http.ResponseWriter, r *http.Request) {
	l := u.layout(w, r, "Projects", "projects")
	data := projectsData{Layout: l}

	projects, err := u.gw.ListProjects(r.Context())
	if err == nil {
		var tasks []*store.Task
		tasks, err = u.gw.ListTasks(r.Context(), store.TaskFilter{})
		data.Projects = tracker.TaskCountByProject(projects, tasks)
	}
	if err != nil {
		u.logger.Error("failed to load projects", "error", err)
		data.Error = bannerGeneric
	}
	u.render(w, http.StatusOK, "projects.html", data)
}

func (u *UI) handleProjectDetail(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("status")
	if filter == "" {
		filter = tracker.StatusAll
	}

	d, err := u.gw.ProjectDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		u.gatewayError(w, r, err, "Project not found")
		return
	}

	l := u.layout(w, r, d.Project.Name, "projects")
	u.render(w, http.StatusOK, "project_detail.html", projectDetailData{
		Layout: l,
		Detail: d,
		Tasks:  d.Filtered(filter),
		Filter: filter,
	})
}

func (u *UI) handleNewProject(w http.ResponseWriter, r *http.Request) {
	u.renderProjectForm(w, r, http.StatusOK, "", tracker.ProjectForm{}, nil, "")
}

func (u *UI) renderProjectForm(w http.ResponseWriter, r *http.Request, status int, id string, form tracker.ProjectForm, fe tracker.FieldErrors, banner string) {
	title := "New Project"
	if id != "" {
		title = "Edit Project"
	}
	l := u.layout(w, r, title, "projects")
	l.Error = banner
	u.render(w, status, "project_form.html", projectFormData{Layout: l, ID: id, Form: form, Errors: fe})
}

func projectFormFromRequest(r *http.Request) tracker.ProjectForm {
	return tracker.ProjectForm{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
}

func (u *UI) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	if !u.checkForm(w, r) {
		return
	}
	form := projectFormFromRequest(r)
	if err := form.Validate(); err != nil {
		var fe tracker.FieldErrors
		errors.As(err, &fe)
		u.renderProjectForm(w, r, http.StatusUnprocessableEntity, "", form, fe, "")
		return
	}

	p, err := u.gw.CreateProject(r.Context(), form.ToProject())
	if err != nil {
		u.logger.Error("failed to create project", "error", err)
		u.renderProjectForm(w, r, http.StatusInternalServerError, "", form, nil, bannerGeneric)
		return
	}
	http.Redirect(w, r, "/projects/"+p.ID, http.StatusSeeOther)
}

func (u *UI) handleEditProject(w http.ResponseWriter, r *http.Request) {
	p, err := u.gw.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		u.gatewayError(w, r, err, "Project not found")
		return
	}
	u.renderProjectForm(w, r, http.StatusOK, p.ID, tracker.ProjectFormFrom(p), nil, "")
}

func (u *UI) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	if !u.checkForm(w, r) {
		return
	}
	id := r.PathValue("id")
	form := projectFormFromRequest(r)
	if err := form.Validate(); err != nil {
		var fe tracker.FieldErrors
		errors.As(err, &fe)
		u.renderProjectForm(w, r, http.StatusUnprocessableEntity, id, form, fe, "")
		return
	}

	if _, err := u.gw.UpdateProject(r.Context(), id, form.ToUpdate()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			u.gatewayError(w, r, err, "Project not found")
			return
		}
		u.logger.Error("failed to update project", "id", id, "error", err)
		u.renderProjectForm(w, r, http.StatusInternalServerError, id, form, nil, bannerGeneric)
		return
	}
	http.Redirect(w, r, "/projects/"+id, http.StatusSeeOther)
}

func (u *UI) handleConfirmDeleteProject(w http.ResponseWriter, r *http.Request) {
	p, err := u.gw.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		u.gatewayError(w, r, err, "Project not found")
		return
	}
	msg := "Projects that still have tasks can't be deleted."
	if u.config.CascadeDeletes {
		msg = "All tasks in this project will be deleted too."
	}
	u.render(w, http.StatusOK, "confirm_delete.html", confirmDeleteData{
		Layout:  u.layout(w, r, "Delete Project", "projects"),
		Kind:    "project",
		Name:    p.Name,
		Action:  "/projects/" + p.ID + "/delete",
		Cancel:  "/projects/" + p.ID,
		Message: msg,
	})
}

func (u *UI) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if !u.checkForm(w, r) {
		return
	}
	id := r.PathValue("id")
	if err := u.gw.DeleteProject(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrProjectHasTasks) {
			u.renderError(w, r, http.StatusConflict, "This project still has tasks. Delete them first.")
			return
		}
		u.logger.Error("failed to delete project", "id", id, "error", err)
		u.renderError(w, r, http.StatusInternalServerError, bannerGeneric)
		return
	}
	http.Redirect(w, r, "/projects", http.StatusSeeOther)
}

// gatewayError renders notFound for ErrNotFound and the generic banner otherwise.
func (u *UI) gatewayError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		u.renderError(w, r, http.StatusNotFound, notFound)
		return
	}
	u.logger.Error("request failed", "path", r.URL.Path, "error", err)
	u.renderError(w, r, http.StatusInternalServerError, bannerGeneric)
}
