// ABOUTME: Task endpoints of the JSON API
// ABOUTME: List with project/status filters, create, read, patch and delete tasks

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TaskFilter{ProjectID: q.Get("project_id")}
	if s := q.Get("status"); s != "" && s != tracker.StatusAll {
		filter.Status = store.TaskStatus(s)
		if !filter.Status.Valid() {
			h.writeGatewayError(w, tracker.FieldErrors{"status": tracker.MsgInvalidStatus})
			return
		}
	}

	tasks, err := h.gw.ListTasks(r.Context(), filter)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTask(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var form tracker.TaskForm
	if !decode(w, r, &form) {
		return
	}
	if err := form.Validate(); err != nil {
		h.writeGatewayError(w, err)
		return
	}

	t, err := h.gw.CreateTask(r.Context(), form.ToTask())
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTask(t))
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.gw.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTask(t))
}

func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch TaskPatch
	if !decode(w, r, &patch) {
		return
	}
	u, err := patch.toUpdate()
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	t, err := h.gw.UpdateTask(r.Context(), r.PathValue("id"), u)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTask(t))
}

func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		h.writeGatewayError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toUpdate validates the fields that are present and builds a store update.
func (p TaskPatch) toUpdate() (store.TaskUpdate, error) {
	var u store.TaskUpdate
	errs := tracker.FieldErrors{}

	if p.ProjectID != nil {
		id := strings.TrimSpace(*p.ProjectID)
		if id == "" {
			errs["project_id"] = tracker.MsgProjectRequired
		}
		u.ProjectID = &id
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			errs["title"] = tracker.MsgTitleRequired
		}
		u.Title = &title
	}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		u.Description = &desc
	}
	if p.Status != nil {
		s := store.TaskStatus(*p.Status)
		if !s.Valid() {
			errs["status"] = tracker.MsgInvalidStatus
		}
		u.Status = &s
	}
	if p.Priority != nil {
		pr := store.TaskPriority(*p.Priority)
		if !pr.Valid() {
			errs["priority"] = tracker.MsgInvalidPriority
		}
		u.Priority = &pr
	}
	if p.DueDate != nil {
		if *p.DueDate == "" {
			u.ClearDueDate = true
		} else if d, err := time.Parse(tracker.DateLayout, *p.DueDate); err != nil {
			errs["due_date"] = tracker.MsgInvalidDueDate
		} else {
			u.DueDate = &d
		}
	}

	if len(errs) > 0 {
		return store.TaskUpdate{}, errs
	}
	return u, nil
}
