// ABOUTME: Project endpoints of the JSON API
// ABOUTME: List, create, read, patch and delete projects through the gateway

package api

import (
	"net/http"
	"strings"

	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.gw.ListProjects(r.Context())
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProject(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var form tracker.ProjectForm
	if !decode(w, r, &form) {
		return
	}
	if err := form.Validate(); err != nil {
		h.writeGatewayError(w, err)
		return
	}

	p, err := h.gw.CreateProject(r.Context(), form.ToProject())
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProject(p))
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.gw.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProject(p))
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var patch ProjectPatch
	if !decode(w, r, &patch) {
		return
	}

	u := store.ProjectUpdate{Description: patch.Description}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			h.writeGatewayError(w, tracker.FieldErrors{"name": tracker.MsgProjectNameRequired})
			return
		}
		u.Name = &name
	}

	p, err := h.gw.UpdateProject(r.Context(), r.PathValue("id"), u)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProject(p))
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		h.writeGatewayError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
