// ABOUTME: JSON HTTP API over the tracker gateway
// ABOUTME: Registers /api routes, bearer-token auth and shared JSON response helpers

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

const maxBodyBytes = 1 << 20

// Handler serves the JSON API.
type Handler struct {
	gw       *tracker.Gateway
	identity *auth.Service
	chat     http.Handler
	logger   *slog.Logger
}

// New creates the API handler. chat serves POST /api/chat and may be nil.
func New(gw *tracker.Gateway, identity *auth.Service, chat http.Handler) *Handler {
	return &Handler{
		gw:       gw,
		identity: identity,
		chat:     chat,
		logger:   slog.Default().With("component", "api"),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	authed := auth.HTTPAuthMiddleware(h.identity)
	protect := func(fn http.HandlerFunc) http.Handler { return authed(fn) }

	mux.HandleFunc("POST /api/auth/signup", h.handleSignUp)
	mux.HandleFunc("POST /api/auth/signin", h.handleSignIn)
	mux.Handle("POST /api/auth/signout", protect(h.handleSignOut))
	mux.Handle("GET /api/auth/me", protect(h.handleMe))

	mux.Handle("GET /api/projects", protect(h.handleListProjects))
	mux.Handle("POST /api/projects", protect(h.handleCreateProject))
	mux.Handle("GET /api/projects/{id}", protect(h.handleGetProject))
	mux.Handle("PATCH /api/projects/{id}", protect(h.handleUpdateProject))
	mux.Handle("DELETE /api/projects/{id}", protect(h.handleDeleteProject))

	mux.Handle("GET /api/tasks", protect(h.handleListTasks))
	mux.Handle("POST /api/tasks", protect(h.handleCreateTask))
	mux.Handle("GET /api/tasks/{id}", protect(h.handleGetTask))
	mux.Handle("PATCH /api/tasks/{id}", protect(h.handleUpdateTask))
	mux.Handle("DELETE /api/tasks/{id}", protect(h.handleDeleteTask))

	if h.chat != nil {
		// no method in the pattern: the proxy answers non-POST with its own 405
		mux.Handle("/api/chat", authed(h.chat))
	}
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes {"error": message}.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type fieldErrorResponse struct {
	Error  string              `json:"error"`
	Fields tracker.FieldErrors `json:"fields"`
}

// decode reads a JSON body into v, reporting failures as 400.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeGatewayError maps a gateway or form error to a status code.
func (h *Handler) writeGatewayError(w http.ResponseWriter, err error) {
	var fe tracker.FieldErrors
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, fieldErrorResponse{Error: fe.Error(), Fields: fe})
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrUnknownProject):
		writeJSONError(w, http.StatusBadRequest, "project does not exist")
	case errors.Is(err, store.ErrConstraint):
		writeJSONError(w, http.StatusBadRequest, "invalid value")
	case errors.Is(err, store.ErrProjectHasTasks):
		writeJSONError(w, http.StatusConflict, "project still has tasks")
	default:
		h.logger.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
