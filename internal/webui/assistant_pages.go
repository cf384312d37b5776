// ABOUTME: Assistant page: chat history, sending messages and creating suggested tasks
// ABOUTME: One in-memory conversation per browser session, discarded at logout

package webui

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/2389/taskboard/internal/assistant"
	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

func (u *UI) conversation(r *http.Request) *assistant.Conversation {
	return u.conversations.Get(auth.MustFromContext(r.Context()).ID)
}

func assistantURL(projectID string) string {
	if projectID == "" {
		return "/assistant"
	}
	return "/assistant?project_id=" + url.QueryEscape(projectID)
}

func (u *UI) handleAssistant(w http.ResponseWriter, r *http.Request) {
	u.renderAssistant(w, r, http.StatusOK, r.URL.Query().Get("project_id"), "")
}

func (u *UI) renderAssistant(w http.ResponseWriter, r *http.Request, status int, projectID, banner string) {
	l := u.layout(w, r, "AI Assistant", "assistant")
	l.Error = banner
	conv := u.conversation(r)
	data := assistantData{Layout: l, ProjectID: projectID}

	if projectID != "" {
		p, err := u.gw.GetProject(r.Context(), projectID)
		switch {
		case err == nil:
			data.Project = p
			conv.SetProjectContext(assistant.ProjectContext(p))
		case errors.Is(err, store.ErrNotFound):
			data.ProjectID = ""
			conv.SetProjectContext("")
		default:
			u.logger.Error("failed to load project context", "project_id", projectID, "error", err)
		}
	} else {
		conv.SetProjectContext("")
	}

	projects, err := u.gw.ListProjects(r.Context())
	if err != nil {
		u.logger.Error("failed to load projects for assistant", "error", err)
	}
	data.Projects = projects
	data.Turns = conv.Turns()
	u.render(w, status, "assistant.html", data)
}

func (u *UI) handleAssistantSend(w http.ResponseWriter, r *http.Request) {
	if !u.checkForm(w, r) {
		return
	}
	projectID := r.FormValue("project_id")
	message := r.FormValue("message")

	if _, err := u.widget.Send(r.Context(), u.conversation(r), message); err != nil {
		if errors.Is(err, assistant.ErrMessageRequired) {
			http.Redirect(w, r, assistantURL(projectID), http.StatusSeeOther)
			return
		}
		u.logger.Error("assistant request failed", "error", err)
		u.renderAssistant(w, r, http.StatusOK, projectID, bannerAssistant)
		return
	}
	http.Redirect(w, r, assistantURL(projectID), http.StatusSeeOther)
}

func (u *UI) handleAssistantSuggestion(w http.ResponseWriter, r *http.Request) {
	if !u.checkForm(w, r) {
		return
	}
	projectID := r.FormValue("project_id")

	i, err := strconv.Atoi(r.PathValue("turn"))
	if err != nil {
		http.Error(w, "Invalid suggestion", http.StatusBadRequest)
		return
	}
	turn, ok := u.conversation(r).Turn(i)
	if !ok || turn.Suggestion == nil {
		u.renderAssistant(w, r, http.StatusNotFound, projectID, "That suggestion is no longer available.")
		return
	}

	t, err := u.widget.CreateSuggestedTask(r.Context(), turn.Suggestion, projectID)
	if err != nil {
		var fe tracker.FieldErrors
		switch {
		case errors.As(err, &fe) && fe.Has("project_id"), errors.Is(err, store.ErrUnknownProject):
			u.renderAssistant(w, r, http.StatusUnprocessableEntity, projectID, "Choose a project for the suggested task.")
		case errors.As(err, &fe):
			u.renderAssistant(w, r, http.StatusUnprocessableEntity, projectID, fe.Error())
		default:
			u.logger.Error("failed to create suggested task", "error", err)
			u.renderAssistant(w, r, http.StatusInternalServerError, projectID, bannerGeneric)
		}
		return
	}
	http.Redirect(w, r, "/tasks/"+t.ID, http.StatusSeeOther)
}

func (u *UI) handleAssistantReset(w http.ResponseWriter, r *http.Request) {
	if !u.checkForm(w, r) {
		return
	}
	u.conversations.Discard(auth.MustFromContext(r.Context()).ID)
	http.Redirect(w, r, assistantURL(r.FormValue("project_id")), http.StatusSeeOther)
}
