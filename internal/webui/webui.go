// ABOUTME: Server-rendered web UI for projects, tasks and the assistant
// ABOUTME: Cookie sessions, CSRF protection, route registration and shared request helpers

package webui

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/2389/taskboard/internal/assistant"
	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

const (
	// SessionCookieName holds the session ID.
	SessionCookieName = "taskboard_session"

	// CSRFCookieName holds the double-submit CSRF token.
	CSRFCookieName = "taskboard_csrf"

	conversationTTL  = 2 * time.Hour
	maxConversations = 1000
)

// Banner messages shown in place of the failed content.
const (
	bannerGeneric   = "Something went wrong. Please try again."
	bannerCSRF      = "Invalid request, please try again"
	bannerAssistant = "Failed to get a response. Please try again."
)

type csrfContextKey struct{}

// Config holds web UI configuration.
type Config struct {
	// BaseURL is the external URL, used for passkey relying-party settings.
	BaseURL string

	// CascadeDeletes mirrors the store setting so the delete page can say
	// what happens to a project's tasks.
	CascadeDeletes bool
}

// UI serves the HTML pages.
type UI struct {
	gw               *tracker.Gateway
	identity         *auth.Service
	widget           *assistant.Widget
	conversations    *assistant.ConversationStore
	credentials      store.UserStore
	config           Config
	pages            map[string]*template.Template
	logger           *slog.Logger
	webauthn         *webauthn.WebAuthn
	webauthnSessions *webAuthnSessionStore
}

// New creates the web UI. widget may be nil, which hides the assistant.
// credentials backs passkey sign-in; nil disables passkeys.
func New(gw *tracker.Gateway, identity *auth.Service, widget *assistant.Widget, credentials store.UserStore, cfg Config) *UI {
	u := &UI{
		gw:          gw,
		identity:    identity,
		widget:      widget,
		credentials: credentials,
		config:      cfg,
		pages:       parsePages(),
		logger:      slog.Default().With("component", "webui"),
	}
	if widget != nil {
		u.conversations = assistant.NewConversationStore(conversationTTL, maxConversations)
	}
	if credentials != nil {
		if err := u.initWebAuthn(); err != nil {
			u.logger.Warn("failed to initialize WebAuthn, passkey login disabled", "error", err)
		}
	}
	return u
}

// Close stops background goroutines.
func (u *UI) Close() {
	if u.conversations != nil {
		u.conversations.Close()
	}
	if u.webauthnSessions != nil {
		u.webauthnSessions.Close()
	}
}

// RegisterRoutes adds the UI routes to mux.
func (u *UI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", u.handleLoginPage)
	mux.HandleFunc("POST /login", u.handleLogin)
	mux.HandleFunc("GET /register", u.handleRegisterPage)
	mux.HandleFunc("POST /register", u.handleRegister)
	mux.HandleFunc("POST /logout", u.requireAuth(u.handleLogout))

	mux.HandleFunc("GET /{$}", u.requireAuth(u.handleDashboard))

	mux.HandleFunc("GET /projects", u.requireAuth(u.handleProjects))
	mux.HandleFunc("GET /projects/new", u.requireAuth(u.handleNewProject))
	mux.HandleFunc("POST /projects", u.requireAuth(u.handleCreateProject))
	mux.HandleFunc("GET /projects/{id}", u.requireAuth(u.handleProjectDetail))
	mux.HandleFunc("GET /projects/{id}/edit", u.requireAuth(u.handleEditProject))
	mux.HandleFunc("POST /projects/{id}", u.requireAuth(u.handleUpdateProject))
	mux.HandleFunc("GET /projects/{id}/delete", u.requireAuth(u.handleConfirmDeleteProject))
	mux.HandleFunc("POST /projects/{id}/delete", u.requireAuth(u.handleDeleteProject))

	mux.HandleFunc("GET /tasks", u.requireAuth(u.handleTasks))
	mux.HandleFunc("GET /tasks/new", u.requireAuth(u.handleNewTask))
	mux.HandleFunc("POST /tasks", u.requireAuth(u.handleCreateTask))
	mux.HandleFunc("GET /tasks/{id}", u.requireAuth(u.handleTaskDetail))
	mux.HandleFunc("POST /tasks/{id}/status", u.requireAuth(u.handleTaskStatus))
	mux.HandleFunc("GET /tasks/{id}/edit", u.requireAuth(u.handleEditTask))
	mux.HandleFunc("POST /tasks/{id}", u.requireAuth(u.handleUpdateTask))
	mux.HandleFunc("GET /tasks/{id}/delete", u.requireAuth(u.handleConfirmDeleteTask))
	mux.HandleFunc("POST /tasks/{id}/delete", u.requireAuth(u.handleDeleteTask))

	if u.widget != nil {
		mux.HandleFunc("GET /assistant", u.requireAuth(u.handleAssistant))
		mux.HandleFunc("POST /assistant", u.requireAuth(u.handleAssistantSend))
		mux.HandleFunc("POST /assistant/suggestions/{turn}", u.requireAuth(u.handleAssistantSuggestion))
		mux.HandleFunc("POST /assistant/reset", u.requireAuth(u.handleAssistantReset))
	}

	mux.HandleFunc("POST /webauthn/register/begin", u.requireAuth(u.handleWebAuthnRegisterBegin))
	mux.HandleFunc("POST /webauthn/register/finish", u.requireAuth(u.handleWebAuthnRegisterFinish))
	mux.HandleFunc("POST /webauthn/login/begin", u.handleWebAuthnLoginBegin)
	mux.HandleFunc("POST /webauthn/login/finish", u.handleWebAuthnLoginFinish)

	u.logger.Info("web UI routes registered", "assistant", u.widget != nil, "passkeys", u.webauthn != nil)
}

// requireAuth redirects to the login page unless the request carries a live session.
func (u *UI) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := u.sessionFromCookie(r)
		if err != nil {
			if !errors.Is(err, auth.ErrNoSession) {
				u.logger.Error("failed to load session", "error", err)
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	}
}

func (u *UI) sessionFromCookie(r *http.Request) (*auth.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, auth.ErrNoSession
	}
	return u.identity.Resume(r.Context(), cookie.Value)
}

// setSessionCookie stores the session ID in the browser.
func setSessionCookie(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// ensureCSRFToken returns the request's CSRF token, issuing one if needed.
func (u *UI) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	if token, ok := r.Context().Value(csrfContextKey{}).(string); ok {
		return r, token
	}
	if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
		return r.WithContext(context.WithValue(r.Context(), csrfContextKey{}, cookie.Value)), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		u.logger.Error("failed to generate CSRF token", "error", err)
		token = ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return r.WithContext(context.WithValue(r.Context(), csrfContextKey{}, token)), token
}

// validateCSRF compares the submitted token with the cookie.
func validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	token := r.FormValue("csrf_token")
	if token == "" {
		token = r.Header.Get("X-CSRF-Token")
	}
	return token != "" && token == cookie.Value
}

// checkForm parses a POST form and validates CSRF. On failure it has already
// answered the request.
func (u *UI) checkForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return false
	}
	if !validateCSRF(r) {
		http.Error(w, bannerCSRF, http.StatusForbidden)
		return false
	}
	return true
}

func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
