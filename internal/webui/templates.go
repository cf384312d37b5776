// ABOUTME: Template loading, page data types and rendering helpers
// ABOUTME: Each page is parsed once with the shared layout and rendered with a Layout header

package webui

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/taskboard/internal/assistant"
	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

var pageNames = []string{
	"login.html",
	"register.html",
	"dashboard.html",
	"projects.html",
	"project_detail.html",
	"project_form.html",
	"tasks.html",
	"task_detail.html",
	"task_form.html",
	"confirm_delete.html",
	"assistant.html",
	"error.html",
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderMarkdown converts user text to HTML. goldmark drops raw HTML unless
// told otherwise, so the result is safe to embed.
func renderMarkdown(src string) template.HTML {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

var templateFuncs = template.FuncMap{
	"markdown":      renderMarkdown,
	"statusLabel":   func(s store.TaskStatus) string { return s.Label() },
	"priorityLabel": func(p store.TaskPriority) string { return p.Label() },
	"statuses":      func() []store.TaskStatus { return store.Statuses },
	"priorities":    func() []store.TaskPriority { return store.Priorities },
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"datetime": func(t time.Time) string { return t.Local().Format("Jan 2, 2006 15:04") },
	"count":    func(m map[store.TaskStatus]int, s store.TaskStatus) int { return m[s] },
}

func parsePages() map[string]*template.Template {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		pages[name] = template.Must(template.New("base.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name))
	}
	return pages
}

// Layout is the data every page shares.
type Layout struct {
	Title         string
	User          *store.User
	CSRFToken     string
	Error         string
	Nav           string
	ShowAssistant bool
	ShowPasskeys  bool
}

type loginData struct {
	Layout
	Email   string
	Notice  string
	Signup  bool
	Passkey bool
}

type registerData struct {
	Layout
	Email       string
	DisplayName string
	Disabled    bool
}

type dashboardData struct {
	Layout
	Dashboard *tracker.Dashboard
}

type projectsData struct {
	Layout
	Projects []tracker.ProjectCount
}

type projectDetailData struct {
	Layout
	Detail *tracker.ProjectDetail
	Tasks  []*store.Task
	Filter string
}

type projectFormData struct {
	Layout
	ID     string
	Form   tracker.ProjectForm
	Errors tracker.FieldErrors
}

type tasksData struct {
	Layout
	Tasks        []*store.Task
	Filter       string
	ProjectNames map[string]string
}

type taskDetailData struct {
	Layout
	Task    *store.Task
	Project *store.Project
}

type taskFormData struct {
	Layout
	ID       string
	Form     tracker.TaskForm
	Errors   tracker.FieldErrors
	Projects []*store.Project
}

type confirmDeleteData struct {
	Layout
	Kind    string // "project" or "task"
	Name    string
	Action  string
	Cancel  string
	Message string
	Next    string // where to go after deleting
}

type assistantData struct {
	Layout
	Turns     []assistant.Turn
	Project   *store.Project
	Projects  []*store.Project
	ProjectID string
}

type errorData struct {
	Layout
}

// layout fills the shared page fields for r.
func (u *UI) layout(w http.ResponseWriter, r *http.Request, title, nav string) Layout {
	_, token := u.ensureCSRFToken(w, r)
	l := Layout{
		Title:         title,
		CSRFToken:     token,
		Nav:           nav,
		ShowAssistant: u.widget != nil,
		ShowPasskeys:  u.webauthn != nil,
	}
	if sess := auth.FromContext(r.Context()); sess != nil {
		l.User = sess.User
	}
	return l
}

// render executes a page template with status.
func (u *UI) render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := u.pages[page]
	if !ok {
		u.logger.Error("unknown page template", "page", page)
		http.Error(w, bannerGeneric, http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		u.logger.Error("failed to render page", "page", page, "error", err)
		http.Error(w, bannerGeneric, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows the error page with a banner.
func (u *UI) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	l := u.layout(w, r, "Error", "")
	l.Error = msg
	u.render(w, status, "error.html", errorData{Layout: l})
}
