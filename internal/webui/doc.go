// Package webui serves the browser interface.
//
// # Pages
//
//   - Dashboard: totals, recent tasks and per-project counts
//   - Projects: list, detail with progress and status filter, create, edit, delete
//   - Tasks: list with status filter, detail with inline status change, create, edit, delete
//   - Assistant: chat with the model, optionally scoped to a project, and turn
//     task suggestions into real tasks
//
// Deletes always go through a confirmation page. Form input is validated
// before anything reaches the gateway; invalid forms are re-rendered with
// 422 and per-field messages.
//
// # Authentication
//
// Password sign-in creates a session whose ID is stored in the
// taskboard_session cookie. Passkeys (WebAuthn) can be added from any page
// once signed in and used on the login page afterwards.
//
// # CSRF Protection
//
// Every POST carries a double-submit token:
//
//	<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
//
// JSON requests send it in the X-CSRF-Token header instead.
//
// # Templates
//
// Templates are embedded with //go:embed and parsed once at startup. Each
// page defines a "content" block rendered inside templates/base.html.
// Descriptions and assistant answers are rendered as Markdown with raw HTML
// dropped.
package webui
