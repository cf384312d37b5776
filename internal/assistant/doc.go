// Package assistant implements the project assistant: a chat proxy in front
// of an OpenAI-compatible completion API, and the widget state that drives a
// conversation in the web UI.
//
// The proxy sends a fixed system prompt (optionally with project context) and
// the user's message, asks for a JSON object, and checks the reply against a
// JSON Schema before handing it back. Replies that don't match fail with
// ErrNonConformingOutput, which the HTTP handler reports as 502.
//
// Conversations live only in memory, one per browser session, and are
// dropped on sign-out or after a period of inactivity.
package assistant
