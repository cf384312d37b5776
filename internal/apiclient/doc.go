// Package apiclient is a typed client for the taskboard JSON API.
//
// Errors from the server come back as *Error. errors.Is maps 404 to
// store.ErrNotFound and 502 from the chat proxy to
// assistant.ErrNonConformingOutput.
//
//	c := apiclient.New("http://127.0.0.1:8080", "")
//	if _, err := c.SignIn(ctx, email, password); err != nil { ... }
//	projects, err := c.ListProjects(ctx)
package apiclient
