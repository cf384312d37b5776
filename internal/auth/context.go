// ABOUTME: Request context helpers for carrying the authenticated Session
// ABOUTME: Provides WithSession/FromContext used by the API and web UI handlers

package auth

import (
	"context"
)

// sessionContextKey is the key type for storing a Session in context.Context.
type sessionContextKey struct{}

// WithSession returns a new context with the Session attached.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// FromContext retrieves the Session from the context, returning nil if not present.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// MustFromContext retrieves the Session from the context, panicking if not present.
// Only use behind middleware that guarantees a session.
func MustFromContext(ctx context.Context) *Session {
	sess := FromContext(ctx)
	if sess == nil {
		panic("auth: Session not found in context")
	}
	return sess
}
