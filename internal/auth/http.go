// ABOUTME: HTTP middleware for bearer-token authentication on API endpoints
// ABOUTME: Extracts the JWT from the Authorization header and adds the Session to context

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Authenticator resolves a bearer token into a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Session, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// HTTPAuthMiddleware rejects requests without a valid bearer token and adds
// the resolved Session to the request context.
func HTTPAuthMiddleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeUnauthorized(w, errMsg)
				return
			}

			sess, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				msg := "invalid token"
				switch {
				case errors.Is(err, ErrExpiredToken):
					msg = "token expired"
				case errors.Is(err, ErrNoSession):
					msg = "session ended"
				}
				writeUnauthorized(w, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// OptionalAuthMiddleware attempts bearer auth but lets anonymous requests through.
func OptionalAuthMiddleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="taskboard"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
