// Package auth is taskboard's identity provider.
//
// # Accounts and Sessions
//
// [Service] registers accounts by email and password (bcrypt hashed), signs
// users in and out, and resolves the current user of a session. Every sign-in
// produces an explicit [Session] value that callers pass around instead of
// reading ambient global state. Sessions are persisted through
// store.UserStore and expire after the configured session duration.
//
// Unknown emails and wrong passwords both return ErrInvalidCredentials after a
// bcrypt comparison, so response timing does not reveal which accounts exist.
//
// # Bearer Tokens
//
// When a [JWTVerifier] is configured, each session also carries an HS256 JWT
// with "sub" (user ID) and "sid" (session ID) claims for API clients.
// [Service.Authenticate] verifies the signature and then checks that the
// session is still live, so signing out revokes outstanding tokens.
//
// # HTTP Middleware
//
// [HTTPAuthMiddleware] requires a valid "Authorization: Bearer" header and
// stores the Session in the request context; [FromContext] retrieves it.
// [OptionalAuthMiddleware] does the same but lets anonymous requests through.
// The web UI uses cookie sessions instead and calls [Service.Resume] directly.
package auth
