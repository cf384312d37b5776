// ABOUTME: Identity service: email/password sign-up, sign-in, sign-out and session lookup
// ABOUTME: Hashes passwords with bcrypt and issues explicit Session objects backed by the store

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/taskboard/internal/store"
)

// Identity errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrSignupDisabled     = errors.New("sign-up is disabled")
	ErrNoSession          = errors.New("no active session")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// dummyHash keeps sign-in timing constant when the account doesn't exist.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Session is an authenticated session handed to callers explicitly.
type Session struct {
	ID        string
	User      *store.User
	CreatedAt time.Time
	ExpiresAt time.Time

	// Token is a signed bearer token for API clients. Empty when the service
	// has no token signer or the session was resumed from a cookie.
	Token          string
	TokenExpiresAt time.Time
}

// UserID returns the ID of the session's user.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// Options configures a Service.
type Options struct {
	SessionDuration time.Duration
	TokenDuration   time.Duration
	AllowSignup     bool
}

// Service is the identity provider used by the gateway, the web UI and the API.
type Service struct {
	users  store.UserStore
	tokens *JWTVerifier
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an identity service. tokens may be nil, in which case
// sessions carry no bearer token and Authenticate always fails.
func NewService(users store.UserStore, tokens *JWTVerifier, opts Options) *Service {
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = 7 * 24 * time.Hour
	}
	if opts.TokenDuration <= 0 {
		opts.TokenDuration = 24 * time.Hour
	}
	return &Service{
		users:  users,
		tokens: tokens,
		opts:   opts,
		logger: slog.Default().With("component", "auth"),
		now:    time.Now,
	}
}

// SignupAllowed reports whether SignUp accepts new accounts.
func (s *Service) SignupAllowed() bool {
	return s.opts.AllowSignup
}

// SignUp registers a new account with an email and password.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*store.User, error) {
	if !s.opts.AllowSignup {
		return nil, ErrSignupDisabled
	}
	return s.CreateUser(ctx, email, password, displayName)
}

// CreateUser registers an account regardless of the sign-up setting. Used by the CLI.
func (s *Service) CreateUser(ctx context.Context, email, password, displayName string) (*store.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &store.User{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, store.ErrEmailExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// SignIn checks an email and password and starts a new session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if user.PasswordHash == "" {
		// passkey-only account
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.StartSession(ctx, user)
}

// StartSession creates a session for an already authenticated user (password or passkey).
func (s *Service) StartSession(ctx context.Context, user *store.User) (*Session, error) {
	id, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	now := s.now()
	rec := &store.Session{
		ID:        id,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.SessionDuration),
	}
	if err := s.users.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	sess := &Session{
		ID:        rec.ID,
		User:      user,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}

	if s.tokens != nil {
		ttl := s.opts.TokenDuration
		if ttl > s.opts.SessionDuration {
			ttl = s.opts.SessionDuration
		}
		sess.Token, sess.TokenExpiresAt, err = s.tokens.Generate(user.ID, rec.ID, ttl)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("user signed in", "user_id", user.ID)
	return sess, nil
}

// SignOut ends a session. Signing out of an unknown session is not an error.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.users.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	s.logger.Debug("session ended", "session_id", shortID(sessionID))
	return nil
}

// Resume loads a live session by ID.
func (s *Service) Resume(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	rec, err := s.users.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	user, err := s.users.GetUser(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("loading session user: %w", err)
	}

	return &Session{
		ID:        rec.ID,
		User:      user,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// CurrentUser returns the user bound to a live session.
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*store.User, error) {
	sess, err := s.Resume(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.User, nil
}

// Authenticate verifies a bearer token and resumes the session it was issued for.
// Tokens for signed-out sessions are rejected even before they expire.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	if s.tokens == nil {
		return nil, ErrInvalidToken
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	sess, err := s.Resume(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.User.ID != claims.UserID {
		return nil, ErrInvalidToken
	}

	sess.Token = token
	sess.TokenExpiresAt = claims.ExpiresAt
	return sess, nil
}

// PurgeExpired removes expired sessions from the store.
func (s *Service) PurgeExpired(ctx context.Context) error {
	n, err := s.users.DeleteExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("purged expired sessions", "count", n)
	}
	return nil
}

// RunCleanup purges expired sessions every interval until ctx is cancelled.
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("session cleanup failed", "error", err)
			}
		}
	}
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// NormalizeEmail trims and lower-cases an address and checks that it parses.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// shortID trims a session ID for logging.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
