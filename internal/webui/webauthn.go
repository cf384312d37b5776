// ABOUTME: Passkey registration and sign-in for the web UI
// ABOUTME: Implements the WebAuthn ceremonies with go-webauthn and stores credentials per user

package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/store"
)

const ceremonyTTL = 5 * time.Minute

// passkeyUser adapts a store.User to webauthn.User.
type passkeyUser struct {
	user  *store.User
	creds []*store.WebAuthnCredential
}

func (p *passkeyUser) WebAuthnID() []byte { return []byte(p.user.ID) }

func (p *passkeyUser) WebAuthnName() string { return p.user.Email }

func (p *passkeyUser) WebAuthnDisplayName() string {
	if p.user.DisplayName != "" {
		return p.user.DisplayName
	}
	return p.user.Email
}

func (p *passkeyUser) WebAuthnCredentials() []webauthn.Credential {
	out := make([]webauthn.Credential, len(p.creds))
	for i, c := range p.creds {
		out[i] = webauthn.Credential{
			ID:              c.CredentialID,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Authenticator:   webauthn.Authenticator{SignCount: c.SignCount},
		}
		if c.Transports != "" {
			var transports []protocol.AuthenticatorTransport
			_ = json.Unmarshal([]byte(c.Transports), &transports)
			out[i].Transport = transports
		}
	}
	return out
}

type ceremony struct {
	session   *webauthn.SessionData
	userID    string
	expiresAt time.Time
}

// webAuthnSessionStore holds in-flight ceremonies in memory.
type webAuthnSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*ceremony
	cancel   context.CancelFunc
}

func newWebAuthnSessionStore() *webAuthnSessionStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &webAuthnSessionStore{
		sessions: make(map[string]*ceremony),
		cancel:   cancel,
	}
	go s.cleanupLoop(ctx)
	return s
}

func (s *webAuthnSessionStore) Close() { s.cancel() }

func (s *webAuthnSessionStore) Set(token string, session *webauthn.SessionData, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = &ceremony{session: session, userID: userID, expiresAt: time.Now().Add(ceremonyTTL)}
}

// Take returns and removes a ceremony. Each ceremony can be finished once.
func (s *webAuthnSessionStore) Take(token string) (*webauthn.SessionData, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[token]
	delete(s.sessions, token)
	if !ok || time.Now().After(c.expiresAt) {
		return nil, "", false
	}
	return c.session, c.userID, true
}

func (s *webAuthnSessionStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for k, c := range s.sessions {
				if now.After(c.expiresAt) {
					delete(s.sessions, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// relyingParty derives the WebAuthn RP ID and allowed origins from the base URL.
func relyingParty(baseURL string) (rpID string, origins []string) {
	rpID = "localhost"
	origins = []string{"http://localhost", "https://localhost"}

	parsed, err := url.Parse(baseURL)
	if baseURL == "" || err != nil || parsed.Hostname() == "" {
		return rpID, origins
	}

	rpID = parsed.Hostname()
	origins = []string{baseURL}
	if parsed.Scheme == "https" {
		origins = append(origins, "http://"+parsed.Host)
	} else {
		origins = append(origins, "https://"+parsed.Host)
	}
	return rpID, origins
}

func (u *UI) initWebAuthn() error {
	rpID, origins := relyingParty(u.config.BaseURL)
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "taskboard",
		RPID:          rpID,
		RPOrigins:     origins,
	})
	if err != nil {
		return err
	}
	u.webauthn = wa
	u.webauthnSessions = newWebAuthnSessionStore()
	return nil
}

type ceremonyFinish struct {
	SessionToken string          `json:"sessionToken"`
	Response     json.RawMessage `json:"response"`
}

func (u *UI) beginCeremony(w http.ResponseWriter, session *webauthn.SessionData, userID string, options any) {
	token, err := generateSecureToken(32)
	if err != nil {
		http.Error(w, "Failed to generate session", http.StatusInternalServerError)
		return
	}
	u.webauthnSessions.Set(token, session, userID)
	writeJSON(w, http.StatusOK, map[string]any{"options": options, "sessionToken": token})
}

func (u *UI) handleWebAuthnRegisterBegin(w http.ResponseWriter, r *http.Request) {
	if u.webauthn == nil {
		http.Error(w, "Passkeys are not configured", http.StatusServiceUnavailable)
		return
	}
	if !validateCSRF(r) {
		http.Error(w, bannerCSRF, http.StatusForbidden)
		return
	}
	user := auth.MustFromContext(r.Context()).User

	existing, err := u.credentials.GetWebAuthnCredentialsByUser(r.Context(), user.ID)
	if err != nil {
		u.logger.Error("failed to get existing credentials", "error", err)
	}

	options, session, err := u.webauthn.BeginRegistration(&passkeyUser{user: user, creds: existing})
	if err != nil {
		u.logger.Error("failed to begin passkey registration", "error", err)
		http.Error(w, "Failed to start registration", http.StatusInternalServerError)
		return
	}
	u.beginCeremony(w, session, user.ID, options)
}

func (u *UI) handleWebAuthnRegisterFinish(w http.ResponseWriter, r *http.Request) {
	if u.webauthn == nil {
		http.Error(w, "Passkeys are not configured", http.StatusServiceUnavailable)
		return
	}
	user := auth.MustFromContext(r.Context()).User

	var req ceremonyFinish
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	session, ceremonyUser, ok := u.webauthnSessions.Take(req.SessionToken)
	if !ok || ceremonyUser != user.ID {
		http.Error(w, "Invalid or expired session", http.StatusBadRequest)
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		u.logger.Warn("failed to parse registration response", "error", err)
		http.Error(w, "Invalid response", http.StatusBadRequest)
		return
	}

	existing, _ := u.credentials.GetWebAuthnCredentialsByUser(r.Context(), user.ID)
	cred, err := u.webauthn.CreateCredential(&passkeyUser{user: user, creds: existing}, *session, parsed)
	if err != nil {
		u.logger.Warn("failed to verify passkey", "error", err)
		http.Error(w, "Failed to verify credential", http.StatusBadRequest)
		return
	}

	transports, err := json.Marshal(cred.Transport)
	if err != nil {
		http.Error(w, "Failed to save credential", http.StatusInternalServerError)
		return
	}
	rec := &store.WebAuthnCredential{
		ID:              uuid.New().String(),
		UserID:          user.ID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		Transports:      string(transports),
		SignCount:       cred.Authenticator.SignCount,
	}
	if err := u.credentials.CreateWebAuthnCredential(r.Context(), rec); err != nil {
		u.logger.Error("failed to store passkey", "error", err)
		http.Error(w, "Failed to save credential", http.StatusInternalServerError)
		return
	}

	u.logger.Info("passkey registered", "user_id", user.ID, "credential_id", rec.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (u *UI) handleWebAuthnLoginBegin(w http.ResponseWriter, r *http.Request) {
	if u.webauthn == nil {
		http.Error(w, "Passkeys are not configured", http.StatusServiceUnavailable)
		return
	}
	options, session, err := u.webauthn.BeginDiscoverableLogin()
	if err != nil {
		u.logger.Error("failed to begin passkey login", "error", err)
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}
	u.beginCeremony(w, session, "", options)
}

func (u *UI) handleWebAuthnLoginFinish(w http.ResponseWriter, r *http.Request) {
	if u.webauthn == nil {
		http.Error(w, "Passkeys are not configured", http.StatusServiceUnavailable)
		return
	}

	var req ceremonyFinish
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	session, _, ok := u.webauthnSessions.Take(req.SessionToken)
	if !ok {
		http.Error(w, "Invalid or expired session", http.StatusBadRequest)
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		u.logger.Warn("failed to parse login response", "error", err)
		http.Error(w, "Invalid response", http.StatusBadRequest)
		return
	}

	stored, err := u.credentials.GetWebAuthnCredentialByCredentialID(r.Context(), parsed.RawID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Unknown credential", http.StatusUnauthorized)
			return
		}
		u.logger.Error("failed to look up passkey", "error", err)
		http.Error(w, "Failed to verify credential", http.StatusInternalServerError)
		return
	}
	user, err := u.credentials.GetUser(r.Context(), stored.UserID)
	if err != nil {
		http.Error(w, "Unknown credential", http.StatusUnauthorized)
		return
	}

	all, _ := u.credentials.GetWebAuthnCredentialsByUser(r.Context(), user.ID)
	pu := &passkeyUser{user: user, creds: all}
	cred, err := u.webauthn.ValidateDiscoverableLogin(func(rawID, userHandle []byte) (webauthn.User, error) {
		if len(userHandle) > 0 && string(userHandle) != user.ID {
			return nil, errors.New("user handle mismatch")
		}
		return pu, nil
	}, *session, parsed)
	if err != nil {
		u.logger.Warn("passkey login failed", "error", err)
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	if err := u.credentials.UpdateWebAuthnCredentialSignCount(r.Context(), stored.ID, cred.Authenticator.SignCount); err != nil {
		u.logger.Warn("failed to update sign count", "error", err)
	}

	sess, err := u.identity.StartSession(r.Context(), user)
	if err != nil {
		u.logger.Error("failed to create session", "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	setSessionCookie(w, r, sess)

	u.logger.Info("passkey login successful", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redirect": "/"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
