// ABOUTME: User, session, and passkey persistence for the SQL store
// ABOUTME: Backs email/password sign-in, cookie and token sessions, and WebAuthn credentials

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const userColumns = `id, email, display_name, password_hash, created_at`

// CreateUser inserts a new user. Returns ErrEmailExists if the email is taken.
func (s *SQLStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.stamp()
	}

	_, err := s.exec(ctx, s.db, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, nullString(u.PasswordHash), formatTime(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Info("created user", "id", u.ID, "email", u.Email)
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUserWhere(ctx, "id = ?", id)
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUserWhere(ctx, "email = ?", email)
}

func (s *SQLStore) getUserWhere(ctx context.Context, cond string, arg any) (*User, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE `+cond, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns all users, oldest first.
func (s *SQLStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of registered users.
func (s *SQLStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// UpdateUserPassword replaces a user's password hash.
func (s *SQLStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.exec(ctx, s.db, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return checkRowsAffected(result)
}

func scanUser(r rowScanner) (*User, error) {
	var u User
	var passwordHash sql.NullString
	var createdAt string
	if err := r.Scan(&u.ID, &u.Email, &u.DisplayName, &passwordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.PasswordHash = passwordHash.String
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &u, nil
}

// CreateSession stores a new session.
func (s *SQLStore) CreateSession(ctx context.Context, sess *Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.stamp()
	}
	_, err := s.exec(ctx, s.db, `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, formatTime(sess.CreatedAt), formatTime(sess.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Expired sessions are reported as ErrNotFound.
func (s *SQLStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var createdAt, expiresAt string
	err := s.queryRow(ctx, s.db, `
		SELECT id, user_id, created_at, expires_at
		FROM sessions
		WHERE id = ? AND expires_at > ?`,
		id, formatTime(s.now()),
	).Scan(&sess.ID, &sess.UserID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *SQLStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, s.db, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry and returns how many were removed.
func (s *SQLStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.exec(ctx, s.db, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		s.logger.Debug("deleted expired sessions", "count", n)
	}
	return n, nil
}

const credentialColumns = `id, user_id, credential_id, public_key, attestation_type, transports, sign_count, created_at`

// CreateWebAuthnCredential stores a new WebAuthn credential.
func (s *SQLStore) CreateWebAuthnCredential(ctx context.Context, cred *WebAuthnCredential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = s.stamp()
	}
	transports := cred.Transports
	if transports == "" {
		transports = "[]"
	}

	_, err := s.exec(ctx, s.db, `
		INSERT INTO webauthn_credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.UserID, cred.CredentialID, cred.PublicKey,
		cred.AttestationType, transports, int64(cred.SignCount), formatTime(cred.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting webauthn credential: %w", err)
	}

	s.logger.Info("created webauthn credential", "id", cred.ID, "user_id", cred.UserID)
	return nil
}

// GetWebAuthnCredentialsByUser retrieves all WebAuthn credentials for a user.
func (s *SQLStore) GetWebAuthnCredentialsByUser(ctx context.Context, userID string) ([]*WebAuthnCredential, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+credentialColumns+`
		FROM webauthn_credentials
		WHERE user_id = ?
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying webauthn credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var creds []*WebAuthnCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webauthn credentials: %w", err)
	}
	return creds, nil
}

// GetWebAuthnCredentialByCredentialID retrieves a WebAuthn credential by its credential ID.
func (s *SQLStore) GetWebAuthnCredentialByCredentialID(ctx context.Context, credentialID []byte) (*WebAuthnCredential, error) {
	row := s.queryRow(ctx, s.db, `
		SELECT `+credentialColumns+`
		FROM webauthn_credentials
		WHERE credential_id = ?`, credentialID)
	cred, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// UpdateWebAuthnCredentialSignCount updates the sign count for a credential.
func (s *SQLStore) UpdateWebAuthnCredentialSignCount(ctx context.Context, id string, signCount uint32) error {
	result, err := s.exec(ctx, s.db, `UPDATE webauthn_credentials SET sign_count = ? WHERE id = ?`, int64(signCount), id)
	if err != nil {
		return fmt.Errorf("updating webauthn sign count: %w", err)
	}
	return checkRowsAffected(result)
}

// DeleteWebAuthnCredential deletes a WebAuthn credential.
func (s *SQLStore) DeleteWebAuthnCredential(ctx context.Context, id string) error {
	result, err := s.exec(ctx, s.db, `DELETE FROM webauthn_credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting webauthn credential: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return err
	}

	s.logger.Info("deleted webauthn credential", "id", id)
	return nil
}

func scanCredential(r rowScanner) (*WebAuthnCredential, error) {
	var cred WebAuthnCredential
	var signCount int64
	var createdAt string
	err := r.Scan(&cred.ID, &cred.UserID, &cred.CredentialID, &cred.PublicKey,
		&cred.AttestationType, &cred.Transports, &signCount, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning webauthn credential: %w", err)
	}

	cred.SignCount = uint32(signCount)
	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &cred, nil
}
