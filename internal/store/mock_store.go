// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without a database while keeping SQL store semantics

package store

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
// It mirrors the SQL store: newest-first lists, cascading project deletes,
// and rejection of tasks that reference unknown projects.
type MockStore struct {
	mu       sync.RWMutex
	projects map[string]*Project
	tasks    map[string]*Task
	users    map[string]*User
	sessions map[string]*Session
	creds    map[string]*WebAuthnCredential
	last     time.Time

	// Err, when set, is returned by every method. Lets tests exercise failure paths.
	Err error
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		projects: make(map[string]*Project),
		tasks:    make(map[string]*Task),
		users:    make(map[string]*User),
		sessions: make(map[string]*Session),
		creds:    make(map[string]*WebAuthnCredential),
	}
}

// stamp must be called with mu held.
func (m *MockStore) stamp() time.Time {
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

// ListProjects returns all projects, newest first.
func (m *MockStore) ListProjects(ctx context.Context) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	result := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return newerFirst(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID)
	})
	return result, nil
}

// GetProject retrieves a project by ID.
func (m *MockStore) GetProject(ctx context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// CreateProject stores a new project.
func (m *MockStore) CreateProject(ctx context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if strings.TrimSpace(p.Name) == "" {
		return ErrConstraint
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := m.stamp()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

// UpdateProject applies a partial update.
func (m *MockStore) UpdateProject(ctx context.Context, id string, u ProjectUpdate) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := *p
	if u.Name != nil {
		next.Name = *u.Name
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if strings.TrimSpace(next.Name) == "" {
		return nil, ErrConstraint
	}
	next.UpdatedAt = m.stamp()
	if !next.UpdatedAt.After(next.CreatedAt) {
		next.UpdatedAt = next.CreatedAt.Add(time.Microsecond)
	}

	m.projects[id] = &next
	cp := next
	return &cp, nil
}

// DeleteProject removes a project and its tasks.
func (m *MockStore) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	delete(m.projects, id)
	for tid, t := range m.tasks {
		if t.ProjectID == id {
			delete(m.tasks, tid)
		}
	}
	return nil
}

// ListTasks returns tasks matching f, newest first.
func (m *MockStore) ListTasks(ctx context.Context, f TaskFilter) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var result []*Task
	for _, t := range m.tasks {
		if f.ProjectID != "" && t.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return newerFirst(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID)
	})
	return result, nil
}

// GetTask retrieves a task by ID.
func (m *MockStore) GetTask(ctx context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// CreateTask stores a new task.
func (m *MockStore) CreateTask(ctx context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if err := m.checkTask(t); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := m.stamp()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

// UpdateTask applies a partial update.
func (m *MockStore) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := *t
	if u.ProjectID != nil {
		next.ProjectID = *u.ProjectID
	}
	if u.Title != nil {
		next.Title = *u.Title
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Status != nil {
		next.Status = *u.Status
	}
	if u.Priority != nil {
		next.Priority = *u.Priority
	}
	if u.DueDate != nil {
		d := *u.DueDate
		next.DueDate = &d
	}
	if u.ClearDueDate {
		next.DueDate = nil
	}
	if err := m.checkTask(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = m.stamp()
	if !next.UpdatedAt.After(next.CreatedAt) {
		next.UpdatedAt = next.CreatedAt.Add(time.Microsecond)
	}

	m.tasks[id] = &next
	cp := next
	return &cp, nil
}

// DeleteTask removes a task by ID.
func (m *MockStore) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.tasks, id)
	return nil
}

// checkTask must be called with mu held.
func (m *MockStore) checkTask(t *Task) error {
	if _, ok := m.projects[t.ProjectID]; !ok {
		return ErrUnknownProject
	}
	if strings.TrimSpace(t.Title) == "" || !t.Status.Valid() || !t.Priority.Valid() {
		return ErrConstraint
	}
	return nil
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.stamp()
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail retrieves a user by email address.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListUsers returns all users, oldest first.
func (m *MockStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	result := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// CountUsers returns the number of users.
func (m *MockStore) CountUsers(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.users), nil
}

// UpdateUserPassword replaces a user's password hash.
func (m *MockStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// CreateSession stores a new session.
func (m *MockStore) CreateSession(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.stamp()
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

// GetSession retrieves a live session by ID.
func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	s, ok := m.sessions[id]
	if !ok || s.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// DeleteSession removes a session.
func (m *MockStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.sessions, id)
	return nil
}

// DeleteExpiredSessions removes expired sessions.
func (m *MockStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}

	var n int64
	now := time.Now()
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// CreateWebAuthnCredential stores a passkey credential.
func (m *MockStore) CreateWebAuthnCredential(ctx context.Context, cred *WebAuthnCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = m.stamp()
	}
	cp := *cred
	m.creds[cred.ID] = &cp
	return nil
}

// GetWebAuthnCredentialsByUser returns a user's passkeys, oldest first.
func (m *MockStore) GetWebAuthnCredentialsByUser(ctx context.Context, userID string) ([]*WebAuthnCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var result []*WebAuthnCredential
	for _, c := range m.creds {
		if c.UserID == userID {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// GetWebAuthnCredentialByCredentialID looks up a passkey by its credential ID.
func (m *MockStore) GetWebAuthnCredentialByCredentialID(ctx context.Context, credentialID []byte) (*WebAuthnCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	for _, c := range m.creds {
		if bytes.Equal(c.CredentialID, credentialID) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateWebAuthnCredentialSignCount updates a passkey's sign count.
func (m *MockStore) UpdateWebAuthnCredentialSignCount(ctx context.Context, id string, signCount uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	c, ok := m.creds[id]
	if !ok {
		return ErrNotFound
	}
	c.SignCount = signCount
	return nil
}

// DeleteWebAuthnCredential removes a passkey.
func (m *MockStore) DeleteWebAuthnCredential(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, ok := m.creds[id]; !ok {
		return ErrNotFound
	}
	delete(m.creds, id)
	return nil
}

// Ping always succeeds unless Err is set.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Err
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

func newerFirst(a, b time.Time, aID, bID string) bool {
	if a.Equal(b) {
		return aID > bID
	}
	return a.After(b)
}
