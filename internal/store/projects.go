// ABOUTME: Project persistence for the SQL store
// ABOUTME: CRUD over the projects table, newest first, with partial updates

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const projectColumns = `id, owner_id, name, description, created_at, updated_at`

// ListProjects returns all projects, newest first.
func (s *SQLStore) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

// GetProject retrieves a project by ID.
func (s *SQLStore) GetProject(ctx context.Context, id string) (*Project, error) {
	return s.getProject(ctx, s.db, id)
}

func (s *SQLStore) getProject(ctx context.Context, q execer, id string) (*Project, error) {
	row := s.queryRow(ctx, q, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProject inserts a project. ID and timestamps are filled in when empty.
func (s *SQLStore) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := s.stamp()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	_, err := s.exec(ctx, s.db, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.Description,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("inserting project: %w", ErrConstraint)
		}
		return fmt.Errorf("inserting project: %w", err)
	}

	s.logger.Debug("created project", "id", p.ID, "name", p.Name)
	return nil
}

// UpdateProject applies a partial update and always stamps updated_at.
func (s *SQLStore) UpdateProject(ctx context.Context, id string, u ProjectUpdate) (*Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := s.getProject(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	p.UpdatedAt = s.updateStamp(p.CreatedAt)

	result, err := s.exec(ctx, tx, `
		UPDATE projects SET name = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, formatTime(p.UpdatedAt), id,
	)
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("updating project: %w", ErrConstraint)
		}
		return nil, fmt.Errorf("updating project: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing project update: %w", err)
	}

	s.logger.Debug("updated project", "id", id)
	return p, nil
}

// DeleteProject removes a project by ID. Deleting a missing project is not an error.
func (s *SQLStore) DeleteProject(ctx context.Context, id string) error {
	_, err := s.exec(ctx, s.db, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("deleting project: %w", ErrProjectHasTasks)
		}
		return fmt.Errorf("deleting project: %w", err)
	}
	s.logger.Debug("deleted project", "id", id)
	return nil
}

// updateStamp returns a timestamp for updated_at that is strictly after createdAt.
func (s *SQLStore) updateStamp(createdAt time.Time) time.Time {
	t := s.stamp()
	if !t.After(createdAt) {
		t = createdAt.Add(time.Microsecond)
	}
	return t
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (*Project, error) {
	var p Project
	var createdAt, updatedAt string
	if err := r.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &p, nil
}
