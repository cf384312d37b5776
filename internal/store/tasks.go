// ABOUTME: Task persistence for the SQL store
// ABOUTME: CRUD over the tasks table with project/status filtering and partial updates

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const taskColumns = `id, project_id, title, description, status, priority, due_date, created_at, updated_at`

// ListTasks returns tasks matching f, newest first.
func (s *SQLStore) ListTasks(ctx context.Context, f TaskFilter) ([]*Task, error) {
	var where []string
	var args []any
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// GetTask retrieves a task by ID.
func (s *SQLStore) GetTask(ctx context.Context, id string) (*Task, error) {
	return s.getTask(ctx, s.db, id)
}

func (s *SQLStore) getTask(ctx context.Context, q execer, id string) (*Task, error) {
	row := s.queryRow(ctx, q, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTask inserts a task. ID, status, priority and timestamps get defaults when empty.
func (s *SQLStore) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	now := s.stamp()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	_, err := s.exec(ctx, s.db, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Description,
		string(t.Status), string(t.Priority), nullDate(t.DueDate),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", taskWriteError(err))
	}

	s.logger.Debug("created task", "id", t.ID, "project_id", t.ProjectID, "title", t.Title)
	return nil
}

// UpdateTask applies a partial update and always stamps updated_at.
func (s *SQLStore) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := s.getTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if u.ProjectID != nil {
		t.ProjectID = *u.ProjectID
	}
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.DueDate != nil {
		d := *u.DueDate
		t.DueDate = &d
	}
	if u.ClearDueDate {
		t.DueDate = nil
	}
	t.UpdatedAt = s.updateStamp(t.CreatedAt)

	result, err := s.exec(ctx, tx, `
		UPDATE tasks
		SET project_id = ?, title = ?, description = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
		WHERE id = ?`,
		t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority),
		nullDate(t.DueDate), formatTime(t.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", taskWriteError(err))
	}
	if err := checkRowsAffected(result); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing task update: %w", err)
	}

	s.logger.Debug("updated task", "id", id, "status", t.Status)
	return t, nil
}

// DeleteTask removes a task by ID. Deleting a missing task is not an error.
func (s *SQLStore) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, s.db, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	s.logger.Debug("deleted task", "id", id)
	return nil
}

func taskWriteError(err error) error {
	switch {
	case isForeignKeyViolation(err):
		return ErrUnknownProject
	case isCheckViolation(err):
		return ErrConstraint
	}
	return err
}

func scanTask(r rowScanner) (*Task, error) {
	var t Task
	var status, priority string
	var dueDate sql.NullString
	var createdAt, updatedAt string
	err := r.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &priority,
		&dueDate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	t.Status = TaskStatus(status)
	t.Priority = TaskPriority(priority)
	if t.DueDate, err = parseDate(dueDate); err != nil {
		return nil, fmt.Errorf("parsing due_date: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}
