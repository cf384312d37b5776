// ABOUTME: Tests specific to the SQL store
// ABOUTME: Covers file creation, restricted deletes, placeholder rebinding and timestamp stamping

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created in nested directory")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x", Options{})
	assert.Error(t, err)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	p := &Project{Name: "persisted"}
	require.NoError(t, s.CreateProject(ctx, p))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
}

func TestDeleteProject_Restricted(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "test.db"), Options{CascadeDeletes: false})
	require.NoError(t, err)
	defer s.Close()

	p := &Project{Name: "has tasks"}
	require.NoError(t, s.CreateProject(ctx, p))
	require.NoError(t, s.CreateTask(ctx, &Task{ProjectID: p.ID, Title: "blocker"}))

	err = s.DeleteProject(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProjectHasTasks)

	_, err = s.GetProject(ctx, p.ID)
	assert.NoError(t, err, "project should survive a restricted delete")

	empty := &Project{Name: "no tasks"}
	require.NoError(t, s.CreateProject(ctx, empty))
	assert.NoError(t, s.DeleteProject(ctx, empty.ID))
}

func TestUpdateTask_ClockTie(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	frozen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	p := &Project{Name: "frozen"}
	require.NoError(t, s.CreateProject(ctx, p))
	task := &Task{ProjectID: p.ID, Title: "tick"}
	require.NoError(t, s.CreateTask(ctx, task))

	done := StatusDone
	updated, err := s.UpdateTask(ctx, task.ID, TaskUpdate{Status: &done})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &SQLStore{driver: DriverSQLite}
	assert.Equal(t, "SELECT * FROM t WHERE a = ?", lite.rebind("SELECT * FROM t WHERE a = ?"))
}

func TestTimeFormat_SortsLexically(t *testing.T) {
	early := time.Date(2026, 1, 1, 9, 0, 0, 5000, time.UTC)
	late := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	a, b := formatTime(early), formatTime(late)
	assert.Len(t, a, len(b))
	assert.Less(t, a, b)

	parsed, err := parseTime(a)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(early.Truncate(time.Microsecond)))
}
