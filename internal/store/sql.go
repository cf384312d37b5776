// ABOUTME: SQL implementation of the Store interface over sqlite, sqlite3 and postgres drivers
// ABOUTME: Handles connection setup, schema creation, placeholder rebinding and timestamp encoding

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "postgres"
)

// timeLayout is fixed width so lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// dateLayout is used for task due dates.
const dateLayout = "2006-01-02"

// Options tune schema creation.
type Options struct {
	// CascadeDeletes makes deleting a project delete its tasks. When false the
	// schema restricts the delete and DeleteProject returns ErrProjectHasTasks.
	CascadeDeletes bool
}

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db      *sql.DB
	driver  string
	logger  *slog.Logger
	cascade bool

	clockMu sync.Mutex
	last    time.Time
	now     func() time.Time
}

// Ensure SQLStore implements Store.
var _ Store = (*SQLStore)(nil)

// Open connects to the database and creates the schema if it doesn't exist.
// For the sqlite drivers dsn is a file path; parent directories are created.
func Open(ctx context.Context, driver, dsn string, opts Options) (*SQLStore, error) {
	logger := slog.Default().With("component", "store", "driver", driver)

	sqlDriver, connStr, err := connectionString(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlDriver, connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver != DriverPostgres {
		// One writer at a time keeps SQLite from returning SQLITE_BUSY under load.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLStore{
		db:      db,
		driver:  driver,
		logger:  logger,
		cascade: opts.CascadeDeletes,
		now:     time.Now,
	}

	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("store initialized", "cascade_deletes", opts.CascadeDeletes)
	return s, nil
}

// NewSQLiteStore opens a pure-Go SQLite store at path with cascading deletes.
func NewSQLiteStore(path string) (*SQLStore, error) {
	return Open(context.Background(), DriverSQLite, path, Options{CascadeDeletes: true})
}

func connectionString(driver, dsn string) (string, string, error) {
	switch driver {
	case DriverSQLite, DriverSQLite3:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return "", "", fmt.Errorf("creating database directory: %w", err)
			}
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		if driver == DriverSQLite {
			return "sqlite", dsn + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
		}
		return "sqlite3", dsn + sep + "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", nil
	case DriverPostgres:
		return "pgx", dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// createSchema creates the database tables if they don't exist
func (s *SQLStore) createSchema(ctx context.Context) error {
	blob := "BLOB"
	if s.driver == DriverPostgres {
		blob = "BYTEA"
	}
	onDelete := "ON DELETE RESTRICT"
	if s.cascade {
		onDelete = "ON DELETE CASCADE"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
		`CREATE TABLE IF NOT EXISTS webauthn_credentials (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			credential_id ` + blob + ` NOT NULL UNIQUE,
			public_key ` + blob + ` NOT NULL,
			attestation_type TEXT NOT NULL DEFAULT '',
			transports TEXT NOT NULL DEFAULT '[]',
			sign_count BIGINT NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_webauthn_user ON webauthn_credentials(user_id)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL CHECK (length(trim(name)) > 0),
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ` + onDelete + `,
			title TEXT NOT NULL CHECK (length(trim(title)) > 0),
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'todo' CHECK (status IN ('todo', 'in_progress', 'review', 'done')),
			priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
			due_date TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// stamp returns the current time truncated to storage precision and strictly
// after every timestamp this store has handed out before.
func (s *SQLStore) stamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, q execer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, q execer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// fall back for rows written by hand or by older tools
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func checkRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Constraint failures are reported differently by each driver, so they are
// recognised by message.

func isUniqueViolation(err error) bool {
	msg := lowerErr(err)
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func isForeignKeyViolation(err error) bool {
	return strings.Contains(lowerErr(err), "foreign key")
}

func isCheckViolation(err error) bool {
	return strings.Contains(lowerErr(err), "check constraint")
}

func lowerErr(err error) string {
	if err == nil {
		return ""
	}
	return strings.ToLower(err.Error())
}
