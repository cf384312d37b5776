// Package store provides persistent storage for taskboard.
//
// # Architecture
//
// The package exposes small interfaces that callers depend on:
//
//   - ProjectStore: project CRUD
//   - TaskStore: task CRUD with project/status filtering
//   - UserStore: accounts, sessions, WebAuthn credentials
//   - Store: all of the above plus Ping and Close
//
// SQLStore implements every interface over database/sql. MockStore is an
// in-memory implementation with the same observable behaviour for tests.
//
// # Drivers
//
// [Open] accepts three driver names:
//
//   - "sqlite": modernc.org/sqlite, pure Go, the default
//   - "sqlite3": github.com/mattn/go-sqlite3, requires cgo
//   - "postgres": github.com/jackc/pgx/v5 through its database/sql adapter
//
// Queries are written with ? placeholders and rebound to $n for postgres.
// Timestamps are stored as fixed-width UTC text with microsecond precision, so
// ORDER BY created_at sorts chronologically on every driver.
//
// # Integrity
//
// The schema enforces non-empty project names and task titles, known status and
// priority values, and that every task references an existing project. Tasks
// are removed with their project when the store is opened with
// Options.CascadeDeletes; otherwise deleting a project that still owns tasks
// fails with ErrProjectHasTasks. The choice is fixed when the tables are first
// created.
//
// Updates always move updated_at strictly past created_at.
//
// # Error Handling
//
// Sentinels are matched with errors.Is:
//
//   - ErrNotFound: no row with that ID (deletes of missing rows succeed)
//   - ErrEmailExists: duplicate user email
//   - ErrConstraint: CHECK constraint failure
//   - ErrUnknownProject: task references a missing project
//   - ErrProjectHasTasks: restricted project delete
package store
