// ABOUTME: PostgreSQL integration tests for the SQL store using testcontainers
// ABOUTME: Skipped automatically when Docker is not available

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// dockerAvailable checks whether the Docker daemon is reachable.
// testcontainers-go panics when Docker is not installed, so probe first.
func dockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// startPostgres runs one container for the calling test and returns its connection string.
func startPostgres(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration tests in short mode")
	}
	if !dockerAvailable() {
		t.Skip("Docker not available, skipping PostgreSQL integration tests")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("taskboard"),
		postgres.WithUsername("taskboard"),
		postgres.WithPassword("taskboard"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

// postgresFactory gives each subtest its own database inside one container.
func postgresFactory(connStr string) storeFactory {
	var seq atomic.Int64
	return func(t *testing.T) Store {
		ctx := context.Background()
		name := fmt.Sprintf("suite_%d", seq.Add(1))

		admin, err := sql.Open("pgx", connStr)
		require.NoError(t, err)
		_, err = admin.ExecContext(ctx, "CREATE DATABASE "+name)
		require.NoError(t, err)
		require.NoError(t, admin.Close())

		s, err := Open(ctx, DriverPostgres, strings.Replace(connStr, "/taskboard?", "/"+name+"?", 1), Options{CascadeDeletes: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
}

func TestStore_Postgres(t *testing.T) {
	runStoreSuite(t, postgresFactory(startPostgres(t)))
}
