// ABOUTME: Tests for server wiring, health endpoints and lifecycle
// ABOUTME: Uses the in-memory store so no database is needed

package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/taskboard/internal/config"
	"github.com/2389/taskboard/internal/store"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:"},
		Auth: config.AuthConfig{
			JWTSecret:       "server-test-secret-0123456789abcdef",
			SessionDuration: time.Hour,
			TokenDuration:   time.Hour,
		},
		Assistant: config.AssistantConfig{
			BaseURL: "http://127.0.0.1:1",
			Model:   "test-model",
			Timeout: time.Second,
		},
	}
	return cfg
}

func newTestServer(t *testing.T) (*Server, *store.MockStore) {
	t.Helper()
	st := store.NewMockStore()
	s, err := NewWithStore(testConfig(), st, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, st
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	code, body := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)
}

func TestReady(t *testing.T) {
	s, st := newTestServer(t)

	code, body := get(t, s.Handler(), "/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body)

	st.Err = errors.New("database is down")
	code, body = get(t, s.Handler(), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "database unavailable", body)
}

func TestRoutesAreWired(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	code, body := get(t, h, "/login")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Sign in")

	code, _ = get(t, h, "/api/projects")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = get(t, h, "/api/chat")
	assert.Equal(t, http.StatusUnauthorized, code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRandomJWTSecretWhenUnset(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	s, err := NewWithStore(cfg, store.NewMockStore(), slog.Default())
	require.NoError(t, err)
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestDetermineBaseURL(t *testing.T) {
	t.Setenv("TASKBOARD_URL", "")

	cfg := testConfig()
	cfg.Server.HTTPAddr = "127.0.0.1:8080"
	assert.Equal(t, "http://127.0.0.1:8080", determineBaseURL(cfg, slog.Default()))

	cfg.Tailscale = config.TailscaleConfig{Enabled: true, Hostname: "taskboard"}
	assert.Equal(t, "http://taskboard", determineBaseURL(cfg, slog.Default()))

	cfg.Tailscale.HTTPS = true
	assert.Equal(t, "https://taskboard", determineBaseURL(cfg, slog.Default()))

	t.Setenv("TASKBOARD_URL", "https://taskboard.example.ts.net")
	assert.Equal(t, "https://taskboard.example.ts.net", determineBaseURL(cfg, slog.Default()))

	cfg.Server.BaseURL = "https://tasks.example.com"
	assert.Equal(t, "https://tasks.example.com", determineBaseURL(cfg, slog.Default()))
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")
	_, err := resolveTailscaleAuthKey("")
	assert.Error(t, err)

	key, err := resolveTailscaleAuthKey("tskey-config")
	require.NoError(t, err)
	assert.Equal(t, "tskey-config", key)

	t.Setenv("TS_AUTHKEY", "tskey-env")
	key, err = resolveTailscaleAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)
}

func TestResolveTailscaleStateDir(t *testing.T) {
	dir, err := resolveTailscaleStateDir("/var/lib/taskboard")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/taskboard", dir)

	t.Setenv("HOME", t.TempDir())
	dir, err = resolveTailscaleStateDir("")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dir, "/.local/share/taskboard/tailscale"), dir)
}

func TestMatrixNotifierRequiresValidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Notifications.Matrix = config.MatrixConfig{
		Enabled:     true,
		Homeserver:  "https://matrix.example.com",
		UserID:      "@taskboard:example.com",
		AccessToken: "token",
		RoomID:      "!room:example.com",
	}
	n, err := initNotifier(cfg, slog.Default())
	require.NoError(t, err)
	c, ok := n.(interface{ Close() error })
	require.True(t, ok)
	assert.NoError(t, c.Close())
}
