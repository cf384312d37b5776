// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"
  base_url: "https://tasks.example.com"

database:
  driver: "postgres"
  dsn: "postgres://u:p@localhost/tasks"
  cascade_deletes: false

auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  session_duration: "12h"
  token_duration: "30m"
  allow_signup: false

assistant:
  api_key: "sk-test"
  model: "gpt-4o-mini"
  timeout: "15s"

notifications:
  matrix:
    enabled: true
    homeserver: "https://matrix.org"
    user_id: "@bot:matrix.org"
    access_token: "matrix-token"
    room_id: "!room:matrix.org"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverPostgres)
	}
	if cfg.Database.Cascade() {
		t.Error("Database.Cascade() = true, want false")
	}
	if cfg.Auth.SessionDuration != 12*time.Hour {
		t.Errorf("Auth.SessionDuration = %v, want 12h", cfg.Auth.SessionDuration)
	}
	if cfg.Auth.TokenDuration != 30*time.Minute {
		t.Errorf("Auth.TokenDuration = %v, want 30m", cfg.Auth.TokenDuration)
	}
	if cfg.Auth.SignupAllowed() {
		t.Error("Auth.SignupAllowed() = true, want false")
	}
	if cfg.Assistant.Model != "gpt-4o-mini" {
		t.Errorf("Assistant.Model = %q, want %q", cfg.Assistant.Model, "gpt-4o-mini")
	}
	if cfg.Assistant.Timeout != 15*time.Second {
		t.Errorf("Assistant.Timeout = %v, want 15s", cfg.Assistant.Timeout)
	}
	if cfg.Assistant.BaseURL != DefaultAssistantBaseURL {
		t.Errorf("Assistant.BaseURL = %q, want default", cfg.Assistant.BaseURL)
	}
	if !cfg.Notifications.Matrix.Enabled || cfg.Notifications.Matrix.RoomID != "!room:matrix.org" {
		t.Errorf("Notifications.Matrix = %+v", cfg.Notifications.Matrix)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
http_addr = "127.0.0.1:9090"

[database]
driver = "sqlite3"
dsn = "/tmp/tasks.db"

[assistant]
timeout = "5s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9090" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Driver != DriverSQLite3 {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite3)
	}
	if cfg.Assistant.Timeout != 5*time.Second {
		t.Errorf("Assistant.Timeout = %v, want 5s", cfg.Assistant.Timeout)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  http_addr: "localhost:8080"
database:
  dsn: "./tasks.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if !cfg.Database.Cascade() {
		t.Error("Database.Cascade() should default to true")
	}
	if !cfg.Auth.SignupAllowed() {
		t.Error("Auth.SignupAllowed() should default to true")
	}
	if cfg.Auth.SessionDuration != DefaultSessionDuration {
		t.Errorf("Auth.SessionDuration = %v, want %v", cfg.Auth.SessionDuration, DefaultSessionDuration)
	}
	if cfg.Auth.TokenDuration != DefaultTokenDuration {
		t.Errorf("Auth.TokenDuration = %v, want %v", cfg.Auth.TokenDuration, DefaultTokenDuration)
	}
	if cfg.Assistant.Model != DefaultAssistantModel {
		t.Errorf("Assistant.Model = %q, want %q", cfg.Assistant.Model, DefaultAssistantModel)
	}
	if cfg.Assistant.Timeout != DefaultAssistantTimeout {
		t.Errorf("Assistant.Timeout = %v, want %v", cfg.Assistant.Timeout, DefaultAssistantTimeout)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_TASKBOARD_KEY", "sk-from-env")
	t.Setenv("TEST_TASKBOARD_DSN", "/var/lib/tasks.db")

	path := writeConfig(t, "config.yaml", `
server:
  http_addr: "localhost:8080"
database:
  dsn: "${TEST_TASKBOARD_DSN}"
assistant:
  api_key: "${TEST_TASKBOARD_KEY}"
  base_url: "${TEST_TASKBOARD_UNSET_VAR}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Assistant.APIKey != "sk-from-env" {
		t.Errorf("Assistant.APIKey = %q, want %q", cfg.Assistant.APIKey, "sk-from-env")
	}
	if cfg.Database.DSN != "/var/lib/tasks.db" {
		t.Errorf("Database.DSN = %q, want %q", cfg.Database.DSN, "/var/lib/tasks.db")
	}
	// unset variables expand to empty, then the default fills in
	if cfg.Assistant.BaseURL != DefaultAssistantBaseURL {
		t.Errorf("Assistant.BaseURL = %q, want default", cfg.Assistant.BaseURL)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v, want reading config file", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  http_addr: "localhost:8080"
database:
  dsn: "./tasks.db"
auth:
  session_duration: "forever"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "session_duration") {
		t.Errorf("error = %v, want mention of session_duration", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{HTTPAddr: "localhost:8080"},
			Database: DatabaseConfig{Driver: DriverSQLite, DSN: "./tasks.db"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing http addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "server.http_addr",
		},
		{
			name: "tailscale without http addr",
			mutate: func(c *Config) {
				c.Server.HTTPAddr = ""
				c.Tailscale = TailscaleConfig{Enabled: true, Hostname: "taskboard"}
			},
		},
		{
			name:    "tailscale without hostname",
			mutate:  func(c *Config) { c.Tailscale.Enabled = true },
			wantErr: "tailscale.hostname",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "database.driver",
		},
		{
			name:    "missing dsn",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "database.dsn",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "too-short" },
			wantErr: "jwt_secret",
		},
		{
			name:    "matrix enabled without room",
			mutate:  func(c *Config) { c.Notifications.Matrix = MatrixConfig{Enabled: true, Homeserver: "https://m.org"} },
			wantErr: "notifications.matrix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestExample_Parses(t *testing.T) {
	t.Setenv("TASKBOARD_JWT_SECRET", "")
	cfg, err := Parse([]byte(Example("/tmp/taskboard.db")), "yaml")
	if err != nil {
		t.Fatalf("Parse(Example()) error = %v", err)
	}
	if cfg.Database.DSN != "/tmp/taskboard.db" {
		t.Errorf("Database.DSN = %q", cfg.Database.DSN)
	}
}
