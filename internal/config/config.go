// ABOUTME: Configuration loading and parsing for taskboard
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"   // modernc.org/sqlite, pure Go
	DriverSQLite3  = "sqlite3"  // github.com/mattn/go-sqlite3, cgo
	DriverPostgres = "postgres" // github.com/jackc/pgx/v5/stdlib
)

// Defaults applied when the file leaves a field empty.
const (
	DefaultAssistantBaseURL = "https://api.openai.com/v1"
	DefaultAssistantModel   = "gpt-4o"
	DefaultAssistantTimeout = 60 * time.Second
	DefaultSessionDuration  = 7 * 24 * time.Hour
	DefaultTokenDuration    = 24 * time.Hour
)

// minJWTSecretLen is the smallest accepted HS256 secret.
const minJWTSecretLen = 32

// Config represents the complete taskboard configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" toml:"server"`
	Tailscale     TailscaleConfig     `yaml:"tailscale" toml:"tailscale"`
	Database      DatabaseConfig      `yaml:"database" toml:"database"`
	Auth          AuthConfig          `yaml:"auth" toml:"auth"`
	Assistant     AssistantConfig     `yaml:"assistant" toml:"assistant"`
	Notifications NotificationsConfig `yaml:"notifications" toml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// BaseURL is the external URL of the web UI (used for passkey origins).
	// If not set, it's derived from http_addr or the tailscale hostname.
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"` // serve :443 with tailnet certs
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
	// CascadeDeletes controls whether deleting a project removes its tasks
	// at the storage layer. Nil means the default (true).
	CascadeDeletes *bool `yaml:"cascade_deletes" toml:"cascade_deletes"`
}

// Cascade reports whether project deletes cascade to tasks.
func (d DatabaseConfig) Cascade() bool {
	if d.CascadeDeletes == nil {
		return true
	}
	return *d.CascadeDeletes
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret" toml:"jwt_secret"`
	AllowSignup *bool  `yaml:"allow_signup" toml:"allow_signup"`

	SessionDuration time.Duration `yaml:"-" toml:"-"`
	TokenDuration   time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	SessionDurationRaw string `yaml:"session_duration" toml:"session_duration"`
	TokenDurationRaw   string `yaml:"token_duration" toml:"token_duration"`
}

// SignupAllowed reports whether self-service registration is enabled.
func (a AuthConfig) SignupAllowed() bool {
	if a.AllowSignup == nil {
		return true
	}
	return *a.AllowSignup
}

// AssistantConfig holds the chat-completion provider settings
type AssistantConfig struct {
	APIKey  string        `yaml:"api_key" toml:"api_key"`
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Model   string        `yaml:"model" toml:"model"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// NotificationsConfig holds activity notification targets
type NotificationsConfig struct {
	Matrix MatrixConfig `yaml:"matrix" toml:"matrix"`
}

// MatrixConfig holds Matrix room notification configuration
type MatrixConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Homeserver  string `yaml:"homeserver" toml:"homeserver"`
	UserID      string `yaml:"user_id" toml:"user_id"`
	AccessToken string `yaml:"access_token" toml:"access_token"`
	RoomID      string `yaml:"room_id" toml:"room_id"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded before decoding.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, formatFor(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw configuration bytes in the given format ("yaml" or "toml").
func Parse(data []byte, format string) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case "toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func formatFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if strings.HasPrefix(c.Database.DSN, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.Database.DSN = filepath.Join(home, c.Database.DSN[2:])
		}
	}
	if c.Auth.SessionDuration == 0 {
		c.Auth.SessionDuration = DefaultSessionDuration
	}
	if c.Auth.TokenDuration == 0 {
		c.Auth.TokenDuration = DefaultTokenDuration
	}
	if c.Assistant.BaseURL == "" {
		c.Assistant.BaseURL = DefaultAssistantBaseURL
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = DefaultAssistantModel
	}
	if c.Assistant.Timeout == 0 {
		c.Assistant.Timeout = DefaultAssistantTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverSQLite3, DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q is not supported (use sqlite, sqlite3 or postgres)", c.Database.Driver)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecretLen)
	}

	if c.Notifications.Matrix.Enabled {
		m := c.Notifications.Matrix
		if m.Homeserver == "" || m.UserID == "" || m.AccessToken == "" || m.RoomID == "" {
			return fmt.Errorf("notifications.matrix requires homeserver, user_id, access_token and room_id when enabled")
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.SessionDurationRaw != "" {
		cfg.Auth.SessionDuration, err = time.ParseDuration(cfg.Auth.SessionDurationRaw)
		if err != nil {
			return fmt.Errorf("parsing session_duration %q: %w", cfg.Auth.SessionDurationRaw, err)
		}
	}

	if cfg.Auth.TokenDurationRaw != "" {
		cfg.Auth.TokenDuration, err = time.ParseDuration(cfg.Auth.TokenDurationRaw)
		if err != nil {
			return fmt.Errorf("parsing token_duration %q: %w", cfg.Auth.TokenDurationRaw, err)
		}
	}

	if cfg.Assistant.TimeoutRaw != "" {
		cfg.Assistant.Timeout, err = time.ParseDuration(cfg.Assistant.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing assistant timeout %q: %w", cfg.Assistant.TimeoutRaw, err)
		}
	}

	return nil
}

// Example returns a commented starter configuration in YAML.
func Example(dbPath string) string {
	return fmt.Sprintf(`# taskboard configuration
server:
  http_addr: "127.0.0.1:8080"

database:
  driver: "sqlite"          # sqlite, sqlite3 (cgo) or postgres
  dsn: %q
  cascade_deletes: true

auth:
  jwt_secret: "${TASKBOARD_JWT_SECRET}"
  session_duration: "168h"
  token_duration: "24h"
  allow_signup: true

assistant:
  api_key: "${OPENAI_API_KEY}"
  model: "gpt-4o"
  timeout: "60s"

notifications:
  matrix:
    enabled: false

logging:
  level: "info"
  format: "text"
`, dbPath)
}
