// ABOUTME: Entry point for the taskboard server
// ABOUTME: serve, init, health and useradd commands over the config, store and server packages

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/config"
	"github.com/2389/taskboard/internal/server"
	"github.com/2389/taskboard/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _            _    _                         _
 | |_ __ _ ___| | _| |__   ___   __ _ _ __ __| |
 | __/ _' / __| |/ / '_ \ / _ \ / _' | '__/ _' |
 | || (_| \__ \   <| |_) | (_) | (_| | | | (_| |
  \__\__,_|___/_|\_\_.__/ \___/ \__,_|_|  \__,_|
`

// getConfigPath returns the path to the server config file.
// Priority: TASKBOARD_CONFIG > XDG_CONFIG_HOME/taskboard/config.yaml > ~/.config/taskboard/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("TASKBOARD_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "taskboard", "config.yaml")
}

// getDataPath returns the taskboard data directory.
// Priority: XDG_DATA_HOME/taskboard > ~/.local/share/taskboard
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "taskboard")
}

func usage() {
	fmt.Println("Usage: taskboard <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                          Start the server")
	fmt.Println("  init                           Create a new config file interactively")
	fmt.Println("  useradd --email E [--name N]   Create an account (password read from the terminal or stdin)")
	fmt.Println("  health                         Check server health")
	fmt.Println("  version                        Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "useradd":
		err = runUserAdd(ctx, os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.Assistant.APIKey == "" {
		green.Print("    ▶ ")
		yellow.Println("Assistant: no API key, chat requests will fail")
	}
	fmt.Println()

	logger.Info("starting taskboard",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"driver", cfg.Database.Driver,
	)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	fmt.Println("healthy")
	return nil
}

// runUserAdd creates an account directly in the database, bypassing the
// sign-up setting. When a JWT secret is configured it also starts a session
// and saves its token next to the config file for taskboard-admin.
func runUserAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	email := fs.String("email", "", "account email (required)")
	name := fs.String("name", "", "display name")
	passwordStdin := fs.Bool("password-stdin", false, "read the password from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email flag is required")
	}

	password, err := readPassword(*passwordStdin)
	if err != nil {
		return err
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, store.Options{CascadeDeletes: cfg.Database.Cascade()})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	var verifier *auth.JWTVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier, err = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return fmt.Errorf("creating JWT verifier: %w", err)
		}
	}
	identity := auth.NewService(st, verifier, auth.Options{
		SessionDuration: cfg.Auth.SessionDuration,
		TokenDuration:   cfg.Auth.TokenDuration,
	})

	user, err := identity.CreateUser(ctx, *email, password, *name)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created user: %s (%s)\n", user.Email, user.ID)

	if verifier == nil {
		color.New(color.FgYellow).Println("  auth.jwt_secret not set, no API token saved. Use: taskboard-admin login")
		return nil
	}

	sess, err := identity.StartSession(ctx, user)
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(sess.Token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	green.Printf("  ✓ Saved token: %s (expires %s)\n", tokenPath, sess.TokenExpiresAt.Format("Jan 02, 2006"))
	return nil
}

func readPassword(fromStdin bool) (string, error) {
	var password string
	if fromStdin || !term.IsTerminal(int(os.Stdin.Fd())) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	} else {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}
	if len(password) < auth.MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	}
	return password, nil
}

// runInit asks a few questions and writes a starter config with a fresh
// JWT secret.
func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "taskboard configuration setup")
	fmt.Fprintln(out, "=============================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", getConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Server ---")
	httpAddr := prompt(reader, out, "HTTP address", "127.0.0.1:8080")

	fmt.Fprintln(out, "\n--- Database ---")
	driver := prompt(reader, out, "Driver (sqlite/sqlite3/postgres)", config.DriverSQLite)
	defaultDSN := filepath.Join(getDataPath(), "taskboard.db")
	if driver == config.DriverPostgres {
		defaultDSN = "postgres://taskboard@localhost:5432/taskboard?sslmode=disable"
	}
	dsn := prompt(reader, out, "DSN", defaultDSN)

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	content := renderConfig(config.Example(dsn), httpAddr, driver, secret)

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if driver != config.DriverPostgres {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nNext:")
	fmt.Fprintln(out, "  taskboard useradd --email you@example.com")
	fmt.Fprintln(out, "  taskboard serve")
	return nil
}

// renderConfig fills the example config with the answers from init.
func renderConfig(example, httpAddr, driver, secret string) string {
	content := strings.Replace(example, `http_addr: "127.0.0.1:8080"`, fmt.Sprintf("http_addr: %q", httpAddr), 1)
	content = strings.Replace(content, `driver: "sqlite"`, fmt.Sprintf("driver: %q", driver), 1)
	content = strings.Replace(content, `jwt_secret: "${TASKBOARD_JWT_SECRET}"`, fmt.Sprintf("jwt_secret: %q", secret), 1)
	return content
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "y" || s == "yes"
}
