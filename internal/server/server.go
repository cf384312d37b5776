// ABOUTME: Server orchestrator that wires the store, identity, gateway, assistant and HTTP surfaces
// ABOUTME: Owns the HTTP listener (TCP or Tailscale), health endpoints and graceful shutdown

package server

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/taskboard/internal/api"
	"github.com/2389/taskboard/internal/assistant"
	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/config"
	"github.com/2389/taskboard/internal/notify"
	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
	"github.com/2389/taskboard/internal/webui"
)

const (
	shutdownTimeout        = 5 * time.Second
	sessionCleanupInterval = time.Hour
)

// Server runs taskboard: the web UI, the JSON API and the chat proxy on one
// HTTP listener.
type Server struct {
	config      *config.Config
	store       store.Store
	identity    *auth.Service
	notifier    notify.Notifier
	ui          *webui.UI
	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// determineBaseURL resolves the external URL from config, environment or
// the listen address.
func determineBaseURL(cfg *config.Config, logger *slog.Logger) string {
	if cfg.Server.BaseURL != "" {
		return cfg.Server.BaseURL
	}
	if envURL := os.Getenv("TASKBOARD_URL"); envURL != "" {
		return envURL
	}
	if !cfg.Tailscale.Enabled {
		return "http://" + cfg.Server.HTTPAddr
	}
	if cfg.Tailscale.HTTPS {
		logger.Warn("server.base_url/TASKBOARD_URL not set - passkeys may fail. Set TASKBOARD_URL to the full tailnet URL (e.g., https://taskboard.your-tailnet.ts.net)")
		return "https://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Tailscale.Hostname
}

// jwtSecret returns the configured secret or a random one. A random secret
// invalidates every API token on restart.
func jwtSecret(cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	if cfg.Auth.JWTSecret != "" {
		return []byte(cfg.Auth.JWTSecret), nil
	}
	secret := make([]byte, auth.MinSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating jwt secret: %w", err)
	}
	logger.Warn("auth.jwt_secret not set - using a random secret, API tokens will not survive a restart")
	return secret, nil
}

// initNotifier returns the configured activity notifier.
func initNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	m := cfg.Notifications.Matrix
	if !m.Enabled {
		return notify.Nop{}, nil
	}
	n, err := notify.NewMatrixNotifier(notify.MatrixConfig{
		Homeserver:  m.Homeserver,
		UserID:      m.UserID,
		AccessToken: m.AccessToken,
		RoomID:      m.RoomID,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("matrix notifications enabled", "room_id", m.RoomID)
	return notify.NewDeduper(n, notify.DefaultDedupeWindow), nil
}

// New opens the configured database and builds a Server around it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, store.Options{
		CascadeDeletes: cfg.Database.Cascade(),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	s, err := NewWithStore(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore builds a Server on an already open store. The server owns st
// and closes it on shutdown.
func NewWithStore(cfg *config.Config, st store.Store, logger *slog.Logger) (*Server, error) {
	secret, err := jwtSecret(cfg, logger)
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewJWTVerifier(secret)
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}
	identity := auth.NewService(st, verifier, auth.Options{
		SessionDuration: cfg.Auth.SessionDuration,
		TokenDuration:   cfg.Auth.TokenDuration,
		AllowSignup:     cfg.Auth.SignupAllowed(),
	})

	notifier, err := initNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	gw := tracker.New(st, identity, notifier)

	client := assistant.NewOpenAIClient(assistant.ClientConfig{
		BaseURL: cfg.Assistant.BaseURL,
		APIKey:  cfg.Assistant.APIKey,
		Model:   cfg.Assistant.Model,
		Timeout: cfg.Assistant.Timeout,
	})
	if !client.HasAPIKey() {
		logger.Warn("assistant.api_key not set - chat requests will fail until one is configured")
	}
	proxy := assistant.NewProxy(client)
	widget := assistant.NewWidget(proxy, gw)

	s := &Server{
		config:   cfg,
		store:    st,
		identity: identity,
		notifier: notifier,
		logger:   logger.With("component", "server"),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	api.New(gw, identity, proxy).Register(mux)

	baseURL := determineBaseURL(cfg, logger)
	s.ui = webui.New(gw, identity, widget, st, webui.Config{
		BaseURL:        baseURL,
		CascadeDeletes: cfg.Database.Cascade(),
	})
	s.ui.RegisterRoutes(mux)
	logger.Info("web UI enabled", "base_url", baseURL)

	s.handler = mux
	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupListener creates the HTTP listener (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run serves until ctx is canceled or the listener fails, then shuts down.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go s.identity.RunCleanup(cleanupCtx, sessionCleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// the caller's context is already done, so shut down on a fresh one
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "taskboard", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :443 (with tailnet
// certificates) or :80.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	if !tsCfg.HTTPS {
		ln, err := s.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}

	s.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := s.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases every resource.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	if s.ui != nil {
		s.ui.Close()
	}
	if c, ok := s.notifier.(interface{ Close() error }); ok {
		errs = appendCloseError(errs, "notifier close", c.Close())
	}
	errs = appendCloseError(errs, "store close", s.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
