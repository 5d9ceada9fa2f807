package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/calweather/internal/google"
	"github.com/teemow/calweather/internal/instrumentation"
	"github.com/teemow/calweather/internal/logging"
	"github.com/teemow/calweather/internal/oauth"
	"github.com/teemow/calweather/internal/resources"
	"github.com/teemow/calweather/internal/server"
	"github.com/teemow/calweather/internal/session"
	"github.com/teemow/calweather/internal/store"
	"github.com/teemow/calweather/internal/tools/calendar_tools"
	"github.com/teemow/calweather/internal/tools/weather_tools"
	"github.com/teemow/calweather/internal/weather"
)

const (
	defaultBaseURL       = "http://localhost:8000"
	defaultPort          = 8000
	shutdownTimeout      = 30 * time.Second
	metricsStartTimeout  = 5 * time.Second
	metricsShutdownLimit = 10 * time.Second
)

// serveConfig holds the resolved settings of the serve command.
type serveConfig struct {
	BaseURL            string
	Port               int
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	OpenWeatherAPIKey  string
	JWTSigningKey      string
	SessionDuration    time.Duration
	DatabaseURL        string
	RedisURL           string
	PKCETTL            time.Duration
	PurgeInterval      time.Duration
	MetricsEnabled     bool
	MetricsAddr        string
	LogFormat          string
	Debug              bool
	TLSCertFile        string
	TLSKeyFile         string
	RateLimit          float64
	TrustProxy         bool
	DisableStreaming   bool
}

func newServeCmd() *cobra.Command {
	cfg := serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the HTTP server exposing the Google login endpoints and the session
protected MCP endpoint.

Login flow:
  1. Open <base-url>/auth/start in a browser and sign in with Google.
  2. The callback returns an MCP client config with a session credential and
     a one-time exchange code.
  3. Another device can redeem the code at <base-url>/setup?code=<code>.

Every flag can also be set through the environment variable named in its
help text. An explicitly set flag wins over the environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadServeEnv(cmd, &cfg); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	bindServeFlags(cmd, &cfg)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, cfg *serveConfig) {
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "base-url", defaultBaseURL, "Public base URL of the server. Can also use BASE_URL env var.")
	f.IntVar(&cfg.Port, "port", defaultPort, "Port to listen on. Can also use PORT env var.")
	f.StringVar(&cfg.GoogleClientID, "google-client-id", "", "Google OAuth client ID. Can also use GOOGLE_CLIENT_ID env var.")
	f.StringVar(&cfg.GoogleClientSecret, "google-client-secret", "", "Google OAuth client secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	f.StringVar(&cfg.GoogleRedirectURI, "google-redirect-uri", "", "OAuth redirect URI (default: <base-url>/auth/callback). Can also use GOOGLE_REDIRECT_URI env var.")
	f.StringVar(&cfg.OpenWeatherAPIKey, "openweather-api-key", "", "OpenWeatherMap API key. Can also use OPENWEATHER_API_KEY env var.")
	f.StringVar(&cfg.JWTSigningKey, "jwt-signing-key", "", "Secret for signing session credentials. A random key is generated when empty, invalidating sessions on restart. Can also use JWT_SIGNING_KEY env var.")
	f.DurationVar(&cfg.SessionDuration, "session-duration", session.DefaultDuration, "Session credential lifetime. Can also use SESSION_DURATION_HOURS env var (whole hours).")
	f.StringVar(&cfg.DatabaseURL, "database-url", "mcp_sessions.db", "Credential store: sqlite:///path, a file path, or 'memory'. Can also use DATABASE_URL env var.")
	f.StringVar(&cfg.RedisURL, "redis-url", "", "Redis URL for pending logins, shared between replicas (default: in memory). Can also use REDIS_URL env var.")
	f.DurationVar(&cfg.PKCETTL, "pkce-ttl", oauth.DefaultChallengeTTL, "How long a started login may wait for its callback. Can also use PKCE_TTL env var.")
	f.DurationVar(&cfg.PurgeInterval, "purge-interval", 0, "Interval for deleting expired sessions and exchange codes (0 disables). Can also use PURGE_INTERVAL env var.")
	f.BoolVar(&cfg.MetricsEnabled, "metrics-enabled", true, "Serve Prometheus metrics on a dedicated port. Can also use METRICS_ENABLED env var.")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")
	f.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json. Can also use LOG_FORMAT env var.")
	f.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	f.StringVar(&cfg.TLSCertFile, "tls-cert-file", "", "Path to TLS certificate file (PEM format). Can also use TLS_CERT_FILE env var.")
	f.StringVar(&cfg.TLSKeyFile, "tls-key-file", "", "Path to TLS private key file (PEM format). Can also use TLS_KEY_FILE env var.")
	f.Float64Var(&cfg.RateLimit, "rate-limit", server.DefaultRateLimit, "Requests per second per client IP on the login endpoints (0 disables). Can also use AUTH_RATE_LIMIT env var.")
	f.BoolVar(&cfg.TrustProxy, "trust-proxy", false, "Use X-Forwarded-For/X-Real-IP for rate limiting. Only enable behind a trusted proxy. Can also use TRUST_PROXY env var.")
	f.BoolVar(&cfg.DisableStreaming, "disable-streaming", false, "Disable SSE responses on the MCP endpoint")
}

func loadServeEnv(cmd *cobra.Command, cfg *serveConfig) error {
	envString(cmd, "base-url", "BASE_URL", &cfg.BaseURL)
	envString(cmd, "google-client-id", "GOOGLE_CLIENT_ID", &cfg.GoogleClientID)
	envString(cmd, "google-client-secret", "GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret)
	envString(cmd, "google-redirect-uri", "GOOGLE_REDIRECT_URI", &cfg.GoogleRedirectURI)
	envString(cmd, "openweather-api-key", "OPENWEATHER_API_KEY", &cfg.OpenWeatherAPIKey)
	envString(cmd, "jwt-signing-key", "JWT_SIGNING_KEY", &cfg.JWTSigningKey)
	envString(cmd, "database-url", "DATABASE_URL", &cfg.DatabaseURL)
	envString(cmd, "redis-url", "REDIS_URL", &cfg.RedisURL)
	envString(cmd, "metrics-addr", "METRICS_ADDR", &cfg.MetricsAddr)
	envString(cmd, "log-format", "LOG_FORMAT", &cfg.LogFormat)
	envString(cmd, "tls-cert-file", "TLS_CERT_FILE", &cfg.TLSCertFile)
	envString(cmd, "tls-key-file", "TLS_KEY_FILE", &cfg.TLSKeyFile)

	return errors.Join(
		envInt(cmd, "port", "PORT", &cfg.Port),
		envHours(cmd, "session-duration", "SESSION_DURATION_HOURS", &cfg.SessionDuration),
		envDuration(cmd, "pkce-ttl", "PKCE_TTL", &cfg.PKCETTL),
		envDuration(cmd, "purge-interval", "PURGE_INTERVAL", &cfg.PurgeInterval),
		envBool(cmd, "metrics-enabled", "METRICS_ENABLED", &cfg.MetricsEnabled),
		envFloat(cmd, "rate-limit", "AUTH_RATE_LIMIT", &cfg.RateLimit),
		envBool(cmd, "trust-proxy", "TRUST_PROXY", &cfg.TrustProxy),
	)
}

func runServe(cfg serveConfig) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.NewLogger(os.Stderr, cfg.LogFormat, cfg.Debug)
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation config: %w", err)
	}
	provider, err := instrumentation.NewProvider(ctx, instrConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	if cfg.MetricsEnabled && provider.Enabled() && provider.PrometheusEnabled() {
		metricsServer, err := startMetricsServer(cfg.MetricsAddr, provider, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownLimit)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	metrics := provider.Metrics()
	audit := instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging)

	st, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Error closing credential store", logging.Err(err))
		}
	}()

	cache, closeCache, err := newChallengeCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	creds := google.Credentials{ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret}
	if !creds.Configured() {
		logger.Warn("Google OAuth is not configured, logins are disabled",
			"hint", "set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}
	flowConfig := google.NewFlowConfig(creds, cfg.BaseURL)
	if cfg.GoogleRedirectURI != "" {
		flowConfig.RedirectURL = cfg.GoogleRedirectURI
	}
	flow := oauth.NewFlowManager(flowConfig, cache, st,
		oauth.WithLogger(logger),
		oauth.WithMetrics(metrics),
		oauth.WithAuditLogger(audit),
	)

	signingKey := []byte(cfg.JWTSigningKey)
	if len(signingKey) == 0 {
		signingKey, err = session.GenerateSigningKey()
		if err != nil {
			return fmt.Errorf("failed to generate signing key: %w", err)
		}
		logger.Warn("No JWT signing key configured, using a random key; sessions will not survive a restart",
			"hint", "set JWT_SIGNING_KEY")
	}
	sessions, err := session.NewManager(session.Config{
		SigningKey: signingKey,
		Duration:   cfg.SessionDuration,
	}, st,
		session.WithLogger(logger),
		session.WithMetrics(metrics),
		session.WithAuditLogger(audit),
	)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	weatherClient := weather.NewClient(cfg.OpenWeatherAPIKey, weather.WithMetrics(metrics))
	if !weatherClient.Configured() {
		logger.Warn("OpenWeatherMap API key not configured, weather tools will fail",
			"hint", "set OPENWEATHER_API_KEY")
	}

	serverContext, err := server.NewServerContext(ctx, server.Config{
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		Store:       st,
		Flow:        flow,
		Sessions:    sessions,
		Weather:     weatherClient,
		Metrics:     metrics,
		AuditLogger: audit,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("Error during server context shutdown", logging.Err(err))
		}
	}()

	mcpSrv := mcpserver.NewMCPServer(server.MCPServerName, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)
	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}
	if err := resources.RegisterUserResources(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}

	var limiter *server.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = server.NewRateLimiter(cfg.RateLimit, server.DefaultRateBurst, cfg.TrustProxy)
		defer limiter.Stop()
	}

	httpServer, err := server.NewHTTPServer(serverContext, mcpSrv, server.HTTPConfig{
		Addr:             fmt.Sprintf(":%d", cfg.Port),
		RateLimiter:      limiter,
		DisableStreaming: cfg.DisableStreaming,
		TLSCertFile:      cfg.TLSCertFile,
		TLSKeyFile:       cfg.TLSKeyFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	if cfg.PurgeInterval > 0 {
		go runPurgeLoop(ctx, st, cfg.PurgeInterval, logger)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

func startMetricsServer(addr string, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("Metrics server started", "addr", metricsServer.Addr())
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(metricsStartTimeout):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

// newChallengeCache returns the Redis cache when a URL is configured and an
// in-memory cache otherwise, plus a func releasing it.
func newChallengeCache(ctx context.Context, cfg serveConfig, logger *slog.Logger) (oauth.ChallengeCache, func(), error) {
	if cfg.RedisURL == "" {
		cache := oauth.NewMemoryChallengeCache(cfg.PKCETTL, logger)
		return cache, cache.Stop, nil
	}

	cache, err := oauth.NewRedisChallengeCache(ctx, oauth.RedisConfig{URL: cfg.RedisURL, TTL: cfg.PKCETTL}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return cache, func() {
		if err := cache.Close(); err != nil {
			logger.Error("Error closing Redis connection", logging.Err(err))
		}
	}, nil
}

func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, sc)
			},
		},
		{
			name: "Weather",
			register: func() error {
				return weather_tools.RegisterWeatherTools(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}

	return nil
}
