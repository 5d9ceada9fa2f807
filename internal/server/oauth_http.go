package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calweather/internal/logging"
)

const (
	// MCPEndpointPath is where the MCP streamable HTTP transport is served.
	MCPEndpointPath = "/mcp"

	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// HTTPConfig configures an HTTPServer.
type HTTPConfig struct {
	Addr string

	// RateLimiter guards the authentication routes. Nil disables limiting.
	RateLimiter *RateLimiter

	// DisableStreaming turns off SSE responses on the MCP endpoint.
	DisableStreaming bool

	TLSCertFile string
	TLSKeyFile  string
}

// HTTPServer serves the login endpoints and the session protected MCP
// endpoint.
type HTTPServer struct {
	sc         *ServerContext
	mcpServer  *mcpserver.MCPServer
	config     HTTPConfig
	health     *HealthChecker
	httpServer *http.Server
}

// NewHTTPServer creates an HTTPServer. The base URL must use HTTPS unless it
// points at a loopback host.
func NewHTTPServer(sc *ServerContext, mcpServer *mcpserver.MCPServer, config HTTPConfig) (*HTTPServer, error) {
	if err := validateHTTPSRequirement(sc.BaseURL()); err != nil {
		return nil, err
	}
	if (config.TLSCertFile == "") != (config.TLSKeyFile == "") {
		return nil, errors.New("both TLS certificate and key files must be provided")
	}

	s := &HTTPServer{
		sc:        sc,
		mcpServer: mcpServer,
		config:    config,
		health:    NewHealthChecker(sc),
	}
	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	// SSE responses stay open longer than any fixed write deadline.
	if config.DisableStreaming {
		s.httpServer.WriteTimeout = writeTimeout
	}
	return s, nil
}

// Handler returns the root handler with all routes registered.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := NewAuthHandler(s.sc)
	limit := s.config.RateLimiter.Middleware

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /auth/start", limit(http.HandlerFunc(auth.HandleStart)))
	mux.Handle("GET /auth/callback", limit(http.HandlerFunc(auth.HandleCallback)))
	mux.Handle("GET /setup", limit(http.HandlerFunc(auth.HandleSetup)))
	mux.Handle("POST /auth/logout", limit(http.HandlerFunc(auth.HandleLogout)))

	opts := []mcpserver.StreamableHTTPOption{mcpserver.WithEndpointPath(MCPEndpointPath)}
	if s.config.DisableStreaming {
		opts = append(opts, mcpserver.WithDisableStreaming(true))
	}
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer, opts...)
	mux.Handle(MCPEndpointPath, s.sc.Sessions().RequireSession(streamable))

	s.health.RegisterHealthEndpoints(mux)

	return s.metricsMiddleware(mux)
}

// IndexResponse lists the public entry points.
type IndexResponse struct {
	Name     string `json:"name"`
	Login    string `json:"login"`
	Setup    string `json:"setup"`
	Endpoint string `json:"mcp_endpoint"`
}

func (s *HTTPServer) handleIndex(w http.ResponseWriter, _ *http.Request) {
	base := s.sc.BaseURL()
	writeJSON(w, http.StatusOK, IndexResponse{
		Name:     MCPServerName,
		Login:    base + "/auth/start",
		Setup:    base + "/setup?code=<exchange_code>",
		Endpoint: base + MCPEndpointPath,
	})
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *HTTPServer) Start() error {
	s.sc.Logger().Info("Starting HTTP server",
		logging.Operation("server.start"),
		"addr", s.config.Addr,
		"base_url", s.sc.BaseURL(),
		"tls", s.config.TLSCertFile != "",
	)
	if s.config.TLSCertFile != "" {
		return s.httpServer.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server not ready and drains connections.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (s *HTTPServer) metricsMiddleware(next http.Handler) http.Handler {
	metrics := s.sc.Metrics()
	if metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r.URL.Path), rec.statusCode, time.Since(start))
	})
}

// routeLabel bounds the path label to the known routes.
func routeLabel(path string) string {
	switch path {
	case "/", "/auth/start", "/auth/callback", "/auth/logout", "/setup", MCPEndpointPath,
		"/healthz", "/readyz", "/healthz/detailed":
		return path
	default:
		return "other"
	}
}

// validateHTTPSRequirement allows plain HTTP only for loopback hosts.
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("HTTPS is required outside local development (got: %s). Use HTTPS or localhost for development", baseURL)
		}
		return nil
	default:
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}
}
