package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/api/option"

	"github.com/teemow/calweather/internal/calendar"
	"github.com/teemow/calweather/internal/google"
	"github.com/teemow/calweather/internal/instrumentation"
	"github.com/teemow/calweather/internal/oauth"
	"github.com/teemow/calweather/internal/session"
	"github.com/teemow/calweather/internal/store"
	"github.com/teemow/calweather/internal/weather"
)

// Config lists the collaborators of a ServerContext.
type Config struct {
	// BaseURL is the public URL of the server, used in MCP client configs.
	BaseURL string

	Store    store.Store
	Flow     *oauth.FlowManager
	Sessions *session.Manager

	// Tokens provides Google tokens for tool calls. Defaults to Flow.
	Tokens google.TokenProvider

	Weather *weather.Client

	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger
	Logger      *slog.Logger

	// CalendarOptions are appended to every Calendar client's options.
	CalendarOptions []option.ClientOption
}

// ServerContext holds the long-lived dependencies shared by the HTTP
// handlers and the MCP tools.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	config Config
	logger *slog.Logger

	calendarClients map[string]*calendar.Client // keyed by user subject
	mu              sync.RWMutex
	shutdown        bool
}

// NewServerContext creates a ServerContext. Store and Sessions are required.
func NewServerContext(ctx context.Context, config Config) (*ServerContext, error) {
	if config.Store == nil {
		return nil, errors.New("store is required")
	}
	if config.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if config.Tokens == nil && config.Flow != nil {
		config.Tokens = config.Flow
	}
	if config.Weather == nil {
		config.Weather = weather.NewClient("", weather.WithMetrics(config.Metrics))
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		config:          config,
		logger:          logger,
		calendarClients: make(map[string]*calendar.Client),
	}, nil
}

// Context returns the server context. It is cancelled on Shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// BaseURL returns the public base URL.
func (sc *ServerContext) BaseURL() string {
	return sc.config.BaseURL
}

// Store returns the credential store.
func (sc *ServerContext) Store() store.Store {
	return sc.config.Store
}

// Flow returns the OAuth flow manager. It is nil when Google is not configured.
func (sc *ServerContext) Flow() *oauth.FlowManager {
	return sc.config.Flow
}

// Sessions returns the session manager.
func (sc *ServerContext) Sessions() *session.Manager {
	return sc.config.Sessions
}

// Weather returns the OpenWeatherMap client.
func (sc *ServerContext) Weather() *weather.Client {
	return sc.config.Weather
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.config.Metrics
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.config.AuditLogger
}

// Logger returns the logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// HasValidToken reports whether a usable Google access token exists for the
// user, refreshing it when needed.
func (sc *ServerContext) HasValidToken(ctx context.Context, userSub string) bool {
	if sc.config.Tokens == nil || userSub == "" {
		return false
	}
	_, err := sc.config.Tokens.TokenSource(ctx, userSub).Token()
	return err == nil
}

// CalendarClientForUser returns the Calendar client of a user, creating and
// caching it on first use.
func (sc *ServerContext) CalendarClientForUser(userSub string) (*calendar.Client, error) {
	if sc.config.Tokens == nil {
		return nil, oauth.ErrReauthenticationRequired
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.calendarClients[userSub]; ok {
		return client, nil
	}

	httpClient := google.NewHTTPClient(sc.ctx, sc.config.Tokens.TokenSource(sc.ctx, userSub))
	client, err := calendar.NewClient(sc.ctx, httpClient, sc.config.Metrics, sc.config.CalendarOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar client: %w", err)
	}
	sc.calendarClients[userSub] = client
	return client, nil
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
