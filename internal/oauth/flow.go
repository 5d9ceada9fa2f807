package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/teemow/calweather/internal/instrumentation"
	"github.com/teemow/calweather/internal/logging"
	"github.com/teemow/calweather/internal/store"
)

// FlowConfig describes the OAuth client registered with the provider.
type FlowConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

// FlowManager runs the authorization-code flow and keeps each user's
// provider access token fresh.
type FlowManager struct {
	config      *oauth2.Config
	userInfoURL string
	cache       ChallengeCache
	store       store.Store
	httpClient  *http.Client
	now         func() time.Time
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	audit       *instrumentation.AuditLogger

	refreshGroup singleflight.Group
}

// FlowOption customizes a FlowManager.
type FlowOption func(*FlowManager)

// WithHTTPClient sets the client used for all provider calls.
func WithHTTPClient(c *http.Client) FlowOption {
	return func(f *FlowManager) { f.httpClient = c }
}

// WithNowFunc replaces the clock.
func WithNowFunc(now func() time.Time) FlowOption {
	return func(f *FlowManager) { f.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) FlowOption {
	return func(f *FlowManager) { f.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) FlowOption {
	return func(f *FlowManager) { f.metrics = m }
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(a *instrumentation.AuditLogger) FlowOption {
	return func(f *FlowManager) { f.audit = a }
}

// NewFlowManager creates a FlowManager.
func NewFlowManager(cfg FlowConfig, cache ChallengeCache, st store.Store, opts ...FlowOption) *FlowManager {
	f := &FlowManager{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		cache:       cache,
		store:       st,
		httpClient:  &http.Client{Timeout: DefaultHTTPTimeout},
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.WithComponent(f.logger, "oauth")
	return f
}

// Configured reports whether client credentials are present.
func (f *FlowManager) Configured() bool {
	return f.config.ClientID != "" && f.config.ClientSecret != ""
}

// BeginAuthorization records a new PKCE challenge and returns the provider's
// consent URL. Offline access and an explicit consent prompt are requested so
// that a refresh token is issued.
func (f *FlowManager) BeginAuthorization(ctx context.Context) (string, error) {
	state, challenge, err := f.cache.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create PKCE challenge: %w", err)
	}

	return f.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", CodeChallengeMethodS256),
	), nil
}

// CompleteAuthorization finishes the flow started by BeginAuthorization.
// It returns ErrInvalidState for an unknown or reused state and
// ErrTokenExchangeFailed when the provider rejects the code or the
// userinfo request.
func (f *FlowManager) CompleteAuthorization(ctx context.Context, code, state string) (*Identity, error) {
	identity, err := f.completeAuthorization(ctx, code, state)
	if err != nil {
		f.metrics.RecordOAuthAuth(ctx, instrumentation.ResultFailure)
		f.logger.Warn("Authorization failed", logging.Operation("oauth.callback"), logging.Err(err))
		return nil, err
	}
	f.metrics.RecordOAuthAuth(ctx, instrumentation.ResultSuccess)
	f.audit.LogAuthEvent(instrumentation.AuthEvent{
		Event:     instrumentation.AuthEventLogin,
		UserSub:   identity.Subject,
		UserEmail: identity.Email,
	})
	return identity, nil
}

func (f *FlowManager) completeAuthorization(ctx context.Context, code, state string) (*Identity, error) {
	verifier, err := f.cache.Consume(ctx, state)
	if err != nil {
		return nil, err
	}

	token, err := f.exchange(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	info, err := f.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	now := f.now()
	rec := store.UserTokenRecord{
		UserSub:        info.Sub,
		UserEmail:      info.Email,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: now.Add(tokenLifetime(token)),
		UpdatedAt:      now,
	}
	if rec.RefreshToken == "" {
		if prev, err := f.store.GetUserTokens(ctx, info.Sub); err == nil {
			rec.RefreshToken = prev.RefreshToken
		}
	}
	if err := f.store.SaveUserTokens(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store user tokens: %w", err)
	}

	f.logger.Info("User authorized",
		logging.SubjectHash(info.Sub),
		logging.UserHash(info.Email),
		slog.Bool("has_refresh_token", rec.RefreshToken != ""))

	return &Identity{Subject: info.Sub, Email: info.Email, Name: info.Name}, nil
}

func (f *FlowManager) exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	ctx, span := instrumentation.StartUpstreamSpan(ctx, instrumentation.ServiceGoogleOAuth, instrumentation.OperationTokenExchange)
	defer span.End()
	start := time.Now()

	token, err := f.config.Exchange(f.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		f.metrics.RecordUpstreamOperation(ctx, instrumentation.ServiceGoogleOAuth, instrumentation.OperationTokenExchange, instrumentation.StatusError, time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	f.metrics.RecordUpstreamOperation(ctx, instrumentation.ServiceGoogleOAuth, instrumentation.OperationTokenExchange, instrumentation.StatusSuccess, time.Since(start))
	return token, nil
}

func (f *FlowManager) fetchUserInfo(ctx context.Context, accessToken string) (info *GoogleUserInfo, err error) {
	ctx, span := instrumentation.StartUpstreamSpan(ctx, instrumentation.ServiceGoogleOAuth, instrumentation.OperationUserInfo)
	defer span.End()
	start := time.Now()
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		}
		f.metrics.RecordUpstreamOperation(ctx, instrumentation.ServiceGoogleOAuth, instrumentation.OperationUserInfo, status, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo request: %v", ErrTokenExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: userinfo returned %d: %s", ErrTokenExchangeFailed, resp.StatusCode, body)
	}

	info = &GoogleUserInfo{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		return nil, fmt.Errorf("%w: decoding userinfo: %v", ErrTokenExchangeFailed, err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: userinfo has no subject", ErrTokenExchangeFailed)
	}
	return info, nil
}

// Refresh obtains a new access token for userSub using its stored refresh
// token and persists it. It makes no network call when the user or refresh
// token is unknown. Failures are not retried and yield ("", false).
func (f *FlowManager) Refresh(ctx context.Context, userSub string) (string, bool) {
	logger := f.logger.With(logging.Operation("oauth.refresh"), logging.SubjectHash(userSub))

	rec, err := f.store.GetUserTokens(ctx, userSub)
	if err != nil || rec.RefreshToken == "" {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Warn("Failed to load user tokens", logging.Err(err))
		}
		f.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.ResultSkipped)
		return "", false
	}

	ctx, span := instrumentation.StartUpstreamSpan(ctx, instrumentation.ServiceGoogleOAuth, instrumentation.OperationRefresh)
	defer span.End()
	start := time.Now()

	// An empty access token forces the token source to refresh.
	token, err := f.config.TokenSource(f.clientContext(ctx), &oauth2.Token{RefreshToken: rec.RefreshToken}).Token()
	if err != nil {
		instrumentation.SetSpanError(span, err)
		f.metrics.RecordUpstreamOperation(ctx, instrumentation.ServiceGoogleOAuth, instrumentation.OperationRefresh, instrumentation.StatusError, time.Since(start))
		f.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.ResultFailure)
		f.audit.LogAuthEvent(instrumentation.AuthEvent{
			Event:     instrumentation.AuthEventRefreshFailed,
			UserSub:   userSub,
			UserEmail: rec.UserEmail,
		})
		logger.Warn("Token refresh failed", logging.Err(err))
		return "", false
	}
	f.metrics.RecordUpstreamOperation(ctx, instrumentation.ServiceGoogleOAuth, instrumentation.OperationRefresh, instrumentation.StatusSuccess, time.Since(start))
	f.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.ResultSuccess)

	now := f.now()
	updated := *rec
	updated.AccessToken = token.AccessToken
	updated.TokenExpiresAt = now.Add(tokenLifetime(token))
	updated.UpdatedAt = now
	if token.RefreshToken != "" {
		updated.RefreshToken = token.RefreshToken
	}
	if err := f.store.SaveUserTokens(ctx, updated); err != nil {
		logger.Warn("Failed to save refreshed token", logging.Err(err))
	}

	logger.Debug("Token refreshed", slog.Time("expires_at", updated.TokenExpiresAt))
	return token.AccessToken, true
}

// GetValidAccessToken returns an access token for userSub that does not
// expire within TokenRefreshThreshold, refreshing it when needed.
// Concurrent refreshes for the same user are coalesced. The shared refresh
// does not follow the caller's cancellation, since other callers may be
// waiting on it; the HTTP client timeout bounds it instead.
func (f *FlowManager) GetValidAccessToken(ctx context.Context, userSub string) (string, bool) {
	rec, err := f.store.GetUserTokens(ctx, userSub)
	if err != nil {
		return "", false
	}
	if f.now().Before(rec.TokenExpiresAt.Add(-TokenRefreshThreshold)) {
		return rec.AccessToken, true
	}

	v, _, _ := f.refreshGroup.Do(userSub, func() (any, error) {
		token, ok := f.Refresh(context.WithoutCancel(ctx), userSub)
		if !ok {
			return "", nil
		}
		return token, nil
	})
	token, _ := v.(string)
	return token, token != ""
}

// TokenSource adapts GetValidAccessToken for API clients.
func (f *FlowManager) TokenSource(ctx context.Context, userSub string) oauth2.TokenSource {
	return &userTokenSource{ctx: ctx, flow: f, userSub: userSub}
}

type userTokenSource struct {
	ctx     context.Context
	flow    *FlowManager
	userSub string
}

func (s *userTokenSource) Token() (*oauth2.Token, error) {
	token, ok := s.flow.GetValidAccessToken(s.ctx, s.userSub)
	if !ok {
		return nil, ErrReauthenticationRequired
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

func (f *FlowManager) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

// tokenLifetime reads expires_in from the token response, falling back to
// DefaultTokenLifetime when the provider omitted it.
func tokenLifetime(token *oauth2.Token) time.Duration {
	var seconds int64
	switch v := token.Extra("expires_in").(type) {
	case float64:
		seconds = int64(v)
	case int64:
		seconds = v
	case int:
		seconds = int64(v)
	case json.Number:
		seconds, _ = v.Int64()
	case string:
		seconds, _ = strconv.ParseInt(v, 10, 64)
	}
	if seconds <= 0 {
		return DefaultTokenLifetime
	}
	return time.Duration(seconds) * time.Second
}
