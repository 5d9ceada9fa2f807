package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teemow/calweather/internal/instrumentation"
	"github.com/teemow/calweather/internal/logging"
	"github.com/teemow/calweather/internal/store"
)

const (
	// DefaultDuration is the lifetime of a session credential.
	DefaultDuration = 24 * time.Hour

	// DefaultExchangeCodeTTL is the lifetime of an exchange code.
	DefaultExchangeCodeTTL = 5 * time.Minute

	// SigningKeyLength is the size of a generated signing key in bytes.
	SigningKeyLength = 32

	exchangeCodeBytes = 32
)

// ErrInvalidCredential marks a credential that failed verification. It is
// only used for logging; callers see a plain false.
var ErrInvalidCredential = errors.New("invalid session credential")

// Claims are the JWT claims of a session credential.
type Claims struct {
	Email string `json:"email"`
	jwtlib.RegisteredClaims
}

// Config configures a Manager.
type Config struct {
	SigningKey      []byte
	Duration        time.Duration
	ExchangeCodeTTL time.Duration
}

// GenerateSigningKey returns a random HS256 key.
func GenerateSigningKey() ([]byte, error) {
	key := make([]byte, SigningKeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return key, nil
}

// Manager creates, verifies and revokes sessions and exchange codes.
type Manager struct {
	key             []byte
	duration        time.Duration
	exchangeCodeTTL time.Duration
	store           store.Store
	now             func() time.Time
	logger          *slog.Logger
	metrics         *instrumentation.Metrics
	audit           *instrumentation.AuditLogger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithNowFunc replaces the clock.
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(mt *instrumentation.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(a *instrumentation.AuditLogger) Option {
	return func(m *Manager) { m.audit = a }
}

// NewManager creates a Manager. The signing key must not be empty.
func NewManager(cfg Config, st store.Store, opts ...Option) (*Manager, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("session signing key is required")
	}
	if st == nil {
		return nil, errors.New("session store is required")
	}
	m := &Manager{
		key:             cfg.SigningKey,
		duration:        cfg.Duration,
		exchangeCodeTTL: cfg.ExchangeCodeTTL,
		store:           st,
		now:             time.Now,
		logger:          slog.Default(),
	}
	if m.duration <= 0 {
		m.duration = DefaultDuration
	}
	if m.exchangeCodeTTL <= 0 {
		m.exchangeCodeTTL = DefaultExchangeCodeTTL
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.WithComponent(m.logger, "session")
	return m, nil
}

// Duration returns the lifetime of new sessions.
func (m *Manager) Duration() time.Duration {
	return m.duration
}

// CreateSession persists a new session for the user and returns its signed
// credential.
func (m *Manager) CreateSession(ctx context.Context, userSub, userEmail string) (string, error) {
	now := m.now().UTC()
	jti := uuid.New().String()
	expiresAt := now.Add(m.duration)

	rec := store.SessionRecord{
		JTI:       jti,
		UserSub:   userSub,
		UserEmail: userEmail,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := m.store.SaveSession(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}

	claims := Claims{
		Email: userEmail,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        jti,
			Subject:   userSub,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}

	m.metrics.RecordSessionIssued(ctx)
	m.audit.LogAuthEvent(instrumentation.AuthEvent{
		Event:     instrumentation.AuthEventSessionIssued,
		UserSub:   userSub,
		UserEmail: userEmail,
	})
	return signed, nil
}

// VerifySession returns the claims of a valid credential. A credential is
// valid when its HS256 signature checks out, its exp claim has not passed,
// it carries a jti, and the session record exists, is not revoked and has
// not expired. Every failure yields (nil, false).
func (m *Manager) VerifySession(ctx context.Context, credential string) (*Claims, bool) {
	claims, err := m.verify(ctx, credential)
	if err != nil {
		m.logger.Debug("session rejected", logging.Err(err))
		m.metrics.RecordSessionVerification(ctx, instrumentation.ResultInvalid)
		return nil, false
	}
	m.metrics.RecordSessionVerification(ctx, instrumentation.ResultValid)
	return claims, true
}

func (m *Manager) verify(ctx context.Context, credential string) (*Claims, error) {
	claims, err := m.parse(credential,
		jwtlib.WithTimeFunc(m.now),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	rec, err := m.store.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: session lookup: %w", ErrInvalidCredential, err)
	}
	if rec.Revoked {
		return nil, fmt.Errorf("%w: session revoked", ErrInvalidCredential)
	}
	if m.now().After(rec.ExpiresAt) {
		return nil, fmt.Errorf("%w: session record expired", ErrInvalidCredential)
	}
	return claims, nil
}

// parse checks the signature and algorithm and requires a jti.
func (m *Manager) parse(credential string, opts ...jwtlib.ParserOption) (*Claims, error) {
	opts = append(opts, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	parser := jwtlib.NewParser(opts...)

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(credential, claims, m.keyFunc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidCredential)
	}
	return claims, nil
}

func (m *Manager) keyFunc(*jwtlib.Token) (any, error) {
	return m.key, nil
}

// RevokeSession marks the session named by credential as revoked. Only the
// signature is checked, so expired credentials can still be revoked. It
// reports false when the credential cannot be parsed or the store fails.
func (m *Manager) RevokeSession(ctx context.Context, credential string) bool {
	claims, err := m.parse(credential, jwtlib.WithoutClaimsValidation())
	if err != nil {
		m.logger.Debug("revoke rejected", logging.Err(err))
		return false
	}
	if err := m.store.RevokeSession(ctx, claims.ID); err != nil {
		m.logger.Error("failed to revoke session", logging.Err(err))
		return false
	}

	m.metrics.RecordSessionRevoked(ctx)
	m.audit.LogAuthEvent(instrumentation.AuthEvent{
		Event:     instrumentation.AuthEventSessionRevoked,
		UserSub:   claims.Subject,
		UserEmail: claims.Email,
	})
	return true
}

// CreateExchangeCode stores a new single-use exchange code for the user.
func (m *Manager) CreateExchangeCode(ctx context.Context, userSub string) (string, error) {
	buf := make([]byte, exchangeCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate exchange code: %w", err)
	}
	code := base64.RawURLEncoding.EncodeToString(buf)

	now := m.now().UTC()
	rec := store.ExchangeCodeRecord{
		Code:      code,
		UserSub:   userSub,
		ExpiresAt: now.Add(m.exchangeCodeTTL),
		CreatedAt: now,
	}
	if err := m.store.SaveExchangeCode(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to persist exchange code: %w", err)
	}
	return code, nil
}

// RedeemExchangeCode consumes code and returns a new session credential for
// its user. Unknown, expired and already used codes yield ("", false).
func (m *Manager) RedeemExchangeCode(ctx context.Context, code string) (string, bool) {
	userSub, err := m.store.ConsumeExchangeCode(ctx, code, m.now())
	if err != nil {
		if !errors.Is(err, store.ErrExchangeCodeInvalid) {
			m.logger.Error("failed to consume exchange code", logging.Err(err))
		}
		m.metrics.RecordExchangeCodeRedemption(ctx, instrumentation.ResultInvalid)
		m.audit.LogAuthEvent(instrumentation.AuthEvent{
			Event:  instrumentation.AuthEventSetupRejected,
			Reason: "exchange code invalid",
		})
		return "", false
	}

	var email string
	if rec, err := m.store.GetUserTokens(ctx, userSub); err == nil {
		email = rec.UserEmail
	} else {
		m.logger.Debug("no email for exchange code subject", logging.SubjectHash(userSub), logging.Err(err))
	}

	credential, err := m.CreateSession(ctx, userSub, email)
	if err != nil {
		m.logger.Error("failed to create session for exchange code", logging.Err(err))
		m.metrics.RecordExchangeCodeRedemption(ctx, instrumentation.ResultFailure)
		return "", false
	}

	m.metrics.RecordExchangeCodeRedemption(ctx, instrumentation.ResultSuccess)
	m.audit.LogAuthEvent(instrumentation.AuthEvent{
		Event:     instrumentation.AuthEventCodeRedeemed,
		UserSub:   userSub,
		UserEmail: email,
	})
	return credential, true
}
