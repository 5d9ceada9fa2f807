package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrExchangeCodeInvalid is returned when an exchange code does not
	// exist, has expired or was already redeemed. The cases are not
	// distinguished.
	ErrExchangeCodeInvalid = errors.New("exchange code invalid, expired, or already used")
)

// TimeLayout is the persisted timestamp format. Values are always UTC, which
// keeps the width fixed.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SessionRecord is the server-side state of an issued session credential.
type SessionRecord struct {
	JTI       string
	UserSub   string
	UserEmail string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// UserTokenRecord holds the provider tokens of one user.
type UserTokenRecord struct {
	UserSub        string
	UserEmail      string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	UpdatedAt      time.Time
}

// ExchangeCodeRecord is a single-use code that can be redeemed for a session.
type ExchangeCodeRecord struct {
	Code      string
	UserSub   string
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
}

// PurgeResult reports how many records a purge removed.
type PurgeResult struct {
	Sessions      int64
	ExchangeCodes int64
}

// Store is the credential store used by the session and OAuth components.
type Store interface {
	// SaveSession inserts a new session record.
	SaveSession(ctx context.Context, rec SessionRecord) error
	// GetSession returns the session with the given jti or ErrNotFound.
	GetSession(ctx context.Context, jti string) (*SessionRecord, error)
	// RevokeSession marks a session revoked. Revoking an unknown or already
	// revoked session is not an error.
	RevokeSession(ctx context.Context, jti string) error

	// SaveUserTokens inserts or replaces the token record of rec.UserSub.
	SaveUserTokens(ctx context.Context, rec UserTokenRecord) error
	// GetUserTokens returns the token record of a user or ErrNotFound.
	GetUserTokens(ctx context.Context, userSub string) (*UserTokenRecord, error)

	// SaveExchangeCode inserts a new, unused exchange code.
	SaveExchangeCode(ctx context.Context, rec ExchangeCodeRecord) error
	// ConsumeExchangeCode atomically marks an unused code that expires after
	// now as used and returns its subject. Any other state yields
	// ErrExchangeCodeInvalid.
	ConsumeExchangeCode(ctx context.Context, code string, now time.Time) (string, error)

	// Purge deletes expired or revoked sessions and expired or used exchange codes.
	Purge(ctx context.Context, now time.Time) (PurgeResult, error)

	Ping(ctx context.Context) error
	Close() error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
