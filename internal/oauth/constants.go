package oauth

import "time"

const (
	// TokenRefreshThreshold is how soon before expiry a provider access token
	// is refreshed instead of handed out.
	TokenRefreshThreshold = 5 * time.Minute

	// DefaultTokenLifetime applies when the token endpoint omits expires_in.
	DefaultTokenLifetime = 3600 * time.Second

	// DefaultChallengeTTL bounds how long a pending authorization may wait
	// for its callback.
	DefaultChallengeTTL = 10 * time.Minute

	// DefaultChallengeCleanupInterval is how often expired pending
	// authorizations are swept from memory.
	DefaultChallengeCleanupInterval = time.Minute

	// DefaultHTTPTimeout bounds each call to the provider.
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultRedisPrefix namespaces pending authorizations in Redis.
	DefaultRedisPrefix = "calweather:pkce:"
)

// PKCE parameters (RFC 7636).
const (
	MinCodeVerifierLength = 43
	MaxCodeVerifierLength = 128

	// randomTokenBytes is the entropy of states and verifiers.
	randomTokenBytes = 32

	CodeChallengeMethodS256 = "S256"
)
