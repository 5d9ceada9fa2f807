// Package oauth implements the Google side of the login flow: PKCE challenge
// bookkeeping, the authorization-code exchange, and the lifecycle of each
// user's provider access token.
//
// # Authorization
//
// BeginAuthorization creates a state/verifier pair in a ChallengeCache and
// returns the Google consent URL. CompleteAuthorization consumes the state
// exactly once, exchanges the code together with the verifier, reads the
// user's identity from the userinfo endpoint and stores the provider tokens.
//
// # Token Lifecycle
//
// GetValidAccessToken hands out the stored access token unless it expires
// within TokenRefreshThreshold, in which case it refreshes it first.
// Refresh failures are reported as absence rather than errors; the caller is
// expected to ask the user to log in again.
//
// # Challenge Caches
//
//   - MemoryChallengeCache: process-local, optional TTL
//   - RedisChallengeCache: shared between replicas, survives restarts
package oauth
