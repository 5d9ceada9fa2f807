package common

import (
	"context"

	"github.com/teemow/calweather/internal/session"
)

// ReauthenticateMessage is returned by tools that need Google access when the
// caller has no usable token.
const ReauthenticateMessage = "Unable to get valid access token. Please re-authenticate."

// User is the caller of a tool, taken from the session credential that
// authorized the request.
type User struct {
	Sub   string
	Email string
}

// UserFromContext returns the caller set by the session middleware.
func UserFromContext(ctx context.Context) (User, bool) {
	claims, ok := session.ClaimsFromContext(ctx)
	if !ok || claims == nil || claims.Subject == "" {
		return User{}, false
	}
	return User{Sub: claims.Subject, Email: claims.Email}, true
}
