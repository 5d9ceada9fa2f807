package google

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenProvider hands out Google token sources for a signed-in user.
// oauth.FlowManager satisfies it; its token sources refresh stored tokens
// and fail with oauth.ErrReauthenticationRequired when no token is left.
type TokenProvider interface {
	TokenSource(ctx context.Context, userSub string) oauth2.TokenSource
}

// StaticTokenProvider returns the same token for every user. It is meant for
// tests and one-off tooling.
type StaticTokenProvider struct {
	Token *oauth2.Token
}

// TokenSource implements TokenProvider.
func (p StaticTokenProvider) TokenSource(context.Context, string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(p.Token)
}
