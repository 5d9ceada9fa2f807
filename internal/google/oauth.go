package google

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/calweather/internal/oauth"
)

const (
	// AuthURL is the v2 authorization endpoint.
	AuthURL = "https://accounts.google.com/o/oauth2/v2/auth"

	// UserInfoURL is the OpenID Connect userinfo endpoint.
	UserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	// CallbackPath is where Google redirects after consent.
	CallbackPath = "/auth/callback"
)

// Endpoint is the Google OAuth endpoint. Client credentials are sent in the
// form body of token requests.
var Endpoint = oauth2.Endpoint{
	AuthURL:   AuthURL,
	TokenURL:  google.Endpoint.TokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// ErrMissingCredentials is returned when the client ID or secret is empty.
var ErrMissingCredentials = errors.New("google client id and secret are required")

// Credentials identify the OAuth client registered in the Google console.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether both values are set.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Validate returns ErrMissingCredentials unless the credentials are configured.
func (c Credentials) Validate() error {
	if !c.Configured() {
		return ErrMissingCredentials
	}
	return nil
}

// NewFlowConfig returns the login flow configuration for a server reachable
// at baseURL. The redirect URI is baseURL followed by CallbackPath.
func NewFlowConfig(creds Credentials, baseURL string) oauth.FlowConfig {
	return oauth.FlowConfig{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  strings.TrimRight(baseURL, "/") + CallbackPath,
		Scopes:       append([]string(nil), DefaultOAuthScopes...),
		Endpoint:     Endpoint,
		UserInfoURL:  UserInfoURL,
	}
}

// NewHTTPClient returns a client that authenticates every request with
// tokens from ts, forcing HTTP/1.1 on the underlying transport.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}
	return client
}
