package resources

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/calweather/internal/google"
	"github.com/teemow/calweather/internal/server"
	"github.com/teemow/calweather/internal/session"
	"github.com/teemow/calweather/internal/store"
	"github.com/teemow/calweather/internal/weather"
)

func newServerContext(t *testing.T, tokens google.TokenProvider) *server.ServerContext {
	t.Helper()
	st := store.NewMemoryStore()
	sessions, err := session.NewManager(session.Config{SigningKey: []byte("test-key")}, st)
	require.NoError(t, err)

	sc, err := server.NewServerContext(context.Background(), server.Config{
		BaseURL:  "http://localhost:8000",
		Store:    st,
		Sessions: sessions,
		Tokens:   tokens,
		Weather:  weather.NewClient("owm-key"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func readRequest() mcp.ReadResourceRequest {
	var req mcp.ReadResourceRequest
	req.Params.URI = ProfileURI
	return req
}

func TestRegisterUserResources(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "test", mcpserver.WithResourceCapabilities(false, false))
	require.NoError(t, RegisterUserResources(s, newServerContext(t, nil)))
}

func TestUserProfile(t *testing.T) {
	expires := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	ctx := session.WithClaims(context.Background(), &session.Claims{
		Email: "jane@example.com",
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwtlib.NewNumericDate(expires),
		},
	})

	tests := []struct {
		name      string
		tokens    google.TokenProvider
		connected bool
	}{
		{name: "with google token", tokens: google.StaticTokenProvider{Token: &oauth2.Token{AccessToken: "at"}}, connected: true},
		{name: "without google token", tokens: nil, connected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents, err := handleUserProfile(ctx, readRequest(), newServerContext(t, tt.tokens))
			require.NoError(t, err)
			require.Len(t, contents, 1)

			text, ok := contents[0].(mcp.TextResourceContents)
			require.True(t, ok)
			assert.Equal(t, ProfileURI, text.URI)
			assert.Equal(t, "application/json", text.MIMEType)

			var profile Profile
			require.NoError(t, json.Unmarshal([]byte(text.Text), &profile))
			assert.Equal(t, "u1", profile.Sub)
			assert.Equal(t, "jane@example.com", profile.Email)
			assert.True(t, profile.SessionExpiresAt.Equal(expires))
			assert.Equal(t, tt.connected, profile.CalendarConnected)
			assert.True(t, profile.WeatherConfigured)
		})
	}
}

func TestUserProfileRequiresSession(t *testing.T) {
	sc := newServerContext(t, nil)

	_, err := handleUserProfile(context.Background(), readRequest(), sc)
	assert.ErrorIs(t, err, ErrNoSession)

	ctx := session.WithClaims(context.Background(), &session.Claims{Email: "jane@example.com"})
	_, err = handleUserProfile(ctx, readRequest(), sc)
	assert.ErrorIs(t, err, ErrNoSession)
}
