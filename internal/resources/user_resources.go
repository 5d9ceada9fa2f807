package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calweather/internal/server"
	"github.com/teemow/calweather/internal/session"
)

// ProfileURI is the URI of the session user's profile resource.
const ProfileURI = "user://profile"

// ErrNoSession is returned when a resource is read without a verified session.
var ErrNoSession = errors.New("no authenticated session")

// Profile is the content of the user://profile resource.
type Profile struct {
	Sub               string    `json:"sub"`
	Email             string    `json:"email"`
	SessionExpiresAt  time.Time `json:"session_expires_at,omitzero"`
	CalendarConnected bool      `json:"calendar_connected"`
	WeatherConfigured bool      `json:"weather_configured"`
}

// RegisterUserResources registers the session-specific user resources.
func RegisterUserResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	profileResource := mcp.NewResource(
		ProfileURI,
		"Current User Profile",
		mcp.WithResourceDescription("The signed-in Google account and the state of its calendar connection"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleUserProfile(ctx, request, sc)
	})

	return nil
}

func handleUserProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	claims, ok := session.ClaimsFromContext(ctx)
	if !ok || claims.Subject == "" {
		return nil, ErrNoSession
	}

	profile := Profile{
		Sub:               claims.Subject,
		Email:             claims.Email,
		CalendarConnected: sc.HasValidToken(ctx, claims.Subject),
		WeatherConfigured: sc.Weather().Configured(),
	}
	if claims.ExpiresAt != nil {
		profile.SessionExpiresAt = claims.ExpiresAt.UTC()
	}

	jsonData, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile data: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
