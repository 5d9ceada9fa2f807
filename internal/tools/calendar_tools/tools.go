package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calweather/internal/calendar"
	"github.com/teemow/calweather/internal/server"
	"github.com/teemow/calweather/internal/tools/common"
)

// RegisterCalendarTools registers all Calendar tools with the MCP server.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	RegisterEventTools(s, sc)
	return nil
}

// getCalendarClient returns the Calendar client of the session user. The
// returned tool result is non-nil when the user has to sign in again.
func getCalendarClient(ctx context.Context, sc *server.ServerContext) (*calendar.Client, *mcp.CallToolResult) {
	user, ok := common.UserFromContext(ctx)
	if !ok || !sc.HasValidToken(ctx, user.Sub) {
		return nil, mcp.NewToolResultError(common.ReauthenticateMessage)
	}

	client, err := sc.CalendarClientForUser(user.Sub)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return client, nil
}
