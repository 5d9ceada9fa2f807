package calendar_tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calweather/internal/calendar"
	"github.com/teemow/calweather/internal/server"
	"github.com/teemow/calweather/internal/tools/common"
)

// ListEventsResult is returned by calendar_list_events.
type ListEventsResult struct {
	CalendarID string                  `json:"calendar_id"`
	EventCount int                     `json:"event_count"`
	Events     []calendar.EventSummary `json:"events"`
}

// CreateEventResult is returned by calendar_create_event.
type CreateEventResult struct {
	Success  bool   `json:"success"`
	EventID  string `json:"event_id"`
	Summary  string `json:"summary"`
	Start    string `json:"start"`
	End      string `json:"end"`
	HTMLLink string `json:"html_link"`
}

// RegisterEventTools registers the event tools with the MCP server.
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List upcoming events from the user's Google Calendar"),
		mcp.WithString("calendar_id",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of events to return (default: 10)"),
		),
	)
	s.AddTool(listEventsTool, common.InstrumentedToolHandler("calendar_list_events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a new event in the user's Google Calendar"),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start_iso",
			mcp.Required(),
			mcp.Description("Start time in ISO format, e.g. '2025-01-15T14:00:00', interpreted as UTC"),
		),
		mcp.WithString("end_iso",
			mcp.Required(),
			mcp.Description("End time in ISO format, e.g. '2025-01-15T15:00:00', interpreted as UTC"),
		),
		mcp.WithString("calendar_id",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
	)
	s.AddTool(createEventTool, common.InstrumentedToolHandler("calendar_create_event", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	calendarID := common.StringArg(args, "calendar_id", calendar.DefaultCalendarID)
	maxResults := common.IntArg(args, "max_results", calendar.DefaultMaxResults)
	if maxResults <= 0 {
		return mcp.NewToolResultError("max_results must be positive"), nil
	}

	client, errResult := getCalendarClient(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	events, err := client.ListUpcomingEvents(ctx, calendarID, int64(maxResults), time.Now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch calendar events: %v", err)), nil
	}

	return common.JSONResult(ListEventsResult{
		CalendarID: calendarID,
		EventCount: len(events),
		Events:     events,
	}), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	input := calendar.EventInput{
		Summary:     common.StringArg(args, "summary", ""),
		Start:       common.StringArg(args, "start_iso", ""),
		End:         common.StringArg(args, "end_iso", ""),
		Description: common.StringArg(args, "description", ""),
		Location:    common.StringArg(args, "location", ""),
	}
	switch {
	case input.Summary == "":
		return mcp.NewToolResultError("summary is required"), nil
	case input.Start == "":
		return mcp.NewToolResultError("start_iso is required"), nil
	case input.End == "":
		return mcp.NewToolResultError("end_iso is required"), nil
	}
	calendarID := common.StringArg(args, "calendar_id", calendar.DefaultCalendarID)

	client, errResult := getCalendarClient(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	event, err := client.CreateEvent(ctx, calendarID, input)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create calendar event: %v", err)), nil
	}

	return common.JSONResult(CreateEventResult{
		Success:  true,
		EventID:  event.ID,
		Summary:  event.Summary,
		Start:    event.Start,
		End:      event.End,
		HTMLLink: event.HTMLLink,
	}), nil
}
