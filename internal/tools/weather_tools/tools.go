package weather_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calweather/internal/server"
	"github.com/teemow/calweather/internal/tools/common"
	"github.com/teemow/calweather/internal/weather"
)

var validUnits = map[string]bool{"metric": true, "imperial": true, "standard": true}

// RegisterWeatherTools registers the weather tools with the MCP server.
func RegisterWeatherTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	currentTool := mcp.NewTool("weather_current",
		mcp.WithDescription("Get the current weather for a city"),
		mcp.WithString("city",
			mcp.Required(),
			mcp.Description("City name, optionally with country code, e.g. 'Berlin,DE'"),
		),
		mcp.WithString("units",
			mcp.Description("Units: 'metric' (default), 'imperial' or 'standard'"),
			mcp.Enum("metric", "imperial", "standard"),
		),
	)
	s.AddTool(currentTool, common.InstrumentedToolHandler("weather_current", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCurrent(ctx, request, sc)
		}))

	forecastTool := mcp.NewTool("weather_forecast",
		mcp.WithDescription("Get the three-hourly weather forecast for a city, up to five days ahead"),
		mcp.WithString("city",
			mcp.Required(),
			mcp.Description("City name, optionally with country code, e.g. 'Berlin,DE'"),
		),
		mcp.WithNumber("days",
			mcp.Description("Number of days to forecast (default: 3, at most 5)"),
		),
		mcp.WithString("units",
			mcp.Description("Units: 'metric' (default), 'imperial' or 'standard'"),
			mcp.Enum("metric", "imperial", "standard"),
		),
	)
	s.AddTool(forecastTool, common.InstrumentedToolHandler("weather_forecast", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleForecast(ctx, request, sc)
		}))

	return nil
}

func parseCommon(args map[string]any) (city, units string, errResult *mcp.CallToolResult) {
	city = common.StringArg(args, "city", "")
	if city == "" {
		return "", "", mcp.NewToolResultError("city is required")
	}
	units = common.StringArg(args, "units", weather.DefaultUnits)
	if !validUnits[units] {
		return "", "", mcp.NewToolResultError(fmt.Sprintf("invalid units %q: use metric, imperial or standard", units))
	}
	return city, units, nil
}

func handleCurrent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	city, units, errResult := parseCommon(request.GetArguments())
	if errResult != nil {
		return errResult, nil
	}

	current, err := sc.Weather().Current(ctx, city, units)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return common.JSONResult(current), nil
}

func handleForecast(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	city, units, errResult := parseCommon(args)
	if errResult != nil {
		return errResult, nil
	}
	days := common.IntArg(args, "days", weather.DefaultForecastDays)
	if days <= 0 {
		return mcp.NewToolResultError("days must be positive"), nil
	}

	forecast, err := sc.Weather().Forecast(ctx, city, days, units)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return common.JSONResult(forecast), nil
}
