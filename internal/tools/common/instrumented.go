package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calweather/internal/instrumentation"
	"github.com/teemow/calweather/internal/server"
)

// ToolHandler is the signature of an MCP tool handler.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span, metrics and an
// audit record attributed to the session user.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).WithSpanContext(ctx)
		user, _ := UserFromContext(ctx)
		invocation.WithUser(user.Sub, user.Email)

		result, err := handler(ctx, request)

		success := err == nil && (result == nil || !result.IsError)
		failure := err
		if failure == nil && !success {
			failure = errors.New(resultText(result))
		}
		invocation.Complete(success, failure)

		if success {
			instrumentation.SetSpanSuccess(span)
		} else {
			instrumentation.SetSpanError(span, failure)
		}
		sc.Metrics().RecordToolInvocation(ctx, toolName, invocation.Status(), user.Email, time.Since(start))
		sc.AuditLogger().LogToolInvocation(invocation)

		return result, err
	}
}

func resultText(result *mcp.CallToolResult) string {
	if result != nil {
		for _, c := range result.Content {
			if text, ok := mcp.AsTextContent(c); ok {
				return text.Text
			}
		}
	}
	return "tool returned an error"
}
