package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/calweather/internal/instrumentation"
	"github.com/teemow/calweather/internal/server"
	"github.com/teemow/calweather/internal/session"
	"github.com/teemow/calweather/internal/store"
)

type testInstrumentation struct {
	sc     *server.ServerContext
	reader *sdkmetric.ManualReader
	audit  *bytes.Buffer
}

func newInstrumentedContext(t *testing.T) *testInstrumentation {
	t.Helper()
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })
	metrics, err := instrumentation.NewMetrics(mp.Meter("test"), false)
	require.NoError(t, err)

	var buf bytes.Buffer
	audit := instrumentation.NewAuditLogger(
		slog.New(slog.NewJSONHandler(&buf, nil)),
		instrumentation.AuditLoggingConfig{Enabled: true},
	)

	st := store.NewMemoryStore()
	sessions, err := session.NewManager(session.Config{SigningKey: []byte("0123456789abcdef0123456789abcdef")}, st)
	require.NoError(t, err)

	sc, err := server.NewServerContext(ctx, server.Config{
		BaseURL:     "http://localhost:8000",
		Store:       st,
		Sessions:    sessions,
		Metrics:     metrics,
		AuditLogger: audit,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	return &testInstrumentation{sc: sc, reader: reader, audit: &buf}
}

func (ti *testInstrumentation) invocations(t *testing.T, tool, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, ti.reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "mcp_tool_invocations_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				gotTool, _ := dp.Attributes.Value(attribute.Key("tool"))
				gotStatus, _ := dp.Attributes.Value(attribute.Key("status"))
				if gotTool.AsString() == tool && gotStatus.AsString() == status {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func userContext(sub, email string) context.Context {
	claims := &session.Claims{Email: email}
	claims.Subject = sub
	return session.WithClaims(context.Background(), claims)
}

func TestInstrumentedToolHandler(t *testing.T) {
	tests := []struct {
		name       string
		handler    ToolHandler
		wantStatus string
		wantErr    bool
		wantAudit  string
	}{
		{
			name: "success",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultText("ok"), nil
			},
			wantStatus: instrumentation.StatusSuccess,
			wantAudit:  "tool_executed",
		},
		{
			name: "error result",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultError("upstream down"), nil
			},
			wantStatus: instrumentation.StatusError,
			wantAudit:  "upstream down",
		},
		{
			name: "handler error",
			handler: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return nil, errors.New("boom")
			},
			wantStatus: instrumentation.StatusError,
			wantErr:    true,
			wantAudit:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ti := newInstrumentedContext(t)
			wrapped := InstrumentedToolHandler("test_tool", ti.sc, tt.handler)

			_, err := wrapped(userContext("u1", "jane@example.com"), mcp.CallToolRequest{})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, int64(1), ti.invocations(t, "test_tool", tt.wantStatus))
			assert.Contains(t, ti.audit.String(), tt.wantAudit)
			assert.Contains(t, ti.audit.String(), "example.com", "audit records the user domain, not the address")
			assert.NotContains(t, ti.audit.String(), "jane@example.com")
		})
	}
}

func TestInstrumentedToolHandlerWithoutInstrumentation(t *testing.T) {
	st := store.NewMemoryStore()
	sessions, err := session.NewManager(session.Config{SigningKey: []byte("k")}, st)
	require.NoError(t, err)
	sc, err := server.NewServerContext(context.Background(), server.Config{Store: st, Sessions: sessions})
	require.NoError(t, err)
	defer sc.Shutdown()

	called := false
	wrapped := InstrumentedToolHandler("test_tool", sc, func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("ok"), nil
	})

	result, err := wrapped(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, result.IsError)
}
