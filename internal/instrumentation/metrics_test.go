package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T, detailed bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailed)
	require.NoError(t, err)
	return m, reader
}

// counterValue sums all data points of the named counter whose attributes
// contain want.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, want ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if hasAttrs(dp.Attributes, want) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func hasAttrs(set attribute.Set, want []attribute.KeyValue) bool {
	for _, kv := range want {
		v, ok := set.Value(kv.Key)
		if !ok || v.Emit() != kv.Value.Emit() {
			return false
		}
	}
	return true
}

func TestMetricsSessionLifecycle(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordSessionIssued(ctx)
	m.RecordSessionIssued(ctx)
	m.RecordSessionVerification(ctx, ResultValid)
	m.RecordSessionVerification(ctx, ResultInvalid)
	m.RecordSessionVerification(ctx, ResultInvalid)
	m.RecordSessionRevoked(ctx)
	m.RecordExchangeCodeRedemption(ctx, ResultSuccess)
	m.RecordExchangeCodeRedemption(ctx, ResultFailure)

	assert.Equal(t, int64(2), counterValue(t, reader, "sessions_issued_total"))
	assert.Equal(t, int64(1), counterValue(t, reader, "session_verifications_total", attribute.String("result", ResultValid)))
	assert.Equal(t, int64(2), counterValue(t, reader, "session_verifications_total", attribute.String("result", ResultInvalid)))
	assert.Equal(t, int64(1), counterValue(t, reader, "sessions_revoked_total"))
	assert.Equal(t, int64(1), counterValue(t, reader, "exchange_code_redemptions_total", attribute.String("result", ResultFailure)))
}

func TestMetricsOAuth(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordOAuthAuth(ctx, ResultSuccess)
	m.RecordOAuthTokenRefresh(ctx, ResultSkipped)
	m.RecordOAuthTokenRefresh(ctx, ResultFailure)
	m.RecordUpstreamOperation(ctx, ServiceGoogleOAuth, OperationTokenExchange, StatusSuccess, 20*time.Millisecond)

	assert.Equal(t, int64(1), counterValue(t, reader, "oauth_auth_total", attribute.String("result", ResultSuccess)))
	assert.Equal(t, int64(2), counterValue(t, reader, "oauth_token_refresh_total"))
	assert.Equal(t, int64(1), counterValue(t, reader, "upstream_api_operations_total",
		attribute.String("service", ServiceGoogleOAuth),
		attribute.String("operation", OperationTokenExchange)))
}

func TestMetricsToolDetailedLabels(t *testing.T) {
	tests := []struct {
		name       string
		detailed   bool
		wantDomain bool
	}{
		{name: "domain omitted by default", detailed: false},
		{name: "domain attached when detailed", detailed: true, wantDomain: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, reader := newTestMetrics(t, tt.detailed)
			m.RecordToolInvocation(context.Background(), "weather_current", StatusSuccess, "e@x.com", time.Millisecond)

			got := counterValue(t, reader, "mcp_tool_invocations_total", attribute.String("user_domain", "x.com"))
			if tt.wantDomain {
				assert.Equal(t, int64(1), got)
			} else {
				assert.Equal(t, int64(0), got)
				assert.Equal(t, int64(1), counterValue(t, reader, "mcp_tool_invocations_total", attribute.String("tool", "weather_current")))
			}
		})
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "GET", "/mcp", 200, time.Millisecond)
	m.RecordUpstreamOperation(ctx, ServiceCalendar, OperationList, StatusSuccess, time.Millisecond)
	m.RecordOAuthAuth(ctx, ResultSuccess)
	m.RecordOAuthTokenRefresh(ctx, ResultSuccess)
	m.RecordSessionIssued(ctx)
	m.RecordSessionVerification(ctx, ResultValid)
	m.RecordSessionRevoked(ctx)
	m.RecordExchangeCodeRedemption(ctx, ResultSuccess)
	m.RecordToolInvocation(ctx, "t", StatusSuccess, "", time.Millisecond)
}
