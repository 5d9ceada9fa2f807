package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod     = "method"
	attrPath       = "path"
	attrStatus     = "status"
	attrOperation  = "operation"
	attrService    = "service"
	attrResult     = "result"
	attrTool       = "tool"
	attrUserDomain = "user_domain"
)

var (
	latencyBuckets  = []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0}
	upstreamBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
)

// Metrics records the service's OpenTelemetry metrics. A nil *Metrics, or
// one returned by a disabled Provider, records nothing.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	upstreamOperationsTotal   metric.Int64Counter
	upstreamOperationDuration metric.Float64Histogram

	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	sessionsIssuedTotal          metric.Int64Counter
	sessionVerificationsTotal    metric.Int64Counter
	sessionsRevokedTotal         metric.Int64Counter
	exchangeCodeRedemptionsTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	detailedLabels bool
}

type counterSpec struct {
	target *metric.Int64Counter
	name   string
	desc   string
	unit   string
}

type histogramSpec struct {
	target  *metric.Float64Histogram
	name    string
	desc    string
	buckets []float64
}

// NewMetrics creates all instruments on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	counters := []counterSpec{
		{&m.httpRequestsTotal, "http_requests_total", "Total number of HTTP requests", "{request}"},
		{&m.upstreamOperationsTotal, "upstream_api_operations_total", "Total number of upstream API operations", "{operation}"},
		{&m.oauthAuthTotal, "oauth_auth_total", "Total number of completed OAuth authorizations", "{attempt}"},
		{&m.oauthTokenRefreshTotal, "oauth_token_refresh_total", "Total number of provider token refresh attempts", "{attempt}"},
		{&m.sessionsIssuedTotal, "sessions_issued_total", "Total number of session credentials issued", "{session}"},
		{&m.sessionVerificationsTotal, "session_verifications_total", "Total number of session credential verifications", "{verification}"},
		{&m.sessionsRevokedTotal, "sessions_revoked_total", "Total number of revoked sessions", "{session}"},
		{&m.exchangeCodeRedemptionsTotal, "exchange_code_redemptions_total", "Total number of exchange code redemption attempts", "{attempt}"},
		{&m.toolInvocationsTotal, "mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.target = counter
	}

	histograms := []histogramSpec{
		{&m.httpRequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds", latencyBuckets},
		{&m.upstreamOperationDuration, "upstream_api_operation_duration_seconds", "Upstream API operation duration in seconds", upstreamBuckets},
		{&m.toolDuration, "mcp_tool_duration_seconds", "MCP tool execution duration in seconds", upstreamBuckets},
	}
	for _, h := range histograms {
		histogram, err := meter.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(h.buckets...),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
		*h.target = histogram
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordUpstreamOperation records a call to Google or OpenWeatherMap.
//
// Parameters:
//   - service: one of the Service* constants
//   - operation: one of the Operation* constants
//   - status: StatusSuccess or StatusError
func (m *Metrics) RecordUpstreamOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.upstreamOperationsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.upstreamOperationsTotal.Add(ctx, 1, attrs)
	m.upstreamOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records a completed (or failed) authorization callback.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil {
		return
	}
	addResult(ctx, m.oauthAuthTotal, result)
}

// RecordOAuthTokenRefresh records a provider token refresh attempt.
// Result is ResultSuccess, ResultFailure or ResultSkipped (nothing to refresh with).
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil {
		return
	}
	addResult(ctx, m.oauthTokenRefreshTotal, result)
}

// RecordSessionIssued counts a newly signed session credential.
func (m *Metrics) RecordSessionIssued(ctx context.Context) {
	if m == nil || m.sessionsIssuedTotal == nil {
		return
	}
	m.sessionsIssuedTotal.Add(ctx, 1)
}

// RecordSessionVerification records a verification outcome (ResultValid or ResultInvalid).
func (m *Metrics) RecordSessionVerification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	addResult(ctx, m.sessionVerificationsTotal, result)
}

// RecordSessionRevoked counts a revoked session.
func (m *Metrics) RecordSessionRevoked(ctx context.Context) {
	if m == nil || m.sessionsRevokedTotal == nil {
		return
	}
	m.sessionsRevokedTotal.Add(ctx, 1)
}

// RecordExchangeCodeRedemption records a redemption attempt.
func (m *Metrics) RecordExchangeCodeRedemption(ctx context.Context, result string) {
	if m == nil {
		return
	}
	addResult(ctx, m.exchangeCodeRedemptionsTotal, result)
}

// RecordToolInvocation records an MCP tool invocation. The user's email
// domain is only attached when detailed labels are enabled.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status, userEmail string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && userEmail != "" {
		attrs = append(attrs, attribute.String(attrUserDomain, ExtractUserDomain(userEmail)))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func addResult(ctx context.Context, counter metric.Int64Counter, result string) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}
