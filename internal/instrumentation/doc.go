// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for calweather.
//
// # Metrics
//
// Server/HTTP:
//   - http_requests_total, http_request_duration_seconds
//
// Authentication and sessions:
//   - oauth_auth_total{result}: completed authorization callbacks
//   - oauth_token_refresh_total{result}: provider token refreshes
//   - sessions_issued_total, sessions_revoked_total
//   - session_verifications_total{result}
//   - exchange_code_redemptions_total{result}
//
// Upstream APIs (Google OAuth, Google Calendar, OpenWeatherMap):
//   - upstream_api_operations_total{service,operation,status}
//   - upstream_api_operation_duration_seconds
//
// MCP tools:
//   - mcp_tool_invocations_total{tool,status}
//   - mcp_tool_duration_seconds
//
// # Tracing
//
// Spans are created for tool invocations (tool.<name>) and upstream calls
// (<service>.<operation>).
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: calweather)
//   - METRICS_DETAILED_LABELS, AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII
package instrumentation
