package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Enabled() {
		t.Error("provider should be disabled")
	}
	if p.Metrics() != nil {
		t.Error("disabled provider should not create metrics")
	}
	// Recording on the disabled recorder must not panic.
	p.Metrics().RecordSessionIssued(context.Background())
	if p.Tracer("test") == nil {
		t.Error("Tracer() returned nil")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProviderPrometheus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	}, nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer func() { _ = p.Shutdown(ctx) }()

	if !p.PrometheusEnabled() {
		t.Error("prometheus exporter should be active")
	}
	if p.Metrics() == nil {
		t.Fatal("Metrics() returned nil")
	}
	p.Metrics().RecordHTTPRequest(ctx, "GET", "/healthz", 200, time.Millisecond)
}

func TestNewProviderUnsupportedExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		ServiceName:     "test-service",
		Enabled:         true,
		MetricsExporter: "statsd",
	}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}
