package tracing

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracerDisabled(t *testing.T) {
	t.Setenv("TRACING_ENABLED", "false")

	tp, tracer, err := InitTracer(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil || tracer == nil {
		t.Fatal("expected provider and tracer")
	}
	_ = tp.Shutdown(context.Background())
}

func TestSamplerRatio(t *testing.T) {
	t.Setenv("TRACING_SAMPLE_RATIO", "0.25")
	if s := sampler(); s.Description() == sdktrace.AlwaysSample().Description() {
		t.Fatal("expected ratio-based sampler")
	}

	t.Setenv("TRACING_SAMPLE_RATIO", "nonsense")
	if s := sampler(); s.Description() != sdktrace.AlwaysSample().Description() {
		t.Fatalf("expected always-on sampler for invalid ratio, got %s", s.Description())
	}
}

func TestInitTracerExporterError(t *testing.T) {
	t.Setenv("TRACING_ENABLED", "true")

	orig := newTraceExporter
	newTraceExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
		return nil, errors.New("dial failed")
	}
	defer func() { newTraceExporter = orig }()

	if _, _, err := InitTracer(context.Background()); err == nil {
		t.Fatal("expected exporter error to propagate")
	}
}
