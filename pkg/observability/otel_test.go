package observability

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TestInitOTel_Disabled tests that disabled config returns nil providers
func TestInitOTel_Disabled(t *testing.T) {
	cfg := OTelConfig{
		Enabled: false,
	}

	providers, err := InitOTel(context.Background(), cfg, testLogger())
	assert.NoError(t, err)
	assert.Nil(t, providers)
}

// TestShutdownOTel_NilProviders tests shutdown with nil providers
func TestShutdownOTel_NilProviders(t *testing.T) {
	err := ShutdownOTel(context.Background(), nil, testLogger())
	assert.NoError(t, err)
}

// TestShutdownOTel_NilTracerProvider tests shutdown with empty providers struct
func TestShutdownOTel_NilTracerProvider(t *testing.T) {
	providers := &OTelProviders{
		TracerProvider: nil,
	}

	err := ShutdownOTel(context.Background(), providers, testLogger())
	assert.NoError(t, err)
}

// TestShutdownOTel_WithProvider tests shutdown with an exporterless provider
func TestShutdownOTel_WithProvider(t *testing.T) {
	tp := sdktrace.NewTracerProvider()

	providers := &OTelProviders{
		TracerProvider: tp,
	}

	err := ShutdownOTel(context.Background(), providers, testLogger())
	assert.NoError(t, err)
}

// TestLoggerWithTraceContext_NoSpan tests logger passthrough without a span
func TestLoggerWithTraceContext_NoSpan(t *testing.T) {
	logger := testLogger()

	result := LoggerWithTraceContext(context.Background(), logger)

	// Without a recording span the base logger comes back unchanged
	assert.Same(t, logger, result)
}

// TestLoggerWithTraceContext_WithSpan tests trace field injection
func TestLoggerWithTraceContext_WithSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	tracer := tp.Tracer("test-tracer")

	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	logger := testLogger()
	result := LoggerWithTraceContext(ctx, logger)

	entry, ok := result.(*logrus.Entry)
	assert.True(t, ok, "expected a logrus entry with trace fields")

	traceID, ok := entry.Data["trace_id"].(string)
	assert.True(t, ok)
	assert.NotEmpty(t, traceID)

	spanID, ok := entry.Data["span_id"].(string)
	assert.True(t, ok)
	assert.NotEmpty(t, spanID)
}

// TestLoggerWithTraceContext_NonRecordingSpan tests with a sampled-out span
func TestLoggerWithTraceContext_NonRecordingSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.NeverSample()),
	)
	tracer := tp.Tracer("test-tracer")

	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	logger := testLogger()
	result := LoggerWithTraceContext(ctx, logger)

	assert.Same(t, logger, result)
}

// TestOTelConfig_Struct tests OTelConfig struct fields
func TestOTelConfig_Struct(t *testing.T) {
	cfg := OTelConfig{
		Enabled:        true,
		Endpoint:       "collector:4317",
		ServiceName:    "stitch",
		ServiceVersion: "1.2.3",
		Insecure:       true,
	}

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.Equal(t, "stitch", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.True(t, cfg.Insecure)
}
