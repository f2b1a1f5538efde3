package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope used by every recall span.
const TracerName = "github.com/flemzord/recall"

// TracingConfig selects the span exporter.
type TracingConfig struct {
	// OTLPEndpoint is a host:port for OTLP/HTTP export. Empty disables
	// tracing.
	OTLPEndpoint string
	Insecure     bool
	ServiceName  string
}

// Tracing owns the tracer provider and its shutdown.
type Tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// NewTracing builds a tracer provider. Without an endpoint it returns a
// no-op provider, so spans cost nothing.
func NewTracing(ctx context.Context, cfg TracingConfig) (*Tracing, error) {
	if cfg.OTLPEndpoint == "" {
		return &Tracing{
			provider: noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "recall"
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(sdkresource.NewSchemaless(attribute.String("service.name", name))),
	)
	otel.SetTracerProvider(tp)
	return &Tracing{provider: tp, shutdown: tp.Shutdown}, nil
}

// NewTracingWithProvider wraps an existing provider, typically an SDK
// provider with a span recorder in tests.
func NewTracingWithProvider(tp trace.TracerProvider) *Tracing {
	shutdown := func(context.Context) error { return nil }
	if sdk, ok := tp.(*sdktrace.TracerProvider); ok {
		shutdown = sdk.Shutdown
	}
	return &Tracing{provider: tp, shutdown: shutdown}
}

// Tracer returns the recall tracer. A nil Tracing yields a no-op tracer.
func (t *Tracing) Tracer() trace.Tracer {
	if t == nil {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	return t.provider.Tracer(TracerName)
}

// Stop flushes pending spans. It implements core.Stopper.
func (t *Tracing) Stop(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if err := t.shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
	}
	return nil
}
