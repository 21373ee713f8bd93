// Package telemetry bootstraps the OpenTelemetry tracer provider for
// embedding applications. The core only opens spans through the otel
// API; without this setup those spans are no-ops.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds the tracing configuration.
type Config struct {
	// Endpoint is the OTLP/HTTP collector host:port. Empty disables
	// tracing setup entirely.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS toward the collector.
	Insecure bool `yaml:"insecure"`

	// ServiceName tags exported spans. Defaults to "kokoro".
	ServiceName string `yaml:"service_name"`
}

// Setup installs a global tracer provider exporting to cfg.Endpoint and
// returns a shutdown function flushing pending spans. With an empty
// endpoint it installs nothing and returns a no-op shutdown.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "kokoro"
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
