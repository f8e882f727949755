package main

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/dexinline/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// setupTracing installs a global tracer provider exporting to an OTLP/HTTP
// collector. The returned function flushes and stops it.
func setupTracing(ctx context.Context, endpoint string, insecure bool) (func(context.Context) error, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "inlinescan"),
			attribute.String("service.version", Version),
		)),
	)
	otel.SetTracerProvider(tp)
	log.Info(log.ScanMonitoring, "tracing enabled", "endpoint", endpoint)
	return tp.Shutdown, nil
}
