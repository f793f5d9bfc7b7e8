package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// configTracing installs a tracer provider when an exporter is configured.
// OTLP over HTTP is used when OTEL_EXPORTER_OTLP_ENDPOINT is set, see
// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
// for the other variables it reads. The returned func flushes pending spans.
func configTracing(ctx context.Context, serviceName string, useJaeger bool) (func(context.Context) error, error) {
	var exp tracesdk.SpanExporter
	switch ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); {
	case ep != "":
		slog.Info("setting up trace exporter", "endpoint", ep)
		e, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		exp = e
	case useJaeger:
		url := "http://localhost:14268/api/traces"
		slog.Info("setting up jaeger exporter", "url", url)
		e, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(url)))
		if err != nil {
			return nil, err
		}
		exp = e
	default:
		return func(context.Context) error { return nil }, nil
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("env", os.Getenv("ENVIRONMENT")),         // DataDog
			attribute.String("environment", os.Getenv("ENVIRONMENT")), // Others
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
