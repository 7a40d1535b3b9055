// Package tracing wires OpenTelemetry. With no endpoint configured the global
// no-op provider stays in place and spans cost nothing.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/pkg/config"
)

const instrumentationName = "github.com/fatflowers/autoinspect"

// Start opens a span on the global tracer provider.
func Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name)
}

// EndWithError records err on span, if any, and ends it.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func setup(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) error {
	if cfg.Tracing.Endpoint == "" {
		log.Infow("tracing disabled, no otlp endpoint configured")
		return nil
	}
	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(cfg.Tracing.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Warnw("failed to create otlp exporter, tracing disabled", "err", err)
		return nil
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.Tracing.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	log.Infow("tracer initialized", "endpoint", cfg.Tracing.Endpoint)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return nil
}

var Module = fx.Options(
	fx.Invoke(setup),
)
