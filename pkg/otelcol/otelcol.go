package otelcol

import (
	"context"
	"fmt"

	"linkdrop-controlplane/pkg/config"
	"linkdrop-controlplane/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module installs the global tracer provider when OTEL.EXPORTER is set.
// Without an exporter the otel no-op provider stays in place.
var Module = fx.Module("otelcol", fx.Invoke(Register))

func newResource(cfg *config.Config) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
}

func ProvideTrace(exporter trace.SpanExporter, opts ...trace.TracerProviderOption) *trace.TracerProvider {
	opts = append(opts, trace.WithBatcher(exporter))
	return trace.NewTracerProvider(opts...)
}

func NewExporter(cfg *config.Config) (trace.SpanExporter, error) {
	switch cfg.Otel.Exporter {
	case "grpc":
		return exporters.ProvideGrpc(cfg)
	case "http":
		return exporters.ProvideHttp(cfg)
	default:
		return nil, fmt.Errorf("unknown otel exporter %q", cfg.Otel.Exporter)
	}
}

func Register(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Otel.Exporter == "" {
		zap.L().Info("tracing disabled")
		return nil
	}

	exporter, err := NewExporter(cfg)
	if err != nil {
		return err
	}
	res, err := newResource(cfg)
	if err != nil {
		return err
	}

	tp := ProvideTrace(exporter, trace.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	zap.L().Info("tracing enabled",
		zap.String("exporter", cfg.Otel.Exporter),
		zap.String("endpoint", cfg.Otel.Endpoint),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return nil
}
