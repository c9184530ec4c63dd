package obs

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracingConfig controls tracer provider initialisation.
type TracingConfig struct {
	ServiceName   string
	Endpoint      string
	Exporter      string
	SamplingRatio float64
	Environment   string
}

func (c TracingConfig) ratio() float64 {
	switch {
	case c.SamplingRatio <= 0, c.SamplingRatio > 1:
		return 1
	default:
		return c.SamplingRatio
	}
}

// Endpoint accepts either a full URL or host:port.
func (c TracingConfig) exporterOptions() []otlptracehttp.Option {
	endpoint := strings.TrimSpace(c.Endpoint)
	switch {
	case endpoint == "":
		return nil
	case strings.Contains(endpoint, "://"):
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	default:
		return []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure()}
	}
}

// InitTracer installs the global tracer provider and returns its shutdown.
// Spans follow the caller's sampling decision when one is propagated.
func InitTracer(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	switch kind := strings.ToLower(strings.TrimSpace(cfg.Exporter)); kind {
	case "none", "off":
		return func(context.Context) error { return nil }, nil
	case "", "otlp":
		exp, err := otlptracehttp.New(ctx, cfg.exporterOptions()...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", kind)
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "toko-storefront"
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(name),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.ratio()))),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
