// Package observability provides OpenTelemetry tracing and structured logging
// for graphrank runs.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/efebarandurmaz/graphrank/internal/config"
)

const (
	TracerName  = "github.com/efebarandurmaz/graphrank"
	ServiceName = "graphrank"
)

// Span kinds, recorded as graphrank.span.kind.
const (
	SpanKindRun    = "run"
	SpanKindStage  = "stage"
	SpanKindMetric = "metric"
)

// Tracing owns the SDK tracer provider installed by InitTracing.
type Tracing struct {
	provider *sdktrace.TracerProvider
}

// InitTracing exports spans over OTLP/gRPC to cfg.Endpoint. With no endpoint
// the global no-op provider stays in place and Shutdown does nothing.
func InitTracing(ctx context.Context, cfg config.TracingConfig, version string) (*Tracing, error) {
	if cfg.Endpoint == "" {
		return &Tracing{}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Tracing{provider: provider}, nil
}

// Sampler maps a rate in [0, 1] to a sampler; out of range values clamp.
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Enabled reports whether spans are exported.
func (t *Tracing) Enabled() bool { return t.provider != nil }

// Shutdown flushes pending spans and stops the exporter.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

func start(ctx context.Context, name, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("graphrank.span.kind", kind))
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartRunSpan starts the root span of a command run.
func StartRunSpan(ctx context.Context, command, project string) (context.Context, trace.Span) {
	return start(ctx, "run."+command, SpanKindRun,
		attribute.String("graphrank.command", command),
		attribute.String("graphrank.project", project),
	)
}

// StartStageSpan starts a span for one pipeline stage.
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return start(ctx, "stage."+stage, SpanKindStage, attribute.String("graphrank.stage", stage))
}

// StartMetricSpan starts a span around one centrality provider.
func StartMetricSpan(ctx context.Context, metric string, nodes int) (context.Context, trace.Span) {
	return start(ctx, "metric."+metric, SpanKindMetric,
		attribute.String("graphrank.metric", metric),
		attribute.Int("graphrank.graph.nodes", nodes),
	)
}

// RecordStageResult records how many items a stage produced and its error.
func RecordStageResult(span trace.Span, items int, err error) {
	span.SetAttributes(attribute.Int("graphrank.stage.items", items))
	RecordError(span, err)
}

// RecordGraphShape records graph size on a span.
func RecordGraphShape(span trace.Span, nodes, edges, communities int) {
	span.SetAttributes(
		attribute.Int("graphrank.graph.nodes", nodes),
		attribute.Int("graphrank.graph.edges", edges),
		attribute.Int("graphrank.graph.communities", communities),
	)
}

// RecordError marks the span failed. A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
