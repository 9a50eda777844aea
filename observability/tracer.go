package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/flowkit/logger"
)

const instrumentationName = "github.com/kbukum/flowkit/flow"

// Span names, one per stage phase.
const (
	SpanStageProcess  = "flow.stage.process"
	SpanStageSetup    = "flow.stage.setup"
	SpanStageTeardown = "flow.stage.teardown"
)

// Attribute keys shared by spans and metrics.
const (
	AttrProcessor  = "flow.processor"
	AttrChannel    = "flow.channel"
	AttrPhase      = "flow.phase"
	AttrEmissions  = "flow.emissions"
	AttrStatus     = "status"
	AttrDropReason = "flow.drop_reason"
)

// TracerConfig points trace export at an OTLP/HTTP collector.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is host:port, e.g. localhost:4318.
	Endpoint string
	Insecure bool
	// SampleRate is the fraction of traces kept, 0 to 1.
	SampleRate float64
}

// InitTracer installs a batching OTLP tracer provider and the W3C
// propagators globally. Shut the provider down on exit to flush spans.
func InitTracer(ctx context.Context, cfg TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info("tracing enabled", logger.Fields(
		"service", cfg.ServiceName, "endpoint", cfg.Endpoint, "sample_rate", cfg.SampleRate))
	return tp, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// newResource is schemaless so the merge with resource.Default never
// conflicts on schema URLs.
func newResource(service, version, environment string) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(service),
		semconv.ServiceVersion(version),
		attribute.String("environment", environment),
	))
}

// StartStageSpan opens the span of one stage phase for processor, using the
// global tracer provider.
func StartStageSpan(ctx context.Context, spanName, processor string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{attribute.String(AttrProcessor, processor)}, attrs...)
	return otel.Tracer(instrumentationName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// SetSpanError records err on span and marks it failed. Nil is a no-op.
func SetSpanError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
