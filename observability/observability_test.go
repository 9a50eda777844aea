package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	return rm
}

func int64Sum(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func histogramCount(rm metricdata.ResourceMetrics, name string) uint64 {
	var count uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if h, ok := m.Data.(metricdata.Histogram[float64]); ok {
				for _, dp := range h.DataPoints {
					count += dp.Count
				}
			}
		}
	}
	return count
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestNewMetrics_Noop(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	// Should not panic
	metrics.RecordEmission(ctx, "numbers", "success")
	metrics.RecordDrop(ctx, "numbers", "failure", "no_relationship")
	metrics.RecordStage(ctx, "numbers", "process", "ok", time.Millisecond)
	metrics.RecordError(ctx, "process", "numbers")
	metrics.SequenceOpened(ctx, "numbers")
	metrics.SequenceClosed(ctx, "numbers")
}

func TestMetrics_Recorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	metrics.RecordEmission(ctx, "numbers", "success")
	metrics.RecordEmission(ctx, "numbers", "success")
	metrics.RecordEmission(ctx, "add", "failure")
	metrics.RecordDrop(ctx, "add", "failure", "no_relationship")
	metrics.RecordStage(ctx, "add", "process", "ok", 2*time.Millisecond)
	metrics.RecordError(ctx, "setup", "db")
	metrics.SequenceOpened(ctx, "add")
	metrics.SequenceOpened(ctx, "add")
	metrics.SequenceClosed(ctx, "add")

	rm := collect(t, reader)
	tests := []struct {
		name string
		want int64
	}{
		{MetricEmissions, 3},
		{MetricDrops, 1},
		{MetricErrors, 1},
		{MetricOpenSequences, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := int64Sum(rm, tt.name); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
	if got := histogramCount(rm, MetricStageDuration); got != 1 {
		t.Errorf("expected 1 duration sample, got %d", got)
	}
}

func TestMeter(t *testing.T) {
	if Meter("test-meter") == nil {
		t.Fatal("expected non-nil meter")
	}
}

func TestStartStageSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartStageSpan(context.Background(), SpanStageSetup, "add", attribute.Bool("flow.input", false))
	SetSpanError(span, nil)
	SetSpanError(span, fmt.Errorf("broker down"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Name != SpanStageSetup || got.InstrumentationScope.Name != instrumentationName {
		t.Errorf("span %q from %q", got.Name, got.InstrumentationScope.Name)
	}
	if len(got.Attributes) != 2 || got.Attributes[0] != attribute.String(AttrProcessor, "add") {
		t.Errorf("attributes = %v", got.Attributes)
	}
	if got.Status.Code != codes.Error || got.Status.Description != "broker down" {
		t.Errorf("status = %+v", got.Status)
	}
	if len(got.Events) != 1 {
		t.Errorf("expected one recorded error event, got %d", len(got.Events))
	}
}

func TestSetSpanError_NotRecording(t *testing.T) {
	_, span := StartStageSpan(context.Background(), SpanStageProcess, "add")
	SetSpanError(span, fmt.Errorf("ignored"))
	span.End()
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := samplerFor(tt.rate).Description(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource("flowdemo", "1.2.3", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, kv := range res.Attributes() {
		if string(kv.Key) == "service.name" && kv.Value.AsString() == "flowdemo" {
			found = true
		}
	}
	if !found {
		t.Error("expected service.name attribute")
	}
}

func TestInitTracerAndMeter(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()
	defer otel.SetTracerProvider(prevTP)
	defer otel.SetMeterProvider(prevMP)

	tp, err := InitTracer(context.Background(), TracerConfig{
		ServiceName: "test-service",
		Endpoint:    "localhost:4318",
		Insecure:    true,
		SampleRate:  0.5,
	})
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	defer tp.Shutdown(context.Background())

	mp, err := InitMeter(context.Background(), DefaultMeterConfig("test-service"))
	if err != nil {
		t.Fatalf("InitMeter failed: %v", err)
	}
	// Shutdown may try to flush to the unreachable endpoint.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = mp.Shutdown(ctx)
}
