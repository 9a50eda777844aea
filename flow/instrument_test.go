package flow

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/resilience"
)

func withSpanRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func findSpan(spans tracetest.SpanStubs, name string) (tracetest.SpanStub, bool) {
	for _, s := range spans {
		if s.Name == name {
			return s, true
		}
	}
	return tracetest.SpanStub{}, false
}

func TestWithTracing_SpansPerPhase(t *testing.T) {
	exporter := withSpanRecorder(t)

	var c counter
	src := NewProcessor(WithTracing("words", c.wrap(SourceOf(DefaultChannel, "a", "b", "c"))), WithName("words"))
	var out collector
	src.Connect(NewProcessor(out.sink()))

	p := quietPipeline()
	p.AddSource(src)
	if err := p.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, td := c.counts(); s != 1 || td != 1 {
		t.Fatalf("expected lifecycle forwarded through tracing, got %d/%d", s, td)
	}
	if len(out.values()) != 3 {
		t.Fatalf("expected 3 values routed, got %d", len(out.values()))
	}

	spans := exporter.GetSpans()
	for _, name := range []string{observability.SpanStageSetup, observability.SpanStageProcess, observability.SpanStageTeardown} {
		if _, ok := findSpan(spans, name); !ok {
			t.Fatalf("expected span %s, got %d spans", name, len(spans))
		}
	}

	process, _ := findSpan(spans, observability.SpanStageProcess)
	var emissions int64 = -1
	var processor string
	for _, kv := range process.Attributes {
		switch string(kv.Key) {
		case observability.AttrEmissions:
			emissions = kv.Value.AsInt64()
		case observability.AttrProcessor:
			processor = kv.Value.AsString()
		}
	}
	if emissions != 3 {
		t.Fatalf("expected 3 emissions recorded on span, got %d", emissions)
	}
	if processor != "words" {
		t.Fatalf("expected processor attribute words, got %q", processor)
	}
}

func TestWithTracing_RecordsErrors(t *testing.T) {
	exporter := withSpanRecorder(t)

	stage := WithTracing("broken", StageFunc(func(context.Context, Input) (Sequence, error) {
		return nil, errors.New("cannot open")
	}))
	if _, err := stage.Process(context.Background(), NoInput()); err == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status.Code)
	}
}

func TestWithTracing_SinkEndsSpan(t *testing.T) {
	exporter := withSpanRecorder(t)

	stage := WithTracing("sink", Sink(func(context.Context, any) error { return nil }))
	seq, err := stage.Process(context.Background(), InputOf(1))
	if err != nil || seq != nil {
		t.Fatalf("expected nil sequence, got %v %v", seq, err)
	}
	if len(exporter.GetSpans()) != 1 {
		t.Fatal("expected the process span to end immediately")
	}
}

func sumInt64(rm metricdata.ResourceMetrics, name string) int64 {
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

func histogramPoints(rm metricdata.ResourceMetrics, name string) uint64 {
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

func TestWithMetrics_AndObserver(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := observability.NewMetrics(mp.Meter("flow-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// nothing is connected, so every emission is dropped
	src := NewProcessor(WithMetrics("numbers", SourceOf(DefaultChannel, 1, 2, 3), metrics), WithName("numbers"))
	p := quietPipeline(WithRunner(quietRunner(WithObserver(NewMetricsObserver(metrics)))))
	p.AddSource(src)
	if err := p.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if got := sumInt64(rm, observability.MetricEmissions); got != 3 {
		t.Errorf("expected 3 emissions, got %d", got)
	}
	if got := sumInt64(rm, observability.MetricDrops); got != 3 {
		t.Errorf("expected 3 drops, got %d", got)
	}
	if got := sumInt64(rm, observability.MetricOpenSequences); got != 0 {
		t.Errorf("expected no open sequences, got %d", got)
	}
	if got := sumInt64(rm, observability.MetricErrors); got != 0 {
		t.Errorf("expected no errors, got %d", got)
	}
	// setup, process and teardown
	if got := histogramPoints(rm, observability.MetricStageDuration); got != 3 {
		t.Errorf("expected 3 stage timings, got %d", got)
	}
}

func TestWithMetrics_CountsFailures(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, err := observability.NewMetrics(mp.Meter("flow-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n := 0
	src := NewProcessor(WithMetrics("ticker", Generate(func(context.Context) (any, error) {
		n++
		if n > 2 {
			return nil, errors.New("ticker stopped")
		}
		return n, nil
	}), metrics))

	p := quietPipeline()
	p.AddSource(src)
	if err := p.Execute(context.Background()); err == nil {
		t.Fatal("expected run error")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if got := sumInt64(rm, observability.MetricErrors); got != 1 {
		t.Errorf("expected 1 error, got %d", got)
	}
	if got := sumInt64(rm, observability.MetricOpenSequences); got != 0 {
		t.Errorf("expected the failed sequence to be closed, got %d open", got)
	}
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "flow-test", &buf)

	src := NewProcessor(WithLogging("numbers", SourceOf(DefaultChannel, 1), log))
	p := quietPipeline()
	p.AddSource(src)
	if err := p.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"stage setup completed", "stage process completed", "stage emitted", "stage teardown completed", `"processor":"numbers"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output:\n%s", want, out)
		}
	}
}

func TestWithSetupRetry(t *testing.T) {
	attempts := 0
	stage := WithSetupRetry(
		Lifecycle(SourceOf(DefaultChannel, "ok"), func(context.Context) error {
			attempts++
			if attempts < 3 {
				return apperrors.ServiceUnavailable("word store")
			}
			return nil
		}, nil),
		resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	)

	out, err := NewProcessor(stage).Collect(context.Background(), NoInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 setup attempts, got %d", attempts)
	}
	if len(out) != 1 {
		t.Fatalf("expected processing to run once, got %d emissions", len(out))
	}
}

func TestWithSetupRetry_NonRetryable(t *testing.T) {
	attempts := 0
	stage := WithSetupRetry(
		Lifecycle(SourceOf(DefaultChannel), func(context.Context) error {
			attempts++
			return apperrors.InvalidConfig("missing path")
		}, nil),
		resilience.RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond},
	)

	if err := stage.(SetupHook).Setup(context.Background()); err == nil {
		t.Fatal("expected setup error")
	}
	if attempts != 1 {
		t.Fatalf("expected no retries for a non-retryable error, got %d attempts", attempts)
	}
}

func TestWithRateLimit(t *testing.T) {
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 1000, Burst: 2})
	src := NewProcessor(WithRateLimit(SourceOf(DefaultChannel, 1, 2, 3, 4), limiter))
	var out collector
	src.Connect(NewProcessor(out.sink()))

	if err := quietRunner().Run(context.Background(), []*Processor{src}, NoInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertValues(t, out.values(), []any{1, 2, 3, 4})
}

func TestWithRateLimit_CanceledWhileWaiting(t *testing.T) {
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 0.01, Burst: 1})
	n := 0
	src := NewProcessor(WithRateLimit(Generate(func(context.Context) (any, error) {
		n++
		return n, nil
	}), limiter))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := quietRunner().Run(ctx, []*Processor{src}, NoInput())
	if !apperrors.HasCode(err, apperrors.ErrCodeCanceled) {
		t.Fatalf("expected CANCELED, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one pull before the limiter blocked, got %d", n)
	}
}
