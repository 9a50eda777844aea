package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/flowkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The returned provider should be shut down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric names.
const (
	MetricEmissions     = "flow.emissions"
	MetricDrops         = "flow.drops"
	MetricStageDuration = "flow.stage.duration"
	MetricErrors        = "flow.errors"
	MetricOpenSequences = "flow.sequences.open"
)

// Metrics holds the instruments recorded by the flow engine.
type Metrics struct {
	emissions     metric.Int64Counter
	drops         metric.Int64Counter
	stageDuration metric.Float64Histogram
	errorTotal    metric.Int64Counter
	openSequences metric.Int64UpDownCounter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	emissions, err := meter.Int64Counter(MetricEmissions,
		metric.WithDescription("Items pulled from stage sequences"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricEmissions, err)
	}

	drops, err := meter.Int64Counter(MetricDrops,
		metric.WithDescription("Items that were not routed to any destination"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricDrops, err)
	}

	stageDuration, err := meter.Float64Histogram(MetricStageDuration,
		metric.WithDescription("Duration of stage calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricStageDuration, err)
	}

	errorTotal, err := meter.Int64Counter(MetricErrors,
		metric.WithDescription("Stage failures by phase"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricErrors, err)
	}

	openSequences, err := meter.Int64UpDownCounter(MetricOpenSequences,
		metric.WithDescription("Sequences currently open"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricOpenSequences, err)
	}

	return &Metrics{
		emissions:     emissions,
		drops:         drops,
		stageDuration: stageDuration,
		errorTotal:    errorTotal,
		openSequences: openSequences,
	}, nil
}

// RecordEmission counts one item emitted by processor on channel.
func (m *Metrics) RecordEmission(ctx context.Context, processor, channel string) {
	m.emissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrProcessor, processor),
		attribute.String(AttrChannel, channel),
	))
}

// RecordDrop counts one item that was not routed.
func (m *Metrics) RecordDrop(ctx context.Context, processor, channel, reason string) {
	m.drops.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrProcessor, processor),
		attribute.String(AttrChannel, channel),
		attribute.String(AttrDropReason, reason),
	))
}

// RecordStage records the duration of one stage call.
func (m *Metrics) RecordStage(ctx context.Context, processor, phase, status string, duration time.Duration) {
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrProcessor, processor),
		attribute.String(AttrPhase, phase),
		attribute.String(AttrStatus, status),
	))
}

// RecordError counts a stage failure in phase.
func (m *Metrics) RecordError(ctx context.Context, phase, processor string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPhase, phase),
		attribute.String(AttrProcessor, processor),
	))
}

// SequenceOpened increments the open sequence gauge.
func (m *Metrics) SequenceOpened(ctx context.Context, processor string) {
	m.openSequences.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrProcessor, processor)))
}

// SequenceClosed decrements the open sequence gauge.
func (m *Metrics) SequenceClosed(ctx context.Context, processor string) {
	m.openSequences.Add(ctx, -1, metric.WithAttributes(attribute.String(AttrProcessor, processor)))
}
