// Package observability provides the OpenTelemetry setup used by flowkit:
// tracer and meter providers exported over OTLP/HTTP, and the metric
// instruments the flow engine records into.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.TracerConfig{
//	    ServiceName: "flowdemo", Endpoint: "localhost:4318", Insecure: true, SampleRate: 1,
//	})
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartStageSpan(ctx, observability.SpanStageProcess, "add")
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("flowdemo"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("flowdemo"))
//	metrics.RecordEmission(ctx, "numbers", "success")
package observability
