package flow

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
)

// forwardSetup and forwardTeardown let decorators keep the lifecycle of the
// stage they wrap.
func forwardSetup(ctx context.Context, s Stage) error {
	if h, ok := s.(SetupHook); ok {
		return h.Setup(ctx)
	}
	return nil
}

func forwardTeardown(ctx context.Context, s Stage) error {
	if h, ok := s.(TeardownHook); ok {
		return h.Teardown(ctx)
	}
	return nil
}

// seqWrapper intercepts Next and Close of a sequence. onClose runs once.
type seqWrapper struct {
	inner   Sequence
	onNext  func(ctx context.Context, em Emission, ok bool, err error)
	onClose func()
	once    sync.Once
}

func (s *seqWrapper) Next(ctx context.Context) (Emission, bool, error) {
	em, ok, err := s.inner.Next(ctx)
	if s.onNext != nil {
		s.onNext(ctx, em, ok, err)
	}
	return em, ok, err
}

func (s *seqWrapper) Close() error {
	err := s.inner.Close()
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
	return err
}

// --- Tracing ---

// WithTracing wraps a stage with OpenTelemetry spans. Each Process call
// opens a span named flow.stage.process that stays open until the sequence
// is closed and records how many items it emitted.
func WithTracing(name string, stage Stage) Stage {
	return &tracingStage{inner: stage, name: name}
}

type tracingStage struct {
	inner Stage
	name  string
}

func (s *tracingStage) traced(ctx context.Context, spanName string, fn func(context.Context) error) error {
	ctx, span := observability.StartStageSpan(ctx, spanName, s.name)
	defer span.End()
	err := fn(ctx)
	observability.SetSpanError(span, err)
	return err
}

func (s *tracingStage) Setup(ctx context.Context) error {
	return s.traced(ctx, observability.SpanStageSetup, func(ctx context.Context) error {
		return forwardSetup(ctx, s.inner)
	})
}

func (s *tracingStage) Teardown(ctx context.Context) error {
	return s.traced(ctx, observability.SpanStageTeardown, func(ctx context.Context) error {
		return forwardTeardown(ctx, s.inner)
	})
}

func (s *tracingStage) Process(ctx context.Context, in Input) (Sequence, error) {
	spanCtx, span := observability.StartStageSpan(ctx, observability.SpanStageProcess, s.name,
		attribute.Bool("flow.input", in.Present()))

	seq, err := s.inner.Process(spanCtx, in)
	if err != nil {
		observability.SetSpanError(span, err)
		span.End()
		return nil, err
	}
	if seq == nil {
		span.End()
		return nil, nil
	}

	emitted := 0
	return &seqWrapper{
		inner: seq,
		onNext: func(_ context.Context, _ Emission, ok bool, err error) {
			if err != nil {
				observability.SetSpanError(span, err)
			} else if ok {
				emitted++
			}
		},
		onClose: func() {
			span.SetAttributes(attribute.Int(observability.AttrEmissions, emitted))
			span.End()
		},
	}, nil
}

// --- Metrics ---

// WithMetrics wraps a stage with metric recording: stage call durations,
// failures by phase and the number of open sequences.
func WithMetrics(name string, stage Stage, metrics *observability.Metrics) Stage {
	return &metricsStage{inner: stage, name: name, metrics: metrics}
}

type metricsStage struct {
	inner   Stage
	name    string
	metrics *observability.Metrics
}

func (s *metricsStage) timed(ctx context.Context, phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "ok"
	if err != nil {
		status = "error"
		s.metrics.RecordError(ctx, phase, s.name)
	}
	s.metrics.RecordStage(ctx, s.name, phase, status, time.Since(start))
	return err
}

func (s *metricsStage) Setup(ctx context.Context) error {
	return s.timed(ctx, PhaseSetup, func() error { return forwardSetup(ctx, s.inner) })
}

func (s *metricsStage) Teardown(ctx context.Context) error {
	return s.timed(ctx, PhaseTeardown, func() error { return forwardTeardown(ctx, s.inner) })
}

func (s *metricsStage) Process(ctx context.Context, in Input) (Sequence, error) {
	var seq Sequence
	err := s.timed(ctx, "process", func() error {
		var err error
		seq, err = s.inner.Process(ctx, in)
		return err
	})
	if err != nil || seq == nil {
		return seq, err
	}

	s.metrics.SequenceOpened(ctx, s.name)
	return &seqWrapper{
		inner: seq,
		onNext: func(ctx context.Context, _ Emission, _ bool, err error) {
			if err != nil {
				s.metrics.RecordError(ctx, "next", s.name)
			}
		},
		onClose: func() { s.metrics.SequenceClosed(context.WithoutCancel(ctx), s.name) },
	}, nil
}

// NewMetricsObserver returns an Observer that counts emissions and drops.
func NewMetricsObserver(metrics *observability.Metrics) Observer {
	return ObserverFuncs{
		Emit: func(ctx context.Context, p *Processor, em Emission) {
			metrics.RecordEmission(ctx, p.Name(), em.Channel)
		},
		Drop: func(ctx context.Context, p *Processor, em Emission, reason DropReason) {
			metrics.RecordDrop(ctx, p.Name(), em.Channel, string(reason))
		},
	}
}

// --- Logging ---

// WithLogging wraps a stage with lifecycle and failure logging. Process
// calls and emitted items are logged at debug level.
func WithLogging(name string, stage Stage, log *logger.Logger) Stage {
	return &loggingStage{inner: stage, name: name, log: log.WithProcessor(name)}
}

type loggingStage struct {
	inner Stage
	name  string
	log   *logger.Logger
}

func (s *loggingStage) logged(phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	fields := logger.MergeWithDuration(logger.Fields(logger.FieldPhase, phase), time.Since(start))
	if err != nil {
		s.log.Error("stage "+phase+" failed", logger.MergeWithError(fields, err))
		return err
	}
	s.log.Debug("stage "+phase+" completed", fields)
	return nil
}

func (s *loggingStage) Setup(ctx context.Context) error {
	return s.logged(PhaseSetup, func() error { return forwardSetup(ctx, s.inner) })
}

func (s *loggingStage) Teardown(ctx context.Context) error {
	return s.logged(PhaseTeardown, func() error { return forwardTeardown(ctx, s.inner) })
}

func (s *loggingStage) Process(ctx context.Context, in Input) (Sequence, error) {
	var seq Sequence
	err := s.logged("process", func() error {
		var err error
		seq, err = s.inner.Process(ctx, in)
		return err
	})
	if err != nil || seq == nil {
		return seq, err
	}
	return &seqWrapper{
		inner: seq,
		onNext: func(_ context.Context, em Emission, ok bool, err error) {
			switch {
			case err != nil:
				s.log.Error("stage sequence failed", logger.ErrorFields("next", err))
			case ok:
				s.log.Debug("stage emitted", logger.Fields(logger.FieldChannel, em.Channel))
			}
		},
	}, nil
}
