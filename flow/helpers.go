package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/kbukum/flowkit/stream"
)

// Emit builds an emission for channel ch.
func Emit(ch string, v any) Emission { return Emission{Channel: ch, Value: v} }

// Success builds an emission on the default channel.
func Success(v any) Emission { return Emission{Channel: DefaultChannel, Value: v} }

// Failure builds an emission on the failure channel.
func Failure(v any) Emission { return Emission{Channel: FailureChannel, Value: v} }

// Failed is the payload Transform emits on the failure channel.
type Failed struct {
	Input any
	Err   error
}

func (f Failed) Error() string { return fmt.Sprintf("processing %v: %v", f.Input, f.Err) }

func (f Failed) Unwrap() error { return f.Err }

// SourceOf is a finite source emitting values on channel ch, in order, each
// time it is invoked.
func SourceOf(ch string, values ...any) Stage {
	return StageFunc(func(context.Context, Input) (Sequence, error) {
		return stream.Map(stream.FromSlice(values), func(_ context.Context, v any) (Emission, error) {
			return Emit(ch, v), nil
		}), nil
	})
}

// Generate is an unbounded source: every pull calls fn and emits its result
// on the default channel. An error from fn ends the run.
func Generate(fn func(ctx context.Context) (any, error)) Stage {
	return StageFunc(func(context.Context, Input) (Sequence, error) {
		return stream.FromFunc(func(ctx context.Context) (Emission, bool, error) {
			v, err := fn(ctx)
			if err != nil {
				return Emission{}, false, err
			}
			return Success(v), true, nil
		}, nil), nil
	})
}

// Transform maps each input to exactly one output on the default channel.
// When fn fails the input is emitted on the failure channel as Failed
// instead, and the run continues.
func Transform(fn func(ctx context.Context, v any) (any, error)) Stage {
	return StageFunc(func(ctx context.Context, in Input) (Sequence, error) {
		out, err := fn(ctx, in.Value())
		if err != nil {
			return stream.Of(Failure(Failed{Input: in.Value(), Err: err})), nil
		}
		return stream.Of(Success(out)), nil
	})
}

// Sink consumes each input and emits nothing. An error from fn ends the run.
func Sink(fn func(ctx context.Context, v any) error) Stage {
	return StageFunc(func(ctx context.Context, in Input) (Sequence, error) {
		return nil, fn(ctx, in.Value())
	})
}

// Lifecycle attaches setup and teardown functions to stage. Either may be nil.
func Lifecycle(stage Stage, setup, teardown func(ctx context.Context) error) Stage {
	return &lifecycleStage{Stage: stage, setup: setup, teardown: teardown}
}

type lifecycleStage struct {
	Stage
	setup    func(ctx context.Context) error
	teardown func(ctx context.Context) error
}

func (s *lifecycleStage) Setup(ctx context.Context) error {
	if s.setup != nil {
		if err := s.setup(ctx); err != nil {
			return err
		}
	}
	if h, ok := s.Stage.(SetupHook); ok {
		return h.Setup(ctx)
	}
	return nil
}

func (s *lifecycleStage) Teardown(ctx context.Context) error {
	var errs []error
	if h, ok := s.Stage.(TeardownHook); ok {
		errs = append(errs, h.Teardown(ctx))
	}
	if s.teardown != nil {
		errs = append(errs, s.teardown(ctx))
	}
	return errors.Join(errs...)
}
