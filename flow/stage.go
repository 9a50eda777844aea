package flow

import (
	"context"
	"iter"

	"github.com/kbukum/flowkit/stream"
)

// Channel names used by the built-in helpers.
const (
	DefaultChannel = "success"
	FailureChannel = "failure"
)

// Emission is one item produced by a stage: the relationship it should be
// routed through and the value carried to every destination.
type Emission struct {
	Channel string
	Value   any
}

// Sequence is the lazy output of a single Process call.
type Sequence = stream.Iterator[Emission]

// Input is the zero-or-one value handed to Process. Sources receive NoInput;
// every downstream invocation receives exactly one value, which may itself be
// a zero value.
type Input struct {
	value   any
	present bool
}

// NoInput is the input given to source processors.
func NoInput() Input { return Input{} }

// InputOf wraps v as a present input.
func InputOf(v any) Input { return Input{value: v, present: true} }

// Value returns the wrapped value, or nil for NoInput.
func (in Input) Value() any { return in.value }

// Present reports whether a value was supplied.
func (in Input) Present() bool { return in.present }

// Stage is the processing body owned by a Processor. Each Process call
// returns a fresh Sequence, or nil when the stage only has side effects.
type Stage interface {
	Process(ctx context.Context, in Input) (Sequence, error)
}

// SetupHook is implemented by stages that acquire resources before a run.
type SetupHook interface {
	Setup(ctx context.Context) error
}

// TeardownHook is implemented by stages that release resources after a run.
type TeardownHook interface {
	Teardown(ctx context.Context) error
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(ctx context.Context, in Input) (Sequence, error)

// Process calls f.
func (f StageFunc) Process(ctx context.Context, in Input) (Sequence, error) {
	return f(ctx, in)
}

// GeneratorFunc adapts a range-over-func generator to the Stage interface.
// The generator is resumed one emission per pull and stopped when the
// sequence is closed. A nil generator makes the invocation a pure sink.
type GeneratorFunc func(ctx context.Context, in Input) iter.Seq2[Emission, error]

// Process starts the generator.
func (f GeneratorFunc) Process(ctx context.Context, in Input) (Sequence, error) {
	seq := f(ctx, in)
	if seq == nil {
		return nil, nil
	}
	return stream.FromSeq2(seq), nil
}
