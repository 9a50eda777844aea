package flow

import (
	"context"
	"errors"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/stream"
)

// Processor is a graph node: one Stage plus the named relationships its
// emissions are routed through.
type Processor struct {
	id            string
	name          string
	stage         Stage
	relationships map[string]*Relationship
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithName sets the display name. It defaults to the processor id.
func WithName(name string) ProcessorOption {
	return func(p *Processor) { p.name = name }
}

// NewProcessor wraps stage in a new processor with a generated id.
func NewProcessor(stage Stage, opts ...ProcessorOption) *Processor {
	p := &Processor{
		id:            uuid.NewString(),
		stage:         stage,
		relationships: make(map[string]*Relationship),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.name == "" {
		p.name = p.id
	}
	return p
}

// ID returns the unique processor id.
func (p *Processor) ID() string { return p.id }

// Name returns the display name.
func (p *Processor) Name() string { return p.name }

// Stage returns the wrapped stage.
func (p *Processor) Stage() Stage { return p.stage }

// String implements fmt.Stringer.
func (p *Processor) String() string { return p.name }

// Connect routes the default channel to dest and returns dest, so calls
// can be chained: a.Connect(b).Connect(c).
func (p *Processor) Connect(dest *Processor) *Processor {
	return p.Channel(DefaultChannel).Connect(dest)
}

// Channel returns the relationship for name, creating it on first use.
func (p *Processor) Channel(name string) *Relationship {
	if rel, ok := p.relationships[name]; ok {
		return rel
	}
	rel := &Relationship{name: name}
	p.relationships[name] = rel
	return rel
}

// Relationship looks up an existing relationship without creating one.
func (p *Processor) Relationship(name string) (*Relationship, bool) {
	rel, ok := p.relationships[name]
	return rel, ok
}

// Setup runs the stage's setup hook, if any.
func (p *Processor) Setup(ctx context.Context) error {
	if h, ok := p.stage.(SetupHook); ok {
		return h.Setup(ctx)
	}
	return nil
}

// Teardown runs the stage's teardown hook, if any.
func (p *Processor) Teardown(ctx context.Context) error {
	if h, ok := p.stage.(TeardownHook); ok {
		return h.Teardown(ctx)
	}
	return nil
}

// Process invokes the stage and returns its sequence unchanged.
func (p *Processor) Process(ctx context.Context, in Input) (Sequence, error) {
	return p.stage.Process(ctx, in)
}

// Collect uses the processor on its own, outside any pipeline: setup,
// one Process call drained to completion, then teardown. Relationships are
// not followed.
func (p *Processor) Collect(ctx context.Context, in Input) (out []Emission, err error) {
	if err := p.Setup(ctx); err != nil {
		return nil, apperrors.SetupFailed(p.name, err)
	}
	defer func() {
		if tErr := p.Teardown(context.WithoutCancel(ctx)); tErr != nil {
			err = errors.Join(err, apperrors.TeardownFailed(p.name, tErr))
		}
	}()

	seq, err := p.Process(ctx, in)
	if err != nil {
		return nil, apperrors.StageFailed(p.name, err)
	}
	if seq == nil {
		return nil, nil
	}
	out, err = stream.Collect(ctx, seq)
	if err != nil {
		return out, apperrors.StageFailed(p.name, err)
	}
	return out, nil
}

func (p *Processor) outlet() *Relationship { return p.Channel(DefaultChannel) }
