package flow

import (
	"context"
	"errors"
	"slices"
	"time"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
)

// Runner drives a set of processors to completion.
type Runner interface {
	Run(ctx context.Context, procs []*Processor, in Input) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, procs []*Processor, in Input) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, procs []*Processor, in Input) error {
	return f(ctx, procs, in)
}

// SimpleRunner is the default Runner. Sources are pulled round-robin, one
// item each per round; every item is routed and drained depth-first before
// the next pull, so no source is starved and downstream order follows
// upstream order. Everything runs on the calling goroutine.
type SimpleRunner struct {
	suppressEmpty bool
	logDrops      bool
	observer      Observer
	log           *logger.Logger
}

// RunnerOption configures a SimpleRunner.
type RunnerOption func(*SimpleRunner)

// WithEmptySuppression discards nil, zero scalars and empty strings, slices
// and maps instead of routing them.
func WithEmptySuppression() RunnerOption {
	return func(r *SimpleRunner) { r.suppressEmpty = true }
}

// WithDropLogging toggles the debug record written for each dropped item.
func WithDropLogging(enabled bool) RunnerOption {
	return func(r *SimpleRunner) { r.logDrops = enabled }
}

// WithObserver adds an observer. Observers are called in the order added.
func WithObserver(o Observer) RunnerOption {
	return func(r *SimpleRunner) {
		switch cur := r.observer.(type) {
		case nil:
			r.observer = o
		case multiObserver:
			r.observer = append(cur, o)
		default:
			r.observer = multiObserver{cur, o}
		}
	}
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(l *logger.Logger) RunnerOption {
	return func(r *SimpleRunner) { r.log = l }
}

// NewSimpleRunner creates a SimpleRunner.
func NewSimpleRunner(opts ...RunnerOption) *SimpleRunner {
	r := &SimpleRunner{logDrops: true}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get("flow")
	}
	return r
}

// activeSeq is one open sequence and the processor that produced it.
type activeSeq struct {
	proc *Processor
	seq  Sequence
}

// frame is the active set of one dispatch level. The root frame holds the
// sources; each routed item pushes a frame for its destinations.
type frame struct {
	items  []activeSeq
	cursor int
	depth  int
}

// Run invokes every processor in procs with in, then pulls their sequences
// until all are exhausted. The first error aborts the run; sequences still
// open are closed before returning.
func (r *SimpleRunner) Run(ctx context.Context, procs []*Processor, in Input) error {
	var stack []*frame
	defer func() {
		for _, f := range stack {
			r.closeFrame(f)
		}
	}()

	start := time.Now()
	r.log.Debug("run started", logger.Fields("sources", len(procs)))

	root, err := r.open(ctx, procs, in, 0)
	if err != nil {
		return err
	}
	if len(root.items) > 0 {
		stack = append(stack, root)
	}

	rounds := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.cursor == len(f.items) {
			f.items = slices.DeleteFunc(f.items, func(a activeSeq) bool { return a.seq == nil })
			f.cursor = 0
			if f.depth == 0 {
				rounds++
			}
			if len(f.items) == 0 {
				stack = stack[:len(stack)-1]
				continue
			}
		}

		a := &f.items[f.cursor]
		f.cursor++

		if err := ctx.Err(); err != nil {
			r.log.Debug("run canceled", logger.Fields(logger.FieldRounds, rounds, logger.FieldError, err.Error()))
			return apperrors.Canceled(err)
		}

		em, ok, err := a.seq.Next(ctx)
		if err != nil {
			return r.stageError(ctx, a.proc, err)
		}
		if !ok {
			r.exhaust(ctx, a)
			continue
		}

		dests := r.route(ctx, a.proc, em, f.depth)
		if len(dests) == 0 {
			continue
		}
		child, err := r.open(ctx, dests, InputOf(em.Value), f.depth+1)
		if err != nil {
			return err
		}
		if len(child.items) > 0 {
			stack = append(stack, child)
		}
	}

	r.log.Debug("run finished", logger.MergeWithDuration(
		logger.Fields(logger.FieldRounds, rounds), time.Since(start)))
	return nil
}

// open calls Process on every processor before anything is pulled.
func (r *SimpleRunner) open(ctx context.Context, procs []*Processor, in Input, depth int) (*frame, error) {
	f := &frame{items: make([]activeSeq, 0, len(procs)), depth: depth}
	for _, p := range procs {
		seq, err := p.Process(ctx, in)
		if err != nil {
			r.closeFrame(f)
			return nil, r.stageError(ctx, p, err)
		}
		if seq != nil {
			f.items = append(f.items, activeSeq{proc: p, seq: seq})
		}
	}
	return f, nil
}

// route returns the destinations for em, or nil when it is dropped.
func (r *SimpleRunner) route(ctx context.Context, p *Processor, em Emission, depth int) []*Processor {
	if r.observer != nil {
		r.observer.OnEmit(ctx, p, em)
	}
	if r.suppressEmpty && isEmpty(em.Value) {
		r.drop(ctx, p, em, DropEmptyValue, depth)
		return nil
	}
	rel, ok := p.Relationship(em.Channel)
	if !ok {
		r.drop(ctx, p, em, DropNoRelationship, depth)
		return nil
	}
	if rel.Len() == 0 {
		r.drop(ctx, p, em, DropNoDestinations, depth)
		return nil
	}
	return rel.destinations
}

func (r *SimpleRunner) drop(ctx context.Context, p *Processor, em Emission, reason DropReason, depth int) {
	if r.observer != nil {
		r.observer.OnDrop(ctx, p, em, reason)
	}
	if r.logDrops {
		r.log.Debug("emission dropped", logger.ProcessorFields(p.Name(), p.ID()), logger.Fields(
			logger.FieldChannel, em.Channel,
			logger.FieldReason, string(reason),
			logger.FieldDepth, depth,
		))
	}
}

func (r *SimpleRunner) exhaust(ctx context.Context, a *activeSeq) {
	if err := a.seq.Close(); err != nil {
		r.log.Warn("closing exhausted sequence failed",
			logger.MergeWithError(logger.ProcessorFields(a.proc.Name(), a.proc.ID()), err))
	}
	a.seq = nil
	if r.observer != nil {
		r.observer.OnExhausted(ctx, a.proc)
	}
}

func (r *SimpleRunner) closeFrame(f *frame) {
	for i := range f.items {
		a := &f.items[i]
		if a.seq == nil {
			continue
		}
		if err := a.seq.Close(); err != nil {
			r.log.Warn("closing sequence failed",
				logger.MergeWithError(logger.ProcessorFields(a.proc.Name(), a.proc.ID()), err))
		}
		a.seq = nil
	}
}

func (r *SimpleRunner) stageError(ctx context.Context, p *Processor, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return apperrors.Canceled(err).WithDetail(logger.FieldProcessor, p.Name())
	}
	r.log.Error("stage failed", logger.MergeWithError(logger.ProcessorFields(p.Name(), p.ID()), err))
	return apperrors.StageFailed(p.Name(), err).WithDetail(logger.FieldProcessorID, p.ID())
}
