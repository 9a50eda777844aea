package flow

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
)

// Phase names used in logs and error details.
const (
	PhaseSetup    = "setup"
	PhaseRun      = "run"
	PhaseTeardown = "teardown"
)

// Pipeline owns the sources of a graph and its lifecycle: Setup over every
// reachable processor, Run through the Runner, Teardown over whatever was
// set up. A Pipeline is not safe for concurrent use.
type Pipeline struct {
	name    string
	sources []*Processor
	runner  Runner
	log     *logger.Logger

	graph *Graph
	setUp []*Processor
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRunner replaces the default SimpleRunner.
func WithRunner(r Runner) PipelineOption {
	return func(p *Pipeline) { p.runner = r }
}

// WithPipelineName sets the name used in logs.
func WithPipelineName(name string) PipelineOption {
	return func(p *Pipeline) { p.name = name }
}

// WithLogger sets the pipeline's logger. The default runner shares it.
func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

// NewPipeline creates an empty pipeline.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{name: "pipeline"}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get("flow")
	}
	p.log = p.log.WithFields(logger.Fields(logger.FieldPipeline, p.name))
	if p.runner == nil {
		p.runner = NewSimpleRunner(WithRunnerLogger(p.log))
	}
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// AddSource registers proc as a source and returns it.
func (p *Pipeline) AddSource(proc *Processor) *Processor {
	p.sources = append(p.sources, proc)
	return proc
}

// Sources returns the registered sources in order.
func (p *Pipeline) Sources() []*Processor {
	out := make([]*Processor, len(p.sources))
	copy(out, p.sources)
	return out
}

// BuildGraph computes the graph reachable from the sources.
func (p *Pipeline) BuildGraph() *Graph {
	return BuildGraph(p.sources...)
}

// Graph returns the graph computed by the last Setup, or nil.
func (p *Pipeline) Graph() *Graph { return p.graph }

// Setup rebuilds the graph and sets up every processor in discovery order.
// The first failure stops setup; processors already set up stay recorded
// for Teardown. A pipeline with processors still set up must be torn down
// first, otherwise Setup fails with ALREADY_EXISTS.
func (p *Pipeline) Setup(ctx context.Context) error {
	if len(p.setUp) > 0 {
		return apperrors.AlreadyExists("pipeline setup", p.name).
			WithDetail("processors", len(p.setUp))
	}
	start := time.Now()
	p.graph = p.BuildGraph()

	p.log.Debug("setting up pipeline", logger.Fields("processors", p.graph.Len(), logger.FieldPhase, PhaseSetup))
	for _, proc := range p.graph.Processors() {
		if err := proc.Setup(ctx); err != nil {
			p.log.Error("processor setup failed",
				logger.MergeWithError(logger.ProcessorFields(proc.Name(), proc.ID()), err))
			return apperrors.SetupFailed(proc.Name(), err).WithDetail(logger.FieldProcessorID, proc.ID())
		}
		p.setUp = append(p.setUp, proc)
	}
	p.log.Info("pipeline set up", logger.MergeWithDuration(
		logger.Fields("processors", len(p.setUp), logger.FieldPhase, PhaseSetup), time.Since(start)))
	return nil
}

// Run drives the sources through the runner with no input.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	err := p.runner.Run(ctx, p.sources, NoInput())
	fields := logger.MergeWithDuration(logger.Fields(logger.FieldPhase, PhaseRun), time.Since(start))
	if err != nil {
		p.log.Warn("pipeline run stopped", logger.MergeWithError(fields, err))
		return err
	}
	p.log.Info("pipeline run completed", fields)
	return nil
}

// Teardown tears down every processor that was set up, in reverse order.
// All of them are attempted; failures are joined.
func (p *Pipeline) Teardown(ctx context.Context) error {
	var errs []error
	for i := len(p.setUp) - 1; i >= 0; i-- {
		proc := p.setUp[i]
		if err := proc.Teardown(ctx); err != nil {
			p.log.Error("processor teardown failed",
				logger.MergeWithError(logger.ProcessorFields(proc.Name(), proc.ID()), err))
			errs = append(errs, apperrors.TeardownFailed(proc.Name(), err).WithDetail(logger.FieldProcessorID, proc.ID()))
		}
	}
	n := len(p.setUp)
	p.setUp = nil
	p.log.Debug("pipeline torn down", logger.Fields("processors", n, logger.FieldPhase, PhaseTeardown))
	return errors.Join(errs...)
}

// Execute runs Setup, Run and Teardown as one scope. Teardown happens on
// every exit path, with a context that outlives ctx's cancellation, and its
// errors are joined with the setup or run error.
func (p *Pipeline) Execute(ctx context.Context) (err error) {
	defer func() {
		err = errors.Join(err, p.Teardown(context.WithoutCancel(ctx)))
	}()
	if err = p.Setup(ctx); err != nil {
		return err
	}
	return p.Run(ctx)
}
