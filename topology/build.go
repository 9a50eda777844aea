package topology

import (
	"fmt"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/validation"
)

// Decorator wraps the stage created for the named processor.
type Decorator func(name string, stage flow.Stage) flow.Stage

// Built is a pipeline assembled from a definition.
type Built struct {
	Pipeline   *flow.Pipeline
	processors map[string]*flow.Processor
	order      []string
}

// Processor returns the processor built for name.
func (b *Built) Processor(name string) (*flow.Processor, bool) {
	p, ok := b.processors[name]
	return p, ok
}

// Processors returns the processors in definition order.
func (b *Built) Processors() []*flow.Processor {
	out := make([]*flow.Processor, len(b.order))
	for i, name := range b.order {
		out[i] = b.processors[name]
	}
	return out
}

type buildOptions struct {
	log          *logger.Logger
	decorators   []Decorator
	runnerOpts   []flow.RunnerOption
	pipelineOpts []flow.PipelineOption
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithLogger sets the logger shared by the pipeline and its runner.
func WithLogger(l *logger.Logger) BuildOption {
	return func(o *buildOptions) { o.log = l }
}

// WithDecorator wraps every created stage. Decorators apply in the order
// given, so the last one is outermost.
func WithDecorator(d Decorator) BuildOption {
	return func(o *buildOptions) { o.decorators = append(o.decorators, d) }
}

// WithRunnerOptions adds options to the runner Build creates.
func WithRunnerOptions(opts ...flow.RunnerOption) BuildOption {
	return func(o *buildOptions) { o.runnerOpts = append(o.runnerOpts, opts...) }
}

// WithPipelineOptions adds options to the pipeline. They apply after the
// ones Build sets, so WithRunner replaces the built runner.
func WithPipelineOptions(opts ...flow.PipelineOption) BuildOption {
	return func(o *buildOptions) { o.pipelineOpts = append(o.pipelineOpts, opts...) }
}

// Check validates def against reg without creating anything.
func Check(def *Definition, reg *Registry) error {
	v := validation.New()
	v.Merge("", validation.Validate(def))

	names := make(map[string]int, len(def.Processors))
	for i, p := range def.Processors {
		if first, dup := names[p.Name]; dup && p.Name != "" {
			v.AddErrorf(fmt.Sprintf("processors[%d].name", i), "duplicate of processors[%d]", first)
			continue
		}
		names[p.Name] = i
	}

	hasSource := false
	for i, p := range def.Processors {
		hasSource = hasSource || p.Source
		if p.Component != "" {
			if _, ok := reg.Get(p.Component); !ok {
				v.AddErrorf(fmt.Sprintf("processors[%d].component", i), "unknown component %q", p.Component)
			}
		}
		for j, ref := range p.Inputs {
			proc, _, ok := validation.ParseRef(ref)
			if !ok {
				continue
			}
			if _, known := names[proc]; !known {
				v.AddErrorf(fmt.Sprintf("processors[%d].inputs[%d]", i, j), "unknown processor %q", proc)
			}
		}
	}
	v.Check(hasSource, "processors", "at least one processor must be a source")

	if err := v.Err(); err != nil {
		return errors.InvalidConfig(fmt.Sprintf("topology %q is invalid", def.Name)).WithCause(err)
	}
	return nil
}

// Build checks def, creates a stage per processor from reg, wires the
// inputs and returns the pipeline with its sources in definition order.
func Build(def *Definition, reg *Registry, opts ...BuildOption) (*Built, error) {
	if err := Check(def, reg); err != nil {
		return nil, err
	}

	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get("topology")
	}

	built := &Built{processors: make(map[string]*flow.Processor, len(def.Processors))}
	for _, spec := range def.Processors {
		factory, _ := reg.Get(spec.Component)
		stage, err := factory(spec.Params)
		if err != nil {
			return nil, errors.InvalidConfig(fmt.Sprintf("topology %q: creating %s", def.Name, spec.Name)).
				WithCause(err).
				WithDetail(logger.FieldProcessor, spec.Name).
				WithDetail("component", spec.Component)
		}
		for _, d := range o.decorators {
			stage = d(spec.Name, stage)
		}
		built.processors[spec.Name] = flow.NewProcessor(stage, flow.WithName(spec.Name))
		built.order = append(built.order, spec.Name)
	}

	for _, spec := range def.Processors {
		if len(spec.Inputs) == 0 {
			continue
		}
		outlets := make([]flow.Outlet, 0, len(spec.Inputs))
		for _, ref := range spec.Inputs {
			name, channel, _ := validation.ParseRef(ref)
			src := built.processors[name]
			if channel == "" {
				outlets = append(outlets, src)
			} else {
				outlets = append(outlets, src.Channel(channel))
			}
		}
		flow.FunnelInto(built.processors[spec.Name], outlets...)
	}

	runnerOpts := []flow.RunnerOption{flow.WithRunnerLogger(o.log)}
	if def.Runner.SuppressEmpty {
		runnerOpts = append(runnerOpts, flow.WithEmptySuppression())
	}
	pipelineOpts := append([]flow.PipelineOption{
		flow.WithPipelineName(def.Name),
		flow.WithLogger(o.log),
		flow.WithRunner(flow.NewSimpleRunner(append(runnerOpts, o.runnerOpts...)...)),
	}, o.pipelineOpts...)

	built.Pipeline = flow.NewPipeline(pipelineOpts...)
	for _, spec := range def.Processors {
		if spec.Source {
			built.Pipeline.AddSource(built.processors[spec.Name])
		}
	}

	o.log.Debug("topology built", logger.Fields(
		logger.FieldPipeline, def.Name,
		"processors", len(def.Processors),
		"sources", len(built.Pipeline.Sources()),
	))
	return built, nil
}
