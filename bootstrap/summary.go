package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/flow"
)

// PipelineInfo describes a registered pipeline graph.
type PipelineInfo struct {
	Name       string
	Sources    []string
	Processors int
	Edges      []string
}

// Summary tracks and displays what a process started.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	pipelines       []PipelineInfo
	out             io.Writer
}

// NewSummary creates a summary written to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
		out:         os.Stdout,
	}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackPipeline records the graph reachable from p's sources.
func (s *Summary) TrackPipeline(name string, p *flow.Pipeline) {
	g := p.BuildGraph()
	info := PipelineInfo{Name: name, Processors: g.Len()}
	for _, src := range p.Sources() {
		info.Sources = append(info.Sources, src.Name())
	}
	for _, e := range g.Edges() {
		from, _ := g.Node(e.From)
		to, _ := g.Node(e.To)
		info.Edges = append(info.Edges, fmt.Sprintf("%s:%s → %s", from.Processor.Name(), e.Channel, to.Processor.Name()))
	}
	s.pipelines = append(s.pipelines, info)
}

// Pipelines returns the tracked pipelines.
func (s *Summary) Pipelines() []PipelineInfo {
	return s.pipelines
}

// Display writes the summary, including live health from registry when it
// is not nil.
func (s *Summary) Display(ctx context.Context, registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n🚀 %s v%s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	for _, p := range s.pipelines {
		fmt.Fprintf(w, "\n🔀 Pipeline %s (%d processors, sources: %s)\n",
			p.Name, p.Processors, strings.Join(p.Sources, ", "))
		for i, e := range p.Edges {
			fmt.Fprintf(w, "   %s %s\n", treePrefix(i, len(p.Edges)), e)
		}
	}

	if registry == nil {
		fmt.Fprintln(w)
		return
	}
	results := registry.HealthAll(ctx)
	if len(results) == 0 {
		fmt.Fprintf(w, "\n   └── No components registered\n\n")
		return
	}

	fmt.Fprintf(w, "\n🏥 Health Check\n")
	healthy := 0
	for i, h := range results {
		msg := ""
		if h.Message != "" {
			msg = " — " + h.Message
		}
		fmt.Fprintf(w, "   %s %s %s: %s%s\n",
			treePrefix(i, len(results)), healthStatusIcon(h.Status), h.Name, h.Status, msg)
		if h.Status == component.StatusHealthy {
			healthy++
		}
	}
	if healthy == len(results) {
		fmt.Fprintf(w, "\n✅ All components healthy (%d/%d)\n\n", healthy, len(results))
	} else {
		fmt.Fprintf(w, "\n⚠️  Some components have issues (%d/%d healthy)\n\n", healthy, len(results))
	}
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
