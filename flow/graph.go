package flow

import (
	"maps"
	"slices"
)

// Graph is the id-indexed table of every processor reachable from a set of
// sources. Nodes refer to their destinations by id, so cycles need no
// special handling.
type Graph struct {
	order []string
	nodes map[string]*Node
}

// Node is one processor and the destination ids of each of its channels.
type Node struct {
	Processor *Processor
	Channels  map[string][]string
}

// Edge is one connection: From routes Channel to To.
type Edge struct {
	From    string
	Channel string
	To      string
}

// BuildGraph walks every channel of every processor reachable from sources,
// depth-first, visiting each processor once.
func BuildGraph(sources ...*Processor) *Graph {
	g := &Graph{nodes: make(map[string]*Node)}

	stack := make([]*Processor, 0, len(sources))
	for i := len(sources) - 1; i >= 0; i-- {
		stack = append(stack, sources[i])
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p == nil {
			continue
		}
		if _, seen := g.nodes[p.id]; seen {
			continue
		}

		node := &Node{Processor: p, Channels: make(map[string][]string, len(p.relationships))}
		g.nodes[p.id] = node
		g.order = append(g.order, p.id)

		var next []*Processor
		for _, name := range slices.Sorted(maps.Keys(p.relationships)) {
			dests := p.relationships[name].destinations
			ids := make([]string, len(dests))
			for i, d := range dests {
				ids[i] = d.id
			}
			node.Channels[name] = ids
			next = append(next, dests...)
		}
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return g
}

// Len returns the number of distinct processors.
func (g *Graph) Len() int { return len(g.order) }

// Node returns the node for id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the nodes in discovery order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id]
	}
	return out
}

// Processors returns the processors in discovery order.
func (g *Graph) Processors() []*Processor {
	out := make([]*Processor, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id].Processor
	}
	return out
}

// Edges lists every connection, grouped by source node in discovery order
// and by channel name. Duplicate connections appear once per connection.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, id := range g.order {
		node := g.nodes[id]
		for _, ch := range slices.Sorted(maps.Keys(node.Channels)) {
			for _, to := range node.Channels[ch] {
				edges = append(edges, Edge{From: id, Channel: ch, To: to})
			}
		}
	}
	return edges
}
