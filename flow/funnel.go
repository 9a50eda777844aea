package flow

// Outlet is anything a funnel can draw from: a *Relationship, or a
// *Processor standing for its default channel.
type Outlet interface {
	outlet() *Relationship
}

// Funnel gathers several outlets so they can be connected to one
// destination at once. It is not a join: the destination is invoked once
// per upstream emission.
type Funnel struct {
	inputs []Outlet
}

// NewFunnel creates a funnel over inputs.
func NewFunnel(inputs ...Outlet) *Funnel {
	return &Funnel{inputs: inputs}
}

// Connect appends dest to every input and returns dest.
func (f *Funnel) Connect(dest *Processor) *Processor {
	for _, in := range f.inputs {
		in.outlet().Connect(dest)
	}
	return dest
}

// FunnelInto connects every input to dest and returns dest.
func FunnelInto(dest *Processor, inputs ...Outlet) *Processor {
	return NewFunnel(inputs...).Connect(dest)
}
