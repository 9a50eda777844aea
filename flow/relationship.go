package flow

import "slices"

// Relationship is a named output channel of a processor. Destinations are
// kept in connection order and may repeat; a destination listed twice is
// invoked twice per emission.
type Relationship struct {
	name         string
	destinations []*Processor
}

// Name returns the channel name.
func (r *Relationship) Name() string { return r.name }

// Connect appends dest and returns it.
func (r *Relationship) Connect(dest *Processor) *Processor {
	r.destinations = append(r.destinations, dest)
	return dest
}

// Destinations returns a copy of the destinations in connection order.
func (r *Relationship) Destinations() []*Processor {
	return slices.Clone(r.destinations)
}

// Len returns the number of destinations.
func (r *Relationship) Len() int { return len(r.destinations) }

func (r *Relationship) outlet() *Relationship { return r }
