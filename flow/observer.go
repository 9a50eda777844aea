package flow

import "context"

// DropReason says why an emission reached no destination.
type DropReason string

const (
	// DropNoRelationship means the emitting processor has no relationship
	// with the emission's channel name.
	DropNoRelationship DropReason = "no_relationship"
	// DropNoDestinations means the relationship exists but is empty.
	DropNoDestinations DropReason = "no_destinations"
	// DropEmptyValue means empty-value suppression discarded the value.
	DropEmptyValue DropReason = "empty_value"
)

// Observer receives routing events from a SimpleRunner. Calls happen on the
// runner's goroutine, in dispatch order.
type Observer interface {
	// OnEmit is called for every item pulled from a sequence.
	OnEmit(ctx context.Context, p *Processor, em Emission)
	// OnDrop is called after OnEmit when the item is not routed anywhere.
	OnDrop(ctx context.Context, p *Processor, em Emission, reason DropReason)
	// OnExhausted is called once a sequence reports it has no more items.
	OnExhausted(ctx context.Context, p *Processor)
}

// ObserverFuncs is an Observer built from optional callbacks.
type ObserverFuncs struct {
	Emit      func(ctx context.Context, p *Processor, em Emission)
	Drop      func(ctx context.Context, p *Processor, em Emission, reason DropReason)
	Exhausted func(ctx context.Context, p *Processor)
}

func (o ObserverFuncs) OnEmit(ctx context.Context, p *Processor, em Emission) {
	if o.Emit != nil {
		o.Emit(ctx, p, em)
	}
}

func (o ObserverFuncs) OnDrop(ctx context.Context, p *Processor, em Emission, reason DropReason) {
	if o.Drop != nil {
		o.Drop(ctx, p, em, reason)
	}
}

func (o ObserverFuncs) OnExhausted(ctx context.Context, p *Processor) {
	if o.Exhausted != nil {
		o.Exhausted(ctx, p)
	}
}

type multiObserver []Observer

func (m multiObserver) OnEmit(ctx context.Context, p *Processor, em Emission) {
	for _, o := range m {
		o.OnEmit(ctx, p, em)
	}
}

func (m multiObserver) OnDrop(ctx context.Context, p *Processor, em Emission, reason DropReason) {
	for _, o := range m {
		o.OnDrop(ctx, p, em, reason)
	}
}

func (m multiObserver) OnExhausted(ctx context.Context, p *Processor) {
	for _, o := range m {
		o.OnExhausted(ctx, p)
	}
}
