package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/flow"
)

// Helper wraps a test with component and stage helpers. Failures are fatal.
type Helper struct {
	t   testing.TB
	ctx context.Context
}

// T wraps t.
func T(t testing.TB) *Helper {
	return &Helper{t: t, ctx: context.Background()}
}

// WithContext sets the context passed to Start, Stop and stages.
func (h *Helper) WithContext(ctx context.Context) *Helper {
	h.ctx = ctx
	return h
}

// Start starts c and stops it when the test ends.
func (h *Helper) Start(c component.Component) {
	h.t.Helper()
	if err := c.Start(h.ctx); err != nil {
		h.t.Fatalf("failed to start component %s: %v", c.Name(), err)
	}
	h.t.Cleanup(func() {
		if err := c.Stop(context.WithoutCancel(h.ctx)); err != nil {
			h.t.Errorf("failed to stop component %s: %v", c.Name(), err)
		}
	})
}

// WaitHealthy polls c until it reports healthy or timeout passes.
func (h *Helper) WaitHealthy(c component.Component, timeout time.Duration) component.Health {
	h.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		health := c.Health(h.ctx)
		if health.Status == component.StatusHealthy {
			return health
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("component %s not healthy after %s: %+v", c.Name(), timeout, health)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Collect runs stage once with its hooks on in and returns what it emitted.
func (h *Helper) Collect(stage flow.Stage, in flow.Input) []flow.Emission {
	h.t.Helper()
	out, err := flow.NewProcessor(stage).Collect(h.ctx, in)
	if err != nil {
		h.t.Fatalf("stage failed: %v", err)
	}
	return out
}

// Channel returns the values emitted on ch, in order.
func Channel(out []flow.Emission, ch string) []any {
	var values []any
	for _, e := range out {
		if e.Channel == ch {
			values = append(values, e.Value)
		}
	}
	return values
}
