package testutil_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/testutil"
)

type fakeComponent struct {
	started atomic.Bool
	stopped atomic.Bool
	ready   atomic.Bool
}

func (c *fakeComponent) Name() string { return "fake" }

func (c *fakeComponent) Start(context.Context) error {
	c.started.Store(true)
	go func() {
		time.Sleep(20 * time.Millisecond)
		c.ready.Store(true)
	}()
	return nil
}

func (c *fakeComponent) Stop(context.Context) error {
	c.stopped.Store(true)
	return nil
}

func (c *fakeComponent) Health(context.Context) component.Health {
	if c.ready.Load() {
		return component.Health{Name: c.Name(), Status: component.StatusHealthy}
	}
	return component.Health{Name: c.Name(), Status: component.StatusDegraded, Message: "warming up"}
}

func TestHelper_StartStopsOnCleanup(t *testing.T) {
	c := &fakeComponent{}
	t.Run("inner", func(t *testing.T) {
		h := testutil.T(t)
		h.Start(c)
		if !c.started.Load() {
			t.Fatal("component not started")
		}
		if health := h.WaitHealthy(c, time.Second); health.Status != component.StatusHealthy {
			t.Errorf("health = %+v", health)
		}
		if c.stopped.Load() {
			t.Error("stopped before the test ended")
		}
	})
	if !c.stopped.Load() {
		t.Error("component not stopped by cleanup")
	}
}

func TestHelper_Collect(t *testing.T) {
	double := flow.Transform(func(_ context.Context, v any) (any, error) {
		n, ok := v.(int)
		if !ok {
			return nil, errors.New("not an int")
		}
		return n * 2, nil
	})
	h := testutil.T(t)

	out := h.Collect(double, flow.InputOf(21))
	if got := testutil.Channel(out, flow.DefaultChannel); len(got) != 1 || got[0] != 42 {
		t.Errorf("success = %v", got)
	}

	out = h.Collect(double, flow.InputOf("x"))
	if got := testutil.Channel(out, flow.FailureChannel); len(got) != 1 {
		t.Errorf("failure = %v", got)
	}
	if got := testutil.Channel(out, flow.DefaultChannel); got != nil {
		t.Errorf("unexpected success %v", got)
	}
}
