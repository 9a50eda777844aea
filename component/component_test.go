package component

import (
	"context"
	"fmt"
	"testing"

	apperrors "github.com/kbukum/flowkit/errors"
)

// mockComponent implements Component for testing.
type mockComponent struct {
	name       string
	startErr   error
	stopErr    error
	health     Health
	startOrder *[]string
	stopOrder  *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.startOrder != nil {
		*m.startOrder = append(*m.startOrder, m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.stopOrder != nil {
		*m.stopOrder = append(*m.stopOrder, m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health {
	return m.health
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	c := &mockComponent{name: "webhook", health: Health{Name: "webhook", Status: StatusHealthy}}

	if err := r.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	c := &mockComponent{name: "webhook"}
	r.Register(c)

	err := r.Register(&mockComponent{name: "webhook"})
	if err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestGet(t *testing.T) {
	r := NewRegistry()
	c := &mockComponent{name: "webhook"}
	r.Register(c)

	got := r.Get("webhook")
	if got == nil {
		t.Fatal("expected to get registered component")
	}
	if got.Name() != "webhook" {
		t.Errorf("expected 'webhook', got %q", got.Name())
	}
}

func TestGetNotFound(t *testing.T) {
	r := NewRegistry()
	got := r.Get("missing")
	if got != nil {
		t.Error("expected nil for unregistered component")
	}
}

func TestStartAll(t *testing.T) {
	r := NewRegistry()
	order := []string{}

	r.Register(&mockComponent{
		name: "webhook", startOrder: &order,
		health: Health{Name: "webhook", Status: StatusHealthy},
	})
	r.Register(&mockComponent{
		name: "pipeline", startOrder: &order,
		health: Health{Name: "pipeline", Status: StatusHealthy},
	})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}

	if len(order) != 2 {
		t.Fatalf("expected 2 starts, got %d", len(order))
	}
	if order[0] != "webhook" || order[1] != "pipeline" {
		t.Errorf("expected start order [webhook, pipeline], got %v", order)
	}
}

func TestStartAllError(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockComponent{name: "webhook", startErr: fmt.Errorf("listener bind failed")})

	err := r.StartAll(context.Background())
	if err == nil {
		t.Error("expected error from StartAll")
	}
}

func TestStopAllReverseOrder(t *testing.T) {
	r := NewRegistry()
	order := []string{}

	r.Register(&mockComponent{name: "webhook", stopOrder: &order, health: Health{Name: "webhook", Status: StatusHealthy}})
	r.Register(&mockComponent{name: "pipeline", stopOrder: &order, health: Health{Name: "pipeline", Status: StatusHealthy}})
	r.Register(&mockComponent{name: "reporter", stopOrder: &order, health: Health{Name: "reporter", Status: StatusHealthy}})

	r.StartAll(context.Background())
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	if len(order) != 3 {
		t.Fatalf("expected 3 stops, got %d", len(order))
	}
	if order[0] != "reporter" || order[1] != "pipeline" || order[2] != "webhook" {
		t.Errorf("expected reverse stop order [reporter, pipeline, webhook], got %v", order)
	}
}

func TestStopAllSkipsUnstarted(t *testing.T) {
	r := NewRegistry()
	order := []string{}
	r.Register(&mockComponent{name: "webhook", stopOrder: &order})

	// Don't start, then stop
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("expected 0 stops for unstarted components, got %d", len(order))
	}
}

func TestStopAllWithErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockComponent{
		name: "webhook", stopErr: fmt.Errorf("stop failed"),
		health: Health{Name: "webhook", Status: StatusHealthy},
	})
	r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Error("expected error from StopAll")
	}
}

func TestHealthAll(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockComponent{
		name:   "webhook",
		health: Health{Name: "webhook", Status: StatusHealthy, Message: "connected"},
	})
	r.Register(&mockComponent{
		name:   "pipeline",
		health: Health{Name: "pipeline", Status: StatusUnhealthy, Message: "timeout"},
	})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusHealthy {
		t.Errorf("expected webhook healthy, got %s", results[0].Status)
	}
	if results[1].Status != StatusUnhealthy {
		t.Errorf("expected pipeline unhealthy, got %s", results[1].Status)
	}
}

func TestHealthStatusConstants(t *testing.T) {
	if StatusHealthy != "healthy" {
		t.Errorf("expected 'healthy', got %q", StatusHealthy)
	}
	if StatusUnhealthy != "unhealthy" {
		t.Errorf("expected 'unhealthy', got %q", StatusUnhealthy)
	}
	if StatusDegraded != "degraded" {
		t.Errorf("expected 'degraded', got %q", StatusDegraded)
	}
}

func TestRegisterDuplicateIsAlreadyExists(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockComponent{name: "pipeline"})

	err := r.Register(&mockComponent{name: "pipeline"})
	if apperrors.CodeOf(err) != apperrors.ErrCodeAlreadyExists {
		t.Errorf("expected ALREADY_EXISTS, got %v", err)
	}
}

func TestStartAllStopsAtFirstFailure(t *testing.T) {
	r := NewRegistry()
	started := []string{}
	stopped := []string{}

	r.Register(&mockComponent{name: "webhook", startOrder: &started, stopOrder: &stopped})
	r.Register(&mockComponent{name: "pipeline", startOrder: &started, stopOrder: &stopped, startErr: fmt.Errorf("setup failed")})
	r.Register(&mockComponent{name: "reporter", startOrder: &started, stopOrder: &stopped})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if len(started) != 2 {
		t.Errorf("expected start to stop at the failing component, got %v", started)
	}

	r.StopAll(context.Background())
	if len(stopped) != 1 || stopped[0] != "webhook" {
		t.Errorf("expected only the started component to be stopped, got %v", stopped)
	}
}

func TestAll(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockComponent{name: "a"})
	r.Register(&mockComponent{name: "b"})

	all := r.All()
	if len(all) != 2 || all[0].Name() != "a" || all[1].Name() != "b" {
		t.Errorf("expected registration order [a b], got %v", all)
	}
}
