package flow

import (
	"context"
	"errors"
	"sync"

	"github.com/kbukum/flowkit/component"
	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
)

// Service runs a Pipeline as a component.Component. Start sets the
// pipeline up and runs it on a background goroutine; Stop cancels the run,
// waits for it and tears the pipeline down. The run itself stays on that
// one goroutine.
type Service struct {
	name     string
	pipeline *Pipeline
	log      *logger.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
	stopping bool
	started  bool
	runErr   error
}

var _ component.Component = (*Service)(nil)

// NewService wraps p. name is the component name.
func NewService(name string, p *Pipeline) *Service {
	return &Service{
		name:     name,
		pipeline: p,
		log:      logger.Get("flow").WithFields(logger.Fields(logger.FieldComponent, name)),
	}
}

// Name implements component.Component.
func (s *Service) Name() string { return s.name }

// Start sets the pipeline up and launches the run. The run is not bound to
// ctx; it ends when the sources are exhausted, on failure, or on Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return apperrors.AlreadyExists("running pipeline", s.name)
	}
	if err := s.pipeline.Setup(ctx); err != nil {
		return errors.Join(err, s.pipeline.Teardown(context.WithoutCancel(ctx)))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.started = true
	s.stopping = false
	s.runErr = nil

	go s.run(runCtx, s.done)
	return nil
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	err := s.pipeline.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if err != nil && !(s.stopping && apperrors.HasCode(err, apperrors.ErrCodeCanceled)) {
		s.runErr = err
		s.log.Error("pipeline run failed", logger.ErrorFields(PhaseRun, err))
	}
}

// Stop cancels the run, waits for it to return and tears the pipeline
// down. If ctx ends first the pipeline is left set up and a TIMEOUT error
// is returned.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return apperrors.Timeout("stopping pipeline " + s.name).WithCause(ctx.Err())
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return s.pipeline.Teardown(ctx)
}

// Done is closed when the current run returns. It is nil before Start.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the error of the last run, if it failed.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Health implements component.Component.
func (s *Service) Health(_ context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := component.Health{Name: s.name}
	switch {
	case s.running:
		h.Status = component.StatusHealthy
	case s.runErr != nil:
		h.Status = component.StatusUnhealthy
		h.Message = s.runErr.Error()
	default:
		h.Status = component.StatusDegraded
		h.Message = "not running"
	}
	return h
}
