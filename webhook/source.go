package webhook

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/stream"
)

// Source is a flow source fed by HTTP POST requests.
type Source struct {
	cfg     Config
	log     *logger.Logger
	engine  *gin.Engine
	handler http.Handler
	events  chan any

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

var (
	_ flow.Stage        = (*Source)(nil)
	_ flow.SetupHook    = (*Source)(nil)
	_ flow.TeardownHook = (*Source)(nil)
)

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the source's logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Source) { s.log = l }
}

// NewSource creates a source for cfg. Unset fields other than the port get
// their defaults; port 0 binds any free port.
func NewSource(cfg Config, opts ...Option) *Source {
	cfg.fill()
	s := &Source{
		cfg:    cfg,
		events: make(chan any, cfg.Buffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get("webhook")
	}

	s.engine = gin.New()
	s.engine.Use(recovery(s.log), requestID(), requestLogger(s.log))
	s.engine.POST(cfg.Path, s.accept)
	s.engine.GET("/health", s.health)

	// HTTP/2 without TLS for clients that push many small events.
	s.handler = h2c.NewHandler(s.engine, &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	})
	return s
}

// Handler returns the HTTP handler, for mounting elsewhere or for tests.
func (s *Source) Handler() http.Handler { return s.handler }

// Addr returns the bound address once Setup has run, otherwise the
// configured one.
func (s *Source) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr()
}

// Pending returns the number of accepted bodies not yet pulled.
func (s *Source) Pending() int { return len(s.events) }

// Setup binds the listener and starts serving in the background.
func (s *Source) Setup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return apperrors.AlreadyExists("webhook listener", s.listener.Addr().String())
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return apperrors.ConnectionFailed("webhook "+s.cfg.Addr(), err)
	}

	if closed(s.done) {
		s.done = make(chan struct{})
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("webhook server stopped", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("webhook listening", logger.Fields("addr", ln.Addr().String(), "path", s.cfg.Path))
	return nil
}

// Teardown ends every open sequence and shuts the listener down. Bodies
// still buffered are discarded.
func (s *Source) Teardown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !closed(s.done) {
		close(s.done)
	}
	s.drain()
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.server, s.listener = nil, nil
	if err != nil {
		return apperrors.Timeout("webhook shutdown").WithCause(err)
	}
	s.log.Info("webhook stopped")
	return nil
}

// Process returns an unbounded sequence of accepted bodies. It ends when
// the source is torn down and fails when ctx is canceled.
func (s *Source) Process(_ context.Context, _ flow.Input) (flow.Sequence, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	return stream.FromFunc(func(ctx context.Context) (flow.Emission, bool, error) {
		if closed(done) {
			return flow.Emission{}, false, nil
		}
		select {
		case <-ctx.Done():
			return flow.Emission{}, false, ctx.Err()
		case <-done:
			return flow.Emission{}, false, nil
		case payload := <-s.events:
			if closed(done) {
				return flow.Emission{}, false, nil
			}
			return flow.Success(payload), true, nil
		}
	}, nil), nil
}

func (s *Source) accept(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)

	var payload any
	if err := c.ShouldBindJSON(&payload); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, apperrors.InvalidInput("body", err.Error()).ToResponse())
		return
	}

	switch s.enqueue(payload) {
	case enqueued:
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	case stopped:
		c.JSON(http.StatusServiceUnavailable, apperrors.ServiceUnavailable("webhook").ToResponse())
	case full:
		s.log.Warn("webhook buffer full", logger.Fields("buffer", cap(s.events)))
		c.JSON(http.StatusServiceUnavailable,
			apperrors.ServiceUnavailable("webhook").WithDetail("reason", "buffer full").ToResponse())
	}
}

type enqueueResult int

const (
	enqueued enqueueResult = iota
	stopped
	full
)

// enqueue buffers payload unless the source is torn down. Holding s.mu
// orders it against Teardown, so nothing lands after the buffer is drained.
func (s *Source) enqueue(payload any) enqueueResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if closed(s.done) {
		return stopped
	}
	select {
	case s.events <- payload:
		return enqueued
	default:
		return full
	}
}

// drain discards buffered bodies. Callers hold s.mu.
func (s *Source) drain() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

func closed(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func (s *Source) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"pending": len(s.events),
		"buffer":  cap(s.events),
	})
}
