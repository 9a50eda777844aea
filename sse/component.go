package sse

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/logger"
)

var _ component.Component = (*Component)(nil)

// Component serves a Hub over HTTP as a lifecycle-managed component.
type Component struct {
	cfg    Config
	log    *logger.Logger
	hub    *Hub
	engine *gin.Engine

	mu       sync.Mutex
	wg       sync.WaitGroup
	server   *http.Server
	listener net.Listener
}

// NewComponent creates a component for cfg with a fresh Hub. Unset fields
// other than the port get their defaults; port 0 binds any free port.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.fill()
	if log == nil {
		log = logger.Get("sse")
	}
	c := &Component{cfg: cfg, log: log, hub: NewHub(cfg, log)}

	c.engine = gin.New()
	c.engine.Use(gin.Recovery())
	c.engine.GET(cfg.Path, c.hub.Serve)
	return c
}

// Hub returns the hub that sinks publish to.
func (c *Component) Hub() *Hub { return c.hub }

// Handler returns the HTTP handler, for mounting elsewhere or for tests.
func (c *Component) Handler() http.Handler { return c.engine }

// Addr returns the bound address once started, otherwise the configured one.
func (c *Component) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener != nil {
		return c.listener.Addr().String()
	}
	return c.cfg.Addr()
}

func (c *Component) Name() string { return "sse" }

// Start runs the hub loop and starts serving in the background.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listener != nil {
		return apperrors.AlreadyExists("sse listener", c.listener.Addr().String())
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", c.cfg.Addr())
	if err != nil {
		return apperrors.ConnectionFailed("sse "+c.cfg.Addr(), err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()

	c.listener = ln
	c.server = &http.Server{Handler: c.engine, ReadHeaderTimeout: c.cfg.ShutdownTimeout}
	srv := c.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Error("sse server stopped", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	c.log.Info("sse listening", logger.Fields("addr", ln.Addr().String(), "path", c.cfg.Path))
	return nil
}

// Stop disconnects every subscriber, then shuts the server down.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hub.Stop()
	c.wg.Wait()
	if c.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
	defer cancel()
	err := c.server.Shutdown(shutdownCtx)
	c.server, c.listener = nil, nil
	if err != nil {
		return apperrors.Timeout("sse shutdown").WithCause(err)
	}
	return nil
}

func (c *Component) Health(_ context.Context) component.Health {
	c.mu.Lock()
	serving := c.server != nil
	c.mu.Unlock()
	if !serving {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not serving"}
	}
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d subscribers", c.hub.ClientCount()),
	}
}
