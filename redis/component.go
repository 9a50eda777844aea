package redis

import (
	"context"

	"github.com/kbukum/flowkit/component"
)

// Component manages a Client's lifecycle in a component.Registry: Start
// checks connectivity and Stop closes the pool.
type Component struct {
	client *Client
}

var _ component.Component = (*Component)(nil)

// NewComponent wraps client.
func NewComponent(client *Client) *Component {
	return &Component{client: client}
}

// Client returns the managed client.
func (c *Component) Client() *Client { return c.client }

func (c *Component) Name() string { return "redis" }

func (c *Component) Start(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *Component) Stop(_ context.Context) error {
	return c.client.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	if err := c.client.Ping(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: c.client.Addr()}
}
