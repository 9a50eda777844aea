package sse

import (
	"context"
	"path"
	"sync"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
)

// Event is one published value.
type Event struct {
	Topic string
	Data  []byte
}

// client is one connected subscriber. It receives events whose topic
// matches its glob pattern.
type client struct {
	id      string
	pattern string
	events  chan Event
}

// send queues ev without blocking and reports whether it was queued.
func (c *client) send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// Hub routes published events to subscribers. Run must be running for
// subscriptions and publishing to make progress.
type Hub struct {
	cfg Config
	log *logger.Logger

	clients    map[string]*client
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	done       chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// NewHub creates a hub. Unset fields of cfg get their defaults.
func NewHub(cfg Config, log *logger.Logger) *Hub {
	cfg.fill()
	if log == nil {
		log = logger.Get("sse")
	}
	return &Hub{
		cfg:        cfg,
		log:        log,
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, cfg.ClientBuffer),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns after Stop, once every
// subscriber has been disconnected.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("subscriber registered", logger.Fields("client_id", c.id, "topic", c.pattern, "clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.events)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("subscriber unregistered", logger.Fields("client_id", c.id, "clients", n))

		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

// Stop makes Run return. Safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

// Publish queues data for every subscriber whose pattern matches topic.
// It fails once the hub is stopped or ctx is done.
func (h *Hub) Publish(ctx context.Context, topic string, data []byte) error {
	select {
	case <-h.done:
		return apperrors.ServiceUnavailable("sse hub")
	default:
	}
	select {
	case h.broadcast <- Event{Topic: topic, Data: data}:
		return nil
	case <-h.done:
		return apperrors.ServiceUnavailable("sse hub")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribe(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unsubscribe(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		// Patterns are validated on subscribe.
		if ok, _ := path.Match(c.pattern, ev.Topic); !ok {
			continue
		}
		if !c.send(ev) {
			h.log.Warn("subscriber too slow, event dropped", logger.Fields("client_id", c.id, "topic", ev.Topic))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
	h.log.Debug("all subscribers closed")
}
