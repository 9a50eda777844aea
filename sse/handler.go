package sse

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
)

// EventConnected is the first event on every stream.
const EventConnected = "connected"

// Serve streams events to one subscriber until it disconnects or the hub
// stops. The "topic" query parameter is a glob matched against published
// topics and defaults to "*".
func (h *Hub) Serve(c *gin.Context) {
	pattern := c.DefaultQuery("topic", "*")
	if _, err := path.Match(pattern, ""); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.InvalidInput("topic", err.Error()).ToResponse())
		return
	}

	// Streams outlive the server's write timeout.
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.log.Debug("write deadline not cleared", logger.Fields(logger.FieldError, err.Error()))
	}

	sub := &client{
		id:      uuid.New().String(),
		pattern: pattern,
		events:  make(chan Event, h.cfg.ClientBuffer),
	}
	if !h.subscribe(sub) {
		c.JSON(http.StatusServiceUnavailable, apperrors.ServiceUnavailable("sse hub").ToResponse())
		return
	}
	defer h.unsubscribe(sub)

	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(EventConnected, gin.H{"client_id": sub.id, "topic": pattern})
	c.Writer.Flush()

	keepAlive := time.NewTicker(h.cfg.KeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Topic, string(ev.Data))
			return true
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			return true
		}
	})
}
