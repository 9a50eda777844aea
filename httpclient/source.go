package httpclient

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"slices"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/stream"
)

var _ flow.Stage = (*EventSource)(nil)

// EventSource subscribes to a remote event stream and emits the data of
// every event. JSON data is decoded; anything else is emitted as a string.
// The sequence ends when the server closes the stream.
type EventSource struct {
	client   *Client
	url      string
	envelope bool
	skip     []string
}

// EventSourceOption configures an EventSource.
type EventSourceOption func(*EventSource)

// WithEventEnvelope emits *Event values with the decoded data left as the
// raw string.
func WithEventEnvelope() EventSourceOption {
	return func(s *EventSource) { s.envelope = true }
}

// WithSkip drops events with the given names.
func WithSkip(names ...string) EventSourceOption {
	return func(s *EventSource) { s.skip = append(s.skip, names...) }
}

// NewEventSource creates a source reading url.
func NewEventSource(client *Client, url string, opts ...EventSourceOption) *EventSource {
	s := &EventSource{client: client, url: url}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process opens the stream. The connection follows ctx.
func (s *EventSource) Process(ctx context.Context, _ flow.Input) (flow.Sequence, error) {
	r, err := s.client.Events(ctx, s.url)
	if err != nil {
		return nil, toAppError(err, s.url)
	}
	s.client.log.Debug("event stream opened", logger.Fields("url", s.url))

	next := func(ctx context.Context) (flow.Emission, bool, error) {
		for {
			ev, err := r.Next()
			if stderrors.Is(err, io.EOF) {
				return flow.Emission{}, false, nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return flow.Emission{}, false, ctx.Err()
				}
				return flow.Emission{}, false, apperrors.ConnectionFailed("http "+s.url, err)
			}
			if slices.Contains(s.skip, ev.Name) {
				continue
			}
			if s.envelope {
				return flow.Success(ev), true, nil
			}
			return flow.Success(decode(ev.Data)), true, nil
		}
	}
	return stream.FromFunc(next, r.Close), nil
}

func decode(data string) any {
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return data
	}
	return v
}
