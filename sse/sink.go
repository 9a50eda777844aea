package sse

import (
	"context"
	"encoding/json"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/stream"
)

var _ flow.Stage = (*Sink)(nil)

// Sink publishes every input as JSON under a topic. It emits nothing; an
// input that cannot be encoded goes to the failure channel as flow.Failed.
type Sink struct {
	hub   *Hub
	topic string
}

// NewSink creates a sink publishing to hub under topic.
func NewSink(hub *Hub, topic string) *Sink {
	return &Sink{hub: hub, topic: topic}
}

func (s *Sink) Process(ctx context.Context, in flow.Input) (flow.Sequence, error) {
	data, err := json.Marshal(in.Value())
	if err != nil {
		return stream.Of(flow.Failure(flow.Failed{
			Input: in.Value(),
			Err:   apperrors.InvalidInput("value", err.Error()),
		})), nil
	}
	if err := s.hub.Publish(ctx, s.topic, data); err != nil {
		return nil, err
	}
	return nil, nil
}
