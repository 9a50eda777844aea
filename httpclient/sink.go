package httpclient

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/stream"
)

var _ flow.Stage = (*Sink)(nil)

// Sink sends every input as a JSON request body. It emits nothing. An input
// that cannot be encoded or that the server rejects with a 4xx goes to the
// failure channel as flow.Failed; any other failure ends the run once
// retries are spent.
type Sink struct {
	client *Client
	method string
	url    string
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithMethod overrides the default POST.
func WithMethod(method string) SinkOption {
	return func(s *Sink) { s.method = method }
}

// NewSink creates a sink sending to url.
func NewSink(client *Client, url string, opts ...SinkOption) *Sink {
	s := &Sink{client: client, method: http.MethodPost, url: url}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Process(ctx context.Context, in flow.Input) (flow.Sequence, error) {
	body, err := json.Marshal(in.Value())
	if err != nil {
		return s.fail(in, apperrors.InvalidInput("value", err.Error())), nil
	}

	_, err = s.client.Send(ctx, s.method, s.url, body)
	switch {
	case err == nil:
		return nil, nil
	case IsRejected(err):
		s.client.log.Warn("value rejected", logger.MergeWithError(logger.Fields("url", s.url), err))
		return s.fail(in, toAppError(err, s.url)), nil
	default:
		return nil, toAppError(err, s.url)
	}
}

func (s *Sink) fail(in flow.Input, err error) flow.Sequence {
	return stream.Of(flow.Failure(flow.Failed{Input: in.Value(), Err: err}))
}
