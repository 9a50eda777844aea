package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/stream"
)

var (
	_ flow.Stage     = (*ListSource)(nil)
	_ flow.SetupHook = (*ListSource)(nil)
	_ flow.Stage     = (*ListSink)(nil)
	_ flow.SetupHook = (*ListSink)(nil)
)

// ListSource is an unbounded source that pops values from the head of a
// Redis list. Values pushed by a ListSink are decoded from JSON; anything
// else is emitted as the raw string.
type ListSource struct {
	client *Client
	key    string
	poll   time.Duration
}

// NewListSource creates a source reading key.
func NewListSource(client *Client, key string) *ListSource {
	return &ListSource{client: client, key: key, poll: client.cfg.PollTimeout}
}

// Setup checks connectivity.
func (s *ListSource) Setup(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *ListSource) Process(_ context.Context, _ flow.Input) (flow.Sequence, error) {
	return stream.FromFunc(s.next, nil), nil
}

func (s *ListSource) next(ctx context.Context) (flow.Emission, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return flow.Emission{}, false, err
		}
		res, err := s.client.rdb.BLPop(ctx, s.poll, s.key).Result()
		if stderrors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return flow.Emission{}, false, ctx.Err()
			}
			return flow.Emission{}, false, errors.ConnectionFailed("redis", err).WithDetail("key", s.key)
		}
		// BLPOP replies with [key, value].
		return flow.Success(decode(res[1])), true, nil
	}
}

func decode(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// ListSink appends every input to the tail of a Redis list as JSON. An
// input that cannot be encoded is emitted on the failure channel as
// flow.Failed; a Redis error ends the run.
type ListSink struct {
	client *Client
	key    string
	log    *logger.Logger
}

// NewListSink creates a sink writing to key.
func NewListSink(client *Client, key string) *ListSink {
	return &ListSink{client: client, key: key, log: client.log}
}

// Setup checks connectivity.
func (s *ListSink) Setup(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *ListSink) Process(ctx context.Context, in flow.Input) (flow.Sequence, error) {
	data, err := json.Marshal(in.Value())
	if err != nil {
		s.log.Warn("value not pushed", logger.MergeWithError(logger.Fields("key", s.key), err))
		return stream.Of(flow.Failure(flow.Failed{
			Input: in.Value(),
			Err:   errors.InvalidInput("value", err.Error()),
		})), nil
	}
	if err := s.client.rdb.RPush(ctx, s.key, data).Err(); err != nil {
		return nil, errors.ConnectionFailed("redis", err).WithDetail("key", s.key)
	}
	return nil, nil
}
