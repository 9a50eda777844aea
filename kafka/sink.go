package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/stream"
)

var (
	_ flow.Stage        = (*Sink)(nil)
	_ flow.SetupHook    = (*Sink)(nil)
	_ flow.TeardownHook = (*Sink)(nil)
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink publishes every input to one topic as JSON. Writes are retried
// while the error looks transient; a write that still fails ends the run.
// An input that cannot be encoded is emitted on the failure channel as
// flow.Failed.
type Sink struct {
	cfg   Config
	topic string
	key   func(v any) []byte
	log   *logger.Logger

	newWriter func(*Config, string) (writer, error)

	mu     sync.Mutex
	writer writer
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithKey derives the message key from each value.
func WithKey(fn func(v any) []byte) SinkOption {
	return func(s *Sink) { s.key = fn }
}

// WithSinkLogger sets the logger.
func WithSinkLogger(l *logger.Logger) SinkOption {
	return func(s *Sink) { s.log = l }
}

// NewSink creates a sink for topic. The writer is created by Setup.
func NewSink(cfg Config, topic string, opts ...SinkOption) *Sink {
	cfg.ApplyDefaults()
	s := &Sink{
		cfg:       cfg,
		topic:     topic,
		log:       logger.Get("kafka"),
		newWriter: newKafkaWriter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newKafkaWriter(cfg *Config, topic string) (writer, error) {
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        topic,
		Transport:    transport,
		Balancer:     &kafkago.LeastBytes{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  compression(cfg.Compression),
		WriteTimeout: cfg.WriteTimeout,
		// Process retries; the writer makes one attempt.
		MaxAttempts: 1,
	}, nil
}

// Setup validates the config and opens the writer.
func (s *Sink) Setup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		return errors.AlreadyExists("kafka writer", s.topic)
	}
	if err := s.cfg.Validate(); err != nil {
		return errors.InvalidConfig("kafka sink").WithCause(err)
	}
	w, err := s.newWriter(&s.cfg, s.topic)
	if err != nil {
		return errors.InvalidConfig("kafka sink").WithCause(err)
	}
	s.writer = w
	s.log.Info("kafka sink ready", logger.Fields("topic", s.topic, "brokers", s.cfg.Brokers, "compression", s.cfg.Compression))
	return nil
}

// Teardown flushes and closes the writer.
func (s *Sink) Teardown(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	if err != nil {
		return classify(err, s.topic)
	}
	return nil
}

func (s *Sink) Process(ctx context.Context, in flow.Input) (flow.Sequence, error) {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w == nil {
		return nil, errors.ServiceUnavailable("kafka sink").WithDetail("topic", s.topic)
	}

	data, err := json.Marshal(in.Value())
	if err != nil {
		return stream.Of(flow.Failure(flow.Failed{
			Input: in.Value(),
			Err:   errors.InvalidInput("value", err.Error()),
		})), nil
	}
	msg := kafkago.Message{
		Value:   data,
		Headers: []kafkago.Header{{Key: "content-type", Value: []byte("application/json")}},
	}
	if s.key != nil {
		msg.Key = s.key(in.Value())
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    s.cfg.Retries,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2,
		RetryIf:        IsRetryableError,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			s.log.Warn("kafka write failed, retrying", logger.MergeWithError(
				logger.Fields("topic", s.topic, "attempt", attempt, "backoff", backoff.String()), err))
		},
	}
	if err := resilience.RetryFunc(ctx, retry, func() error {
		return w.WriteMessages(ctx, msg)
	}); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(err, s.topic)
	}
	return nil, nil
}
