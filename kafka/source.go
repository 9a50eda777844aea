package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/stream"
)

var (
	_ flow.Stage        = (*Source)(nil)
	_ flow.SetupHook    = (*Source)(nil)
	_ flow.TeardownHook = (*Source)(nil)
)

// Message is what a Source emits when envelopes are enabled.
type Message struct {
	Topic     string            `json:"topic"`
	Partition int               `json:"partition"`
	Offset    int64             `json:"offset"`
	Key       string            `json:"key,omitempty"`
	Value     any               `json:"value"`
	Headers   map[string]string `json:"headers,omitempty"`
	Time      time.Time         `json:"time"`
}

type reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Source is an unbounded source reading one topic. Message values are
// decoded from JSON when possible and emitted on the success channel.
//
// With a consumer group, a message is committed when the next one is
// pulled. The runner fully propagates each emission before pulling again,
// so a message is committed only after everything downstream of it has
// run. A message still pending at teardown is not committed and is
// redelivered to the group.
type Source struct {
	cfg      Config
	topic    string
	envelope bool
	log      *logger.Logger

	newReader func(kafkago.ReaderConfig) reader

	mu      sync.Mutex
	reader  reader
	pending *kafkago.Message
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithEnvelope emits Message values instead of the bare payload.
func WithEnvelope() SourceOption {
	return func(s *Source) { s.envelope = true }
}

// WithSourceLogger sets the logger.
func WithSourceLogger(l *logger.Logger) SourceOption {
	return func(s *Source) { s.log = l }
}

// NewSource creates a source for topic. The reader is created by Setup.
func NewSource(cfg Config, topic string, opts ...SourceOption) *Source {
	cfg.ApplyDefaults()
	s := &Source{
		cfg:   cfg,
		topic: topic,
		log:   logger.Get("kafka"),
		newReader: func(rc kafkago.ReaderConfig) reader {
			return kafkago.NewReader(rc)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Setup validates the config and opens the reader.
func (s *Source) Setup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader != nil {
		return errors.AlreadyExists("kafka reader", s.topic)
	}
	if err := s.cfg.Validate(); err != nil {
		return errors.InvalidConfig("kafka source").WithCause(err)
	}
	dialer, err := newDialer(&s.cfg)
	if err != nil {
		return errors.InvalidConfig("kafka source").WithCause(err)
	}

	log := s.log
	s.reader = s.newReader(kafkago.ReaderConfig{
		Brokers:           s.cfg.Brokers,
		Topic:             s.topic,
		GroupID:           s.cfg.GroupID,
		Dialer:            dialer,
		StartOffset:       startOffset(s.cfg.StartOffset),
		MinBytes:          1,
		MaxBytes:          10e6,
		SessionTimeout:    s.cfg.SessionTimeout,
		HeartbeatInterval: s.cfg.HeartbeatInterval,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...any) {
			log.Error("reader: "+fmt.Sprintf(msg, args...), logger.Fields("topic", s.topic))
		}),
	})
	s.log.Info("kafka source ready", logger.Fields("topic", s.topic, "group_id", s.cfg.GroupID, "brokers", s.cfg.Brokers))
	return nil
}

// Teardown closes the reader. The last pulled message is left
// uncommitted since the runner never confirmed it by pulling again.
func (s *Source) Teardown(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return nil
	}
	if s.pending != nil && s.cfg.GroupID != "" {
		s.log.Debug("leaving message uncommitted", logger.Fields(
			"topic", s.topic, "partition", s.pending.Partition, "offset", s.pending.Offset))
	}
	s.pending = nil
	var err error
	if cerr := s.reader.Close(); cerr != nil {
		err = classify(cerr, s.topic)
	}
	s.reader = nil
	return err
}

func (s *Source) Process(_ context.Context, _ flow.Input) (flow.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return nil, errors.ServiceUnavailable("kafka source").WithDetail("topic", s.topic)
	}
	return stream.FromFunc(s.next, nil), nil
}

func (s *Source) next(ctx context.Context) (flow.Emission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return flow.Emission{}, false, nil
	}
	if err := s.commit(ctx); err != nil {
		return flow.Emission{}, false, err
	}

	msg, err := s.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return flow.Emission{}, false, ctx.Err()
		}
		return flow.Emission{}, false, classify(err, s.topic)
	}
	s.pending = &msg
	return flow.Success(s.value(msg)), true, nil
}

// commit acknowledges the pending message. Callers hold s.mu.
func (s *Source) commit(ctx context.Context) error {
	if s.pending == nil || s.cfg.GroupID == "" {
		s.pending = nil
		return nil
	}
	msg := *s.pending
	s.pending = nil
	if err := s.reader.CommitMessages(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify(err, s.topic).WithDetail("offset", msg.Offset)
	}
	return nil
}

func (s *Source) value(msg kafkago.Message) any {
	var payload any
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		payload = string(msg.Value)
	}
	if !s.envelope {
		return payload
	}
	out := Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
		Value:     payload,
		Time:      msg.Time,
	}
	if len(msg.Headers) > 0 {
		out.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			out.Headers[h.Key] = string(h.Value)
		}
	}
	return out
}
