package main

import (
	"fmt"
	"io"

	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/httpclient"
	"github.com/kbukum/flowkit/kafka"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/redis"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/topology"
	"github.com/kbukum/flowkit/webhook"
)

// Component names usable in topology files.
const (
	componentNumberPairs = "number-pairs"
	componentWordPairs   = "word-pairs"
	componentAdd         = "add"
	componentSubtract    = "subtract"
	componentPrint       = "print"
	componentLogFailure  = "log-failure"
	componentWebhook     = "webhook"
	componentRedisPop    = "redis-pop"
	componentRedisPush   = "redis-push"
	componentKafkaSource = "kafka-source"
	componentKafkaSink   = "kafka-sink"
	componentPublish     = "publish"
	componentHTTPPost    = "http-post"
	componentHTTPEvents  = "http-events"
)

// connectors holds the external endpoints the config enables. Nil fields
// make the matching components fail at build time.
type connectors struct {
	hook  *webhook.Source
	hub   *sse.Hub
	redis *redis.Client
	kafka *kafka.Config
	http  *httpclient.Client
}

// newRegistry registers the demo components.
func newRegistry(out io.Writer, log *logger.Logger, conn connectors) *topology.Registry {
	reg := topology.NewRegistry()

	reg.Register(componentNumberPairs, func(p topology.Params) (flow.Stage, error) {
		limit := p.Int("max", 100)
		if limit < 1 {
			return nil, fmt.Errorf("max must be positive, got %d", limit)
		}
		return numberPairs(newRand(p.Int("seed", 0)), limit), nil
	})
	reg.Register(componentWordPairs, func(p topology.Params) (flow.Stage, error) {
		length := p.Int("length", 8)
		if length < 1 {
			return nil, fmt.Errorf("length must be positive, got %d", length)
		}
		return wordPairs(newRand(p.Int("seed", 0)), length), nil
	})
	reg.Register(componentAdd, func(topology.Params) (flow.Stage, error) {
		return binary(add), nil
	})
	reg.Register(componentSubtract, func(topology.Params) (flow.Stage, error) {
		return binary(subtract), nil
	})
	reg.Register(componentPrint, func(topology.Params) (flow.Stage, error) {
		return printResult(out), nil
	})
	reg.Register(componentLogFailure, func(p topology.Params) (flow.Stage, error) {
		return logFailure(p.String("operation", "process"), log), nil
	})
	reg.Register(componentWebhook, func(topology.Params) (flow.Stage, error) {
		if conn.hook == nil {
			return nil, fmt.Errorf("webhook is disabled in the config")
		}
		return conn.hook, nil
	})
	reg.Register(componentPublish, func(p topology.Params) (flow.Stage, error) {
		if conn.hub == nil {
			return nil, fmt.Errorf("sse is disabled in the config")
		}
		return sse.NewSink(conn.hub, p.String("topic", "results")), nil
	})

	reg.Register(componentRedisPop, func(p topology.Params) (flow.Stage, error) {
		if conn.redis == nil {
			return nil, fmt.Errorf("redis is disabled in the config")
		}
		return redis.NewListSource(conn.redis, p.String("key", "flowdemo:in")), nil
	})
	reg.Register(componentRedisPush, func(p topology.Params) (flow.Stage, error) {
		if conn.redis == nil {
			return nil, fmt.Errorf("redis is disabled in the config")
		}
		return redis.NewListSink(conn.redis, p.String("key", "flowdemo:out")), nil
	})

	reg.Register(componentKafkaSource, func(p topology.Params) (flow.Stage, error) {
		if conn.kafka == nil {
			return nil, fmt.Errorf("kafka is disabled in the config")
		}
		topic := p.String("topic", "")
		if topic == "" {
			return nil, fmt.Errorf("topic is required")
		}
		opts := []kafka.SourceOption{kafka.WithSourceLogger(log.WithComponent("kafka"))}
		if p.Bool("envelope", false) {
			opts = append(opts, kafka.WithEnvelope())
		}
		return kafka.NewSource(*conn.kafka, topic, opts...), nil
	})
	reg.Register(componentKafkaSink, func(p topology.Params) (flow.Stage, error) {
		if conn.kafka == nil {
			return nil, fmt.Errorf("kafka is disabled in the config")
		}
		topic := p.String("topic", "")
		if topic == "" {
			return nil, fmt.Errorf("topic is required")
		}
		return kafka.NewSink(*conn.kafka, topic, kafka.WithSinkLogger(log.WithComponent("kafka"))), nil
	})
	reg.Register(componentHTTPPost, func(p topology.Params) (flow.Stage, error) {
		if conn.http == nil {
			return nil, fmt.Errorf("http is disabled in the config")
		}
		url := p.String("url", "")
		if url == "" {
			return nil, fmt.Errorf("url is required")
		}
		return httpclient.NewSink(conn.http, url, httpclient.WithMethod(p.String("method", "POST"))), nil
	})
	reg.Register(componentHTTPEvents, func(p topology.Params) (flow.Stage, error) {
		if conn.http == nil {
			return nil, fmt.Errorf("http is disabled in the config")
		}
		url := p.String("url", "")
		if url == "" {
			return nil, fmt.Errorf("url is required")
		}
		opts := []httpclient.EventSourceOption{httpclient.WithSkip(p.String("skip", sse.EventConnected))}
		if p.Bool("envelope", false) {
			opts = append(opts, httpclient.WithEventEnvelope())
		}
		return httpclient.NewEventSource(conn.http, url, opts...), nil
	})
	return reg
}

// pairsDefinition is the built-in graph: two unbounded pair sources
// funneled into add and subtract, results printed, failures logged. The
// webhook joins the sources and results are also published over SSE when
// those are enabled.
func pairsDefinition(withWebhook, withPublish bool) *topology.Definition {
	sources := []string{"numbers", "words"}
	def := &topology.Definition{
		Name: "pairs",
		Processors: []topology.ProcessorSpec{
			{Name: "numbers", Component: componentNumberPairs, Source: true},
			{Name: "words", Component: componentWordPairs, Source: true},
		},
	}
	if withWebhook {
		def.Processors = append(def.Processors,
			topology.ProcessorSpec{Name: "webhook", Component: componentWebhook, Source: true})
		sources = append(sources, "webhook")
	}

	def.Processors = append(def.Processors,
		topology.ProcessorSpec{Name: "add", Component: componentAdd, Inputs: sources},
		topology.ProcessorSpec{Name: "minus", Component: componentSubtract, Inputs: sources},
		topology.ProcessorSpec{Name: "print", Component: componentPrint, Inputs: []string{"add", "minus"}},
		topology.ProcessorSpec{
			Name: "log-add-failure", Component: componentLogFailure,
			Inputs: []string{"add:" + flow.FailureChannel},
			Params: topology.Params{"operation": "add"},
		},
		topology.ProcessorSpec{
			Name: "log-minus-failure", Component: componentLogFailure,
			Inputs: []string{"minus:" + flow.FailureChannel},
			Params: topology.Params{"operation": "subtract"},
		},
	)
	if withPublish {
		def.Processors = append(def.Processors, topology.ProcessorSpec{
			Name: "publish", Component: componentPublish, Inputs: []string{"add", "minus"},
			Params: topology.Params{"topic": "results"},
		})
	}
	return def
}
