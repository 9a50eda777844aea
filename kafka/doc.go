// Package kafka connects flow pipelines to Kafka topics using
// segmentio/kafka-go.
//
// Source reads one topic as an unbounded source and Sink publishes each
// input to one topic as JSON. Both open their client in Setup and close it
// in Teardown, so they follow the pipeline's lifecycle:
//
//	events := flow.NewProcessor(kafka.NewSource(cfg.Kafka, "events"), flow.WithName("events"))
//	events.Connect(enrich).Connect(flow.NewProcessor(kafka.NewSink(cfg.Kafka, "enriched")))
//
// # Configuration
//
//	kafka:
//	  enabled: true
//	  brokers: ["localhost:9092"]
//	  group_id: flowdemo
//	  compression: snappy
package kafka
