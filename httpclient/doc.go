// Package httpclient connects pipelines to HTTP services.
//
// Client sends requests with shared headers, TLS settings and a retry
// policy, classifying failures into timeouts, connection errors,
// rejections (4xx), rate limiting (429) and server errors (5xx). On top of
// it, Sink delivers each value as a JSON request body and EventSource
// turns a remote text/event-stream into an unbounded source.
//
//	client, err := httpclient.New(cfg, log)
//	out := flow.NewProcessor(httpclient.NewSink(client, "https://hooks.example.com/sums"))
//	in := flow.NewProcessor(httpclient.NewEventSource(client, "http://peer:8081/stream",
//		httpclient.WithSkip("connected")))
package httpclient
