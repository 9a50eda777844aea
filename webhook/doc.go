// Package webhook turns HTTP requests into a flow source.
//
// A Source is a flow.Stage that listens for JSON bodies on one path. Each
// accepted body is emitted on the success channel, in arrival order, from
// an unbounded sequence that blocks until the next request arrives or the
// run is canceled:
//
//	src := webhook.NewSource(cfg.Webhook)
//	events := flow.NewProcessor(src, flow.WithName("events"))
//	events.Connect(handler)
//
// Setup binds the listener and Teardown shuts it down. Requests that
// arrive while the buffer is full are refused with 503 so the run keeps
// its own pace.
package webhook
