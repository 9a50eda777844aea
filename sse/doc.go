// Package sse streams pipeline values to HTTP subscribers as Server-Sent
// Events.
//
// A Hub fans published events out to connected subscribers. Each subscriber
// picks topics with a glob in the "topic" query parameter; a slow subscriber
// loses events instead of holding up the pipeline. Sink is the stage that
// publishes, Component serves the hub over gin.
//
//	comp := sse.NewComponent(cfg, log)
//	_ = registry.Register(comp)
//	results := flow.NewProcessor(sse.NewSink(comp.Hub(), "results"))
//
//	$ curl -N 'localhost:8081/stream?topic=results'
package sse
