// Package redis connects flow pipelines to Redis lists.
//
// A Client wraps go-redis with flowkit logging and configuration; a
// Component puts it under a component.Registry so connectivity is checked
// at startup and the pool is closed on shutdown.
//
// ListSource pops from the head of a list and ListSink pushes to its tail,
// so two processes can hand values to each other through one key:
//
//	client, _ := redis.New(cfg.Redis, log)
//	app.RegisterComponent(redis.NewComponent(client))
//
//	jobs := flow.NewProcessor(redis.NewListSource(client, "jobs"), flow.WithName("jobs"))
//	jobs.Connect(flow.NewProcessor(redis.NewListSink(client, "results")))
package redis
