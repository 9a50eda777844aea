// Package bootstrap runs flowkit processes: it validates the typed config,
// initializes the logger, starts registered components in order, runs
// lifecycle hooks and shuts everything down on a signal or when a task
// finishes.
//
// # Quick Start
//
//	cfg, err := config.Load[config.AppConfig]("flowdemo")
//	app, err := bootstrap.NewApp(cfg)
//	if _, err := app.AddPipeline("pairs", pipeline); err != nil {
//	    return err
//	}
//	return app.Run(ctx)
//
// Pipelines are registered as flow.Service components, so they are set up
// when the app starts and torn down, in reverse order, when it stops.
package bootstrap
