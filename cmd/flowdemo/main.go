// Command flowdemo runs the pairs pipeline: two unbounded sources of number
// and word pairs are funneled into add and subtract stages, results are
// printed and failures logged, until the process is interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/kbukum/flowkit/bootstrap"
	"github.com/kbukum/flowkit/config"
	"github.com/kbukum/flowkit/flow"
	"github.com/kbukum/flowkit/httpclient"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/redis"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/topology"
	"github.com/kbukum/flowkit/version"
	"github.com/kbukum/flowkit/webhook"
)

const serviceName = "flowdemo"

// external lists components whose setup reaches outside the process.
var external = map[string]bool{
	componentWebhook:     true,
	componentRedisPop:    true,
	componentRedisPush:   true,
	componentKafkaSource: true,
	componentKafkaSink:   true,
	componentHTTPPost:    true,
	componentHTTPEvents:  true,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "flowdemo:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	configFile := flags.StringP("config", "c", "", "config file (searched for when empty)")
	topologyFile := flags.StringP("topology", "t", "", "topology file, overrides the config")
	showVersion := flags.BoolP("version", "v", false, "print the version and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Println(serviceName, version.Get())
		return nil
	}

	var opts []config.LoaderOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	cfg, err := config.Load[config.AppConfig](serviceName, opts...)
	if err != nil {
		return err
	}
	if *topologyFile != "" {
		cfg.Topology = *topologyFile
	}
	gin.SetMode(ginMode(cfg.Debug))

	app, err := bootstrap.NewApp(cfg, bootstrap.WithStopTimeout(cfg.StopTimeout))
	if err != nil {
		return err
	}
	log := app.Logger.WithComponent(serviceName)

	ctx := context.Background()
	metrics, shutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	conn, err := openConnectors(cfg, log)
	if err != nil {
		return err
	}
	if cfg.SSE.Enabled {
		stream := sse.NewComponent(cfg.SSE, log.WithComponent("sse"))
		if err := app.RegisterComponent(stream); err != nil {
			return err
		}
		conn.hub = stream.Hub()
	}
	if conn.redis != nil {
		if err := app.RegisterComponent(redis.NewComponent(conn.redis)); err != nil {
			return err
		}
	}

	def, err := loadDefinition(cfg, conn)
	if err != nil {
		return err
	}

	reg := newRegistry(os.Stdout, log, conn)
	built, err := topology.Build(def, reg, buildOptions(cfg, def, log, metrics)...)
	if err != nil {
		return err
	}

	if _, err := app.AddPipeline(def.Name, built.Pipeline); err != nil {
		return err
	}
	return app.Run(ctx)
}

// ginMode picks the mode shared by every HTTP engine in the process.
func ginMode(debug bool) string {
	if debug {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

// openConnectors creates the external endpoints enabled in the config.
func openConnectors(cfg *config.AppConfig, log *logger.Logger) (connectors, error) {
	var conn connectors
	if cfg.Webhook.Enabled {
		conn.hook = webhook.NewSource(cfg.Webhook, webhook.WithLogger(log.WithComponent("webhook")))
	}
	if cfg.Redis.Enabled {
		client, err := redis.New(cfg.Redis, log.WithComponent("redis"))
		if err != nil {
			return conn, err
		}
		conn.redis = client
	}
	if cfg.Kafka.Enabled {
		kcfg := cfg.Kafka
		conn.kafka = &kcfg
	}
	if cfg.HTTP.Enabled {
		client, err := httpclient.New(cfg.HTTP, log.WithComponent("http"))
		if err != nil {
			return conn, err
		}
		conn.http = client
	}
	return conn, nil
}

func loadDefinition(cfg *config.AppConfig, conn connectors) (*topology.Definition, error) {
	if cfg.Topology == "" {
		return pairsDefinition(conn.hook != nil, conn.hub != nil), nil
	}
	return topology.Load(cfg.Topology)
}

// initTelemetry installs the OTLP providers the config asks for. The
// returned function flushes and shuts them down.
func initTelemetry(ctx context.Context, cfg *config.AppConfig) (*observability.Metrics, func(), error) {
	var closers []func(context.Context) error
	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, c := range closers {
			if err := c(sctx); err != nil {
				logger.Warn("telemetry shutdown failed", logger.Fields(logger.FieldError, err.Error()))
			}
		}
	}

	if cfg.Telemetry.Tracing {
		tp, err := observability.InitTracer(ctx, cfg.Telemetry.Tracer(&cfg.ServiceConfig))
		if err != nil {
			return nil, shutdown, err
		}
		closers = append(closers, tp.Shutdown)
	}

	if !cfg.Telemetry.Metrics {
		return nil, shutdown, nil
	}
	mp, err := observability.InitMeter(ctx, cfg.Telemetry.Meter(&cfg.ServiceConfig))
	if err != nil {
		shutdown()
		return nil, func() {}, err
	}
	closers = append(closers, mp.Shutdown)

	metrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		shutdown()
		return nil, func() {}, err
	}
	return metrics, shutdown, nil
}

// buildOptions wraps every stage with what the config enables: pacing for
// sources, setup retry for external endpoints, then logging, metrics and
// tracing.
func buildOptions(cfg *config.AppConfig, def *topology.Definition, log *logger.Logger, metrics *observability.Metrics) []topology.BuildOption {
	sources := make(map[string]bool)
	components := make(map[string]string)
	for _, p := range def.Processors {
		sources[p.Name] = p.Source
		components[p.Name] = p.Component
	}

	runnerOpts := []flow.RunnerOption{flow.WithDropLogging(cfg.Runner.DropLogging())}
	if cfg.Runner.SuppressEmpty {
		runnerOpts = append(runnerOpts, flow.WithEmptySuppression())
	}
	if metrics != nil {
		runnerOpts = append(runnerOpts, flow.WithObserver(flow.NewMetricsObserver(metrics)))
	}

	opts := []topology.BuildOption{
		topology.WithLogger(log.WithComponent("flow")),
		topology.WithRunnerOptions(runnerOpts...),
	}

	if cfg.RateLimit.Rate > 0 {
		opts = append(opts, topology.WithDecorator(func(name string, stage flow.Stage) flow.Stage {
			if !sources[name] {
				return stage
			}
			return flow.WithRateLimit(stage, resilience.NewRateLimiter(cfg.RateLimit))
		}))
	}
	opts = append(opts, topology.WithDecorator(func(name string, stage flow.Stage) flow.Stage {
		if !external[components[name]] {
			return stage
		}
		return flow.WithSetupRetry(stage, cfg.SetupRetry)
	}))
	if cfg.Debug {
		opts = append(opts, topology.WithDecorator(func(name string, stage flow.Stage) flow.Stage {
			return flow.WithLogging(name, stage, log)
		}))
	}
	if metrics != nil {
		opts = append(opts, topology.WithDecorator(func(name string, stage flow.Stage) flow.Stage {
			return flow.WithMetrics(name, stage, metrics)
		}))
	}
	if cfg.Telemetry.Tracing {
		opts = append(opts, topology.WithDecorator(flow.WithTracing))
	}
	return opts
}
