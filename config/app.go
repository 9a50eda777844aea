package config

import (
	"time"

	"github.com/kbukum/flowkit/httpclient"
	"github.com/kbukum/flowkit/kafka"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/redis"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/validation"
	"github.com/kbukum/flowkit/webhook"
)

// RunnerConfig configures the default runner.
type RunnerConfig struct {
	// SuppressEmpty drops nil, zero and empty values instead of routing them.
	SuppressEmpty bool `yaml:"suppress_empty" mapstructure:"suppress_empty"`
	// LogDrops writes a debug record per dropped value. Defaults to true.
	LogDrops *bool `yaml:"log_drops" mapstructure:"log_drops"`
}

// DropLogging reports whether drops are logged.
func (c RunnerConfig) DropLogging() bool {
	return c.LogDrops == nil || *c.LogDrops
}

// TelemetryConfig switches OpenTelemetry export on and points it at a
// collector.
type TelemetryConfig struct {
	Tracing    bool          `yaml:"tracing" mapstructure:"tracing"`
	Metrics    bool          `yaml:"metrics" mapstructure:"metrics"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// ApplyDefaults fills the collector endpoint, sampling and export interval.
func (c *TelemetryConfig) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.Tracing && c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// Tracer returns the tracer settings for svc.
func (c TelemetryConfig) Tracer(svc *ServiceConfig) observability.TracerConfig {
	return observability.TracerConfig{
		ServiceName:    svc.Name,
		ServiceVersion: svc.Version,
		Environment:    svc.Environment,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     c.SampleRate,
	}
}

// Meter returns the meter settings for svc.
func (c TelemetryConfig) Meter(svc *ServiceConfig) observability.MeterConfig {
	return observability.MeterConfig{
		ServiceName:    svc.Name,
		ServiceVersion: svc.Version,
		Environment:    svc.Environment,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		Interval:       c.Interval,
	}
}

// AppConfig is the configuration of a flowkit process running one pipeline.
type AppConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Runner    RunnerConfig      `yaml:"runner" mapstructure:"runner"`
	Telemetry TelemetryConfig   `yaml:"telemetry" mapstructure:"telemetry"`
	Webhook   webhook.Config    `yaml:"webhook" mapstructure:"webhook"`
	SSE       sse.Config        `yaml:"sse" mapstructure:"sse"`
	Redis     redis.Config      `yaml:"redis" mapstructure:"redis"`
	Kafka     kafka.Config      `yaml:"kafka" mapstructure:"kafka"`
	HTTP      httpclient.Config `yaml:"http" mapstructure:"http"`

	// RateLimit paces the sources. A zero rate leaves them unpaced.
	RateLimit resilience.RateLimiterConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	// SetupRetry is applied to stages whose setup talks to the outside.
	SetupRetry resilience.RetryConfig `yaml:"setup_retry" mapstructure:"setup_retry"`

	// Topology is the path of a topology file. Empty means the built-in graph.
	Topology string `yaml:"topology" mapstructure:"topology"`
	// StopTimeout bounds the shutdown of each component.
	StopTimeout time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout" validate:"gte=0"`
}

// ApplyDefaults fills every section.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	c.Webhook.ApplyDefaults()
	c.SSE.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Kafka.ApplyDefaults()
	c.HTTP.ApplyDefaults()
	if c.SetupRetry.MaxAttempts == 0 {
		c.SetupRetry = resilience.DefaultRetryConfig()
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = 10 * time.Second
	}
}

// Validate checks every section and reports all problems at once.
func (c *AppConfig) Validate() error {
	v := validation.New()
	v.Merge("", c.ServiceConfig.Validate())
	v.Merge("telemetry", validation.Validate(c.Telemetry))
	v.Merge("webhook", validation.Validate(c.Webhook))
	v.Merge("sse", validation.Validate(c.SSE))
	v.Merge("redis", c.Redis.Validate())
	v.Merge("kafka", c.Kafka.Validate())
	v.Merge("http", c.HTTP.Validate())
	v.Merge("rate_limit", validation.Validate(c.RateLimit))
	v.Merge("setup_retry", validation.Validate(c.SetupRetry))
	v.Check(c.StopTimeout >= 0, "stop_timeout", "must not be negative")
	return v.Err()
}
