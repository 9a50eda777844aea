package httpclient

import (
	"time"

	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/security"
	"github.com/kbukum/flowkit/validation"
)

// Config configures the HTTP connector.
type Config struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Timeout bounds one request. Event streams are bounded by their
	// context only.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	// Headers are sent with every request, e.g. Authorization.
	Headers map[string]string      `yaml:"headers" mapstructure:"headers"`
	TLS     security.TLSConfig     `yaml:"tls" mapstructure:"tls"`
	Retry   resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialBackoff == 0 {
		c.Retry.InitialBackoff = 200 * time.Millisecond
	}
	if c.Retry.MaxBackoff == 0 {
		c.Retry.MaxBackoff = 5 * time.Second
	}
	if c.Retry.BackoffFactor == 0 {
		c.Retry.BackoffFactor = 2
	}
}

// Validate checks the configuration. A disabled connector is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.New().
		Merge("", validation.Validate(c)).
		Check(c.Timeout > 0, "timeout", "must be positive").
		Merge("tls", c.TLS.Validate()).
		Err()
}
