package webhook

import (
	"net"
	"strconv"
	"time"
)

// Config holds the webhook listener configuration.
type Config struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host" mapstructure:"host"`
	Port    int    `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Path    string `yaml:"path" mapstructure:"path" validate:"omitempty,startswith=/"`
	// Buffer is the number of accepted bodies waiting to be pulled.
	Buffer       int           `yaml:"buffer" mapstructure:"buffer" validate:"gte=0"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gte=0"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	// ShutdownTimeout bounds the graceful shutdown done by Teardown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	c.fill()
}

// fill defaults everything but the port; port 0 asks for any free port.
func (c *Config) fill() {
	if c.Path == "" {
		c.Path = "/events"
	}
	if c.Buffer == 0 {
		c.Buffer = 64
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Addr returns the configured listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
