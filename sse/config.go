package sse

import (
	"net"
	"strconv"
	"time"
)

// Config holds the stream listener configuration.
type Config struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host" mapstructure:"host"`
	Port    int    `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Path    string `yaml:"path" mapstructure:"path" validate:"omitempty,startswith=/"`
	// ClientBuffer is the number of events queued per subscriber before
	// new ones are dropped for it.
	ClientBuffer int `yaml:"client_buffer" mapstructure:"client_buffer" validate:"gte=0"`
	// KeepAlive is the interval between comment lines on idle streams.
	KeepAlive       time.Duration `yaml:"keep_alive" mapstructure:"keep_alive" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8081
	}
	c.fill()
}

// fill defaults everything but the port; port 0 asks for any free port.
func (c *Config) fill() {
	if c.Path == "" {
		c.Path = "/stream"
	}
	if c.ClientBuffer == 0 {
		c.ClientBuffer = 256
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Addr returns the configured listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
