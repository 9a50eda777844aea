package kafka

import (
	"time"

	"github.com/kbukum/flowkit/validation"
)

// SASL mechanisms accepted by Config.
var SASLMechanisms = []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}

// Compression codecs accepted by Config.
var Compressions = []string{"none", "gzip", "snappy", "lz4", "zstd"}

// Config holds Kafka connection and client configuration.
type Config struct {
	// Enabled controls whether the Kafka components are registered.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	// GroupID is the consumer group of topic sources. Without one, offsets
	// are not committed and every run starts at StartOffset.
	GroupID string `yaml:"group_id" mapstructure:"group_id"`
	// StartOffset is "first" or "last".
	StartOffset string `yaml:"start_offset" mapstructure:"start_offset"`

	// TLS
	EnableTLS     bool   `yaml:"enable_tls" mapstructure:"enable_tls"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify" mapstructure:"tls_skip_verify"`
	TLSCAFile     string `yaml:"tls_ca_file" mapstructure:"tls_ca_file"`
	TLSCertFile   string `yaml:"tls_cert_file" mapstructure:"tls_cert_file"`
	TLSKeyFile    string `yaml:"tls_key_file" mapstructure:"tls_key_file"`

	// SASL
	EnableSASL    bool   `yaml:"enable_sasl" mapstructure:"enable_sasl"`
	SASLMechanism string `yaml:"sasl_mechanism" mapstructure:"sasl_mechanism"`
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password"`

	// Producer settings
	Compression  string        `yaml:"compression" mapstructure:"compression"`
	Retries      int           `yaml:"retries" mapstructure:"retries" validate:"gte=0"`
	BatchSize    int           `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=0"`
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
	RequiredAcks int           `yaml:"required_acks" mapstructure:"required_acks" validate:"gte=-1,lte=1"`

	// Consumer settings
	SessionTimeout    time.Duration `yaml:"session_timeout" mapstructure:"session_timeout" validate:"gte=0"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval" validate:"gte=0"`

	// Connection settings
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout" validate:"gte=0"`
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gte=0"`
	MetadataTTL time.Duration `yaml:"metadata_ttl" mapstructure:"metadata_ttl" validate:"gte=0"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.StartOffset == "" {
		c.StartOffset = "first"
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.Retries == 0 {
		c.Retries = 3
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1 // all replicas
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = 30 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 3 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.MetadataTTL == 0 {
		c.MetadataTTL = 6 * time.Second
	}
	if c.EnableSASL && c.SASLMechanism == "" {
		c.SASLMechanism = "PLAIN"
	}
}

// Validate checks the settings. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	v := validation.New()
	v.Merge("", validation.Validate(c))
	v.Check(len(c.Brokers) > 0, "brokers", "at least one broker is required")
	v.OneOf("start_offset", c.StartOffset, []string{"first", "last"})
	v.OneOf("compression", c.Compression, Compressions)
	if c.EnableSASL {
		v.OneOf("sasl_mechanism", c.SASLMechanism, SASLMechanisms)
		v.Required("username", c.Username)
	}
	return v.Err()
}
