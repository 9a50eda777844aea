package security

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/validation"
)

// TLSConfig holds client TLS settings shared by the connectors.
type TLSConfig struct {
	SkipVerify bool   `yaml:"skip_verify" mapstructure:"skip_verify"`
	CAFile     string `yaml:"ca_file" mapstructure:"ca_file"`
	// CertFile and KeyFile enable mutual TLS. Both or neither.
	CertFile   string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile    string `yaml:"key_file" mapstructure:"key_file"`
	ServerName string `yaml:"server_name" mapstructure:"server_name"`
	// MinVersion defaults to TLS 1.2.
	MinVersion uint16 `yaml:"min_version" mapstructure:"min_version"`
}

// IsSet reports whether any setting asks for a custom TLS config.
func (c *TLSConfig) IsSet() bool {
	return c != nil && (c.SkipVerify || c.CAFile != "" || c.CertFile != "" || c.ServerName != "")
}

// Validate checks that the settings are consistent.
func (c *TLSConfig) Validate() error {
	if c == nil {
		return nil
	}
	return validation.New().
		Check((c.CertFile == "") == (c.KeyFile == ""), "cert_file", "cert_file and key_file go together").
		Check(c.MinVersion == 0 || c.MinVersion >= tls.VersionTLS10, "min_version", "unknown TLS version").
		Err()
}

// Build returns the tls.Config for the settings, or nil when none is set.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if !c.IsSet() {
		return nil, nil
	}
	return c.Client()
}

// Client always returns a tls.Config, for transports that need TLS even
// without custom settings.
func (c *TLSConfig) Client() (*tls.Config, error) {
	if c == nil {
		c = &TLSConfig{}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	tc := &tls.Config{
		InsecureSkipVerify: c.SkipVerify, //nolint:gosec // opt-in for test clusters
		ServerName:         c.ServerName,
		MinVersion:         c.MinVersion,
	}
	if tc.MinVersion == 0 {
		tc.MinVersion = tls.VersionTLS12
	}

	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, apperrors.InvalidConfig("read ca_file").WithCause(err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, apperrors.InvalidConfig(fmt.Sprintf("no certificate in %s", c.CAFile))
		}
		tc.RootCAs = pool
	}
	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, apperrors.InvalidConfig("load client certificate").WithCause(err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}
