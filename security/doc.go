// Package security holds the TLS settings shared by the network connectors.
//
//	cfg := security.TLSConfig{CAFile: "/etc/ssl/ca.pem"}
//	tc, err := cfg.Build() // nil when nothing is set
package security
