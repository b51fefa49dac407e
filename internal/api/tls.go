package api

import (
	"crypto/tls"
	"fmt"
	"os"
)

const (
	EnvTLSCert = "TRAFFIC_TLS_CERT"
	EnvTLSKey  = "TRAFFIC_TLS_KEY"
)

// TLSConfig holds certificate paths for serving HTTPS.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// TLSFromEnv returns the configured certificate pair, or nil when either
// variable is unset.
func TLSFromEnv() *TLSConfig {
	certFile := os.Getenv(EnvTLSCert)
	keyFile := os.Getenv(EnvTLSKey)
	if certFile == "" || keyFile == "" {
		return nil
	}
	return &TLSConfig{CertFile: certFile, KeyFile: keyFile}
}

// Enabled returns true if both paths are set.
func (c *TLSConfig) Enabled() bool {
	return c != nil && c.CertFile != "" && c.KeyFile != ""
}

// Load reads the key pair into a tls.Config.
func (c *TLSConfig) Load() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("tls not configured")
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
