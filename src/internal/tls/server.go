// FILE: logfan/src/internal/tls/server.go
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"logfan/src/internal/config"

	"github.com/lixenwraith/log"
)

// ServerManager builds the tls.Config used by listening syslog transports.
type ServerManager struct {
	config    *config.TLSServerConfig
	tlsConfig *tls.Config
	logger    *log.Logger
}

// NewServerManager loads the certificate pair and optional client CA.
// A nil or disabled config yields a nil manager.
func NewServerManager(cfg *config.TLSServerConfig, logger *log.Logger) (*ServerManager, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server cert/key: %w", err)
	}

	m, err := newServerManager(cfg, cert)
	if err != nil {
		return nil, err
	}
	m.logger = logger

	logger.Info("msg", "TLS server manager initialized",
		"component", "tls",
		"min_version", tlsVersionString(m.tlsConfig.MinVersion),
		"client_auth", cfg.ClientAuth)
	return m, nil
}

// NewServerManagerFromPEM builds a manager from in-memory PEM blocks.
func NewServerManagerFromPEM(certPEM, keyPEM []byte, logger *log.Logger) (*ServerManager, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server cert/key: %w", err)
	}
	m, err := newServerManager(&config.TLSServerConfig{Enabled: true}, cert)
	if err != nil {
		return nil, err
	}
	m.logger = logger
	return m, nil
}

func newServerManager(cfg *config.TLSServerConfig, cert tls.Certificate) (*ServerManager, error) {
	m := &ServerManager{
		config: cfg,
		tlsConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   parseTLSVersion(cfg.MinVersion, tls.VersionTLS12),
			MaxVersion:   parseTLSVersion(cfg.MaxVersion, tls.VersionTLS13),
		},
	}

	if cfg.CipherSuites != "" {
		m.tlsConfig.CipherSuites = parseCipherSuites(cfg.CipherSuites)
	}

	if cfg.ClientAuth {
		if cfg.ClientCAFile == "" {
			return nil, fmt.Errorf("client_auth is enabled but client_ca_file is not specified")
		}
		pool, err := loadCertPool(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("client CA: %w", err)
		}
		m.tlsConfig.ClientCAs = pool
		m.tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return m, nil
}

// GetTCPConfig returns a copy suitable for raw TCP syslog streams.
func (m *ServerManager) GetTCPConfig() *tls.Config {
	if m == nil {
		return nil
	}
	cfg := m.tlsConfig.Clone()
	cfg.NextProtos = nil
	return cfg
}

// GetStats returns statistics about the current server TLS configuration.
func (m *ServerManager) GetStats() map[string]any {
	if m == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"enabled":       true,
		"min_version":   tlsVersionString(m.tlsConfig.MinVersion),
		"max_version":   tlsVersionString(m.tlsConfig.MaxVersion),
		"client_auth":   m.config.ClientAuth,
		"cipher_suites": len(m.tlsConfig.CipherSuites),
	}
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pemData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}
	return pool, nil
}
