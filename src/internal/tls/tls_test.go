// FILE: logfan/src/internal/tls/tls_test.go
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"path/filepath"
	"testing"

	"logfan/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func TestGenerateSelfSigned(t *testing.T) {
	certPEM, keyPEM, err := GenerateSelfSigned(SelfSignedRequest{
		CommonName: "localhost",
		Hosts:      []string{"localhost", "127.0.0.1"},
	})
	require.NoError(t, err)

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)

	assert.Equal(t, "localhost", leaf.Subject.CommonName)
	assert.Equal(t, []string{"localhost"}, leaf.DNSNames)
	require.Len(t, leaf.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", leaf.IPAddresses[0].String())

	_, _, err = GenerateSelfSigned(SelfSignedRequest{})
	assert.Error(t, err)
}

func TestServerAndClientManagers(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	require.NoError(t, WriteSelfSigned(SelfSignedRequest{CommonName: "localhost", Hosts: []string{"127.0.0.1"}}, certFile, keyFile))

	logger := newTestLogger()

	t.Run("disabled yields nil", func(t *testing.T) {
		m, err := NewServerManager(&config.TLSServerConfig{}, logger)
		require.NoError(t, err)
		assert.Nil(t, m)
		assert.Nil(t, m.GetTCPConfig())
		assert.Equal(t, false, m.GetStats()["enabled"])
	})

	t.Run("server", func(t *testing.T) {
		m, err := NewServerManager(&config.TLSServerConfig{
			Enabled:    true,
			CertFile:   certFile,
			KeyFile:    keyFile,
			MinVersion: "TLS1.3",
		}, logger)
		require.NoError(t, err)
		cfg := m.GetTCPConfig()
		assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
		assert.Equal(t, "TLS1.3", m.GetStats()["min_version"])
	})

	t.Run("client auth without CA", func(t *testing.T) {
		_, err := NewServerManager(&config.TLSServerConfig{
			Enabled:    true,
			CertFile:   certFile,
			KeyFile:    keyFile,
			ClientAuth: true,
		}, logger)
		assert.Error(t, err)
	})

	t.Run("client", func(t *testing.T) {
		m, err := NewClientManager(&config.TLSClientConfig{
			Enabled:      true,
			ServerCAFile: certFile,
			ServerName:   "localhost",
		}, logger)
		require.NoError(t, err)
		cfg := m.GetConfig()
		assert.NotNil(t, cfg.RootCAs)
		assert.Equal(t, "localhost", cfg.ServerName)
	})

	t.Run("client half key pair", func(t *testing.T) {
		_, err := NewClientManager(&config.TLSClientConfig{Enabled: true, ClientCertFile: certFile}, logger)
		assert.Error(t, err)
	})
}

func TestParseCipherSuites(t *testing.T) {
	ids := parseCipherSuites("TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, bogus")
	assert.Equal(t, []uint16{tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256}, ids)
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("", tls.VersionTLS12))
}
