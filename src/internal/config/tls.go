// FILE: logfan/src/internal/config/tls.go
package config

// TLSServerConfig configures TLS for listening syslog transports.
type TLSServerConfig struct {
	Enabled  bool   `toml:"enabled"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`

	// Client certificate authentication
	ClientAuth   bool   `toml:"client_auth"`
	ClientCAFile string `toml:"client_ca_file"`

	// "TLS1.2", "TLS1.3"
	MinVersion string `toml:"min_version"`
	MaxVersion string `toml:"max_version"`

	// Comma-separated list
	CipherSuites string `toml:"cipher_suites"`
}

// TLSClientConfig configures TLS for outbound connections.
type TLSClientConfig struct {
	Enabled bool `toml:"enabled"`

	ServerCAFile       string `toml:"server_ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`

	// Client certificate for mTLS
	ClientCertFile string `toml:"client_cert_file"`
	ClientKeyFile  string `toml:"client_key_file"`

	MinVersion   string `toml:"min_version"`
	MaxVersion   string `toml:"max_version"`
	CipherSuites string `toml:"cipher_suites"`
}
