// FILE: logfan/src/internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

const envPrefix = "LOGFAN_"

func defaults() *Config {
	return &Config{
		Logging: DefaultLogConfig(),
		Engine: EngineConfig{
			AppName:               "logfan",
			Threshold:             "info",
			LogTypes:              []string{"console"},
			QueueCapacity:         10000,
			QueuePolicy:           "block",
			ShowLocation:          true,
			ErrorReportIntervalMS: 1000,
			ProxyRetryMS:          5000,
		},
		File: FileSinkConfig{
			Directory:      "./log",
			Name:           "logfan.output",
			Mode:           "rotating",
			Format:         "txt",
			MaxSizeMB:      10,
			MaxTotalSizeMB: 100,
			MaxBackups:     5,
		},
		Console: ConsoleConfig{
			Target: "stdout",
			Format: "txt",
			Color:  "auto",
		},
		List: ListConfig{
			MaxSize: 1000,
		},
		Status: StatusConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8514,
			Path:    "/status",

			RequestsPerSecond: 10,
			BurstSize:         20,
		},
		Ingest: IngestConfig{
			Stdin:           false,
			DefaultSeverity: "info",
		},
	}
}

// Load builds the configuration from defaults, the config file, environment
// variables and CLI arguments, in increasing priority, then validates it.
func Load(cliArgs []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix(envPrefix).
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, Validate(finalConfig)
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return defaults()
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	env = envPrefix + env
	return env
}

// GetConfigPath resolves the config file from LOGFAN_CONFIG_FILE and LOGFAN_CONFIG_DIR.
func GetConfigPath() string {
	if configFile := os.Getenv("LOGFAN_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("LOGFAN_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("LOGFAN_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "logfan.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "logfan.toml")
	}

	return "logfan.toml"
}
