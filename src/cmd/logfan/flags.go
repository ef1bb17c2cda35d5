// FILE: logfan/src/cmd/logfan/flags.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"logfan/src/internal/config"
	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
)

// Command-line flags
var (
	// General flags
	configFile  = flag.String("config", "", "Config file path")
	showVersion = flag.Bool("version", false, "Show version information")
	quiet       = flag.Bool("quiet", false, "Suppress the banner and warnings")
	autoReload  = flag.Bool("config-auto-reload", false, "Reload listeners and thresholds when the config file changes")

	// Engine flags
	threshold = flag.String("threshold", "", "Minimum severity accepted at call sites (overrides config)")
	logTypes  = flag.String("log-types", "", "Comma-separated sink families: console, file, listen, syslog, list (overrides config)")

	// Diagnostic logging flags
	logOutput  = flag.String("log-output", "", "Log output: file, stdout, stderr, both, none (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	logDir     = flag.String("log-dir", "", "Log directory (when using file output)")
	logConsole = flag.String("log-console", "", "Console target: stdout, stderr (overrides config)")
)

func init() {
	flag.Usage = customUsage
}

func customUsage() {
	fmt.Fprintf(os.Stderr, "logfan - In-process log distribution daemon\n\n")
	fmt.Fprintf(os.Stderr, "Usage: %s [command] [options] [-- config overrides]\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "Commands:\n")
	NewCommandRouter().ShowCommands(os.Stderr)

	fmt.Fprintf(os.Stderr, "\nGeneral:\n")
	fmt.Fprintf(os.Stderr, "  -config string\n\tConfig file path\n")
	fmt.Fprintf(os.Stderr, "  -version\n\tShow version information\n")
	fmt.Fprintf(os.Stderr, "  -quiet\n\tSuppress the banner and warnings\n")
	fmt.Fprintf(os.Stderr, "  -config-auto-reload\n\tReload listeners and thresholds when the config file changes\n")

	fmt.Fprintf(os.Stderr, "\nEngine:\n")
	fmt.Fprintf(os.Stderr, "  -threshold string\n\tMinimum severity: trace, debug, info, warning, error, critical\n")
	fmt.Fprintf(os.Stderr, "  -log-types string\n\tComma-separated sink families: console, file, listen, syslog, list\n")

	fmt.Fprintf(os.Stderr, "\nLogging:\n")
	fmt.Fprintf(os.Stderr, "  -log-output string\n\tLog output: file, stdout, stderr, both, none (overrides config)\n")
	fmt.Fprintf(os.Stderr, "  -log-level string\n\tLog level: debug, info, warn, error (overrides config)\n")
	fmt.Fprintf(os.Stderr, "  -log-dir string\n\tLog directory (when using file output)\n")
	fmt.Fprintf(os.Stderr, "  -log-console string\n\tConsole target: stdout, stderr (overrides config)\n")

	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  # Run with default config\n")
	fmt.Fprintf(os.Stderr, "  %s\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  # Fan out to console and a syslog listener at debug\n")
	fmt.Fprintf(os.Stderr, "  %s --threshold debug --log-types console,syslog\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  # Override any config key after --\n")
	fmt.Fprintf(os.Stderr, "  %s --config /etc/logfan.toml -- --engine.queue_policy=drop_oldest\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  # Watch a running daemon's server listener\n")
	fmt.Fprintf(os.Stderr, "  %s tail --addr 127.0.0.1:9100 --levels warning,error\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "Environment Variables:\n")
	fmt.Fprintf(os.Stderr, "  LOGFAN_CONFIG_FILE              Config file path\n")
	fmt.Fprintf(os.Stderr, "  LOGFAN_CONFIG_DIR               Config directory\n")
	fmt.Fprintf(os.Stderr, "  LOGFAN_DISABLE_STATUS_REPORTER  Disable periodic status reports (set to 1)\n")
	fmt.Fprintf(os.Stderr, "  LOGFAN_<SECTION>_<KEY>          Any config key, e.g. LOGFAN_ENGINE_THRESHOLD\n")
}

func parseFlags() error {
	flag.Parse()

	if *logOutput != "" {
		validOutputs := map[string]bool{
			"file": true, "stdout": true, "stderr": true,
			"both": true, "none": true,
		}
		if !validOutputs[*logOutput] {
			return fmt.Errorf("invalid log-output: %s (valid: file, stdout, stderr, both, none)", *logOutput)
		}
	}

	if *logLevel != "" {
		if _, err := parseLogLevel(*logLevel); err != nil {
			return fmt.Errorf("invalid log-level: %s (valid: debug, info, warn, error)", *logLevel)
		}
	}

	if *logConsole != "" {
		if *logConsole != "stdout" && *logConsole != "stderr" {
			return fmt.Errorf("invalid log-console: %s (valid: stdout, stderr)", *logConsole)
		}
	}

	if *threshold != "" {
		if _, err := core.ParseSeverity(*threshold); err != nil {
			return fmt.Errorf("invalid threshold: %w", err)
		}
	}

	if *logTypes != "" {
		if _, err := core.ParseLogTypes(splitList(*logTypes)); err != nil {
			return fmt.Errorf("invalid log-types: %w", err)
		}
	}

	return nil
}

// configArgs returns the config overrides given after the flags, e.g.
// "--engine.threshold=debug".
func configArgs() []string {
	return flag.Args()
}

// applyFlagOverrides copies the explicit flags into cfg.
func applyFlagOverrides(cfg *config.Config) {
	if *quiet {
		cfg.Quiet = true
	}
	if *threshold != "" {
		cfg.Engine.Threshold = *threshold
	}
	if *logTypes != "" {
		cfg.Engine.LogTypes = splitList(*logTypes)
	}
	if cfg.Logging == nil {
		cfg.Logging = config.DefaultLogConfig()
	}
	if *logOutput != "" {
		cfg.Logging.Output = *logOutput
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logDir != "" {
		if cfg.Logging.File == nil {
			cfg.Logging.File = config.DefaultLogConfig().File
		}
		cfg.Logging.File.Directory = *logDir
	}
	if *logConsole != "" {
		if cfg.Logging.Console == nil {
			cfg.Logging.Console = config.DefaultLogConfig().Console
		}
		cfg.Logging.Console.Target = *logConsole
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(level string) (int64, error) {
	switch strings.ToLower(level) {
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
