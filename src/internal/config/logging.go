// FILE: logfan/src/internal/config/logging.go
package config

// LogConfig configures the daemon's own diagnostic log, separate from the
// messages it distributes.
type LogConfig struct {
	// "file", "stdout", "stderr", "both" or "none"
	Output string `toml:"output"`
	// "debug", "info", "warn" or "error"
	Level string `toml:"level"`

	File    *LogFileConfig    `toml:"file"`
	Console *LogConsoleConfig `toml:"console"`
}

// LogFileConfig applies when Output is "file" or "both".
type LogFileConfig struct {
	Directory      string  `toml:"directory"`
	Name           string  `toml:"name"`
	MaxSizeMB      int64   `toml:"max_size_mb"`
	MaxTotalSizeMB int64   `toml:"max_total_size_mb"`
	RetentionHours float64 `toml:"retention_hours"` // 0 = keep forever
}

// LogConsoleConfig applies when Output is "both".
type LogConsoleConfig struct {
	// "stdout" or "stderr"
	Target string `toml:"target"`
	// "txt" or "json"
	Format string `toml:"format"`
}

func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Output: "stderr",
		Level:  "info",
		File: &LogFileConfig{
			Directory:      "./log",
			Name:           "logfan",
			MaxSizeMB:      100,
			MaxTotalSizeMB: 1000,
			RetentionHours: 168,
		},
		Console: &LogConsoleConfig{
			Target: "stderr",
			Format: "txt",
		},
	}
}
