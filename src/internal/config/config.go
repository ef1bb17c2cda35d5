// FILE: logfan/src/internal/config/config.go
package config

// Config is the complete daemon configuration.
type Config struct {
	// Top-level flags
	Quiet bool `toml:"quiet"`

	Logging   *LogConfig       `toml:"logging"`
	Engine    EngineConfig     `toml:"engine"`
	File      FileSinkConfig   `toml:"file"`
	Console   ConsoleConfig    `toml:"console"`
	List      ListConfig       `toml:"list"`
	Listeners []ListenerConfig `toml:"listeners"`
	Syslog    []SyslogConfig   `toml:"syslog"`
	Status    StatusConfig     `toml:"status"`
	Ingest    IngestConfig     `toml:"ingest"`
	Filters   []FilterConfig   `toml:"filters"`

	// TLS for proxy listeners dialing a remote aggregator
	ProxyTLS *TLSClientConfig `toml:"proxy_tls"`
}

// EngineConfig controls the delivery pipeline.
type EngineConfig struct {
	// Application identity stamped on syslog messages
	AppName string `toml:"app_name"`
	// Minimum severity accepted at call sites, e.g. "info"
	Threshold string `toml:"threshold"`
	// Enabled sink families: "console", "file", "listen", "syslog", "list"
	LogTypes []string `toml:"log_types"`
	// 0 = unbounded
	QueueCapacity int64 `toml:"queue_capacity"`
	// "block" or "drop_oldest"
	QueuePolicy  string `toml:"queue_policy"`
	ShowLocation bool   `toml:"show_location"`
	// Minimum interval between repeated sink error reports on stderr
	ErrorReportIntervalMS int64 `toml:"error_report_interval_ms"`
	// Reconnect interval of proxy listeners
	ProxyRetryMS int64 `toml:"proxy_retry_ms"`
}

// FileSinkConfig selects between the rotating writer and the directory collaborator.
type FileSinkConfig struct {
	Directory string `toml:"directory"`
	Name      string `toml:"name"`
	// "rotating" delegates rotation to the logger library, "backup" uses numbered backups
	Mode           string  `toml:"mode"`
	Format         string  `toml:"format"`
	MaxSizeMB      int64   `toml:"max_size_mb"`
	MaxTotalSizeMB int64   `toml:"max_total_size_mb"`
	MaxBackups     int64   `toml:"max_backups"`
	RetentionHours float64 `toml:"retention_hours"`
	MinDiskFreeMB  int64   `toml:"min_disk_free_mb"`
	// Glob patterns selecting files that take part in rotation
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// ConsoleConfig configures the console sink.
type ConsoleConfig struct {
	// "stdout", "stderr" or "split"
	Target string `toml:"target"`
	// "txt", "json" or "raw"
	Format string `toml:"format"`
	// "auto", "always" or "never"
	Color string `toml:"color"`
}

// ListConfig configures the in-memory message list.
type ListConfig struct {
	MaxSize int64 `toml:"max_size"`
}

// ListenerConfig is the file form of one listener registry entry.
type ListenerConfig struct {
	Name        string `toml:"name"`
	Kind        string `toml:"kind"`
	Address     string `toml:"address"`
	Port        int64  `toml:"port"`
	ShareName   string `toml:"share_name"`
	Description string `toml:"description"`
	PreText     string `toml:"pre_text"`
}

// SyslogConfig configures one syslog server instance.
type SyslogConfig struct {
	Name string `toml:"name"`
	// "udp", "tcp", "tls", "publisher" or "subscriber"
	Type    string `toml:"type"`
	Address string `toml:"address"`
	Port    int64  `toml:"port"`
	// Remote endpoint: UDP destination, or the publisher a subscriber dials
	Remote   string `toml:"remote"`
	Facility string `toml:"facility"`
	// Messages below this severity are not forwarded, e.g. "info"
	MinSeverity  string `toml:"min_severity"`
	MsgID        string `toml:"msg_id"`
	Backlog      int64  `toml:"backlog"`
	InboundQueue int64  `toml:"inbound_queue"`
	RetryMS      int64  `toml:"retry_ms"`

	TLS       *TLSServerConfig `toml:"tls"`
	ClientTLS *TLSClientConfig `toml:"client_tls"`
}

// StatusConfig configures the HTTP status endpoint.
type StatusConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int64  `toml:"port"`
	Path    string `toml:"path"`
	// Per client IP request limiting, 0 = disabled
	RequestsPerSecond float64 `toml:"requests_per_second"`
	BurstSize         int64   `toml:"burst_size"`
}

// IngestConfig feeds lines read from standard input through the engine.
type IngestConfig struct {
	Stdin bool `toml:"stdin"`
	// Severity of lines without a level marker
	DefaultSeverity string `toml:"default_severity"`
}

// Filter types and logic
const (
	FilterTypeInclude = "include"
	FilterTypeExclude = "exclude"
	FilterLogicOr     = "or"
	FilterLogicAnd    = "and"
)

// FilterConfig is one regex filter applied to messages before fan-out.
// Patterns are matched against "<severity> <text>".
type FilterConfig struct {
	// "include" passes matching messages, "exclude" drops them
	Type string `toml:"type"`
	// "or" matches any pattern, "and" requires all
	Logic    string   `toml:"logic"`
	Patterns []string `toml:"patterns"`
}
