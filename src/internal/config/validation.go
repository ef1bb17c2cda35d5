// FILE: logfan/src/internal/config/validation.go
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"logfan/src/internal/core"
	"logfan/src/internal/queue"
	"logfan/src/internal/syslog"

	lconfig "github.com/lixenwraith/config"
)

var syslogTypes = map[string]bool{
	"udp": true, "tcp": true, "tls": true, "publisher": true, "subscriber": true,
}

// Validate checks the whole configuration and returns the first problem found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Logging == nil {
		cfg.Logging = DefaultLogConfig()
	}
	if err := validateLogConfig(cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := validateEngine(&cfg.Engine); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := validateConsole(&cfg.Console); err != nil {
		return fmt.Errorf("console config: %w", err)
	}

	if err := validateFile(&cfg.File); err != nil {
		return fmt.Errorf("file config: %w", err)
	}

	if cfg.List.MaxSize < 0 {
		return fmt.Errorf("list config: max_size must not be negative: %d", cfg.List.MaxSize)
	}

	names := make(map[string]bool)
	ports := make(map[int64]string)
	for i, l := range cfg.Listeners {
		if err := validateListener(i, &l, names, ports); err != nil {
			return err
		}
	}

	for i, s := range cfg.Syslog {
		if err := validateSyslog(i, &s, names, ports); err != nil {
			return err
		}
	}

	if cfg.Status.Enabled {
		if err := validatePort(cfg.Status.Port); err != nil {
			return fmt.Errorf("status config: %w", err)
		}
		if owner, ok := ports[cfg.Status.Port]; ok {
			return fmt.Errorf("status config: port %d already used by '%s'", cfg.Status.Port, owner)
		}
		if cfg.Status.RequestsPerSecond < 0 || cfg.Status.BurstSize < 0 {
			return fmt.Errorf("status config: request limits must not be negative")
		}
		if !strings.HasPrefix(cfg.Status.Path, "/") {
			return fmt.Errorf("status config: path must start with '/': %s", cfg.Status.Path)
		}
	}

	for i, f := range cfg.Filters {
		if err := validateFilter(i, &f); err != nil {
			return err
		}
	}

	if cfg.Ingest.DefaultSeverity != "" {
		if _, err := core.ParseSeverity(cfg.Ingest.DefaultSeverity); err != nil {
			return fmt.Errorf("ingest config: %w", err)
		}
	}

	return nil
}

func validateLogConfig(cfg *LogConfig) error {
	validOutputs := map[string]bool{
		"file": true, "stdout": true, "stderr": true,
		"both": true, "none": true,
	}
	if !validOutputs[cfg.Output] {
		return fmt.Errorf("invalid log output mode: %s", cfg.Output)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	if cfg.Console != nil {
		validTargets := map[string]bool{
			"stdout": true, "stderr": true, "": true,
		}
		if !validTargets[cfg.Console.Target] {
			return fmt.Errorf("invalid console target: %s", cfg.Console.Target)
		}

		validFormats := map[string]bool{
			"txt": true, "json": true, "": true,
		}
		if !validFormats[cfg.Console.Format] {
			return fmt.Errorf("invalid console format: %s", cfg.Console.Format)
		}
	}

	return nil
}

func validateEngine(e *EngineConfig) error {
	if _, err := core.ParseSeverity(e.Threshold); err != nil {
		return err
	}
	if _, err := core.ParseLogTypes(e.LogTypes); err != nil {
		return err
	}
	if e.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must not be negative: %d", e.QueueCapacity)
	}
	if _, err := queue.ParsePolicy(e.QueuePolicy); err != nil {
		return err
	}
	if e.ErrorReportIntervalMS < 0 {
		return fmt.Errorf("error_report_interval_ms must not be negative: %d", e.ErrorReportIntervalMS)
	}
	if e.ProxyRetryMS < 0 {
		return fmt.Errorf("proxy_retry_ms must not be negative: %d", e.ProxyRetryMS)
	}
	return nil
}

func validateConsole(c *ConsoleConfig) error {
	switch c.Target {
	case "", "stdout", "stderr", "split":
	default:
		return fmt.Errorf("invalid console target: %s", c.Target)
	}
	switch c.Format {
	case "", "txt", "json", "raw":
	default:
		return fmt.Errorf("invalid console format: %s", c.Format)
	}
	switch c.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("invalid console color mode: %s", c.Color)
	}
	return nil
}

func validateFile(f *FileSinkConfig) error {
	switch f.Mode {
	case "", "rotating", "backup":
	default:
		return fmt.Errorf("invalid file mode: %s", f.Mode)
	}
	if strings.Contains(f.Name, string(os.PathSeparator)) {
		return fmt.Errorf("file name must not contain a path separator: %s", f.Name)
	}
	if f.MaxSizeMB < 0 || f.MaxTotalSizeMB < 0 || f.MaxBackups < 0 || f.MinDiskFreeMB < 0 {
		return fmt.Errorf("file size limits must not be negative")
	}
	return nil
}

func validateListener(index int, l *ListenerConfig, names map[string]bool, ports map[int64]string) error {
	if err := lconfig.NonEmpty(l.Name); err != nil {
		return fmt.Errorf("listener %d: missing name", index)
	}
	if names[l.Name] {
		return fmt.Errorf("listener %d: duplicate name '%s'", index, l.Name)
	}
	names[l.Name] = true

	kind, err := core.ParseListenKind(l.Kind)
	if err != nil {
		return fmt.Errorf("listener '%s': %w", l.Name, err)
	}
	if kind == core.ListenConsole {
		return nil
	}

	if err := validatePort(l.Port); err != nil {
		return fmt.Errorf("listener '%s': %w", l.Name, err)
	}
	if err := validateAddress(l.Address); err != nil {
		return fmt.Errorf("listener '%s': %w", l.Name, err)
	}
	if kind == core.ListenServer {
		if owner, ok := ports[l.Port]; ok {
			return fmt.Errorf("listener '%s': port %d already used by '%s'", l.Name, l.Port, owner)
		}
		ports[l.Port] = l.Name
	}
	return nil
}

func validateSyslog(index int, s *SyslogConfig, names map[string]bool, ports map[int64]string) error {
	if err := lconfig.NonEmpty(s.Name); err != nil {
		return fmt.Errorf("syslog %d: missing name", index)
	}
	if names[s.Name] {
		return fmt.Errorf("syslog %d: duplicate name '%s'", index, s.Name)
	}
	names[s.Name] = true

	typ := strings.ToLower(s.Type)
	if !syslogTypes[typ] {
		return fmt.Errorf("syslog '%s': unknown type '%s'", s.Name, s.Type)
	}

	if s.Facility != "" {
		if _, err := syslog.ParseFacility(s.Facility); err != nil {
			return fmt.Errorf("syslog '%s': %w", s.Name, err)
		}
	}
	if s.MinSeverity != "" {
		if _, err := core.ParseSeverity(s.MinSeverity); err != nil {
			return fmt.Errorf("syslog '%s': %w", s.Name, err)
		}
	}

	if typ == "subscriber" || (typ == "udp" && s.Port == 0) {
		if s.Remote == "" {
			return fmt.Errorf("syslog '%s': remote address required", s.Name)
		}
	} else {
		if err := validatePort(s.Port); err != nil {
			return fmt.Errorf("syslog '%s': %w", s.Name, err)
		}
		if owner, ok := ports[s.Port]; ok && typ != "udp" {
			return fmt.Errorf("syslog '%s': port %d already used by '%s'", s.Name, s.Port, owner)
		}
		ports[s.Port] = s.Name
	}

	if s.Remote != "" {
		if _, _, err := net.SplitHostPort(s.Remote); err != nil {
			return fmt.Errorf("syslog '%s': invalid remote '%s': %w", s.Name, s.Remote, err)
		}
	}

	if typ == "tls" {
		if s.TLS == nil || !s.TLS.Enabled {
			return fmt.Errorf("syslog '%s': tls type requires an enabled [tls] section", s.Name)
		}
		if s.TLS.CertFile == "" || s.TLS.KeyFile == "" {
			return fmt.Errorf("syslog '%s': TLS enabled but cert/key files not specified", s.Name)
		}
		if _, err := os.Stat(s.TLS.CertFile); err != nil {
			return fmt.Errorf("syslog '%s': cert_file is not accessible: %w", s.Name, err)
		}
		if _, err := os.Stat(s.TLS.KeyFile); err != nil {
			return fmt.Errorf("syslog '%s': key_file is not accessible: %w", s.Name, err)
		}
	}

	if s.Backlog < 0 || s.InboundQueue < 0 || s.RetryMS < 0 {
		return fmt.Errorf("syslog '%s': backlog, inbound_queue and retry_ms must not be negative", s.Name)
	}
	return nil
}

func validatePort(port int64) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}

func validateAddress(addr string) error {
	if addr == "" || addr == "localhost" {
		return nil
	}
	if net.ParseIP(addr) == nil {
		if strings.ContainsAny(addr, " /") {
			return fmt.Errorf("invalid address: %s", addr)
		}
	}
	return nil
}

// ToListenConfig converts a file entry to the registry form.
func (l ListenerConfig) ToListenConfig() (core.ListenConfig, error) {
	kind, err := core.ParseListenKind(l.Kind)
	if err != nil {
		return core.ListenConfig{}, err
	}
	return core.ListenConfig{
		Name:        l.Name,
		Address:     l.Address,
		Port:        int(l.Port),
		Kind:        kind,
		ShareName:   l.ShareName,
		Description: l.Description,
		PreText:     l.PreText,
	}, nil
}

func validateFilter(index int, f *FilterConfig) error {
	switch f.Type {
	case "", FilterTypeInclude, FilterTypeExclude:
	default:
		return fmt.Errorf("filter[%d]: invalid type '%s'", index, f.Type)
	}
	switch f.Logic {
	case "", FilterLogicOr, FilterLogicAnd:
	default:
		return fmt.Errorf("filter[%d]: invalid logic '%s'", index, f.Logic)
	}
	for j, p := range f.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("filter[%d]: invalid regex pattern[%d] '%s': %w", index, j, p, err)
		}
	}
	return nil
}
