// FILE: logfan/src/internal/sink/console.go
package sink

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/format"

	"github.com/lixenwraith/log"
	"golang.org/x/term"
)

const colorReset = "\033[0m"

var severityColors = [core.SeverityCount]string{
	core.SeverityTrace:     "\033[90m",
	core.SeverityDebug:     "\033[36m",
	core.SeverityInfo:      "",
	core.SeverityNotice:    "\033[32m",
	core.SeverityWarning:   "\033[33m",
	core.SeverityError:     "\033[31m",
	core.SeverityCritical:  "\033[1;31m",
	core.SeverityAlert:     "\033[1;35m",
	core.SeverityEmergency: "\033[1;41m",
}

// ConsoleSink writes formatted messages to stdout, stderr or both.
// In split mode Warning and above go to stderr.
type ConsoleSink struct {
	config    config.ConsoleConfig
	stdout    io.Writer
	stderr    io.Writer
	color     [2]bool
	startTime time.Time
	logger    *log.Logger
	formatter format.Formatter

	// Statistics
	totalProcessed atomic.Uint64
	errors         atomic.Uint64
	lastProcessed  atomic.Value // time.Time
}

// NewConsoleSink writes to the process stdout and stderr.
func NewConsoleSink(cfg config.ConsoleConfig, formatter format.Formatter, logger *log.Logger) *ConsoleSink {
	return NewConsoleSinkWriters(cfg, os.Stdout, os.Stderr, formatter, logger)
}

// NewConsoleSinkWriters writes to the given writers. Color in "auto" mode is
// only enabled for writers that are terminals.
func NewConsoleSinkWriters(cfg config.ConsoleConfig, stdout, stderr io.Writer, formatter format.Formatter, logger *log.Logger) *ConsoleSink {
	if cfg.Target == "" {
		cfg.Target = "stdout"
	}
	s := &ConsoleSink{
		config:    cfg,
		stdout:    stdout,
		stderr:    stderr,
		startTime: time.Now(),
		logger:    logger,
		formatter: formatter,
	}
	s.color[0] = useColor(cfg.Color, stdout)
	s.color[1] = useColor(cfg.Color, stderr)
	s.lastProcessed.Store(time.Time{})

	logger.Info("msg", "Console sink created",
		"component", "console_sink",
		"target", cfg.Target,
		"format", formatter.Name())
	return s
}

func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never", "":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s *ConsoleSink) Name() string       { return "console" }
func (s *ConsoleSink) Type() core.LogType { return core.LogToConsole }

func (s *ConsoleSink) Write(msg core.LogMessage) error {
	s.totalProcessed.Add(1)
	s.lastProcessed.Store(time.Now())

	formatted, err := s.formatter.Format(msg)
	if err != nil {
		s.errors.Add(1)
		return err
	}

	idx := 0
	w := s.stdout
	switch s.config.Target {
	case "stderr":
		idx, w = 1, s.stderr
	case "split":
		if msg.Severity >= core.SeverityWarning {
			idx, w = 1, s.stderr
		}
	}

	if s.color[idx] && msg.Severity.Valid() && severityColors[msg.Severity] != "" {
		colored := make([]byte, 0, len(formatted)+16)
		colored = append(colored, severityColors[msg.Severity]...)
		colored = append(colored, formatted[:len(formatted)-1]...)
		colored = append(colored, colorReset...)
		formatted = append(colored, '\n')
	}

	if _, err := w.Write(formatted); err != nil {
		s.errors.Add(1)
		return err
	}
	return nil
}

func (s *ConsoleSink) Flush() error {
	if f, ok := s.stdout.(*os.File); ok {
		_ = f.Sync()
	}
	return nil
}

func (s *ConsoleSink) Close() error {
	return s.Flush()
}

func (s *ConsoleSink) GetStats() SinkStats {
	lastProc, _ := s.lastProcessed.Load().(time.Time)

	return SinkStats{
		Name:           s.Name(),
		Type:           "console",
		TotalProcessed: s.totalProcessed.Load(),
		Errors:         s.errors.Load(),
		StartTime:      s.startTime,
		LastProcessed:  lastProc,
		Details: map[string]any{
			"target": s.config.Target,
			"format": s.formatter.Name(),
		},
	}
}
