// FILE: logfan/src/internal/ingest/ingest.go
package ingest

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"logfan/src/internal/core"
	"logfan/src/internal/logging"

	"github.com/lixenwraith/log"
)

const maxLineBytes = 1024 * 1024

// Reader turns lines of an input stream into log messages.
type Reader struct {
	name     string
	input    io.Reader
	target   logging.Logger
	severity core.Severity
	logger   *log.Logger

	lines         atomic.Uint64
	filtered      atomic.Uint64
	startTime     time.Time
	lastEntryTime atomic.Value // time.Time
}

// Stats is a point-in-time view of a Reader.
type Stats struct {
	Name          string    `json:"name"`
	Lines         uint64    `json:"lines"`
	Filtered      uint64    `json:"filtered"`
	StartTime     time.Time `json:"start_time"`
	LastEntryTime time.Time `json:"last_entry_time"`
}

// NewReader creates a reader logging to target. Lines without a recognizable
// level marker are logged at severity.
func NewReader(name string, input io.Reader, target logging.Logger, severity core.Severity, logger *log.Logger) *Reader {
	r := &Reader{
		name:      name,
		input:     input,
		target:    target,
		severity:  severity,
		logger:    logger,
		startTime: time.Now(),
	}
	r.lastEntryTime.Store(time.Time{})
	return r
}

// Run reads until EOF, a read error or ctx is done. Closing the input is
// the caller's job; a blocked read only returns once the input is closed.
func (r *Reader) Run(ctx context.Context) error {
	r.logger.Info("msg", "Input reader started", "component", "ingest", "input", r.name)

	scanner := bufio.NewScanner(r.input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		sev, ok := DetectSeverity(line)
		if !ok {
			sev = r.severity
		}
		r.lines.Add(1)
		r.lastEntryTime.Store(time.Now())
		if !r.target.IsSeverityLevelEnabled(sev) {
			r.filtered.Add(1)
			continue
		}
		r.target.LogString(sev, line)
	}

	err := scanner.Err()
	if err != nil {
		r.logger.Error("msg", "Scanner error reading input",
			"component", "ingest",
			"input", r.name,
			"error", err)
	}
	r.logger.Info("msg", "Input reader stopped",
		"component", "ingest",
		"input", r.name,
		"lines", r.lines.Load())
	return err
}

func (r *Reader) Stats() Stats {
	last, _ := r.lastEntryTime.Load().(time.Time)
	return Stats{
		Name:          r.name,
		Lines:         r.lines.Load(),
		Filtered:      r.filtered.Load(),
		StartTime:     r.startTime,
		LastEntryTime: last,
	}
}

var markers = []struct {
	patterns []string
	severity core.Severity
}{
	{[]string{"[EMERG]", "EMERG:", "[FATAL]", "FATAL:", "PANIC:"}, core.SeverityEmergency},
	{[]string{"[CRIT]", "CRIT:", "[CRITICAL]", "CRITICAL:"}, core.SeverityCritical},
	{[]string{"[ERROR]", "ERROR:", " ERROR ", "ERR:", "[ERR]"}, core.SeverityError},
	{[]string{"[WARN]", "WARN:", " WARN ", "WARNING:", "[WARNING]"}, core.SeverityWarning},
	{[]string{"[NOTICE]", "NOTICE:"}, core.SeverityNotice},
	{[]string{"[INFO]", "INFO:", " INFO ", "[INF]", "INF:"}, core.SeverityInfo},
	{[]string{"[DEBUG]", "DEBUG:", " DEBUG ", "[DBG]", "DBG:"}, core.SeverityDebug},
	{[]string{"[TRACE]", "TRACE:", " TRACE "}, core.SeverityTrace},
}

// DetectSeverity looks for a conventional level marker such as "[WARN]" or
// "ERROR:". Higher severities win when a line carries several.
func DetectSeverity(line string) (core.Severity, bool) {
	upper := strings.ToUpper(line)
	for _, group := range markers {
		for _, p := range group.patterns {
			if strings.Contains(upper, p) {
				return group.severity, true
			}
		}
	}
	return 0, false
}
