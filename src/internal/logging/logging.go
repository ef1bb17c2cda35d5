// FILE: logfan/src/internal/logging/logging.go
package logging

import (
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"

	"logfan/src/internal/core"
	"logfan/src/internal/listen"
	"logfan/src/internal/logconfig"
)

// Submitter accepts finished messages for delivery. *engine.Engine is the
// usual implementation.
type Submitter interface {
	Submit(msg core.LogMessage) error
}

// Logger is the call site API. Disabled severities cost one atomic load and
// never format their arguments.
type Logger interface {
	IsSeverityLevelEnabled(sev core.Severity) bool
	LogString(sev core.Severity, text string)
	LogTrace(text string)
	LogDebug(text string)
	LogInfo(text string)
	LogError(text string)
	Logf(sev core.Severity, format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
	Stream(sev core.Severity) *LogStream
}

// Log implements Logger on top of a registry and a Submitter.
type Log struct {
	registry *logconfig.LogConfig
	target   Submitter
	rejected atomic.Uint64
}

// New creates a Log. A nil registry selects logconfig.Instance().
func New(registry *logconfig.LogConfig, target Submitter) *Log {
	if registry == nil {
		registry = logconfig.Instance()
	}
	return &Log{registry: registry, target: target}
}

func (l *Log) IsSeverityLevelEnabled(sev core.Severity) bool {
	return l.registry.IsSeverityLevelEnabled(sev)
}

// Rejected returns the number of messages the Submitter refused, typically
// because it was shut down.
func (l *Log) Rejected() uint64 {
	return l.rejected.Load()
}

func (l *Log) LogString(sev core.Severity, text string) {
	if !l.IsSeverityLevelEnabled(sev) {
		return
	}
	l.submit(sev, text, 3)
}

func (l *Log) LogTrace(text string) { l.logAt(core.SeverityTrace, text) }
func (l *Log) LogDebug(text string) { l.logAt(core.SeverityDebug, text) }
func (l *Log) LogInfo(text string)  { l.logAt(core.SeverityInfo, text) }
func (l *Log) LogError(text string) { l.logAt(core.SeverityError, text) }

func (l *Log) Logf(sev core.Severity, format string, args ...any) {
	l.logfAt(sev, format, args)
}

func (l *Log) Debugf(format string, args ...any) { l.logfAt(core.SeverityDebug, format, args) }
func (l *Log) Infof(format string, args ...any)  { l.logfAt(core.SeverityInfo, format, args) }
func (l *Log) Errorf(format string, args ...any) { l.logfAt(core.SeverityError, format, args) }

// Stream returns a LogStream emitting one message at sev on Close.
// A disabled severity yields a stream that discards everything.
func (l *Log) Stream(sev core.Severity) *LogStream {
	s := &LogStream{log: l, severity: sev}
	if l.IsSeverityLevelEnabled(sev) {
		s.enabled = true
		s.loc, s.gid = l.caller(2)
	}
	return s
}

// ListenTransmit emits data sent on a connection as a hex dump. Protocol
// dumps are gated by the listen output instead of the threshold.
func (l *Log) ListenTransmit(preText string, data []byte) {
	l.hexDump(preText, ">", data)
}

// ListenReceive emits data received on a connection as a hex dump.
func (l *Log) ListenReceive(preText string, data []byte) {
	l.hexDump(preText, "<", data)
}

func (l *Log) hexDump(preText, dir string, data []byte) {
	if !l.registry.HasLogType(core.LogToListen) {
		return
	}
	text := dir + " " + listen.FormatHex(data)
	if preText != "" {
		text = preText + " " + text
	}
	l.submit(core.SeverityTrace, text, 4)
}

func (l *Log) logAt(sev core.Severity, text string) {
	if !l.IsSeverityLevelEnabled(sev) {
		return
	}
	l.submit(sev, text, 4)
}

func (l *Log) logfAt(sev core.Severity, format string, args []any) {
	if !l.IsSeverityLevelEnabled(sev) {
		return
	}
	l.submit(sev, fmt.Sprintf(format, args...), 4)
}

// submit builds the message. skip is the runtime.Caller depth of the call
// site as seen from caller.
func (l *Log) submit(sev core.Severity, text string, skip int) {
	loc, gid := l.caller(skip)
	l.send(sev, text, loc, gid)
}

func (l *Log) send(sev core.Severity, text string, loc core.Location, gid uint64) {
	msg := core.NewLogMessage(sev, text, loc)
	msg.GoroutineID = gid
	if l.target == nil {
		l.rejected.Add(1)
		return
	}
	if err := l.target.Submit(msg); err != nil {
		l.rejected.Add(1)
	}
}

func (l *Log) caller(skip int) (core.Location, uint64) {
	if !l.registry.ShowLocation() {
		return core.Location{}, 0
	}
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return core.Location{}, goroutineID()
	}
	loc := core.Location{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc, goroutineID()
}

// goroutineID parses the id from the "goroutine N [" stack header.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	const prefix = "goroutine "
	if len(b) <= len(prefix) {
		return 0
	}
	b = b[len(prefix):]
	end := 0
	for end < len(b) && b[end] >= '0' && b[end] <= '9' {
		end++
	}
	id, _ := strconv.ParseUint(string(b[:end]), 10, 64)
	return id
}

// SeverityString returns the display name of sev, e.g. "Error".
func SeverityString(sev core.Severity) string {
	return sev.String()
}
