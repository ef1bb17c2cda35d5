// FILE: logfan/src/internal/core/message.go
package core

import (
	"os"
	"time"
)

// Location identifies the call site that produced a message.
type Location struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Function string `json:"function,omitempty"`
}

// IsZero reports whether no location was captured.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Function == ""
}

// LogMessage is a single log record flowing from a call site to the sinks.
// It is passed by value and never modified after construction.
type LogMessage struct {
	Time        time.Time `json:"time"`
	Severity    Severity  `json:"severity"`
	Location    Location  `json:"location"`
	PID         int       `json:"pid"`
	GoroutineID uint64    `json:"goroutine,omitempty"`
	Text        string    `json:"text"`
}

var pid = os.Getpid()

// NewLogMessage stamps a message with the current time and process id.
func NewLogMessage(severity Severity, text string, loc Location) LogMessage {
	return LogMessage{
		Time:     time.Now(),
		Severity: severity,
		Location: loc,
		PID:      pid,
		Text:     text,
	}
}
