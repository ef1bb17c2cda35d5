// FILE: logfan/src/internal/logging/stream.go
package logging

import (
	"fmt"
	"strings"

	"logfan/src/internal/core"
)

// LogStream accumulates text and emits it as a single message on Close.
//
//	s := log.Stream(core.SeverityInfo)
//	defer s.Close()
//	s.Printf("copied %d files", n)
//
// A LogStream is not safe for concurrent use.
type LogStream struct {
	log      *Log
	severity core.Severity
	enabled  bool
	closed   bool
	loc      core.Location
	gid      uint64
	body     strings.Builder
}

// Write appends p. It implements io.Writer so a stream can back fmt.Fprintf
// or an encoder.
func (s *LogStream) Write(p []byte) (int, error) {
	if s.enabled && !s.closed {
		s.body.Write(p)
	}
	return len(p), nil
}

func (s *LogStream) Print(args ...any) {
	if s.enabled && !s.closed {
		fmt.Fprint(&s.body, args...)
	}
}

func (s *LogStream) Printf(format string, args ...any) {
	if s.enabled && !s.closed {
		fmt.Fprintf(&s.body, format, args...)
	}
}

// Severity returns the severity the stream emits at.
func (s *LogStream) Severity() core.Severity {
	return s.severity
}

// Close emits the accumulated body. Empty bodies and repeated calls emit nothing.
func (s *LogStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.enabled || s.body.Len() == 0 {
		return nil
	}
	s.log.send(s.severity, s.body.String(), s.loc, s.gid)
	return nil
}
