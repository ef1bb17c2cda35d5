// FILE: logfan/src/internal/format/format.go
package format

import (
	"fmt"
	"strconv"

	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter defines the interface for transforming a LogMessage into a byte slice.
type Formatter interface {
	// Format takes a LogMessage and returns the formatted line, newline terminated.
	Format(msg core.LogMessage) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// Options tunes the formatters. Zero values select the defaults.
type Options struct {
	TimestampFormat string
	Template        string
	Pretty          bool
	TimestampField  string
	LevelField      string
	MessageField    string
}

// New creates a new Formatter based on the provided name.
func New(name string, opts *Options, logger *log.Logger) (Formatter, error) {
	// Default to text if no format specified
	if name == "" {
		name = "text"
	}

	switch name {
	case "json":
		return NewJSONFormatter(opts, logger)
	case "text", "txt":
		return NewTextFormatter(opts, logger)
	case "raw":
		return NewRawFormatter(opts, logger)
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", name)
	}
}

func location(l core.Location) string {
	if l.IsZero() {
		return ""
	}
	if l.Line > 0 {
		return l.File + ":" + strconv.Itoa(l.Line)
	}
	return l.File
}
