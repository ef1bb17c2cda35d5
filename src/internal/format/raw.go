// FILE: logfan/src/internal/format/raw.go
package format

import (
	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
)

// Outputs the message text as-is with a newline
type RawFormatter struct {
	logger *log.Logger
}

// Creates a new raw formatter
func NewRawFormatter(_ *Options, logger *log.Logger) (*RawFormatter, error) {
	return &RawFormatter{
		logger: logger,
	}, nil
}

// Returns the text with a newline appended
func (f *RawFormatter) Format(msg core.LogMessage) ([]byte, error) {
	return append([]byte(msg.Text), '\n'), nil
}

// Returns the formatter name
func (f *RawFormatter) Name() string {
	return "raw"
}
