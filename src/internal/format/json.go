// FILE: logfan/src/internal/format/json.go
package format

import (
	"encoding/json"
	"fmt"
	"time"

	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
)

// JSONFormatter produces one JSON object per LogMessage.
type JSONFormatter struct {
	opts   Options
	logger *log.Logger
}

// NewJSONFormatter creates a new JSON formatter from options.
func NewJSONFormatter(opts *Options, logger *log.Logger) (*JSONFormatter, error) {
	f := &JSONFormatter{logger: logger}
	if opts != nil {
		f.opts = *opts
	}
	if f.opts.TimestampField == "" {
		f.opts.TimestampField = "timestamp"
	}
	if f.opts.LevelField == "" {
		f.opts.LevelField = "level"
	}
	if f.opts.MessageField == "" {
		f.opts.MessageField = "message"
	}
	return f, nil
}

// Format transforms a single LogMessage into a JSON byte slice.
func (f *JSONFormatter) Format(msg core.LogMessage) ([]byte, error) {
	output := make(map[string]any)

	// Try to parse the message as JSON
	var msgData map[string]any
	if err := json.Unmarshal([]byte(msg.Text), &msgData); err == nil {
		// Message is valid JSON, merge fields; standard fields below take precedence
		for k, v := range msgData {
			output[k] = v
		}
		if _, hasTime := msgData[f.opts.TimestampField]; hasTime {
			f.logger.Debug("msg", "Overriding timestamp from JSON message",
				"component", "json_formatter",
				"original", msgData[f.opts.TimestampField])
		}
	} else {
		output[f.opts.MessageField] = msg.Text
	}

	output[f.opts.TimestampField] = msg.Time.Format(time.RFC3339Nano)
	output[f.opts.LevelField] = msg.Severity.String()
	output["pid"] = msg.PID
	if msg.GoroutineID > 0 {
		output["goroutine"] = msg.GoroutineID
	}
	if !msg.Location.IsZero() {
		output["file"] = msg.Location.File
		output["line"] = msg.Location.Line
		output["function"] = msg.Location.Function
	}

	var result []byte
	var err error
	if f.opts.Pretty {
		result, err = json.MarshalIndent(output, "", "  ")
	} else {
		result, err = json.Marshal(output)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Add newline
	return append(result, '\n'), nil
}

// Name returns the formatter's type name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// FormatBatch renders messages as one JSON array, as used by the list snapshot endpoint.
func (f *JSONFormatter) FormatBatch(msgs []core.LogMessage) ([]byte, error) {
	batch := make([]json.RawMessage, 0, len(msgs))

	for _, m := range msgs {
		formatted, err := f.Format(m)
		if err != nil {
			f.logger.Warn("msg", "Failed to format message in batch",
				"component", "json_formatter",
				"error", err)
			continue
		}

		// Remove the trailing newline for array elements
		if len(formatted) > 0 && formatted[len(formatted)-1] == '\n' {
			formatted = formatted[:len(formatted)-1]
		}

		batch = append(batch, formatted)
	}

	var result []byte
	var err error
	if f.opts.Pretty {
		result, err = json.MarshalIndent(batch, "", "  ")
	} else {
		result, err = json.Marshal(batch)
	}

	return result, err
}
