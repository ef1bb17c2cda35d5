// FILE: logfan/src/internal/format/text.go
package format

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
)

const (
	defaultTextTemplate    = "[{{FmtTime .Timestamp}}] [{{ToUpper .Level}}] {{.Message}}"
	defaultTimestampFormat = time.RFC3339
)

// Produces human-readable text logs using templates
type TextFormatter struct {
	opts     Options
	template *template.Template
	logger   *log.Logger
}

// Creates a new text formatter
func NewTextFormatter(opts *Options, logger *log.Logger) (*TextFormatter, error) {
	f := &TextFormatter{logger: logger}
	if opts != nil {
		f.opts = *opts
	}
	if f.opts.TimestampFormat == "" {
		f.opts.TimestampFormat = defaultTimestampFormat
	}
	if f.opts.Template == "" {
		f.opts.Template = defaultTextTemplate
	}

	// Create template with helper functions
	funcMap := template.FuncMap{
		"FmtTime": func(t time.Time) string {
			return t.Format(f.opts.TimestampFormat)
		},
		"ToUpper":   strings.ToUpper,
		"ToLower":   strings.ToLower,
		"TrimSpace": strings.TrimSpace,
	}

	tmpl, err := template.New("log").Funcs(funcMap).Parse(f.opts.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	f.template = tmpl
	return f, nil
}

// Formats the log message using the template
func (f *TextFormatter) Format(msg core.LogMessage) ([]byte, error) {
	data := map[string]any{
		"Timestamp": msg.Time,
		"Level":     msg.Severity.String(),
		"Message":   msg.Text,
		"Location":  location(msg.Location),
		"Function":  msg.Location.Function,
		"PID":       msg.PID,
		"Goroutine": msg.GoroutineID,
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		// Fallback: return a basic formatted message
		f.logger.Debug("msg", "Template execution failed, using fallback",
			"component", "text_formatter",
			"error", err)

		fallback := fmt.Sprintf("[%s] [%s] %s\n",
			msg.Time.Format(f.opts.TimestampFormat),
			strings.ToUpper(msg.Severity.String()),
			msg.Text)
		return []byte(fallback), nil
	}

	// Ensure newline at end
	result := buf.Bytes()
	if len(result) == 0 || result[len(result)-1] != '\n' {
		result = append(result, '\n')
	}

	return result, nil
}

// Returns the formatter name
func (f *TextFormatter) Name() string {
	return "text"
}
