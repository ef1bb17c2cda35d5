// FILE: logfan/src/internal/sink/sink.go
package sink

import (
	"time"

	"logfan/src/internal/core"
)

// Sink is a local output written synchronously by the delivery goroutine.
type Sink interface {
	// Name identifies the sink in stats and error reports
	Name() string

	// Type is the LogType bit that enables this sink
	Type() core.LogType

	// Write outputs one message
	Write(msg core.LogMessage) error

	// Flush pushes buffered output to its destination
	Flush() error

	// Close releases the sink's resources
	Close() error

	// GetStats returns sink statistics
	GetStats() SinkStats
}

// SinkStats contains statistics about a sink
type SinkStats struct {
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	TotalProcessed uint64         `json:"total_processed"`
	Errors         uint64         `json:"errors"`
	StartTime      time.Time      `json:"start_time"`
	LastProcessed  time.Time      `json:"last_processed"`
	Details        map[string]any `json:"details,omitempty"`
}
