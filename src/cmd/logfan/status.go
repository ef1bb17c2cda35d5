// FILE: logfan/src/cmd/logfan/status.go
package main

import (
	"context"
	"time"

	"logfan/src/internal/engine"
)

// statusReporter periodically logs engine statistics.
func statusReporter(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-eng.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("msg", "Panic in status reporter",
							"component", "status_reporter",
							"panic", r)
					}
				}()
				logEngineStatus(eng.Stats())
			}()
		}
	}
}

func logEngineStatus(st engine.Stats) {
	logger.Debug("msg", "Status report",
		"component", "status_reporter",
		"uptime", st.Uptime,
		"queued", st.Queued,
		"enqueued", st.Enqueued,
		"delivered", st.Delivered,
		"dropped", st.Dropped)

	for _, s := range st.Sinks {
		logger.Debug("msg", "Sink status",
			"component", "status_reporter",
			"sink", s.Name,
			"type", s.Type,
			"processed", s.TotalProcessed,
			"errors", s.Errors)
	}
	for _, l := range st.Listeners {
		logger.Debug("msg", "Listener status",
			"component", "status_reporter",
			"listener", l.Name,
			"kind", l.Kind,
			"clients", l.Clients,
			"messages", l.Messages)
	}
	for _, s := range st.Syslog {
		fields := []any{
			"msg", "Syslog status",
			"component", "status_reporter",
			"server", s.Name,
			"type", s.Type,
			"state", s.State,
			"connections", s.Clients,
			"index", s.Index,
		}
		if !s.Operable {
			logger.Warn(fields...)
			continue
		}
		logger.Debug(fields...)
	}
}
