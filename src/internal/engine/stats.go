// FILE: logfan/src/internal/engine/stats.go
package engine

import (
	"time"

	"logfan/src/internal/listen"
	"logfan/src/internal/sink"
	"logfan/src/internal/syslogserver"
)

// Stats is a point-in-time view of the engine.
type Stats struct {
	StartTime     time.Time         `json:"start_time"`
	Uptime        string            `json:"uptime"`
	Threshold     string            `json:"threshold"`
	LogTypes      string            `json:"log_types"`
	QueuePolicy   string            `json:"queue_policy"`
	QueueCapacity int               `json:"queue_capacity"`
	Queued        int               `json:"queued"`
	Enqueued      uint64            `json:"enqueued"`
	Delivered     uint64            `json:"delivered"`
	Dropped       uint64            `json:"dropped"`
	Filtered      uint64            `json:"filtered"`
	RelayDropped  uint64            `json:"relay_dropped"`
	Filters       map[string]any    `json:"filters,omitempty"`
	SinkErrors    map[string]uint64 `json:"sink_errors,omitempty"`
	Sinks         []sink.SinkStats  `json:"sinks"`
	Listeners     []listen.Stats    `json:"listeners"`
	Syslog        []SyslogStats     `json:"syslog"`
}

// SyslogStats extends listener stats with the server state machine.
type SyslogStats struct {
	listen.Stats
	Type     string `json:"type"`
	State    string `json:"state"`
	Operable bool   `json:"operable"`
	Index    uint64 `json:"index"`
}

// Enqueued returns the number of messages accepted by Submit.
func (e *Engine) Enqueued() uint64 { return e.enqueued.Load() }

// Delivered returns the number of messages the worker has processed.
func (e *Engine) Delivered() uint64 { return e.delivered.Load() }

// Dropped returns the number of messages evicted by the DropOldest policy.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// Filtered returns the number of messages rejected by the filter chain.
func (e *Engine) Filtered() uint64 { return e.filtered.Load() }

// RelayDropped returns the number of peer lines discarded because the queue was full.
func (e *Engine) RelayDropped() uint64 { return e.relayDropped.Load() }

// Stats collects engine, sink, listener and syslog server statistics.
// Safe to call from any goroutine.
func (e *Engine) Stats() Stats {
	st := Stats{
		StartTime:     e.startTime,
		Uptime:        time.Since(e.startTime).Round(time.Second).String(),
		Threshold:     e.registry.Threshold().String(),
		LogTypes:      e.registry.LogType().String(),
		QueuePolicy:   e.queue.Policy().String(),
		QueueCapacity: e.queue.Capacity(),
		Queued:        e.queue.Len(),
		Enqueued:      e.enqueued.Load(),
		Delivered:     e.delivered.Load(),
		Dropped:       e.dropped.Load(),
		Filtered:      e.filtered.Load(),
		RelayDropped:  e.relayDropped.Load(),
		SinkErrors:    e.reporter.Counts(),
		Sinks:         make([]sink.SinkStats, 0, len(e.sinks)),
		Listeners:     []listen.Stats{},
		Syslog:        make([]SyslogStats, 0, len(e.syslog)),
	}

	if e.filter != nil && e.filter.Len() > 0 {
		st.Filters = e.filter.GetStats()
	}
	for _, s := range e.sinks {
		st.Sinks = append(st.Sinks, s.GetStats())
	}
	for _, l := range e.Listeners() {
		st.Listeners = append(st.Listeners, l.Stats())
	}
	for _, s := range e.syslog {
		st.Syslog = append(st.Syslog, SyslogStats{
			Stats:    s.Stats(),
			Type:     s.Type(),
			State:    s.State().String(),
			Operable: s.IsOperable(),
			Index:    s.Index(),
		})
	}
	return st
}

// Healthy reports whether the worker is running and every syslog server is
// operable.
func (e *Engine) Healthy() bool {
	select {
	case <-e.done:
		return false
	default:
	}
	for _, s := range e.syslog {
		if !s.IsOperable() {
			return false
		}
	}
	return true
}

// Syslog returns the configured syslog servers.
func (e *Engine) Syslog() []syslogserver.Server {
	return e.syslog
}

// Sinks returns the configured sinks.
func (e *Engine) Sinks() []sink.Sink {
	return e.sinks
}
