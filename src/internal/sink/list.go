// FILE: logfan/src/internal/sink/list.go
package sink

import (
	"sync"
	"sync/atomic"
	"time"

	"logfan/src/internal/core"
)

// DefaultListSize is used when a List is created with a non-positive size.
const DefaultListSize = 1000

// List keeps the most recent messages in memory for inspection.
// Index 0 is the newest message.
type List struct {
	mu      sync.RWMutex
	ring    []core.LogMessage
	head    int // next write position
	count   int
	changes atomic.Uint64

	processed     atomic.Uint64
	startTime     time.Time
	lastProcessed atomic.Value // time.Time
}

// NewList creates a List holding at most maxSize messages.
func NewList(maxSize int) *List {
	if maxSize <= 0 {
		maxSize = DefaultListSize
	}
	l := &List{
		ring:      make([]core.LogMessage, maxSize),
		startTime: time.Now(),
	}
	l.lastProcessed.Store(time.Time{})
	return l
}

func (l *List) Name() string       { return "list" }
func (l *List) Type() core.LogType { return core.LogToList }

func (l *List) Write(msg core.LogMessage) error {
	l.mu.Lock()
	l.ring[l.head] = msg
	l.head = (l.head + 1) % len(l.ring)
	if l.count < len(l.ring) {
		l.count++
	}
	l.mu.Unlock()

	l.changes.Add(1)
	l.processed.Add(1)
	l.lastProcessed.Store(time.Now())
	return nil
}

// ChangeNumber increments on every Write and Clear. Readers poll it to
// detect new content without copying the list.
func (l *List) ChangeNumber() uint64 {
	return l.changes.Load()
}

// Len returns the number of stored messages.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// MaxSize returns the capacity.
func (l *List) MaxSize() int {
	return len(l.ring)
}

// Get returns the message at index, 0 being the newest.
func (l *List) Get(index int) (core.LogMessage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= l.count {
		return core.LogMessage{}, false
	}
	return l.ring[l.pos(index)], true
}

// Snapshot returns a copy of all stored messages, newest first.
func (l *List) Snapshot() []core.LogMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]core.LogMessage, l.count)
	for i := range out {
		out[i] = l.ring[l.pos(i)]
	}
	return out
}

// Clear removes all messages.
func (l *List) Clear() {
	l.mu.Lock()
	clear(l.ring)
	l.head = 0
	l.count = 0
	l.mu.Unlock()
	l.changes.Add(1)
}

func (l *List) pos(index int) int {
	n := len(l.ring)
	return ((l.head-1-index)%n + n) % n
}

func (l *List) Flush() error { return nil }
func (l *List) Close() error { return nil }

func (l *List) GetStats() SinkStats {
	lastProc, _ := l.lastProcessed.Load().(time.Time)
	return SinkStats{
		Name:           l.Name(),
		Type:           "list",
		TotalProcessed: l.processed.Load(),
		StartTime:      l.startTime,
		LastProcessed:  lastProc,
		Details: map[string]any{
			"size":          l.Len(),
			"max_size":      l.MaxSize(),
			"change_number": l.ChangeNumber(),
		},
	}
}
