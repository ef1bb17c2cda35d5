// FILE: logfan/src/internal/listen/listener.go
package listen

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logfan/src/internal/core"
	"logfan/src/internal/queue"

	"github.com/lixenwraith/log"
)

// Listener fans log messages out to a dynamic set of clients.
//
// Deliver, Poll and Stop are called only from the delivering goroutine, which
// is the sole owner of the client set. Attach may be called from any goroutine.
type Listener interface {
	Name() string
	Kind() core.ListenKind
	Start(ctx context.Context) error
	Stop()
	IsActive() bool
	Deliver(msg core.LogMessage) error
	// Poll attaches pending clients and evicts dead ones without delivering.
	Poll()
	Attach(c Client)
	// SetWaker registers a callback invoked when a client is queued for attach.
	SetWaker(fn func())
	IncrementNumberOfMessages()
	NumberOfMessages() uint64
	Clients() int
	LogLevel() core.SeverityMask
	SetLogLevel(mask core.SeverityMask)
	Stats() Stats
}

// Stream serializes one LogMessage for every client of a listener.
type Stream interface {
	Encode(msg core.LogMessage) ([]byte, error)
}

// StreamFunc adapts a function to Stream.
type StreamFunc func(msg core.LogMessage) ([]byte, error)

func (f StreamFunc) Encode(msg core.LogMessage) ([]byte, error) {
	return f(msg)
}

// Stats is a point-in-time view of a listener.
type Stats struct {
	Name          string         `json:"name"`
	Kind          string         `json:"kind"`
	Active        bool           `json:"active"`
	Clients       int            `json:"clients"`
	Pending       int            `json:"pending"`
	Messages      uint64         `json:"messages"`
	Writes        uint64         `json:"writes"`
	WriteErrors   uint64         `json:"write_errors"`
	Evicted       uint64         `json:"evicted"`
	EncodeErrors  uint64         `json:"encode_errors"`
	LogLevel      string         `json:"log_level"`
	StartTime     time.Time      `json:"start_time"`
	LastDelivered time.Time      `json:"last_delivered"`
	Details       map[string]any `json:"details,omitempty"`
}

// Base implements the client bookkeeping shared by all listener kinds.
type Base struct {
	name   string
	kind   core.ListenKind
	stream Stream
	logger *log.Logger

	pending *queue.Queue[Client]
	clients []Client
	count   atomic.Int64

	// encodeIdle keeps encoding while no client is attached, for backlogs.
	encodeIdle bool
	onAttach   func(Client)
	onEncoded  func([]byte)

	wakeMu sync.Mutex
	wake   func()

	mask          atomic.Uint32
	stopping      atomic.Bool
	messages      atomic.Uint64
	writes        atomic.Uint64
	writeErrors   atomic.Uint64
	evicted       atomic.Uint64
	encodeErrors  atomic.Uint64
	startTime     time.Time
	lastDelivered atomic.Value // time.Time
}

// NewBase creates the shared state for a listener using stream as encoder.
func NewBase(name string, kind core.ListenKind, stream Stream, logger *log.Logger) *Base {
	b := &Base{
		name:      name,
		kind:      kind,
		stream:    stream,
		logger:    logger,
		pending:   queue.New[Client](0, queue.Block),
		startTime: time.Now(),
	}
	b.mask.Store(uint32(core.AllSeverities))
	b.lastDelivered.Store(time.Time{})
	return b
}

func (b *Base) Name() string          { return b.name }
func (b *Base) Kind() core.ListenKind { return b.kind }

// OnAttach registers fn to run on the delivering goroutine for each new client.
func (b *Base) OnAttach(fn func(Client)) {
	b.onAttach = fn
}

// OnEncoded registers fn to observe every encoded payload.
func (b *Base) OnEncoded(fn func([]byte), encodeIdle bool) {
	b.onEncoded = fn
	b.encodeIdle = encodeIdle
}

func (b *Base) SetWaker(fn func()) {
	b.wakeMu.Lock()
	b.wake = fn
	b.wakeMu.Unlock()
}

// Attach queues c for the delivering goroutine. Clients arriving after Stop
// are closed immediately.
func (b *Base) Attach(c Client) {
	if b.stopping.Load() {
		_ = c.Close()
		return
	}
	if err := b.pending.Push(c); err != nil {
		_ = c.Close()
		return
	}
	b.wakeMu.Lock()
	wake := b.wake
	b.wakeMu.Unlock()
	if wake != nil {
		wake()
	}
}

// IsActive reports whether at least one client is attached or pending.
func (b *Base) IsActive() bool {
	if b.stopping.Load() {
		return false
	}
	return b.count.Load() > 0 || !b.pending.Empty()
}

func (b *Base) Clients() int {
	return int(b.count.Load())
}

func (b *Base) LogLevel() core.SeverityMask {
	return core.SeverityMask(b.mask.Load())
}

func (b *Base) SetLogLevel(mask core.SeverityMask) {
	b.mask.Store(uint32(mask & core.AllSeverities))
}

func (b *Base) IncrementNumberOfMessages() {
	b.messages.Add(1)
}

func (b *Base) NumberOfMessages() uint64 {
	return b.messages.Load()
}

func (b *Base) Stopping() bool {
	return b.stopping.Load()
}

// Poll attaches queued clients and evicts disconnected ones.
func (b *Base) Poll() {
	b.attachPending()
	b.evictDead()
}

// Deliver encodes msg once and writes the bytes to every interested client.
// The message counter ticks once per delivery that reached the encoder.
func (b *Base) Deliver(msg core.LogMessage) error {
	b.Poll()
	if b.stopping.Load() || !b.LogLevel().Has(msg.Severity) {
		return nil
	}

	interested := false
	for _, c := range b.clients {
		if c.Accepts(msg.Severity) {
			interested = true
			break
		}
	}
	if !interested && !b.encodeIdle {
		return nil
	}

	data, err := b.stream.Encode(msg)
	if err != nil {
		b.encodeErrors.Add(1)
		return fmt.Errorf("listener %s: encode: %w", b.name, err)
	}
	if b.onEncoded != nil {
		b.onEncoded(data)
	}

	for _, c := range b.clients {
		if !c.Accepts(msg.Severity) {
			continue
		}
		b.writes.Add(1)
		if err := c.Write(data); err != nil {
			b.writeErrors.Add(1)
			b.logger.Debug("msg", "Client write failed",
				"component", "listener",
				"listener", b.name,
				"client", c.RemoteAddr(),
				"error", err)
		}
	}
	b.IncrementNumberOfMessages()
	b.lastDelivered.Store(time.Now())
	return nil
}

// BeginStop marks the listener as shutting down. New deliveries are ignored.
func (b *Base) BeginStop() {
	b.stopping.Store(true)
}

// CloseClients closes every attached and pending client.
func (b *Base) CloseClients() {
	b.stopping.Store(true)
	b.pending.Shutdown()
	for _, c := range b.pending.Drain() {
		_ = c.Close()
	}
	for _, c := range b.clients {
		_ = c.Close()
	}
	b.evicted.Add(uint64(len(b.clients)))
	b.clients = nil
	b.count.Store(0)
}

// Snapshot returns the attached clients. Only safe on the delivering goroutine.
func (b *Base) Snapshot() []Client {
	out := make([]Client, len(b.clients))
	copy(out, b.clients)
	return out
}

func (b *Base) Stats() Stats {
	last, _ := b.lastDelivered.Load().(time.Time)
	return Stats{
		Name:          b.name,
		Kind:          b.kind.String(),
		Active:        b.IsActive(),
		Clients:       b.Clients(),
		Pending:       b.pending.Len(),
		Messages:      b.messages.Load(),
		Writes:        b.writes.Load(),
		WriteErrors:   b.writeErrors.Load(),
		Evicted:       b.evicted.Load(),
		EncodeErrors:  b.encodeErrors.Load(),
		LogLevel:      b.LogLevel().String(),
		StartTime:     b.startTime,
		LastDelivered: last,
	}
}

func (b *Base) attachPending() {
	for {
		c, ok := b.pending.TryPop()
		if !ok {
			return
		}
		if b.stopping.Load() {
			_ = c.Close()
			continue
		}
		b.clients = append(b.clients, c)
		b.count.Store(int64(len(b.clients)))
		b.logger.Debug("msg", "Client attached",
			"component", "listener",
			"listener", b.name,
			"client", c.RemoteAddr(),
			"clients", len(b.clients))
		if b.onAttach != nil {
			b.onAttach(c)
		}
	}
}

func (b *Base) evictDead() {
	kept := b.clients[:0]
	for _, c := range b.clients {
		if c.IsConnected() {
			kept = append(kept, c)
			continue
		}
		_ = c.Close()
		b.evicted.Add(1)
		b.logger.Debug("msg", "Client evicted",
			"component", "listener",
			"listener", b.name,
			"client", c.RemoteAddr(),
			"messages", c.Messages())
	}
	for i := len(kept); i < len(b.clients); i++ {
		b.clients[i] = nil
	}
	b.clients = kept
	b.count.Store(int64(len(b.clients)))
}
