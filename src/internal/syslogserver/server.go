// FILE: logfan/src/internal/syslogserver/server.go
package syslogserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/listen"
	"logfan/src/internal/queue"
	"logfan/src/internal/syslog"

	"github.com/lixenwraith/log"
)

var (
	ErrNotOperable    = errors.New("syslog server not operable")
	ErrAlreadyStarted = errors.New("syslog server already started")
)

const (
	defaultInboundQueue = 1000
	defaultBacklog      = 50
)

// State is the lifecycle position of a server.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateOperable
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateOperable:
		return "operable"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Server is a listener speaking RFC 5424 syslog.
type Server interface {
	listen.Listener
	Type() string
	IsOperable() bool
	State() State
	NofConnections() int
	NofMessages() uint64
	// GetMsg returns the next received message. With block set it waits
	// until a message arrives or ctx is done.
	GetMsg(ctx context.Context, block bool) (*syslog.Message, bool)
	// Index returns the sequence number of the last message sent.
	Index() uint64
	// Configure sets the header application name and the location flag.
	Configure(appName string, showLocation bool)
}

// Constructor builds one server variant.
type Constructor func(cfg config.SyslogConfig, logger *log.Logger) (Server, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes a server type available to New. Registering a type twice replaces it.
func Register(typ string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(typ)] = c
}

// Types lists the registered server types.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// New creates the server selected by cfg.Type. The server is not started.
func New(cfg config.SyslogConfig, logger *log.Logger) (Server, error) {
	registryMu.RLock()
	c, ok := registry[strings.ToLower(cfg.Type)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("syslog server %s: unknown type %q", cfg.Name, cfg.Type)
	}
	return c(cfg, logger)
}

func init() {
	Register("udp", func(cfg config.SyslogConfig, l *log.Logger) (Server, error) { return NewUDP(cfg, l) })
	Register("tcp", func(cfg config.SyslogConfig, l *log.Logger) (Server, error) { return NewTCP(cfg, l) })
	Register("tls", func(cfg config.SyslogConfig, l *log.Logger) (Server, error) { return NewTLS(cfg, l) })
	Register("publisher", func(cfg config.SyslogConfig, l *log.Logger) (Server, error) { return NewPublisher(cfg, l) })
	Register("subscriber", func(cfg config.SyslogConfig, l *log.Logger) (Server, error) { return NewSubscriber(cfg, l) })
}

// base carries the state shared by every variant: lifecycle, sequence
// index, message translation and the inbound queue.
type base struct {
	*listen.Base
	cfg    config.SyslogConfig
	typ    string
	opts   syslog.Options
	framed bool
	logger *log.Logger

	state   atomic.Int32
	index   atomic.Uint64
	inbound *queue.Queue[*syslog.Message]
	avail   chan struct{}

	received    atomic.Uint64
	parseErrors atomic.Uint64
}

func newBase(cfg config.SyslogConfig, typ string, kind core.ListenKind, framed bool, logger *log.Logger) (*base, error) {
	if cfg.Name == "" {
		cfg.Name = typ
	}
	facility := syslog.FacilityLocal0
	if cfg.Facility != "" {
		f, err := syslog.ParseFacility(cfg.Facility)
		if err != nil {
			return nil, fmt.Errorf("syslog server %s: %w", cfg.Name, err)
		}
		facility = f
	}
	minSev := core.SeverityInfo
	if cfg.MinSeverity != "" {
		s, err := core.ParseSeverity(cfg.MinSeverity)
		if err != nil {
			return nil, fmt.Errorf("syslog server %s: %w", cfg.Name, err)
		}
		minSev = s
	}
	inboundCap := int(cfg.InboundQueue)
	if inboundCap <= 0 {
		inboundCap = defaultInboundQueue
	}
	host, _ := os.Hostname()

	b := &base{
		cfg:     cfg,
		typ:     typ,
		framed:  framed,
		logger:  logger,
		inbound: queue.New[*syslog.Message](inboundCap, queue.DropOldest),
		avail:   make(chan struct{}, 1),
		opts: syslog.Options{
			Facility:     facility,
			Hostname:     host,
			MsgID:        cfg.MsgID,
			ShowLocation: true,
		},
	}
	b.Base = listen.NewBase(cfg.Name, kind, listen.StreamFunc(b.encode), logger)
	b.SetLogLevel(core.MaskFrom(minSev))
	return b, nil
}

// Configure sets the application name and location flag used in the header.
func (b *base) Configure(appName string, showLocation bool) {
	b.opts.AppName = appName
	b.opts.ShowLocation = showLocation
}

// encode assigns the next index, so only messages that are actually sent consume one.
func (b *base) encode(lm core.LogMessage) ([]byte, error) {
	m := syslog.FromLogMessage(lm, b.opts)
	m.Index = b.index.Add(1)
	if b.framed {
		return syslog.AppendFrame(nil, m), nil
	}
	return m.Encode(), nil
}

func (b *base) Type() string { return b.typ }

func (b *base) State() State { return State(b.state.Load()) }

func (b *base) IsOperable() bool { return b.State() == StateOperable }

func (b *base) NofConnections() int { return b.Clients() }

func (b *base) NofMessages() uint64 { return b.NumberOfMessages() }

func (b *base) Index() uint64 { return b.index.Load() }

// beginStart moves Stopped to Starting.
func (b *base) beginStart() error {
	if b.Stopping() {
		return fmt.Errorf("%s: server cannot be restarted after stop", b.Name())
	}
	if !b.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("%s: %w", b.Name(), ErrAlreadyStarted)
	}
	return nil
}

// finishStart moves Starting to Operable on success and back to Stopped on failure.
func (b *base) finishStart(err error) error {
	if err != nil {
		b.state.Store(int32(StateStopped))
		b.logger.Error("msg", "Syslog server failed to start",
			"component", "syslog_server",
			"server", b.Name(),
			"type", b.typ,
			"error", err)
		return err
	}
	b.state.Store(int32(StateOperable))
	b.logger.Info("msg", "Syslog server operable",
		"component", "syslog_server",
		"server", b.Name(),
		"type", b.typ)
	return nil
}

// markStopped closes the clients and returns to Stopped. It reports false
// when the server was not running.
func (b *base) markStopped() bool {
	prev := State(b.state.Swap(int32(StateStopped)))
	b.CloseClients()
	b.inbound.Shutdown()
	if prev == StateStopped {
		return false
	}
	b.logger.Info("msg", "Syslog server stopped",
		"component", "syslog_server",
		"server", b.Name(),
		"type", b.typ,
		"sent", b.NumberOfMessages(),
		"received", b.received.Load())
	return true
}

// receive queues an inbound message for GetMsg.
func (b *base) receive(m *syslog.Message, err error) {
	if err != nil {
		b.parseErrors.Add(1)
		b.logger.Debug("msg", "Discarding malformed syslog message",
			"component", "syslog_server",
			"server", b.Name(),
			"error", err)
		return
	}
	if m == nil {
		return
	}
	if b.inbound.Push(m) != nil {
		return
	}
	b.received.Add(1)
	select {
	case b.avail <- struct{}{}:
	default:
	}
}

func (b *base) GetMsg(ctx context.Context, block bool) (*syslog.Message, bool) {
	for {
		if m, ok := b.inbound.TryPop(); ok {
			return m, true
		}
		if !block || b.inbound.Closed() {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-b.avail:
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (b *base) stats() listen.Stats {
	st := b.Base.Stats()
	st.Details = map[string]any{
		"type":          b.typ,
		"state":         b.State().String(),
		"index":         b.index.Load(),
		"facility":      b.opts.Facility.String(),
		"received":      b.received.Load(),
		"parse_errors":  b.parseErrors.Load(),
		"inbound_queue": b.inbound.Len(),
		"inbound_drops": b.inbound.Dropped(),
	}
	return st
}

func (b *base) Stats() listen.Stats {
	return b.stats()
}

func (b *base) hostPort() string {
	host := b.cfg.Address
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, b.cfg.Port)
}
