// FILE: logfan/src/internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"logfan/src/internal/core"
	"logfan/src/internal/filter"
	"logfan/src/internal/listen"
	"logfan/src/internal/logconfig"
	"logfan/src/internal/queue"
	"logfan/src/internal/sink"
	"logfan/src/internal/syslogserver"

	"github.com/lixenwraith/log"
)

// ErrStopped is returned by Submit after Shutdown.
var ErrStopped = errors.New("engine stopped")

type itemKind uint8

const (
	itemMessage itemKind = iota
	// itemRelay carries a line received from a peer; it reaches local sinks only.
	itemRelay
	// itemWake runs pending control functions and polls listeners.
	itemWake
)

type item struct {
	kind itemKind
	msg  core.LogMessage
}

// Options configures an Engine.
type Options struct {
	// Registry supplies threshold, enabled types and listener configs.
	// Defaults to logconfig.Instance().
	Registry *logconfig.LogConfig
	// 0 = unbounded
	QueueCapacity int
	QueuePolicy   queue.Policy
	Sinks         []sink.Sink
	Syslog        []syslogserver.Server
	// Filter drops messages before fan-out. Nil passes everything.
	Filter *filter.Chain
	// Listen is passed to listen.New for every registry entry.
	Listen listen.Options
	// ErrorOutput receives throttled sink error reports, stderr when nil.
	ErrorOutput         io.Writer
	ErrorReportInterval time.Duration
}

// Engine owns the delivery goroutine. It is the only writer of sinks and of
// the listener client sets.
type Engine struct {
	registry *logconfig.LogConfig
	queue    *queue.Queue[item]
	control  *queue.Queue[func()]
	reporter *Reporter
	logger   *log.Logger

	sinks      []sink.Sink
	syslog     []syslogserver.Server
	filter     *filter.Chain
	listenOpts listen.Options

	// Owned by the delivery goroutine
	listeners       map[string]listen.Listener
	listenerConfigs map[string]core.ListenConfig
	// Read by Stats
	listenSnap atomic.Pointer[[]listen.Listener]

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	startOnce   sync.Once
	stopOnce    sync.Once
	done        chan struct{}

	enqueued  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	filtered  atomic.Uint64
	// Peer lines refused by a full queue
	relayDropped atomic.Uint64
	startTime    time.Time
}

// New creates an engine. Nothing runs until Start.
func New(opts Options, logger *log.Logger) *Engine {
	if opts.Registry == nil {
		opts.Registry = logconfig.Instance()
	}
	if opts.ErrorOutput == nil {
		opts.ErrorOutput = os.Stderr
	}

	e := &Engine{
		registry:        opts.Registry,
		queue:           queue.New[item](opts.QueueCapacity, opts.QueuePolicy),
		control:         queue.New[func()](0, queue.Block),
		reporter:        NewReporter(opts.ErrorOutput, opts.ErrorReportInterval),
		logger:          logger,
		sinks:           opts.Sinks,
		syslog:          opts.Syslog,
		filter:          opts.Filter,
		listenOpts:      opts.Listen,
		listeners:       make(map[string]listen.Listener),
		listenerConfigs: make(map[string]core.ListenConfig),
		done:            make(chan struct{}),
		startTime:       time.Now(),
	}
	e.queue.SetDropHandler(func(it item) {
		if it.kind != itemWake {
			e.dropped.Add(1)
		}
	})
	if e.listenOpts.Relay == nil {
		e.listenOpts.Relay = e.relay
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.listenSnap.Store(&[]listen.Listener{})
	return e
}

// Start launches the delivery goroutine, starts the syslog servers and the
// listeners already in the registry, then follows registry changes.
// A syslog server that fails to bind stays Stopped and is reported; Start
// itself only fails when called twice.
func (e *Engine) Start() error {
	started := false
	e.startOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("engine already started")
	}

	appName, showLocation := e.registry.AppName(), e.registry.ShowLocation()
	for _, s := range e.syslog {
		s.Configure(appName, showLocation)
		s.SetWaker(e.wake)
		if err := s.Start(e.ctx); err != nil {
			e.reporter.Report("syslog "+s.Name(), err)
			e.logger.Error("msg", "Syslog server failed to start",
				"component", "engine",
				"server", s.Name(),
				"type", s.Type(),
				"error", err)
		}
	}

	e.unsubscribe = e.registry.Subscribe(e.onRegistryEvent)
	for _, cfg := range e.registry.GetListenConfigList() {
		e.startListener(cfg)
	}

	go e.run()

	e.logger.Info("msg", "Engine started",
		"component", "engine",
		"sinks", len(e.sinks),
		"syslog_servers", len(e.syslog),
		"queue_capacity", e.queue.Capacity(),
		"queue_policy", e.queue.Policy().String())
	return nil
}

// Submit enqueues msg for delivery. Under the Block policy it waits for room
// in a full queue; under DropOldest it never waits.
func (e *Engine) Submit(msg core.LogMessage) error {
	if err := e.queue.Push(item{kind: itemMessage, msg: msg}); err != nil {
		return ErrStopped
	}
	e.enqueued.Add(1)
	return nil
}

// Registry returns the registry the engine follows.
func (e *Engine) Registry() *logconfig.LogConfig {
	return e.registry
}

// Reporter returns the sink error reporter.
func (e *Engine) Reporter() *Reporter {
	return e.reporter
}

// Flush waits until every message submitted before the call has been
// delivered or dropped, then flushes the sinks.
func (e *Engine) Flush(ctx context.Context) error {
	target := e.enqueued.Load()
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for e.delivered.Load()+e.dropped.Load() < target {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return nil
		case <-ticker.C:
		}
	}

	flushed := make(chan struct{})
	if !e.runOnWorker(func() {
		e.flushSinks()
		close(flushed)
	}) {
		return nil
	}
	select {
	case <-flushed:
		return nil
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting messages, lets the worker drain the queue, then
// flushes and closes sinks and stops listeners and syslog servers.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() {
		e.logger.Info("msg", "Engine shutdown initiated", "component", "engine")
		if e.unsubscribe != nil {
			e.unsubscribe()
		}
		e.queue.Shutdown()
		started := true
		e.startOnce.Do(func() { started = false })
		if !started {
			// Never started, nothing to drain
			e.finish()
			close(e.done)
		}
	})

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown: %w", ctx.Err())
	}
}

// Done is closed once the delivery goroutine has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the delivery goroutine has exited.
func (e *Engine) Wait() {
	<-e.done
}

func (e *Engine) run() {
	defer close(e.done)

	for {
		it, ok := e.queue.Pop()
		if !ok {
			break
		}
		e.runControl()
		switch it.kind {
		case itemMessage:
			e.deliver(it.msg, true)
			e.delivered.Add(1)
		case itemRelay:
			e.deliver(it.msg, false)
			e.delivered.Add(1)
		case itemWake:
			e.pollListeners()
		}
	}

	e.finish()
	e.logger.Info("msg", "Engine stopped",
		"component", "engine",
		"delivered", e.delivered.Load(),
		"dropped", e.dropped.Load())
}

// deliver writes msg to every enabled sink. A failing or panicking sink is
// reported and does not affect the others.
func (e *Engine) deliver(msg core.LogMessage, fanOut bool) {
	if e.filter != nil && !e.filter.Apply(msg) {
		e.filtered.Add(1)
		if fanOut {
			e.pollListeners()
		}
		return
	}

	types := e.registry.LogType()

	for _, s := range e.sinks {
		if !types.Has(s.Type()) {
			continue
		}
		e.guard("sink "+s.Name(), func() error { return s.Write(msg) })
	}

	if !fanOut {
		return
	}

	if types.Has(core.LogToListen) {
		for _, l := range e.listeners {
			e.guard("listener "+l.Name(), func() error { return l.Deliver(msg) })
		}
	} else {
		e.pollListeners()
	}

	if types.Has(core.LogToSyslog) {
		for _, s := range e.syslog {
			if !s.IsOperable() {
				continue
			}
			e.guard("syslog "+s.Name(), func() error { return s.Deliver(msg) })
		}
	}
}

func (e *Engine) guard(source string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.reporter.Report(source, fmt.Errorf("panic: %v", r))
			e.logger.Error("msg", "Panic in delivery",
				"component", "engine",
				"target", source,
				"panic", r)
		}
	}()
	if err := fn(); err != nil {
		e.reporter.Report(source, err)
	}
}

func (e *Engine) pollListeners() {
	for _, l := range e.listeners {
		l.Poll()
	}
	for _, s := range e.syslog {
		s.Poll()
	}
}

func (e *Engine) flushSinks() {
	for _, s := range e.sinks {
		if err := s.Flush(); err != nil {
			e.reporter.Report("sink "+s.Name(), err)
		}
	}
}

func (e *Engine) finish() {
	// Late control functions still run so listeners started concurrently
	// are installed and then stopped below
	e.control.Shutdown()
	for _, fn := range e.control.Drain() {
		fn()
	}

	e.flushSinks()

	for name, l := range e.listeners {
		l.Stop()
		delete(e.listeners, name)
		delete(e.listenerConfigs, name)
	}
	e.publishListeners()

	for _, s := range e.syslog {
		s.Stop()
	}

	for _, s := range e.sinks {
		if err := s.Close(); err != nil {
			e.logger.Warn("msg", "Sink close failed",
				"component", "engine",
				"sink", s.Name(),
				"error", err)
		}
	}
	e.cancel()
}

// wake nudges the worker to run control functions and attach new clients.
// It never blocks and is skipped when the queue is full, since the worker
// is then busy and checks again before the next item.
func (e *Engine) wake() {
	e.queue.TryPush(item{kind: itemWake})
}

// runOnWorker queues fn for the delivery goroutine.
func (e *Engine) runOnWorker(fn func()) bool {
	if err := e.control.Push(fn); err != nil {
		return false
	}
	e.wake()
	return true
}

func (e *Engine) runControl() {
	for {
		fn, ok := e.control.TryPop()
		if !ok {
			return
		}
		fn()
	}
}

func (e *Engine) relay(from, shareName string, rec listen.TextRecord) {
	text := rec.Text
	switch {
	case shareName != "":
		text = "[" + shareName + "] " + text
	case rec.PreText != "":
		text = "[" + rec.PreText + "] " + text
	}
	msg := core.NewLogMessage(core.SeverityInfo, text, core.Location{File: from})
	if !rec.Time.IsZero() {
		msg.Time = rec.Time
	}
	// Runs on a network event loop, which must never wait for queue room
	it := item{kind: itemRelay, msg: msg}
	var ok bool
	if e.queue.Policy() == queue.DropOldest {
		ok = e.queue.Push(it) == nil
	} else {
		ok = e.queue.TryPush(it)
	}
	switch {
	case ok:
		e.enqueued.Add(1)
	case !e.queue.Closed():
		e.relayDropped.Add(1)
	}
}
