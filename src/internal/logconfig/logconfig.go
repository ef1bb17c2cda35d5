// FILE: logfan/src/internal/logconfig/logconfig.go
package logconfig

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"logfan/src/internal/core"
)

// ErrInvalidListenConfig is wrapped by every AddListenConfig validation failure.
var ErrInvalidListenConfig = errors.New("invalid listen config")

// EventType identifies a registry change.
type EventType int

const (
	ListenAdded EventType = iota
	ListenUpdated
	ListenDeleted
	ThresholdChanged
	LogTypeChanged
)

// Event describes one registry change delivered to subscribers.
type Event struct {
	Type   EventType
	Listen core.ListenConfig
}

// LogConfig is the process-wide logging registry: severity threshold, enabled
// sink families and the listener table. All methods are safe for concurrent use.
type LogConfig struct {
	threshold atomic.Uint32
	logType   atomic.Uint32

	// changeMu orders listener changes with their notifications
	changeMu     sync.Mutex
	mu           sync.RWMutex
	listens      map[string]core.ListenConfig
	appName      string
	hostName     string
	showLocation bool

	subMu       sync.RWMutex
	subscribers map[int]func(Event)
	nextSubID   int

	closeOnce sync.Once
	teardown  []func()
}

var (
	instance     *LogConfig
	instanceOnce sync.Once
)

// Instance returns the shared registry, creating it on first use.
func Instance() *LogConfig {
	instanceOnce.Do(func() {
		instance = New()
	})
	return instance
}

// New creates an independent registry with Info threshold and console output.
func New() *LogConfig {
	host, _ := os.Hostname()
	c := &LogConfig{
		listens:     make(map[string]core.ListenConfig),
		subscribers: make(map[int]func(Event)),
		appName:     "logfan",
		hostName:    host,
	}
	c.threshold.Store(uint32(core.SeverityInfo))
	c.logType.Store(uint32(core.LogToConsole))
	return c
}

// Threshold returns the minimum severity that is logged.
func (c *LogConfig) Threshold() core.Severity {
	return core.Severity(c.threshold.Load())
}

// SetThreshold changes the minimum severity.
func (c *LogConfig) SetThreshold(s core.Severity) {
	if old := core.Severity(c.threshold.Swap(uint32(s))); old != s {
		c.notify(Event{Type: ThresholdChanged})
	}
}

// IsSeverityLevelEnabled reports whether a message of severity s passes the threshold.
func (c *LogConfig) IsSeverityLevelEnabled(s core.Severity) bool {
	return uint32(s) >= c.threshold.Load()
}

// LogType returns the enabled sink families.
func (c *LogConfig) LogType() core.LogType {
	return core.LogType(c.logType.Load())
}

// SetLogType replaces the enabled sink families.
func (c *LogConfig) SetLogType(t core.LogType) {
	if old := core.LogType(c.logType.Swap(uint32(t))); old != t {
		c.notify(Event{Type: LogTypeChanged})
	}
}

// EnableLogType turns on the given families.
func (c *LogConfig) EnableLogType(t core.LogType) {
	for {
		old := c.logType.Load()
		if c.logType.CompareAndSwap(old, old|uint32(t)) {
			if old|uint32(t) != old {
				c.notify(Event{Type: LogTypeChanged})
			}
			return
		}
	}
}

// DisableLogType turns off the given families.
func (c *LogConfig) DisableLogType(t core.LogType) {
	for {
		old := c.logType.Load()
		if c.logType.CompareAndSwap(old, old&^uint32(t)) {
			if old&^uint32(t) != old {
				c.notify(Event{Type: LogTypeChanged})
			}
			return
		}
	}
}

// HasLogType reports whether all of t is enabled.
func (c *LogConfig) HasLogType(t core.LogType) bool {
	return c.LogType().Has(t)
}

func (c *LogConfig) AppName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.appName
}

func (c *LogConfig) SetAppName(name string) {
	c.mu.Lock()
	c.appName = name
	c.mu.Unlock()
}

func (c *LogConfig) HostName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hostName
}

func (c *LogConfig) SetHostName(name string) {
	c.mu.Lock()
	c.hostName = name
	c.mu.Unlock()
}

// ShowLocation reports whether call site metadata is attached to messages.
func (c *LogConfig) ShowLocation() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.showLocation
}

func (c *LogConfig) SetShowLocation(show bool) {
	c.mu.Lock()
	c.showLocation = show
	c.mu.Unlock()
}

// AddListenConfig validates cfg and stores it under its name, replacing any
// entry with the same name.
func (c *LogConfig) AddListenConfig(cfg core.ListenConfig) error {
	if err := validateListen(cfg); err != nil {
		return err
	}
	if cfg.Kind != core.ListenConsole && cfg.Address == "" {
		cfg.Address = core.DefaultListenAddress
	}

	c.changeMu.Lock()
	defer c.changeMu.Unlock()

	c.mu.Lock()
	old, exists := c.listens[cfg.Name]
	c.listens[cfg.Name] = cfg
	c.mu.Unlock()

	switch {
	case !exists:
		c.notify(Event{Type: ListenAdded, Listen: cfg})
	case old != cfg:
		c.notify(Event{Type: ListenUpdated, Listen: cfg})
	}
	return nil
}

// DeleteListenConfig removes the named entry. Deleting a missing name is a no-op.
func (c *LogConfig) DeleteListenConfig(name string) {
	c.changeMu.Lock()
	defer c.changeMu.Unlock()

	c.mu.Lock()
	old, exists := c.listens[name]
	delete(c.listens, name)
	c.mu.Unlock()

	if exists {
		c.notify(Event{Type: ListenDeleted, Listen: old})
	}
}

// GetListenConfig returns a copy of the named entry.
func (c *LogConfig) GetListenConfig(name string) (core.ListenConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.listens[name]
	return cfg, ok
}

// GetListenConfigList returns a snapshot of all entries sorted by name.
func (c *LogConfig) GetListenConfigList() []core.ListenConfig {
	c.mu.RLock()
	list := make([]core.ListenConfig, 0, len(c.listens))
	for _, cfg := range c.listens {
		list = append(list, cfg)
	}
	c.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Subscribe registers fn for change events and returns a function that removes it.
// Callbacks run synchronously on the mutating goroutine and must not block.
// Listener events arrive in the order the changes were applied; a callback
// must not add or delete listener configs itself.
func (c *LogConfig) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

// OnClose registers a teardown function run once by Close, in reverse order.
func (c *LogConfig) OnClose(fn func()) {
	c.mu.Lock()
	c.teardown = append(c.teardown, fn)
	c.mu.Unlock()
}

// Close runs the registered teardown functions. Later calls do nothing.
func (c *LogConfig) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		fns := c.teardown
		c.teardown = nil
		c.mu.Unlock()

		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	})
}

func (c *LogConfig) notify(ev Event) {
	c.subMu.RLock()
	subs := make([]func(Event), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func validateListen(cfg core.ListenConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidListenConfig)
	}
	switch cfg.Kind {
	case core.ListenConsole:
		return nil
	case core.ListenServer, core.ListenProxy:
	default:
		return fmt.Errorf("%w: '%s' has unknown kind %d", ErrInvalidListenConfig, cfg.Name, int(cfg.Kind))
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("%w: '%s' has invalid port %d", ErrInvalidListenConfig, cfg.Name, cfg.Port)
	}
	if cfg.Address != "" && net.ParseIP(cfg.Address) == nil && !isHostName(cfg.Address) {
		return fmt.Errorf("%w: '%s' has invalid address %q", ErrInvalidListenConfig, cfg.Name, cfg.Address)
	}
	return nil
}

func isHostName(s string) bool {
	if len(s) > 253 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}
