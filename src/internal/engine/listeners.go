// FILE: logfan/src/internal/engine/listeners.go
package engine

import (
	"sort"

	"logfan/src/internal/core"
	"logfan/src/internal/listen"
	"logfan/src/internal/logconfig"
)

// onRegistryEvent runs on the goroutine that changed the registry and must
// not block. Changes are applied in order on the delivery goroutine, so a
// deleted server listener releases its port before a re-added one binds.
func (e *Engine) onRegistryEvent(ev logconfig.Event) {
	switch ev.Type {
	case logconfig.ListenAdded, logconfig.ListenUpdated, logconfig.ListenDeleted:
		name := ev.Listen.Name
		e.runOnWorker(func() { e.syncListener(name) })
	case logconfig.ThresholdChanged, logconfig.LogTypeChanged:
		e.logger.Debug("msg", "Registry settings changed",
			"component", "engine",
			"threshold", e.registry.Threshold().String(),
			"log_types", e.registry.LogType().String())
	}
}

// syncListener makes the running listener for name match the registry entry
// at the time the worker gets to it.
func (e *Engine) syncListener(name string) {
	cfg, ok := e.registry.GetListenConfig(name)
	if cur, running := e.listenerConfigs[name]; running && ok && cur == cfg {
		return
	}
	e.removeListener(name)
	if ok {
		e.startListener(cfg)
	}
}

// startListener creates, starts and installs the listener for cfg. A start
// failure is reported and leaves no listener under that name.
func (e *Engine) startListener(cfg core.ListenConfig) {
	l, err := listen.New(cfg, e.listenOpts, e.logger)
	if err != nil {
		e.reporter.Report("listener "+cfg.Name, err)
		return
	}
	l.SetWaker(e.wake)
	if err := l.Start(e.ctx); err != nil {
		e.reporter.Report("listener "+cfg.Name, err)
		e.logger.Error("msg", "Listener failed to start",
			"component", "engine",
			"listener", cfg.Name,
			"kind", cfg.Kind.String(),
			"error", err)
		return
	}
	e.listeners[cfg.Name] = l
	e.listenerConfigs[cfg.Name] = cfg
	e.publishListeners()

	e.logger.Info("msg", "Listener attached",
		"component", "engine",
		"listener", cfg.Name,
		"kind", cfg.Kind.String(),
		"address", cfg.HostPort())
}

func (e *Engine) removeListener(name string) {
	l, ok := e.listeners[name]
	if !ok {
		return
	}
	l.Stop()
	delete(e.listeners, name)
	delete(e.listenerConfigs, name)
	e.publishListeners()

	e.logger.Info("msg", "Listener removed",
		"component", "engine",
		"listener", name)
}

func (e *Engine) publishListeners() {
	list := make([]listen.Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		list = append(list, l)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	e.listenSnap.Store(&list)
}

// Listeners returns the installed listeners sorted by name.
func (e *Engine) Listeners() []listen.Listener {
	return *e.listenSnap.Load()
}

// Listener returns the installed listener called name.
func (e *Engine) Listener(name string) (listen.Listener, bool) {
	for _, l := range e.Listeners() {
		if l.Name() == name {
			return l, true
		}
	}
	return nil, false
}
