// FILE: logfan/src/internal/engine/build.go
package engine

import (
	"fmt"
	"os"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/filter"
	"logfan/src/internal/format"
	"logfan/src/internal/listen"
	"logfan/src/internal/logconfig"
	"logfan/src/internal/queue"
	"logfan/src/internal/sink"
	"logfan/src/internal/syslogserver"
	ltls "logfan/src/internal/tls"

	"github.com/lixenwraith/log"
)

// ApplyRegistry copies the engine settings and listener table of cfg into reg.
func ApplyRegistry(cfg *config.Config, reg *logconfig.LogConfig) error {
	threshold, err := core.ParseSeverity(cfg.Engine.Threshold)
	if err != nil {
		return fmt.Errorf("threshold: %w", err)
	}
	types, err := core.ParseLogTypes(cfg.Engine.LogTypes)
	if err != nil {
		return fmt.Errorf("log types: %w", err)
	}

	reg.SetThreshold(threshold)
	reg.SetLogType(types)
	reg.SetShowLocation(cfg.Engine.ShowLocation)
	if cfg.Engine.AppName != "" {
		reg.SetAppName(cfg.Engine.AppName)
	}

	for _, l := range cfg.Listeners {
		lc, err := ListenConfigFrom(l)
		if err != nil {
			return err
		}
		if err := reg.AddListenConfig(lc); err != nil {
			return err
		}
	}
	return nil
}

// ListenConfigFrom converts the file form of a listener entry.
func ListenConfigFrom(l config.ListenerConfig) (core.ListenConfig, error) {
	kind, err := core.ParseListenKind(l.Kind)
	if err != nil {
		return core.ListenConfig{}, fmt.Errorf("listener '%s': %w", l.Name, err)
	}
	return core.ListenConfig{
		Name:        l.Name,
		Address:     l.Address,
		Port:        int(l.Port),
		Kind:        kind,
		ShareName:   l.ShareName,
		Description: l.Description,
		PreText:     l.PreText,
	}, nil
}

// FromConfig builds an engine with the sinks and syslog servers described by
// cfg. The registry is populated with ApplyRegistry first. The file sink is
// only created when file output is enabled.
func FromConfig(cfg *config.Config, reg *logconfig.LogConfig, logger *log.Logger) (*Engine, error) {
	if err := ApplyRegistry(cfg, reg); err != nil {
		return nil, err
	}

	policy, err := queue.ParsePolicy(cfg.Engine.QueuePolicy)
	if err != nil {
		return nil, err
	}

	sinks, err := createSinks(cfg, reg.LogType(), logger)
	if err != nil {
		return nil, err
	}

	chain, err := filter.NewChain(cfg.Filters, logger)
	if err != nil {
		closeSinks(sinks)
		return nil, err
	}

	var servers []syslogserver.Server
	for _, sc := range cfg.Syslog {
		s, err := syslogserver.New(sc, logger)
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("syslog '%s': %w", sc.Name, err)
		}
		servers = append(servers, s)
	}

	opts := Options{
		Registry:            reg,
		QueueCapacity:       int(cfg.Engine.QueueCapacity),
		QueuePolicy:         policy,
		Sinks:               sinks,
		Syslog:              servers,
		Filter:              chain,
		ErrorReportInterval: time.Duration(cfg.Engine.ErrorReportIntervalMS) * time.Millisecond,
		Listen: listen.Options{
			Console: os.Stdout,
			Retry:   time.Duration(cfg.Engine.ProxyRetryMS) * time.Millisecond,
		},
	}

	if cfg.ProxyTLS != nil && cfg.ProxyTLS.Enabled {
		mgr, err := ltls.NewClientManager(cfg.ProxyTLS, logger)
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("proxy tls: %w", err)
		}
		opts.Listen.ProxyTLS = mgr.GetConfig()
	}

	return New(opts, logger), nil
}

func createSinks(cfg *config.Config, types core.LogType, logger *log.Logger) ([]sink.Sink, error) {
	var sinks []sink.Sink

	consoleFmt, err := format.New(cfg.Console.Format, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("console sink: %w", err)
	}
	sinks = append(sinks, sink.NewConsoleSink(cfg.Console, consoleFmt, logger))

	if types.Has(core.LogToFile) {
		fileFmt, err := format.New(cfg.File.Format, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("file sink: %w", err)
		}
		fs, err := sink.NewFileSink(cfg.File, fileFmt, logger)
		if err != nil {
			return nil, fmt.Errorf("file sink: %w", err)
		}
		sinks = append(sinks, fs)
	}

	sinks = append(sinks, sink.NewList(int(cfg.List.MaxSize)))
	return sinks, nil
}

func closeSinks(sinks []sink.Sink) {
	for _, s := range sinks {
		_ = s.Close()
	}
}

// List returns the engine's in-memory list sink, if any.
func (e *Engine) List() *sink.List {
	for _, s := range e.sinks {
		if l, ok := s.(*sink.List); ok {
			return l
		}
	}
	return nil
}

// SyncRegistry applies cfg to reg like ApplyRegistry and also deletes listener
// entries that cfg no longer names. Unchanged entries produce no events.
func SyncRegistry(cfg *config.Config, reg *logconfig.LogConfig) error {
	wanted := make(map[string]bool, len(cfg.Listeners))
	for _, l := range cfg.Listeners {
		wanted[l.Name] = true
	}
	if err := ApplyRegistry(cfg, reg); err != nil {
		return err
	}
	for _, lc := range reg.GetListenConfigList() {
		if !wanted[lc.Name] {
			reg.DeleteListenConfig(lc.Name)
		}
	}
	return nil
}
