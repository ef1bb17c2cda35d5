// FILE: logfan/src/cmd/logfan/reload.go
package main

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/engine"

	lconfig "github.com/lixenwraith/config"
	"github.com/lixenwraith/log"
)

// ReloadManager re-reads the configuration and applies the parts that can
// change at runtime: threshold, enabled log types, location flag and the
// listener table. Sinks, syslog servers and the status server keep their
// startup configuration.
type ReloadManager struct {
	configPath string
	args       []string
	daemon     *daemon
	logger     *log.Logger

	mu          sync.Mutex
	reloadingMu sync.Mutex
	isReloading bool

	lcfg       *lconfig.Config
	shutdownCh chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewReloadManager(configPath string, args []string, d *daemon, logger *log.Logger) *ReloadManager {
	return &ReloadManager{
		configPath: configPath,
		args:       args,
		daemon:     d,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}
}

// Watch reloads whenever the config file changes.
func (rm *ReloadManager) Watch(ctx context.Context) error {
	lcfg, err := lconfig.NewBuilder().
		WithFile(rm.configPath).
		WithTarget(config.Defaults()).
		WithFileFormat("toml").
		WithSecurityOptions(lconfig.SecurityOptions{
			PreventPathTraversal: true,
			MaxFileSize:          10 * 1024 * 1024,
		}).
		Build()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	rm.lcfg = lcfg

	lcfg.AutoUpdateWithOptions(lconfig.WatchOptions{
		PollInterval:  time.Second,
		Debounce:      500 * time.Millisecond,
		ReloadTimeout: 30 * time.Second,
	})

	rm.wg.Add(1)
	go rm.watchLoop(ctx)

	rm.logger.Info("msg", "Configuration hot reload enabled",
		"component", "reload",
		"config_file", rm.configPath)
	return nil
}

func (rm *ReloadManager) watchLoop(ctx context.Context) {
	defer rm.wg.Done()

	changeCh := rm.lcfg.Watch()
	for {
		select {
		case <-ctx.Done():
			return
		case <-rm.shutdownCh:
			return
		case changedPath, ok := <-changeCh:
			if !ok {
				return
			}
			switch {
			case changedPath == "file_deleted":
				rm.logger.Error("msg", "Configuration file deleted",
					"component", "reload",
					"action", "keeping current configuration")
				continue
			case changedPath == "permissions_changed", changedPath == "reload_timeout":
				rm.logger.Error("msg", "Configuration reload skipped",
					"component", "reload",
					"reason", changedPath)
				continue
			case strings.HasPrefix(changedPath, "reload_error:"):
				rm.logger.Error("msg", "Configuration reload error",
					"component", "reload",
					"error", strings.TrimPrefix(changedPath, "reload_error:"),
					"action", "keeping current configuration")
				continue
			}
			if shouldReload(changedPath) {
				rm.TriggerReload()
			}
		}
	}
}

// shouldReload reports whether a changed key affects runtime state.
func shouldReload(path string) bool {
	return strings.HasPrefix(path, "engine.") || path == "engine" ||
		strings.HasPrefix(path, "listeners") ||
		strings.HasPrefix(path, "syslog") ||
		strings.HasPrefix(path, "file.") || strings.HasPrefix(path, "console.") ||
		strings.HasPrefix(path, "status.")
}

// TriggerReload loads the configuration again and applies it. Concurrent
// calls collapse into the one already running.
func (rm *ReloadManager) TriggerReload() {
	rm.reloadingMu.Lock()
	if rm.isReloading {
		rm.reloadingMu.Unlock()
		rm.logger.Debug("msg", "Reload already in progress, skipping", "component", "reload")
		return
	}
	rm.isReloading = true
	rm.reloadingMu.Unlock()

	defer func() {
		rm.reloadingMu.Lock()
		rm.isReloading = false
		rm.reloadingMu.Unlock()
	}()

	rm.logger.Info("msg", "Starting configuration reload", "component", "reload")
	if err := rm.reload(); err != nil {
		rm.logger.Error("msg", "Configuration reload failed",
			"component", "reload",
			"error", err,
			"action", "keeping current configuration")
		rm.daemon.log.Errorf("configuration reload failed: %v", err)
		return
	}
	rm.logger.Info("msg", "Configuration reload completed", "component", "reload")
}

func (rm *ReloadManager) reload() error {
	newCfg, err := config.Load(rm.args)
	if err != nil {
		return err
	}
	applyFlagOverrides(newCfg)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	old := rm.daemon.cfg
	if err := engine.SyncRegistry(newCfg, rm.daemon.engine.Registry()); err != nil {
		return err
	}
	for _, section := range restartRequired(old, newCfg) {
		rm.logger.Warn("msg", "Configuration change requires restart",
			"component", "reload",
			"section", section)
	}
	rm.daemon.cfg = newCfg
	rm.daemon.log.LogInfo("configuration reloaded")
	return nil
}

// restartRequired lists changed sections that are only read at startup.
func restartRequired(old, cur *config.Config) []string {
	var out []string
	if old.Engine.QueueCapacity != cur.Engine.QueueCapacity || old.Engine.QueuePolicy != cur.Engine.QueuePolicy {
		out = append(out, "engine.queue")
	}
	if !reflect.DeepEqual(old.File, cur.File) {
		out = append(out, "file")
	}
	if !reflect.DeepEqual(old.Console, cur.Console) {
		out = append(out, "console")
	}
	if !reflect.DeepEqual(old.Syslog, cur.Syslog) {
		out = append(out, "syslog")
	}
	if old.Status != cur.Status {
		out = append(out, "status")
	}
	return out
}

// Shutdown stops watching the config file.
func (rm *ReloadManager) Shutdown() {
	rm.stopOnce.Do(func() {
		close(rm.shutdownCh)
		rm.wg.Wait()
		if rm.lcfg != nil {
			rm.lcfg.StopAutoUpdate()
		}
	})
}
