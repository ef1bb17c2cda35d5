// FILE: logfan/src/cmd/logfan/bootstrap.go
package main

import (
	"context"
	"fmt"
	"os"

	"logfan/src/internal/config"
	"logfan/src/internal/core"
	"logfan/src/internal/engine"
	"logfan/src/internal/ingest"
	"logfan/src/internal/logconfig"
	"logfan/src/internal/logging"
	"logfan/src/internal/status"
	"logfan/src/internal/version"

	"github.com/lixenwraith/log"
)

// daemon groups the running parts of a logfan process.
type daemon struct {
	cfg    *config.Config
	engine *engine.Engine
	log    *logging.Log
	status *status.Server
	ingest *ingest.Reader
}

// bootstrapDaemon builds and starts the engine, the status server and the
// stdin reader described by cfg.
func bootstrapDaemon(ctx context.Context, cfg *config.Config) (*daemon, error) {
	reg := logconfig.Instance()

	eng, err := engine.FromConfig(cfg, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	if err := eng.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	d := &daemon{
		cfg:    cfg,
		engine: eng,
		log:    logging.New(reg, eng),
	}

	if cfg.Status.Enabled {
		srv := status.New(cfg.Status, eng, logger)
		if err := srv.Start(ctx); err != nil {
			_ = eng.Shutdown(ctx)
			return nil, fmt.Errorf("failed to start status server: %w", err)
		}
		d.status = srv
	}

	if cfg.Ingest.Stdin {
		sev := core.SeverityInfo
		if cfg.Ingest.DefaultSeverity != "" {
			sev, _ = core.ParseSeverity(cfg.Ingest.DefaultSeverity)
		}
		d.ingest = ingest.NewReader("stdin", os.Stdin, d.log, sev, logger)
		go func() {
			_ = d.ingest.Run(ctx)
		}()
	}

	displayEndpoints(d)

	d.log.Infof("logfan %s started", version.Short())
	logger.Info("msg", "logfan started",
		"version", version.Short(),
		"log_types", reg.LogType().String(),
		"threshold", reg.Threshold().String(),
		"listeners", len(reg.GetListenConfigList()),
		"syslog_servers", len(cfg.Syslog))

	return d, nil
}

func (d *daemon) shutdown(ctx context.Context) error {
	d.log.LogInfo("logfan stopping")
	if d.status != nil {
		d.status.Stop()
	}
	return d.engine.Shutdown(ctx)
}

// displayEndpoints prints where viewers and syslog peers can connect.
func displayEndpoints(d *daemon) {
	for _, lc := range d.engine.Registry().GetListenConfigList() {
		switch lc.Kind {
		case core.ListenConsole:
			display.announce("Listener %s: console\n", lc.Name)
		case core.ListenServer:
			display.announce("Listener %s: serving on %s\n", lc.Name, lc.HostPort())
		case core.ListenProxy:
			display.announce("Listener %s: forwarding to %s\n", lc.Name, lc.HostPort())
		}
	}
	for _, s := range d.engine.Syslog() {
		display.announce("Syslog %s (%s): %s\n", s.Name(), s.Type(), s.State())
	}
	if d.status != nil {
		display.announce("Status: http://%s%s\n", d.status.Addr(), d.cfg.Status.Path)
	}
}

// initializeLogger sets up the diagnostic logger from cfg.Logging.
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	logCfg := log.DefaultConfig()
	logCfg.Name = "logfan"

	if cfg.Quiet {
		logCfg.EnableConsole = false
		logCfg.DisableFile = true
		logCfg.Level = 255
		if err := logger.ApplyConfig(logCfg); err != nil {
			return err
		}
		return logger.Start()
	}

	level, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logCfg.Level = level

	switch cfg.Logging.Output {
	case "none":
		logCfg.EnableConsole = false
		logCfg.DisableFile = true
	case "stdout", "stderr":
		logCfg.EnableConsole = true
		logCfg.ConsoleTarget = cfg.Logging.Output
		logCfg.DisableFile = true
	case "file":
		logCfg.EnableConsole = false
		configureFileLogging(logCfg, cfg)
	case "both":
		logCfg.EnableConsole = true
		logCfg.ConsoleTarget = "stderr"
		if cfg.Logging.Console != nil && cfg.Logging.Console.Target != "" {
			logCfg.ConsoleTarget = cfg.Logging.Console.Target
		}
		configureFileLogging(logCfg, cfg)
	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if cfg.Logging.Console != nil && cfg.Logging.Console.Format != "" {
		logCfg.Format = cfg.Logging.Console.Format
	}

	if err := logger.ApplyConfig(logCfg); err != nil {
		return err
	}
	return logger.Start()
}

func configureFileLogging(logCfg *log.Config, cfg *config.Config) {
	f := cfg.Logging.File
	if f == nil {
		return
	}
	logCfg.Directory = f.Directory
	logCfg.Name = f.Name
	if f.MaxSizeMB > 0 {
		logCfg.MaxSizeKB = f.MaxSizeMB * 1000
	}
	if f.MaxTotalSizeMB > 0 {
		logCfg.MaxTotalSizeKB = f.MaxTotalSizeMB * 1000
	}
	logCfg.RetentionPeriodHrs = f.RetentionHours
}
