// FILE: logfan/src/cmd/logfan/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"logfan/src/internal/config"
	"logfan/src/internal/version"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

func main() {
	// Subcommands run before daemon flag parsing
	NewCommandRouter().Route(os.Args)

	if err := parseFlags(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	display.quiet = *quiet

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	if *configFile != "" {
		os.Setenv("LOGFAN_CONFIG_FILE", *configFile)
	}

	cfg, err := config.Load(configArgs())
	if err != nil {
		if *configFile != "" && strings.Contains(err.Error(), "not found") {
			display.fail(2, "Config file not found: %s\n", *configFile)
		}
		display.fail(1, "Failed to load config: %v\n", err)
	}
	applyFlagOverrides(cfg)

	if err := initializeLogger(cfg); err != nil {
		display.fail(1, "Failed to initialize logger: %v\n", err)
	}
	defer shutdownLogger()

	logger.Info("msg", "logfan starting",
		"version", version.String(),
		"config_file", config.GetConfigPath(),
		"log_output", cfg.Logging.Output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := bootstrapDaemon(ctx, cfg)
	if err != nil {
		logger.Error("msg", "Failed to bootstrap daemon", "error", err)
		display.fail(1, "Failed to start: %v\n", err)
	}

	rm := NewReloadManager(config.GetConfigPath(), configArgs(), d, logger)
	if *autoReload {
		if err := rm.Watch(ctx); err != nil {
			logger.Warn("msg", "Config auto reload unavailable", "error", err)
		}
	}

	if !cfg.Quiet && os.Getenv("LOGFAN_DISABLE_STATUS_REPORTER") != "1" {
		go statusReporter(ctx, d.engine, 30*time.Second)
	}

	sh := NewSignalHandler(rm, logger)
	defer sh.Stop()

	sig := sh.Handle(ctx)
	if sig == syscall.SIGTERM || sig == syscall.SIGINT {
		logger.Info("msg", "Shutdown signal received, starting graceful shutdown", "signal", sig)
	}

	rm.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := d.shutdown(shutdownCtx); err != nil {
		logger.Error("msg", "Shutdown timeout exceeded, forcing exit", "error", err)
		shutdownLogger()
		os.Exit(1)
	}
	logger.Info("msg", "Shutdown complete")
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			display.warn("Logger shutdown error: %v\n", err)
		}
	}
}
