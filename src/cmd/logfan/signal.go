// FILE: logfan/src/cmd/logfan/signal.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/log"
)

// SignalHandler turns SIGHUP and SIGUSR1 into reloads and returns on termination signals.
type SignalHandler struct {
	reloadManager *ReloadManager
	logger        *log.Logger
	sigChan       chan os.Signal
}

func NewSignalHandler(rm *ReloadManager, logger *log.Logger) *SignalHandler {
	sh := &SignalHandler{
		reloadManager: rm,
		logger:        logger,
		sigChan:       make(chan os.Signal, 1),
	}

	signal.Notify(sh.sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
		syscall.SIGUSR1,
	)

	return sh
}

// Handle blocks until a termination signal arrives or ctx is done.
func (sh *SignalHandler) Handle(ctx context.Context) os.Signal {
	for {
		select {
		case sig := <-sh.sigChan:
			switch sig {
			case syscall.SIGHUP, syscall.SIGUSR1:
				sh.logger.Info("msg", "Reload signal received", "signal", sig)
				go sh.reloadManager.TriggerReload()
			default:
				return sig
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
}
