// FILE: logfan/src/internal/syslogserver/gnet.go
package syslogserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

// engineRunner owns one gnet event loop.
type engineRunner struct {
	mu      sync.Mutex
	engine  *gnet.Engine
	booted  chan struct{}
	runDone chan struct{}
}

func newEngineRunner() *engineRunner {
	return &engineRunner{
		booted:  make(chan struct{}),
		runDone: make(chan struct{}),
	}
}

// boot is called from the handler's OnBoot.
func (r *engineRunner) boot(eng gnet.Engine) {
	r.mu.Lock()
	r.engine = &eng
	r.mu.Unlock()
	close(r.booted)
}

// start runs the event loop and waits until it booted or failed to bind.
func (r *engineRunner) start(h gnet.EventHandler, addr string, logger *log.Logger, component string) error {
	opts := []gnet.Option{
		gnet.WithLogger(compat.NewGnetAdapter(logger)),
		gnet.WithMulticore(true),
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(r.runDone)
		err := gnet.Run(h, addr, opts...)
		if err != nil {
			logger.Error("msg", "Event loop failed",
				"component", component,
				"address", addr,
				"error", err)
		}
		errChan <- err
	}()

	select {
	case err := <-errChan:
		if err == nil {
			err = fmt.Errorf("event loop on %s exited during startup", addr)
		}
		return err
	case <-r.booted:
		return nil
	}
}

func (r *engineRunner) stop() {
	r.mu.Lock()
	engine := r.engine
	r.engine = nil
	r.mu.Unlock()

	if engine == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	(*engine).Stop(ctx)

	select {
	case <-r.runDone:
	case <-time.After(3 * time.Second):
	}
}
