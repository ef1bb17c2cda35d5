// FILE: logfan/src/internal/listen/factory.go
package listen

import (
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
)

// Options carries the collaborators a listener may need beyond its config.
type Options struct {
	// Console is the writer of console listeners, stdout when nil.
	Console io.Writer
	// ProxyTLS enables TLS for proxy connections.
	ProxyTLS *tls.Config
	// Retry paces proxy reconnects.
	Retry time.Duration
	// Relay receives text frames sent to server listeners.
	Relay RelayFunc
}

// New creates the listener selected by cfg.Kind. The listener is not started.
func New(cfg core.ListenConfig, opts Options, logger *log.Logger) (Listener, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("listener name is required")
	}
	switch cfg.Kind {
	case core.ListenConsole:
		return NewConsole(cfg, opts.Console, logger), nil
	case core.ListenServer:
		if cfg.Port <= 0 || cfg.Port > 65535 {
			return nil, fmt.Errorf("listener %s: invalid port %d", cfg.Name, cfg.Port)
		}
		return NewServer(cfg, opts.Relay, logger), nil
	case core.ListenProxy:
		if cfg.Port <= 0 || cfg.Port > 65535 {
			return nil, fmt.Errorf("listener %s: invalid port %d", cfg.Name, cfg.Port)
		}
		return NewProxy(cfg, opts.ProxyTLS, opts.Retry, logger), nil
	default:
		return nil, fmt.Errorf("listener %s: unknown kind %s", cfg.Name, cfg.Kind)
	}
}
