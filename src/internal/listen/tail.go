// FILE: logfan/src/internal/listen/tail.go
package listen

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Tail is a viewer for a Server listener.
type Tail struct {
	Address string
	// Mask is sent to the server after connecting. Zero keeps the server default.
	Mask core.SeverityMask
	TLS  *tls.Config
	// Retry paces reconnects; zero uses DefaultRetryInterval.
	Retry time.Duration
	// OnRecord receives every decoded text frame.
	OnRecord func(TextRecord)
	// OnLevels receives the level names announced by the server.
	OnLevels func(core.SeverityMask)
	Logger   *log.Logger
}

// Run connects and reads until ctx is cancelled, reconnecting on failure.
func (t *Tail) Run(ctx context.Context) error {
	if t.OnRecord == nil {
		return fmt.Errorf("tail: record handler is required")
	}
	if t.Logger == nil {
		t.Logger = log.NewLogger()
	}
	retry := t.Retry
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	limiter := rate.NewLimiter(rate.Every(retry), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		err := t.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		t.Logger.Debug("msg", "Tail session ended",
			"component", "tail",
			"address", t.Address,
			"error", err)
	}
}

func (t *Tail) session(ctx context.Context) error {
	d := &net.Dialer{Timeout: 5 * time.Second}
	var (
		conn net.Conn
		err  error
	)
	if t.TLS != nil {
		conn, err = (&tls.Dialer{NetDialer: d, Config: t.TLS}).DialContext(ctx, "tcp", t.Address)
	} else {
		conn, err = d.DialContext(ctx, "tcp", t.Address)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if t.Mask != 0 {
		frame := EncodeLogLevel(t.Mask)
		t.Logger.Debug("msg", "Tail sending level", "component", "tail", "frame", FormatHex(frame))
		if _, err := conn.Write(frame); err != nil {
			return err
		}
	}

	for {
		f, err := ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch f.Type {
		case FrameText:
			rec, err := DecodeText(f.Body)
			if err != nil {
				return err
			}
			t.OnRecord(rec)
		case FrameLogLevelText:
			if t.OnLevels == nil {
				continue
			}
			if mask, err := core.ParseSeverityMask(string(f.Body)); err == nil {
				t.OnLevels(mask)
			}
		default:
			t.Logger.Debug("msg", "Tail ignoring frame",
				"component", "tail",
				"type", f.Type.String(),
				"body", FormatHex(f.Body[:min(len(f.Body), 16)]))
		}
	}
}
