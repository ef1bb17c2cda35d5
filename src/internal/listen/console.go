// FILE: logfan/src/internal/listen/console.go
package listen

import (
	"context"
	"io"
	"os"

	"logfan/src/internal/core"

	"github.com/lixenwraith/log"
)

// TextTimeLayout is used by the plain text stream.
const TextTimeLayout = "2006-01-02 15:04:05.000"

// TextStream renders "time pre_text text" lines.
type TextStream struct {
	PreText string
}

func (s TextStream) Encode(msg core.LogMessage) ([]byte, error) {
	b := make([]byte, 0, len(TextTimeLayout)+len(s.PreText)+len(msg.Text)+3)
	b = msg.Time.AppendFormat(b, TextTimeLayout)
	b = append(b, ' ')
	if s.PreText != "" {
		b = append(b, s.PreText...)
		b = append(b, ' ')
	}
	b = append(b, msg.Text...)
	return append(b, '\n'), nil
}

// FrameStream renders FrameText frames for network viewers.
type FrameStream struct {
	PreText string
}

func (s FrameStream) Encode(msg core.LogMessage) ([]byte, error) {
	return EncodeText(msg.Time, s.PreText, msg.Text), nil
}

// Console is a listener with a single built-in client writing to the console.
type Console struct {
	*Base
	out    *WriterClient
	logger *log.Logger
}

// NewConsole writes to w, or stdout when w is nil.
func NewConsole(cfg core.ListenConfig, w io.Writer, logger *log.Logger) *Console {
	if w == nil {
		w = os.Stdout
	}
	c := &Console{
		Base:   NewBase(cfg.Name, core.ListenConsole, TextStream{PreText: cfg.PreText}, logger),
		out:    NewWriterClient("console", w),
		logger: logger,
	}
	return c
}

func (c *Console) Start(ctx context.Context) error {
	c.Attach(c.out)
	c.Poll()
	c.logger.Info("msg", "Console listener started",
		"component", "console_listener",
		"listener", c.Name())
	return nil
}

func (c *Console) Stop() {
	c.CloseClients()
	c.logger.Info("msg", "Console listener stopped",
		"component", "console_listener",
		"listener", c.Name(),
		"messages", c.NumberOfMessages())
}
