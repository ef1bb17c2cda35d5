// FILE: logfan/src/internal/listen/client.go
package listen

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"logfan/src/internal/core"
	"logfan/src/internal/queue"

	"github.com/panjf2000/gnet/v2"
)

// ErrDisconnected is returned when writing to a client that has gone away.
var ErrDisconnected = errors.New("client disconnected")

// connWriteQueue bounds the bytes waiting for a slow blocking connection.
const connWriteQueue = 1024

var nextClientID atomic.Uint64

// Client is one peer attached to a listener.
type Client interface {
	ID() uint64
	RemoteAddr() string
	// Write hands data to the transport. It must not block on network I/O.
	Write(data []byte) error
	IsConnected() bool
	Accepts(sev core.Severity) bool
	SetLevelMask(mask core.SeverityMask)
	LevelMask() core.SeverityMask
	Messages() uint64
	Errors() uint64
	Close() error
}

// clientState holds the bookkeeping shared by every client type.
type clientState struct {
	id          uint64
	remote      string
	connectedAt time.Time
	connected   atomic.Bool
	mask        atomic.Uint32
	messages    atomic.Uint64
	errors      atomic.Uint64
}

func (s *clientState) setup(remote string) {
	s.id = nextClientID.Add(1)
	s.remote = remote
	s.connectedAt = time.Now()
	s.connected.Store(true)
	s.mask.Store(uint32(core.AllSeverities))
}

func (s *clientState) ID() uint64         { return s.id }
func (s *clientState) RemoteAddr() string { return s.remote }
func (s *clientState) IsConnected() bool  { return s.connected.Load() }
func (s *clientState) Messages() uint64   { return s.messages.Load() }
func (s *clientState) Errors() uint64     { return s.errors.Load() }

func (s *clientState) Accepts(sev core.Severity) bool {
	return core.SeverityMask(s.mask.Load()).Has(sev)
}

func (s *clientState) SetLevelMask(mask core.SeverityMask) {
	s.mask.Store(uint32(mask & core.AllSeverities))
}

func (s *clientState) LevelMask() core.SeverityMask {
	return core.SeverityMask(s.mask.Load())
}

func (s *clientState) markDisconnected() {
	s.connected.Store(false)
}

// ConnClient wraps a blocking net.Conn. A private goroutine performs the
// writes so the delivering goroutine only enqueues.
type ConnClient struct {
	clientState
	conn       net.Conn
	out        *queue.Queue[[]byte]
	bestEffort bool
	closeOnce  sync.Once
	done       chan struct{}
}

// NewConnClient starts the writer goroutine for conn. A best effort client
// counts write errors but stays connected, which suits datagram sockets.
func NewConnClient(conn net.Conn, bestEffort bool) *ConnClient {
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	c := &ConnClient{
		conn:       conn,
		out:        queue.New[[]byte](connWriteQueue, queue.DropOldest),
		bestEffort: bestEffort,
		done:       make(chan struct{}),
	}
	c.setup(remote)
	go c.writeLoop()
	return c
}

// Conn exposes the underlying connection for reading.
func (c *ConnClient) Conn() net.Conn {
	return c.conn
}

func (c *ConnClient) Write(data []byte) error {
	if !c.IsConnected() {
		return ErrDisconnected
	}
	if err := c.out.Push(data); err != nil {
		return ErrDisconnected
	}
	c.messages.Add(1)
	return nil
}

// Dropped reports writes discarded because the peer could not keep up.
func (c *ConnClient) Dropped() uint64 {
	return c.out.Dropped()
}

func (c *ConnClient) writeLoop() {
	defer close(c.done)
	for {
		data, ok := c.out.Pop()
		if !ok {
			return
		}
		if _, err := c.conn.Write(data); err != nil {
			c.errors.Add(1)
			if c.bestEffort {
				continue
			}
			c.markDisconnected()
			c.out.Shutdown()
			_ = c.conn.Close()
			return
		}
	}
}

// Close stops the writer after pending data is flushed and closes the connection.
func (c *ConnClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.markDisconnected()
		c.out.Shutdown()
		select {
		case <-c.done:
		case <-time.After(time.Second):
		}
		err = c.conn.Close()
	})
	return err
}

// GnetClient is a connection owned by a gnet event loop.
type GnetClient struct {
	clientState
	conn gnet.Conn

	mu  sync.Mutex
	buf []byte
	// ShareName is announced by proxies in a hello frame.
	shareName atomic.Value
}

func NewGnetClient(conn gnet.Conn) *GnetClient {
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	c := &GnetClient{conn: conn}
	c.setup(remote)
	c.shareName.Store("")
	return c
}

func (c *GnetClient) Write(data []byte) error {
	if !c.IsConnected() {
		return ErrDisconnected
	}
	err := c.conn.AsyncWrite(data, func(_ gnet.Conn, err error) error {
		if err != nil {
			c.errors.Add(1)
			c.markDisconnected()
		}
		return nil
	})
	if err != nil {
		c.errors.Add(1)
		c.markDisconnected()
		return fmt.Errorf("async write to %s: %w", c.remote, err)
	}
	c.messages.Add(1)
	return nil
}

func (c *GnetClient) Close() error {
	c.markDisconnected()
	return c.conn.Close()
}

// ShareName returns the name announced by the peer, if any.
func (c *GnetClient) ShareName() string {
	s, _ := c.shareName.Load().(string)
	return s
}

// feed appends inbound bytes and returns the complete frames.
func (c *GnetClient) feed(data []byte) ([]Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf = append(c.buf, data...)
	var frames []Frame
	for {
		f, n, err := SplitFrame(c.buf)
		if err != nil {
			c.buf = nil
			return frames, err
		}
		if n == 0 {
			break
		}
		frames = append(frames, f)
		c.buf = c.buf[n:]
	}
	if len(c.buf) == 0 {
		c.buf = nil
	}
	return frames, nil
}

// WriterClient writes synchronously to an io.Writer. It never disconnects;
// failures are only counted.
type WriterClient struct {
	clientState
	mu sync.Mutex
	w  io.Writer
}

func NewWriterClient(name string, w io.Writer) *WriterClient {
	c := &WriterClient{w: w}
	c.setup(name)
	return c
}

func (c *WriterClient) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(data); err != nil {
		c.errors.Add(1)
		return err
	}
	c.messages.Add(1)
	return nil
}

func (c *WriterClient) Close() error {
	return nil
}
