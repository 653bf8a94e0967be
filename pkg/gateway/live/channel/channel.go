// Package channel delivers messages between a relay session and its
// websocket peer.
package channel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aura-voice/aura-relay/pkg/gateway/live/protocol"
)

var (
	// ErrClosed reports that the peer is gone.
	ErrClosed = errors.New("channel closed")
	// ErrTimeout reports that no message arrived in time.
	ErrTimeout = errors.New("receive timeout")
)

// Conn is the websocket surface the channel needs. *websocket.Conn
// satisfies it; tests substitute fakes.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Channel wraps one client connection. A background reader pumps inbound
// text frames into a buffered queue in arrival order; outbound frames are
// written under a mutex so concurrent senders never interleave. All
// methods are safe for concurrent use.
type Channel struct {
	conn         Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	inbound   chan string
	connected atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Channel.
type Option func(*Channel)

// WithWriteTimeout bounds each outbound write. Default 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithQueueSize sets the inbound queue capacity. Default 64.
func WithQueueSize(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.inbound = make(chan string, n)
		}
	}
}

// New wraps conn and starts the inbound reader.
func New(conn Conn, opts ...Option) *Channel {
	c := &Channel{
		conn:         conn,
		writeTimeout: 5 * time.Second,
		inbound:      make(chan string, 64),
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.connected.Store(true)
	go c.readLoop()
	return c
}

func (c *Channel) readLoop() {
	defer close(c.inbound)
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.connected.Store(false)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case c.inbound <- string(data):
		case <-c.closed:
			return
		}
	}
}

// Send writes one outbound JSON frame. It returns ErrClosed once the
// peer is gone; there is no retry.
func (c *Channel) Send(msg protocol.Outbound) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

// SendAudio relays one synthesized audio chunk as a raw binary frame.
func (c *Channel) SendAudio(chunk []byte) error {
	return c.write(websocket.BinaryMessage, chunk)
}

func (c *Channel) write(messageType int, data []byte) error {
	if !c.connected.Load() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.connected.Store(false)
		return ErrClosed
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.connected.Store(false)
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Receive returns the next inbound text message. ErrTimeout when nothing
// arrives in time, ErrClosed once the peer is gone and the queue is
// drained. Messages are delivered in arrival order, never coalesced.
func (c *Channel) Receive(timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return "", ErrClosed
		}
		return msg, nil
	case <-timer.C:
		return "", ErrTimeout
	}
}

// IsConnected reports whether the peer was still reachable at the last
// read or write. It never blocks.
func (c *Channel) IsConnected() bool {
	return c.connected.Load()
}

// Close tears the connection down. Idempotent.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.closed)
		deadline := time.Now().Add(c.writeTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()
	})
	return nil
}
