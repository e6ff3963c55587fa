package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeBuffer bounds the frames queued behind a slow client before
	// Write starts timing out.
	writeBuffer = 100

	writeTimeout = 5 * time.Second
)

// Conn wraps a websocket connection behind a single writer goroutine.
// Any goroutine may call Write; frames go out in submission order. Reads
// stay with the session's read pump.
type Conn struct {
	ws        *websocket.Conn
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConn wraps ws and starts its writer goroutine.
func NewConn(ws *websocket.Conn) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:      ws,
		writeCh: make(chan []byte, writeBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Conn) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Write queues one text frame for the writer goroutine.
func (c *Conn) Write(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}
	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Read returns the next text frame, skipping other frame types. Control
// frames are handled by the underlying connection during the read.
func (c *Conn) Read() ([]byte, error) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

// Ping sends a control ping; control frames bypass the writer goroutine,
// which gorilla permits concurrently with data writes.
func (c *Conn) Ping(deadline time.Duration) error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(deadline))
}

// ExpectPong arms the heartbeat: the connection's read side fails unless a
// pong (or the next ExpectPong) arrives within timeout.
func (c *Conn) ExpectPong(timeout time.Duration) error {
	if err := c.ws.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(timeout))
	})
	return nil
}

// Done is closed once the connection is shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close stops the writer goroutine and closes the websocket. Safe to call
// more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.ws.Close()
	})
	return err
}
