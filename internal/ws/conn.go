package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// connection wraps a websocket and serializes outbound writes through a
// buffered channel so broadcasts and replies never interleave on the wire.
type connection struct {
	userID string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

func newConnection(userID string, ws *websocket.Conn) *connection {
	return &connection{
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, 128),
		close:  make(chan struct{}),
	}
}

var _ Sink = (*connection)(nil)

// start launches the write loop. Must be called exactly once per connection.
func (c *connection) start() {
	go c.writeLoop()
}

// Send encodes the event as a broadcast frame and enqueues it. A full buffer
// closes the connection to keep backpressure bounded.
func (c *connection) Send(evt Event) error {
	raw, err := json.Marshal(broadcastFrame{Event: evt.WireName(), Payload: evt.Payload})
	if err != nil {
		return err
	}
	return c.enqueue(raw)
}

// Reply sends the one-shot result for a caller-initiated event.
func (c *connection) Reply(correlationID string, res Result) error {
	raw, err := json.Marshal(replyFrame{
		Event:   "reply",
		ID:      correlationID,
		Success: res.Success,
		Message: res.Message,
		Data:    res.Data,
	})
	if err != nil {
		return err
	}
	return c.enqueue(raw)
}

// ReadEnvelope blocks for the next inbound frame.
func (c *connection) ReadEnvelope() (*Envelope, error) {
	var env Envelope
	if err := c.ws.ReadJSON(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *connection) enqueue(raw []byte) error {
	select {
	case <-c.close:
		return errors.New("connection closed")
	case c.send <- raw:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// Close terminates the connection and stops the write loop.
func (c *connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case raw := <-c.send:
			if err := c.writeMessage(raw); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}

func (c *connection) writeMessage(raw []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, raw)
}

func (c *connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
