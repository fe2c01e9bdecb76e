// README: One live connection; buffered outbound queue and write pump.
package stream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ridewire/internal/types"
)

const (
	// sendQueueSize bounds how far a slow subscriber may fall behind before
	// it is disconnected.
	sendQueueSize = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client wraps one websocket connection. The send channel is the only path
// to the socket; the write pump drains it in FIFO order, which preserves
// per-producer broadcast ordering.
type Client struct {
	UserID types.ID
	Role   string

	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(conn *websocket.Conn, userID types.ID, role string) *Client {
	return &Client{
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// TrySend queues msg without blocking. A full queue means the subscriber
// has stopped keeping up; the caller drops the client rather than stalling
// everyone else's fan-out.
func (c *Client) TrySend(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Outbound exposes the queue for the write pump and for tests.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Close shuts the connection down exactly once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Done is closed when the client is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// WritePump drains the send queue onto the socket and keeps the connection
// alive with pings. It returns when the client closes or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
