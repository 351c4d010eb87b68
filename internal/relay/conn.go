package relay

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrBackpressure = errors.New("backpressure")

// peerConn wraps one client websocket with a bounded send queue. A full
// queue means the client stopped draining; the caller disconnects it
// rather than stall everyone else.
type peerConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newPeerConn(ws *websocket.Conn) *peerConn {
	return &peerConn{
		conn: ws,
		send: make(chan []byte, 32),
	}
}

func (c *peerConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *peerConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
