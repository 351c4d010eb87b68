// Package ws provides the websocket signaling client used by the voice
// session to talk to the relay.
package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/core"
	"github.com/jlgrimes/quarrel-voice/internal/signal"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBuffer  = 64
	eventBuffer = 64
)

// Client is a core.Transport over a single websocket connection.
type Client struct {
	conn   *websocket.Conn
	send   chan signal.Event
	events chan signal.Event
	done   chan struct{}
	cancel context.CancelFunc
}

var _ core.Transport = (*Client)(nil)

// Dial connects to the relay and starts the read and write pumps. The
// returned client is ready to Send immediately.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "ws").Str("url", url).Msg("connected")

	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		conn:   conn,
		send:   make(chan signal.Event, sendBuffer),
		events: make(chan signal.Event, eventBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go c.readPump(ctx)
	go c.writePump(ctx)
	return c, nil
}

func (c *Client) Send(ev signal.Event) error {
	select {
	case c.send <- ev:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	}
}

// Events yields decoded relay events. The channel is closed when the
// connection drops.
func (c *Client) Events() <-chan signal.Event { return c.events }

func (c *Client) Close() {
	c.cancel()
	c.conn.Close()
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		close(c.done)
		close(c.events)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("module", "ws").Msg("read error")
			}
			return
		}
		ev, err := signal.Decode(raw)
		if err != nil {
			log.Warn().Err(err).Str("module", "ws").Msg("dropping undecodable event")
			continue
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			raw, err := signal.Encode(ev)
			if err != nil {
				log.Error().Err(err).Str("module", "ws").Str("type", ev.EventType()).Msg("encode failed")
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-c.done:
			return
		}
	}
}
