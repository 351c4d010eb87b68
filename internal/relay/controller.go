package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/domain"
	"github.com/jlgrimes/quarrel-voice/internal/signal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller accepts websocket connections and routes voice events
// between channel members.
type Controller struct {
	Registry  *Registry
	Limiter   *JoinRateLimiter
	ReadLimit int64
}

func NewController(reg *Registry, limiter *JoinRateLimiter, readLimit int64) *Controller {
	return &Controller{Registry: reg, Limiter: limiter, ReadLimit: readLimit}
}

// HandleSignal upgrades the request and runs the session pumps until
// the client goes away.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := c.GetString("client_token")
	log.Info().Str("module", "relay").Str("sid", sid).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := newPeerConn(ws)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.Bind(sid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

func (ctl *Controller) writePump(ctx context.Context, c *peerConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid string, c *peerConn) {
	defer func() {
		log.Info().Str("module", "relay").Str("sid", sid).Msg("readPump closing")
		ctl.disconnect(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleSignal(sid, c, data)
		}
	}
}

func (ctl *Controller) handleSignal(sid string, c *peerConn, data []byte) {
	ev, err := signal.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("sid", sid).Msg("bad signal")
		return
	}

	switch e := ev.(type) {
	case signal.Join:
		ctl.handleJoin(sid, c, e)
	case signal.Leave:
		ctl.handleLeave(sid)
	case signal.Offer:
		ctl.forward(sid, e.To, func(from domain.UserID) signal.Event {
			e.From, e.To = from, ""
			return e
		})
	case signal.Answer:
		ctl.forward(sid, e.To, func(from domain.UserID) signal.Event {
			e.From, e.To = from, ""
			return e
		})
	case signal.ICECandidate:
		ctl.forward(sid, e.To, func(from domain.UserID) signal.Event {
			e.From, e.To = from, ""
			return e
		})
	case signal.Mute:
		ctl.handleMute(sid, e)
	case signal.ShareStarted:
		ctl.handleShareStarted(sid, c)
	case signal.ShareStopped:
		ctl.handleShareStopped(sid)
	default:
		log.Warn().Str("module", "relay").Str("type", ev.EventType()).Msg("unexpected signal")
	}
}

func (ctl *Controller) handleJoin(sid string, c *peerConn, e signal.Join) {
	if e.ChannelID == "" {
		return
	}
	if !ctl.Limiter.Allow(domain.UserID(sid)) {
		log.Warn().Str("module", "relay").Str("sid", sid).Msg("join rate limited")
		return
	}

	// Re-join semantics: a join while in another channel is an
	// implicit leave of the old one.
	if prev, part, ok := ctl.Registry.ChannelOf(sid); ok && prev != e.ChannelID {
		ctl.Registry.Leave(sid)
		ctl.broadcast(prev, sid, signal.UserLeft{ChannelID: prev, UserID: part.User.ID})
	}

	part, others, ok := ctl.Registry.Join(sid, e.ChannelID, e.DisplayName)
	if !ok {
		return
	}

	ctl.sendEvent(sid, c, signal.State{
		ChannelID:    e.ChannelID,
		Self:         part,
		Participants: append(others, part),
	})
	ctl.broadcast(e.ChannelID, sid, signal.UserJoined{ChannelID: e.ChannelID, Participant: part})
}

func (ctl *Controller) handleLeave(sid string) {
	ch, part, ok := ctl.Registry.Leave(sid)
	if !ok {
		return
	}
	ctl.broadcast(ch, sid, signal.UserLeft{ChannelID: ch, UserID: part.User.ID})
}

func (ctl *Controller) handleMute(sid string, e signal.Mute) {
	ch, part, ok := ctl.Registry.ChannelOf(sid)
	if !ok {
		return
	}
	ctl.Registry.SetFlags(sid, e.Muted, e.Deafened)
	e.UserID = part.User.ID
	ctl.broadcast(ch, sid, e)
}

func (ctl *Controller) handleShareStarted(sid string, c *peerConn) {
	ch, holder, taken := ctl.Registry.TryStartShare(sid)
	if ch == "" {
		return
	}
	if !taken {
		// Lock is held: tell only the requester who the sharer is so
		// it can roll back its local capture.
		ctl.sendEvent(sid, c, signal.ShareStarted{ChannelID: ch, UserID: holder})
		return
	}
	ctl.broadcast(ch, sid, signal.ShareStarted{ChannelID: ch, UserID: holder})
}

func (ctl *Controller) handleShareStopped(sid string) {
	ch, user, ok := ctl.Registry.StopShare(sid)
	if !ok {
		return
	}
	ctl.broadcast(ch, sid, signal.ShareStopped{ChannelID: ch, UserID: user})
}

// forward delivers a targeted negotiation event to one channel mate,
// rewriting the addressing so the receiver sees who it came from.
func (ctl *Controller) forward(sid string, to domain.UserID, stamp func(from domain.UserID) signal.Event) {
	ch, part, ok := ctl.Registry.ChannelOf(sid)
	if !ok {
		return
	}
	conn, ok := ctl.Registry.FindInChannel(ch, to)
	if !ok {
		log.Debug().Str("module", "relay").Str("sid", sid).Str("to", string(to)).Msg("forward target gone")
		return
	}
	ctl.deliver(string(to), conn, stamp(part.User.ID))
}

// broadcast sends ev to every member of ch except the originator.
func (ctl *Controller) broadcast(ch domain.ChannelID, exclude string, ev signal.Event) {
	for _, m := range ctl.Registry.MembersOf(ch) {
		if m.Token == exclude {
			continue
		}
		ctl.deliver(m.Token, m.Conn, ev)
	}
}

func (ctl *Controller) sendEvent(sid string, c *peerConn, ev signal.Event) {
	ctl.deliver(sid, c, ev)
}

func (ctl *Controller) deliver(sid string, c *peerConn, ev signal.Event) {
	b, err := signal.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Str("type", ev.EventType()).Msg("encode")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("sid", sid).Msg("dropping slow client")
		ctl.Registry.Cancel(sid)
	}
}

// disconnect handles an abrupt connection loss: the channel learns the
// member is gone before the session is unbound.
func (ctl *Controller) disconnect(sid string) {
	if ch, part, ok := ctl.Registry.Leave(sid); ok {
		ctl.broadcast(ch, sid, signal.UserLeft{ChannelID: ch, UserID: part.User.ID})
	}
	ctl.Registry.Unbind(sid)
}
