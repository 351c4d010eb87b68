// Package relay implements the signaling server: a thin fanout that
// tracks channel membership and forwards negotiation traffic between
// peers. It never touches media.
package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/domain"
)

type sessionEntry struct {
	part    domain.Participant
	channel domain.ChannelID
	conn    *peerConn
	cancel  context.CancelFunc
}

// Registry is the authoritative view of who is connected and which
// channel each session occupies. It also owns the per-channel screen
// share lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	sharers  map[domain.ChannelID]domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*sessionEntry),
		sharers:  make(map[domain.ChannelID]domain.UserID),
	}
}

// Bind registers a fresh websocket connection under the client token.
// The user identity is derived from the token so reconnects keep it.
func (r *Registry) Bind(token string, conn *peerConn, cancel context.CancelFunc) domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	part := domain.NewParticipant(domain.User{ID: domain.UserID(token), DisplayName: "guest"})
	r.sessions[token] = &sessionEntry{part: part, conn: conn, cancel: cancel}
	log.Info().Str("module", "relay.registry").Str("sid", token).Msg("bound session")
	return part
}

// Unbind drops the session entirely. The caller broadcasts the
// user-left event before calling this.
func (r *Registry) Unbind(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[token]; ok && e.channel != "" {
		r.releaseShareLocked(e.channel, e.part.User.ID)
	}
	delete(r.sessions, token)
	log.Info().Str("module", "relay.registry").Str("sid", token).Msg("unbound session")
}

// Join moves the session into ch and returns its participant record
// plus a snapshot of everyone already there, the current sharer
// included in the flags.
func (r *Registry) Join(token string, ch domain.ChannelID, name string) (domain.Participant, []domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[token]
	if !ok {
		return domain.Participant{}, nil, false
	}
	if e.channel != "" && e.channel != ch {
		r.releaseShareLocked(e.channel, e.part.User.ID)
	}
	if name != "" {
		if err := e.part.User.SetDisplayName(name); err != nil {
			log.Warn().Err(err).Str("module", "relay.registry").Str("sid", token).Msg("rejected display name")
		}
	}
	e.channel = ch
	e.part.Muted = false
	e.part.Deafened = false
	e.part.ScreenSharing = false

	others := make([]domain.Participant, 0, len(r.sessions))
	for sid, other := range r.sessions {
		if sid == token || other.channel != ch {
			continue
		}
		others = append(others, other.part)
	}
	log.Info().Str("module", "relay.registry").Str("sid", token).Str("channel", string(ch)).Msg("joined channel")
	return e.part, others, true
}

// Leave clears the channel association without dropping the
// connection. Returns the channel left and the participant, or false
// when the session was not in one.
func (r *Registry) Leave(token string) (domain.ChannelID, domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[token]
	if !ok || e.channel == "" {
		return "", domain.Participant{}, false
	}
	ch := e.channel
	e.channel = ""
	r.releaseShareLocked(ch, e.part.User.ID)
	log.Info().Str("module", "relay.registry").Str("sid", token).Str("channel", string(ch)).Msg("left channel")
	return ch, e.part, true
}

// ChannelOf reports the channel the session currently occupies.
func (r *Registry) ChannelOf(token string) (domain.ChannelID, domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[token]
	if !ok || e.channel == "" {
		return "", domain.Participant{}, false
	}
	return e.channel, e.part, true
}

// SetFlags updates the mute and deafen flags on the session's
// participant record.
func (r *Registry) SetFlags(token string, muted, deafened bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[token]; ok {
		e.part.Muted = muted
		e.part.Deafened = deafened
	}
}

type memberSnap struct {
	Token string
	Part  domain.Participant
	Conn  *peerConn
}

// MembersOf returns everyone currently in ch.
func (r *Registry) MembersOf(ch domain.ChannelID) []memberSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]memberSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.channel == ch {
			out = append(out, memberSnap{Token: sid, Part: e.part, Conn: e.conn})
		}
	}
	return out
}

// FindInChannel locates the connection of a specific participant in ch.
func (r *Registry) FindInChannel(ch domain.ChannelID, user domain.UserID) (*peerConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.sessions {
		if e.channel == ch && e.part.User.ID == user {
			return e.conn, true
		}
	}
	return nil, false
}

// TryStartShare takes the channel share lock. When another participant
// already holds it, their ID is returned and taken is false.
func (r *Registry) TryStartShare(token string) (domain.ChannelID, domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[token]
	if !ok || e.channel == "" {
		return "", "", false
	}
	if holder, held := r.sharers[e.channel]; held && holder != e.part.User.ID {
		return e.channel, holder, false
	}
	r.sharers[e.channel] = e.part.User.ID
	e.part.ScreenSharing = true
	return e.channel, e.part.User.ID, true
}

// StopShare releases the lock if the session holds it.
func (r *Registry) StopShare(token string) (domain.ChannelID, domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[token]
	if !ok || e.channel == "" {
		return "", "", false
	}
	if holder, held := r.sharers[e.channel]; !held || holder != e.part.User.ID {
		return "", "", false
	}
	delete(r.sharers, e.channel)
	e.part.ScreenSharing = false
	return e.channel, e.part.User.ID, true
}

// Cancel tears down the session's pumps.
func (r *Registry) Cancel(token string) {
	r.mu.RLock()
	e, ok := r.sessions[token]
	r.mu.RUnlock()
	if ok && e.cancel != nil {
		e.cancel()
	}
}

func (r *Registry) releaseShareLocked(ch domain.ChannelID, user domain.UserID) {
	if holder, held := r.sharers[ch]; held && holder == user {
		delete(r.sharers, ch)
	}
	if e := r.findLocked(user); e != nil {
		e.part.ScreenSharing = false
	}
}

func (r *Registry) findLocked(user domain.UserID) *sessionEntry {
	for _, e := range r.sessions {
		if e.part.User.ID == user {
			return e
		}
	}
	return nil
}
