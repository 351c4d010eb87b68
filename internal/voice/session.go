// Package voice implements the client-side voice/screen-share session
// coordinator: channel join/leave, the participant roster, per-peer link
// lifecycles and routing of inbound signaling events.
package voice

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/activity"
	"github.com/jlgrimes/quarrel-voice/internal/core"
	"github.com/jlgrimes/quarrel-voice/internal/domain"
	"github.com/jlgrimes/quarrel-voice/internal/signal"
)

// Config wires a Session to its collaborators. Transport, Links, Sinks and
// Microphone are required; Screen may be nil when the platform has no
// capture source.
type Config struct {
	Self       domain.User
	Transport  core.Transport
	Links      core.LinkFactory
	Sinks      core.SinkFactory
	Microphone core.CaptureDevice
	Screen     core.ScreenSource

	SpeakInterval  time.Duration
	SpeakThreshold float64

	// OnUpdate, when set, is invoked with a fresh snapshot after observable
	// state changes. Called without internal locks held.
	OnUpdate func(Snapshot)
}

// Snapshot is the read model exposed to the UI layer. External callers never
// mutate session state directly; all mutation goes through Session methods.
type Snapshot struct {
	ChannelID    domain.ChannelID
	Connecting   bool
	Muted        bool
	Deafened     bool
	Participants []domain.Participant
	Speaking     []domain.UserID
	Sharer       domain.UserID
}

// Active reports whether the session has received its roster snapshot.
func (s Snapshot) Active() bool { return s.ChannelID != "" && !s.Connecting }

// Session is the top-level coordinator. All state behind mu; signaling
// events, UI calls and monitor callbacks may arrive on any goroutine.
type Session struct {
	self      domain.User
	transport core.Transport
	links     core.LinkFactory
	sinks     core.SinkFactory
	screen    core.ScreenSource
	mic       *MediaController
	monitor   *activity.Monitor
	onUpdate  func(Snapshot)

	mu         sync.Mutex
	channel    domain.ChannelID
	connecting bool
	muted      bool
	deafened   bool
	roster     map[domain.UserID]domain.Participant
	peers      map[domain.UserID]*PeerLink
	speaking   []domain.UserID

	sharer      domain.UserID
	screenTrack webrtc.TrackLocal
	screenStop  context.CancelFunc

	sessCtx    context.Context
	sessCancel context.CancelFunc
}

func NewSession(cfg Config) *Session {
	s := &Session{
		self:      cfg.Self,
		transport: cfg.Transport,
		links:     cfg.Links,
		sinks:     cfg.Sinks,
		screen:    cfg.Screen,
		mic:       NewMediaController(cfg.Microphone),
		onUpdate:  cfg.OnUpdate,
		roster:    make(map[domain.UserID]domain.Participant),
		peers:     make(map[domain.UserID]*PeerLink),
	}
	s.monitor = activity.NewMonitor(cfg.SpeakInterval, cfg.SpeakThreshold, s.setSpeaking)
	return s
}

// Run drains inbound signaling events until the transport closes or ctx is
// done. Callers run it in its own goroutine.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.transport.Events():
			if !ok {
				return
			}
			s.HandleEvent(ev)
		}
	}
}

// JoinChannel joins ch, first running the full leave sequence if another
// channel is active. The Active transition happens asynchronously when the
// roster snapshot arrives; no relay acknowledgement is awaited here.
func (s *Session) JoinChannel(ctx context.Context, ch domain.ChannelID) error {
	s.mu.Lock()
	if s.channel == ch {
		s.mu.Unlock()
		return nil
	}
	if s.channel != "" {
		// Previous session must be fully torn down before the new join
		// signal goes out.
		s.leaveLocked(true)
	}
	s.channel = ch
	s.connecting = true
	s.sessCtx, s.sessCancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	// Capture may prompt the user; never hold the lock across it.
	if err := s.mic.Acquire(ctx); err != nil {
		s.mu.Lock()
		s.resetLocked()
		s.mu.Unlock()
		log.Error().Err(err).Str("module", "voice").Str("channel", string(ch)).Msg("microphone acquire failed")
		return err
	}

	s.mu.Lock()
	if s.channel != ch {
		// A concurrent join or leave won while we were prompting. When
		// another channel is now active the winning session owns the
		// controller; only an idle session leaves an orphaned capture
		// to release.
		if s.channel == "" {
			s.mic.Stop()
		}
		s.mu.Unlock()
		return ErrNotInChannel
	}
	s.mic.SetMeter(s.monitor.Watch(s.self.ID))
	s.send(signal.Join{ChannelID: ch, DisplayName: s.self.DisplayName})
	s.mu.Unlock()

	log.Info().Str("module", "voice").Str("channel", string(ch)).Msg("joining channel")
	s.notify()
	return nil
}

// LeaveChannel runs the full leave sequence. It is idempotent and safe to
// call from a forced-cleanup path even if no channel was joined.
func (s *Session) LeaveChannel() {
	s.mu.Lock()
	joined := s.channel != ""
	s.leaveLocked(true)
	s.mu.Unlock()
	if joined {
		s.notify()
	}
}

// leaveLocked is the best-effort teardown: every resource release is
// independent so one failure cannot block the rest.
func (s *Session) leaveLocked(sendLeave bool) {
	if s.channel == "" {
		return
	}
	if sendLeave {
		s.send(signal.Leave{ChannelID: s.channel})
	}
	for id, p := range s.peers {
		p.teardown(s.monitor.Unwatch)
		delete(s.peers, id)
	}
	s.stopShareLocked(false)
	s.mic.Stop()
	s.monitor.Reset()
	s.resetLocked()
	log.Info().Str("module", "voice").Msg("left channel")
}

func (s *Session) resetLocked() {
	if s.sessCancel != nil {
		s.sessCancel()
		s.sessCancel = nil
	}
	s.channel = ""
	s.connecting = false
	s.muted = false
	s.deafened = false
	s.roster = make(map[domain.UserID]domain.Participant)
	s.speaking = nil
	s.sharer = ""
}

// SetMuted toggles the local track-enable state and broadcasts the new
// intent. The announcement is best-effort, not an ack'd RPC.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mic.SetEnabled(!s.muted && !s.deafened)
	s.setRosterFlagsLocked(s.self.ID, s.muted, s.deafened)
	s.send(signal.Mute{Muted: s.muted, Deafened: s.deafened})
	s.mu.Unlock()
	s.notify()
}

// SetDeafened silences every peer's playback sink without closing the
// connections. Deafening forces muting; un-deafening restores the track to
// whatever muted was, it does not unmute.
func (s *Session) SetDeafened(deafened bool) {
	s.mu.Lock()
	s.deafened = deafened
	if deafened {
		s.muted = true
	}
	s.mic.SetEnabled(!s.muted && !s.deafened)
	s.setRosterFlagsLocked(s.self.ID, s.muted, s.deafened)
	for _, p := range s.peers {
		p.sink.SetMuted(deafened)
	}
	s.send(signal.Mute{Muted: s.muted, Deafened: s.deafened})
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a value copy of the observable session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ChannelID:  s.channel,
		Connecting: s.connecting,
		Muted:      s.muted,
		Deafened:   s.deafened,
		Sharer:     s.sharer,
	}
	snap.Participants = make([]domain.Participant, 0, len(s.roster))
	for _, p := range s.roster {
		snap.Participants = append(snap.Participants, p)
	}
	snap.Speaking = append([]domain.UserID(nil), s.speaking...)
	return snap
}

// PeerCount reports the number of live peer links.
func (s *Session) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// HandleEvent routes one inbound signaling event. Events for a channel this
// client is not in are dropped without side effects; those races are
// expected and not an error.
func (s *Session) HandleEvent(ev signal.Event) {
	s.mu.Lock()
	s.handleLocked(ev)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleLocked(ev signal.Event) {
	switch e := ev.(type) {
	case signal.State:
		// A snapshot is only meaningful while a join is in flight or
		// active; an idle session must never grow links from stray
		// relay traffic.
		if s.channel == "" || e.ChannelID != s.channel {
			return
		}
		s.handleStateLocked(e)
	case signal.UserJoined:
		if e.ChannelID != s.channel || !s.activeLocked() {
			return
		}
		s.handleUserJoinedLocked(e)
	case signal.UserLeft:
		if e.ChannelID != s.channel || !s.activeLocked() {
			return
		}
		s.handleUserLeftLocked(e)
	case signal.Offer:
		if !s.activeLocked() {
			return
		}
		s.handleOfferLocked(e)
	case signal.Answer:
		if !s.activeLocked() {
			return
		}
		s.handleAnswerLocked(e)
	case signal.ICECandidate:
		if !s.activeLocked() {
			return
		}
		s.handleCandidateLocked(e)
	case signal.Mute:
		if !s.activeLocked() {
			return
		}
		s.handleMuteLocked(e)
	case signal.ShareStarted:
		if e.ChannelID != s.channel || !s.activeLocked() {
			return
		}
		s.handleShareStartedLocked(e)
	case signal.ShareStopped:
		if e.ChannelID != s.channel || !s.activeLocked() {
			return
		}
		s.handleShareStoppedLocked(e)
	default:
		log.Warn().Str("module", "voice").Str("type", ev.EventType()).Msg("unhandled signal event")
	}
}

func (s *Session) activeLocked() bool {
	return s.channel != "" && !s.connecting
}

// handleStateLocked applies the full roster snapshot. As the newcomer, this
// client initiates an offer to every participant already present.
func (s *Session) handleStateLocked(e signal.State) {
	s.connecting = false
	if e.Self.User.ID != "" && e.Self.User.ID != s.self.ID {
		// The relay assigns the canonical identity; adopt it so roster
		// entries, addressed events and the speaking set all line up.
		s.monitor.Unwatch(s.self.ID)
		s.self = e.Self.User
		s.mic.SetMeter(s.monitor.Watch(s.self.ID))
	}
	s.roster = make(map[domain.UserID]domain.Participant, len(e.Participants))
	for _, p := range e.Participants {
		s.roster[p.User.ID] = p
		if p.ScreenSharing {
			s.sharer = p.User.ID
		}
	}
	for _, p := range e.Participants {
		if p.User.ID == s.self.ID {
			continue
		}
		if _, err := s.buildLinkLocked(p.User.ID, true); err != nil {
			log.Error().Err(err).Str("module", "voice").Str("peer", string(p.User.ID)).Msg("establish link")
		}
	}
	log.Info().Str("module", "voice").Str("channel", string(s.channel)).Int("participants", len(e.Participants)).Msg("roster snapshot applied")
}

// handleUserJoinedLocked only records the newcomer; they initiate the offer,
// this client answers.
func (s *Session) handleUserJoinedLocked(e signal.UserJoined) {
	if e.Participant.User.ID == s.self.ID {
		return
	}
	s.roster[e.Participant.User.ID] = e.Participant
}

func (s *Session) handleUserLeftLocked(e signal.UserLeft) {
	if _, ok := s.roster[e.UserID]; !ok {
		// Duplicate delivery; the link is already gone.
		return
	}
	delete(s.roster, e.UserID)
	s.dropLinkLocked(e.UserID)
	if s.sharer == e.UserID {
		s.sharer = ""
	}
}

// handleOfferLocked answers an inbound offer. An offer from a user with no
// existing link legitimately races ahead of our roster bookkeeping, so the
// link is created on demand in the answerer role. An offer on an existing
// link is a renegotiation (e.g. a screen track was added).
func (s *Session) handleOfferLocked(e signal.Offer) {
	p, ok := s.peers[e.From]
	if !ok {
		var err error
		p, err = s.buildLinkLocked(e.From, false)
		if err != nil {
			log.Error().Err(err).Str("module", "voice").Str("peer", string(e.From)).Msg("answer offer")
			return
		}
	}
	answer, err := p.link.Answer(s.sessCtx, webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  e.SDP,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "voice").Str("peer", string(e.From)).Msg("create answer")
		s.dropLinkLocked(e.From)
		return
	}
	s.send(signal.Answer{To: e.From, SDP: answer.SDP})
}

func (s *Session) handleAnswerLocked(e signal.Answer) {
	p, ok := s.peers[e.From]
	if !ok {
		log.Error().Str("module", "voice").Str("peer", string(e.From)).Msg("answer for unknown peer")
		return
	}
	if err := p.link.AcceptAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  e.SDP,
	}); err != nil {
		log.Error().Err(err).Str("module", "voice").Str("peer", string(e.From)).Msg("apply answer")
		s.dropLinkLocked(e.From)
	}
}

// Candidates can legitimately race ahead of the offer/answer exchange;
// a candidate for an unknown peer is dropped as non-fatal.
func (s *Session) handleCandidateLocked(e signal.ICECandidate) {
	p, ok := s.peers[e.From]
	if !ok {
		return
	}
	if err := p.link.AddICECandidate(e.Candidate); err != nil {
		log.Error().Err(err).Str("module", "voice").Str("peer", string(e.From)).Msg("add ice candidate")
	}
}

// Mute broadcasts update the roster view only; they never touch peer links.
func (s *Session) handleMuteLocked(e signal.Mute) {
	if _, ok := s.roster[e.UserID]; !ok {
		return
	}
	s.setRosterFlagsLocked(e.UserID, e.Muted, e.Deafened)
}

func (s *Session) setRosterFlagsLocked(id domain.UserID, muted, deafened bool) {
	if p, ok := s.roster[id]; ok {
		p.Muted = muted
		p.Deafened = deafened
		s.roster[id] = p
	}
}

// send is fire-and-forget; transport failures are logged, never propagated
// into session state.
func (s *Session) send(ev signal.Event) {
	if err := s.transport.Send(ev); err != nil {
		log.Error().Err(err).Str("module", "voice").Str("type", ev.EventType()).Msg("send signal")
	}
}

// setSpeaking receives membership changes from the activity monitor loop.
func (s *Session) setSpeaking(ids []domain.UserID) {
	s.mu.Lock()
	s.speaking = ids
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	if s.onUpdate == nil {
		return
	}
	s.onUpdate(s.Snapshot())
}
