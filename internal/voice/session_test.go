package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlgrimes/quarrel-voice/internal/core"
	"github.com/jlgrimes/quarrel-voice/internal/domain"
	"github.com/jlgrimes/quarrel-voice/internal/signal"
)

type fakeTransport struct {
	mu     sync.Mutex
	sent   []signal.Event
	events chan signal.Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan signal.Event, 16)}
}

func (t *fakeTransport) Send(ev signal.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, ev)
	return nil
}

func (t *fakeTransport) Events() <-chan signal.Event { return t.events }
func (t *fakeTransport) Close()                      {}

func (t *fakeTransport) sentEvents() []signal.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]signal.Event(nil), t.sent...)
}

func (t *fakeTransport) sentOfType(typ string) []signal.Event {
	var out []signal.Event
	for _, ev := range t.sentEvents() {
		if ev.EventType() == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fakeLink struct {
	mu       sync.Mutex
	remote   domain.UserID
	started  bool
	closed   bool
	offers   int
	answered []string
	accepted []string
	cands    []webrtc.ICECandidateInit
	tracks   []webrtc.TrackLocal

	offerErr  error
	acceptErr error
}

func (l *fakeLink) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	return nil
}

func (l *fakeLink) Offer(ctx context.Context) (webrtc.SessionDescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.offerErr != nil {
		return webrtc.SessionDescription{}, l.offerErr
	}
	l.offers++
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  fmt.Sprintf("offer-%s-%d", l.remote, l.offers),
	}, nil
}

func (l *fakeLink) Answer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.answered = append(l.answered, offer.SDP)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-" + string(l.remote)}, nil
}

func (l *fakeLink) AcceptAnswer(answer webrtc.SessionDescription) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.acceptErr != nil {
		return l.acceptErr
	}
	l.accepted = append(l.accepted, answer.SDP)
	return nil
}

func (l *fakeLink) AddICECandidate(c webrtc.ICECandidateInit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cands = append(l.cands, c)
	return nil
}

func (l *fakeLink) OnICECandidate(func(webrtc.ICECandidateInit)) {}
func (l *fakeLink) OnAudioFrame(func(pcm []int16))              {}

func (l *fakeLink) AddLocalTrack(track webrtc.TrackLocal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks = append(l.tracks, track)
	return nil
}

func (l *fakeLink) RemoveLocalTrack(track webrtc.TrackLocal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, t := range l.tracks {
		if t == track {
			l.tracks = append(l.tracks[:i], l.tracks[i+1:]...)
			return nil
		}
	}
	return errors.New("track not found")
}

func (l *fakeLink) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

func (l *fakeLink) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLink) trackCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tracks)
}

type fakeSink struct {
	mu     sync.Mutex
	muted  bool
	closed bool
}

func (s *fakeSink) Play(pcm []int16) {}

func (s *fakeSink) SetMuted(m bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = m
}

func (s *fakeSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSink) isMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeMic struct {
	err error
}

func (m fakeMic) Start(ctx context.Context) (<-chan []int16, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(chan []int16)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

// gatedMic blocks inside Start until released, so tests can hold a join in
// the middle of its capture prompt.
type gatedMic struct {
	started chan struct{}
	gate    chan struct{}
}

func newGatedMic() *gatedMic {
	return &gatedMic{started: make(chan struct{}, 2), gate: make(chan struct{})}
}

func (m *gatedMic) Start(ctx context.Context) (<-chan []int16, error) {
	m.started <- struct{}{}
	<-m.gate
	out := make(chan []int16)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

type fakeScreen struct {
	mu       sync.Mutex
	err      error
	canceled bool
}

func (s *fakeScreen) Start(ctx context.Context) (<-chan media.Sample, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan media.Sample)
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.canceled = true
		s.mu.Unlock()
		close(out)
	}()
	return out, nil
}

func (s *fakeScreen) wasCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

type harness struct {
	transport *fakeTransport
	screen    *fakeScreen
	mic       fakeMic

	mu    sync.Mutex
	links map[domain.UserID]*fakeLink
	sinks map[domain.UserID]*fakeSink

	sess *Session
}

const (
	selfID = domain.UserID("self")
	ch1    = domain.ChannelID("general")
	ch2    = domain.ChannelID("gaming")
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		screen:    &fakeScreen{},
		links:     make(map[domain.UserID]*fakeLink),
		sinks:     make(map[domain.UserID]*fakeSink),
	}
	h.sess = NewSession(Config{
		Self:       domain.User{ID: selfID, DisplayName: "Self"},
		Transport:  h.transport,
		Links:      h.makeLink,
		Sinks:      h.makeSink,
		Microphone: h.mic,
		Screen:     h.screen,
	})
	return h
}

func (h *harness) makeLink(remote domain.UserID) (core.MediaLink, error) {
	l := &fakeLink{remote: remote}
	h.mu.Lock()
	h.links[remote] = l
	h.mu.Unlock()
	return l, nil
}

func (h *harness) makeSink(user domain.UserID) (core.PlaybackSink, error) {
	s := &fakeSink{}
	h.mu.Lock()
	h.sinks[user] = s
	h.mu.Unlock()
	return s, nil
}

func (h *harness) link(id domain.UserID) *fakeLink {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.links[id]
}

func (h *harness) sink(id domain.UserID) *fakeSink {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sinks[id]
}

func (h *harness) join(t *testing.T, ch domain.ChannelID, roster ...domain.Participant) {
	t.Helper()
	require.NoError(t, h.sess.JoinChannel(context.Background(), ch))
	h.sess.HandleEvent(signal.State{ChannelID: ch, Participants: roster})
}

func participant(id domain.UserID) domain.Participant {
	return domain.NewParticipant(domain.User{ID: id, DisplayName: string(id)})
}

func TestJoinSendsJoinEvent(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.sess.JoinChannel(context.Background(), ch1))

	snap := h.sess.Snapshot()
	assert.Equal(t, ch1, snap.ChannelID)
	assert.True(t, snap.Connecting)
	assert.False(t, snap.Active())

	joins := h.transport.sentOfType(signal.TypeJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, signal.Join{ChannelID: ch1, DisplayName: "Self"}, joins[0])
}

func TestJoinSameChannelIsNoop(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1)

	require.NoError(t, h.sess.JoinChannel(context.Background(), ch1))
	assert.Len(t, h.transport.sentOfType(signal.TypeJoin), 1)
}

func TestJoinMicrophoneFailure(t *testing.T) {
	h := newHarness(t)
	h.sess.mic = NewMediaController(fakeMic{err: errors.New("permission denied")})

	err := h.sess.JoinChannel(context.Background(), ch1)
	require.Error(t, err)
	var devErr *DeviceError
	assert.ErrorAs(t, err, &devErr)

	snap := h.sess.Snapshot()
	assert.Empty(t, snap.ChannelID)
	assert.Empty(t, h.transport.sentOfType(signal.TypeJoin))
}

func TestRosterSnapshotOffersToEveryPeer(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("alice"), participant("bob"))

	assert.True(t, h.sess.Snapshot().Active())
	assert.Equal(t, 2, h.sess.PeerCount())
	assert.True(t, h.link("alice").started)
	assert.True(t, h.link("bob").started)
	// Mic track attaches before the initial offer goes out.
	assert.Equal(t, 1, h.link("alice").trackCount())

	offers := h.transport.sentOfType(signal.TypeOffer)
	require.Len(t, offers, 2)
	targets := map[domain.UserID]bool{}
	for _, ev := range offers {
		targets[ev.(signal.Offer).To] = true
	}
	assert.True(t, targets["alice"] && targets["bob"])
}

func TestSnapshotAdoptsAssignedIdentity(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sess.JoinChannel(context.Background(), ch1))

	// The relay hands back its canonical identity and a roster that
	// includes this client's own entry.
	self := participant("srv-self")
	h.sess.HandleEvent(signal.State{
		ChannelID:    ch1,
		Self:         self,
		Participants: []domain.Participant{self, participant("alice")},
	})

	snap := h.sess.Snapshot()
	require.Len(t, snap.Participants, 2)
	// Only the remote party gets a link; no link back to ourselves.
	assert.Equal(t, 1, h.sess.PeerCount())
	assert.Nil(t, h.link("srv-self"))
	assert.NotNil(t, h.link("alice"))

	// Local toggles land on the adopted roster entry.
	h.sess.SetMuted(true)
	var own *domain.Participant
	for _, p := range h.sess.Snapshot().Participants {
		if p.User.ID == "srv-self" {
			own = &p
			break
		}
	}
	require.NotNil(t, own)
	assert.True(t, own.Muted)
}

func TestInboundOfferAnswered(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1)

	h.sess.HandleEvent(signal.Offer{From: "carol", SDP: "carol-offer"})

	require.Equal(t, 1, h.sess.PeerCount())
	link := h.link("carol")
	require.NotNil(t, link)
	assert.Equal(t, []string{"carol-offer"}, link.answered)
	// The answerer never sends its own offer.
	assert.Empty(t, h.transport.sentOfType(signal.TypeOffer))

	answers := h.transport.sentOfType(signal.TypeAnswer)
	require.Len(t, answers, 1)
	assert.Equal(t, domain.UserID("carol"), answers[0].(signal.Answer).To)
}

func TestAnswerRouting(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("alice"))

	h.sess.HandleEvent(signal.Answer{From: "alice", SDP: "alice-answer"})
	assert.Equal(t, []string{"alice-answer"}, h.link("alice").accepted)

	// An answer from a peer we never offered to is dropped.
	h.sess.HandleEvent(signal.Answer{From: "nobody", SDP: "x"})
	assert.Equal(t, 1, h.sess.PeerCount())
}

func TestCandidateForUnknownPeerDropped(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("alice"))

	h.sess.HandleEvent(signal.ICECandidate{From: "alice", Candidate: webrtc.ICECandidateInit{Candidate: "cand"}})
	require.Len(t, h.link("alice").cands, 1)

	h.sess.HandleEvent(signal.ICECandidate{From: "stranger", Candidate: webrtc.ICECandidateInit{Candidate: "cand"}})
	assert.Equal(t, 1, h.sess.PeerCount())
}

func TestUserLeftClosesLinkIdempotently(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("alice"))
	require.Equal(t, 1, h.sess.PeerCount())

	h.sess.HandleEvent(signal.UserLeft{ChannelID: ch1, UserID: "alice"})
	assert.Equal(t, 0, h.sess.PeerCount())
	assert.True(t, h.link("alice").IsClosed())
	assert.True(t, h.sink("alice").isClosed())

	// Duplicate delivery must be harmless.
	h.sess.HandleEvent(signal.UserLeft{ChannelID: ch1, UserID: "alice"})
	assert.Equal(t, 0, h.sess.PeerCount())
}

func TestMuteBroadcastsSingleEvent(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1)

	h.sess.SetMuted(true)
	assert.False(t, h.sess.mic.Enabled())

	mutes := h.transport.sentOfType(signal.TypeMute)
	require.Len(t, mutes, 1)
	assert.Equal(t, signal.Mute{Muted: true, Deafened: false}, mutes[0])
}

func TestDeafenImpliesMute(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("alice"))

	h.sess.SetDeafened(true)
	assert.False(t, h.sess.mic.Enabled())
	assert.True(t, h.sink("alice").isMuted())

	mutes := h.transport.sentOfType(signal.TypeMute)
	require.Len(t, mutes, 1)
	assert.Equal(t, signal.Mute{Muted: true, Deafened: true}, mutes[0])

	// Un-deafening restores playback but does not unmute the mic.
	h.sess.SetDeafened(false)
	assert.False(t, h.sink("alice").isMuted())
	assert.False(t, h.sess.mic.Enabled())

	snap := h.sess.Snapshot()
	assert.True(t, snap.Muted)
	assert.False(t, snap.Deafened)
}

func TestRemoteMuteUpdatesRosterOnly(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("alice"))

	h.sess.HandleEvent(signal.Mute{UserID: "alice", Muted: true, Deafened: true})

	snap := h.sess.Snapshot()
	require.Len(t, snap.Participants, 1)
	assert.True(t, snap.Participants[0].Muted)
	assert.True(t, snap.Participants[0].Deafened)
	assert.False(t, h.link("alice").IsClosed())
}

func TestLeaveChannelSequence(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("alice"))

	h.sess.LeaveChannel()

	leaves := h.transport.sentOfType(signal.TypeLeave)
	require.Len(t, leaves, 1)
	assert.Equal(t, signal.Leave{ChannelID: ch1}, leaves[0])
	assert.True(t, h.link("alice").IsClosed())
	assert.Equal(t, 0, h.sess.PeerCount())

	snap := h.sess.Snapshot()
	assert.Empty(t, snap.ChannelID)
	assert.Empty(t, snap.Participants)

	// Leaving twice must not send a second event.
	h.sess.LeaveChannel()
	assert.Len(t, h.transport.sentOfType(signal.TypeLeave), 1)
}

func TestChannelSwitchLeavesFirst(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("alice"))

	require.NoError(t, h.sess.JoinChannel(context.Background(), ch2))

	assert.True(t, h.link("alice").IsClosed())
	var order []string
	for _, ev := range h.transport.sentEvents() {
		switch ev.EventType() {
		case signal.TypeJoin, signal.TypeLeave:
			order = append(order, ev.EventType())
		}
	}
	assert.Equal(t, []string{signal.TypeJoin, signal.TypeLeave, signal.TypeJoin}, order)
}

func TestConcurrentJoinLoserKeepsWinnerCapture(t *testing.T) {
	h := newHarness(t)
	mic := newGatedMic()
	h.sess.mic = NewMediaController(mic)

	first := make(chan error, 1)
	go func() { first <- h.sess.JoinChannel(context.Background(), ch1) }()
	<-mic.started

	// While the first capture is still prompting, switch channels. The
	// leave signal marks the takeover of the old session.
	second := make(chan error, 1)
	go func() { second <- h.sess.JoinChannel(context.Background(), ch2) }()
	require.Eventually(t, func() bool {
		return len(h.transport.sentOfType(signal.TypeLeave)) == 1
	}, time.Second, time.Millisecond)

	mic.gate <- struct{}{}
	<-mic.started
	mic.gate <- struct{}{}

	assert.ErrorIs(t, <-first, ErrNotInChannel)
	require.NoError(t, <-second)

	assert.Equal(t, ch2, h.sess.Snapshot().ChannelID)
	// The losing join must not tear down the capture the winner now owns.
	assert.NotNil(t, h.sess.mic.Track())
}

func TestAbortedJoinReleasesCapture(t *testing.T) {
	h := newHarness(t)
	mic := newGatedMic()
	h.sess.mic = NewMediaController(mic)

	done := make(chan error, 1)
	go func() { done <- h.sess.JoinChannel(context.Background(), ch1) }()
	<-mic.started

	// The leave stalls on the in-flight capture; unblock it once the leave
	// signal shows it took over the session.
	go h.sess.LeaveChannel()
	require.Eventually(t, func() bool {
		return len(h.transport.sentOfType(signal.TypeLeave)) == 1
	}, time.Second, time.Millisecond)
	mic.gate <- struct{}{}

	// With no channel left, the orphaned capture is released.
	assert.ErrorIs(t, <-done, ErrNotInChannel)
	assert.Nil(t, h.sess.mic.Track())
	assert.Empty(t, h.sess.Snapshot().ChannelID)
}

func TestStaleEventsDropped(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1)

	// Wrong channel.
	h.sess.HandleEvent(signal.UserJoined{ChannelID: ch2, Participant: participant("alice")})
	assert.Empty(t, h.sess.Snapshot().Participants)

	// After leave, nothing should land.
	h.sess.LeaveChannel()
	h.sess.HandleEvent(signal.Offer{From: "alice", SDP: "late"})
	assert.Equal(t, 0, h.sess.PeerCount())
}

func TestSnapshotWhileIdleDropped(t *testing.T) {
	h := newHarness(t)

	// An unsolicited roster snapshot matches the idle zero channel; it must
	// not resurrect a session that never joined.
	h.sess.HandleEvent(signal.State{Participants: []domain.Participant{participant("mallory")}})

	assert.Equal(t, 0, h.sess.PeerCount())
	snap := h.sess.Snapshot()
	assert.False(t, snap.Active())
	assert.Empty(t, snap.Participants)
	assert.Empty(t, h.transport.sentEvents())
}

func TestEventsWhileConnectingDropped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sess.JoinChannel(context.Background(), ch1))

	// Still waiting for the roster snapshot; peer traffic is premature.
	h.sess.HandleEvent(signal.Offer{From: "alice", SDP: "early"})
	assert.Equal(t, 0, h.sess.PeerCount())

	h.sess.HandleEvent(signal.State{ChannelID: ch1})
	assert.True(t, h.sess.Snapshot().Active())
}

func TestNewcomerDoesNotGetLocalOffer(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1)

	h.sess.HandleEvent(signal.UserJoined{ChannelID: ch1, Participant: participant("dave")})

	// The newcomer initiates; we only record them until their offer arrives.
	assert.Equal(t, 0, h.sess.PeerCount())
	assert.Empty(t, h.transport.sentOfType(signal.TypeOffer))
	require.Len(t, h.sess.Snapshot().Participants, 1)
}

func TestStartShare(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("alice"))
	offersBefore := len(h.transport.sentOfType(signal.TypeOffer))

	require.NoError(t, h.sess.StartShare(context.Background()))

	snap := h.sess.Snapshot()
	assert.Equal(t, selfID, snap.Sharer)
	// Mic plus screen track on the existing link, renegotiated once.
	assert.Equal(t, 2, h.link("alice").trackCount())
	assert.Len(t, h.transport.sentOfType(signal.TypeOffer), offersBefore+1)
	assert.Len(t, h.transport.sentOfType(signal.TypeShareStarted), 1)

	// Starting again is a no-op.
	require.NoError(t, h.sess.StartShare(context.Background()))
	assert.Len(t, h.transport.sentOfType(signal.TypeShareStarted), 1)
}

func TestStartShareRequiresChannel(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.sess.StartShare(context.Background()), ErrNotInChannel)
}

func TestStartShareBusy(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("bob"))

	h.sess.HandleEvent(signal.ShareStarted{ChannelID: ch1, UserID: "bob"})
	assert.Equal(t, domain.UserID("bob"), h.sess.Snapshot().Sharer)

	assert.ErrorIs(t, h.sess.StartShare(context.Background()), ErrShareBusy)
}

func TestStopShare(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("alice"))
	require.NoError(t, h.sess.StartShare(context.Background()))

	h.sess.StopShare()

	assert.Empty(t, h.sess.Snapshot().Sharer)
	assert.Equal(t, 1, h.link("alice").trackCount())
	assert.Len(t, h.transport.sentOfType(signal.TypeShareStopped), 1)

	// Stopping twice must not broadcast twice.
	h.sess.StopShare()
	assert.Len(t, h.transport.sentOfType(signal.TypeShareStopped), 1)
}

func TestShareConflictRemoteWins(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("bob"))
	require.NoError(t, h.sess.StartShare(context.Background()))
	require.Equal(t, 2, h.link("bob").trackCount())
	offersBefore := len(h.transport.sentOfType(signal.TypeOffer))

	h.sess.HandleEvent(signal.ShareStarted{ChannelID: ch1, UserID: "bob"})

	snap := h.sess.Snapshot()
	assert.Equal(t, domain.UserID("bob"), snap.Sharer)
	// The rollback is silent on the wire, but the dead video track still
	// comes off the link, with one renegotiation to seal it.
	assert.Empty(t, h.transport.sentOfType(signal.TypeShareStopped))
	assert.Equal(t, 1, h.link("bob").trackCount())
	assert.Len(t, h.transport.sentOfType(signal.TypeOffer), offersBefore+1)
	assert.Eventually(t, h.screen.wasCanceled, time.Second, 10*time.Millisecond)
}

func TestRemoteShareStartAndStop(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("bob"))

	h.sess.HandleEvent(signal.ShareStarted{ChannelID: ch1, UserID: "bob"})
	snap := h.sess.Snapshot()
	assert.Equal(t, domain.UserID("bob"), snap.Sharer)
	require.Len(t, snap.Participants, 1)
	assert.True(t, snap.Participants[0].ScreenSharing)

	h.sess.HandleEvent(signal.ShareStopped{ChannelID: ch1, UserID: "bob"})
	snap = h.sess.Snapshot()
	assert.Empty(t, snap.Sharer)
	assert.False(t, snap.Participants[0].ScreenSharing)
}

func TestSharerLeavingClearsShare(t *testing.T) {
	h := newHarness(t)
	h.join(t, ch1, participant("bob"))
	h.sess.HandleEvent(signal.ShareStarted{ChannelID: ch1, UserID: "bob"})

	h.sess.HandleEvent(signal.UserLeft{ChannelID: ch1, UserID: "bob"})
	assert.Empty(t, h.sess.Snapshot().Sharer)
}
