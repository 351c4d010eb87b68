// Package rtc implements core.MediaLink on top of pion/webrtc.
package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/audio"
	"github.com/jlgrimes/quarrel-voice/internal/core"
	"github.com/jlgrimes/quarrel-voice/internal/domain"
)

var ErrUnknownTrack = errors.New("track was not added to this link")

// DefaultConfig returns a STUN-only ICE configuration. Mesh assumes
// best-effort NAT traversal; there is no TURN fallback.
func DefaultConfig(stunURLs []string) webrtc.Configuration {
	if len(stunURLs) == 0 {
		stunURLs = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunURLs},
		},
	}
}

// Factory builds core.LinkFactory closures over a shared configuration.
func Factory(cfg webrtc.Configuration) core.LinkFactory {
	return func(remote domain.UserID) (core.MediaLink, error) {
		return NewLink(cfg, remote)
	}
}

// Link owns one peer connection to a single remote participant.
type Link struct {
	pc     *webrtc.PeerConnection
	remote domain.UserID
	cancel context.CancelFunc

	onICE   func(webrtc.ICECandidateInit)
	onAudio func(pcm []int16)

	mu      sync.Mutex
	senders map[webrtc.TrackLocal]*webrtc.RTPSender
	closed  bool
}

func NewLink(cfg webrtc.Configuration, remote domain.UserID) (*Link, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Link{
		pc:      pc,
		remote:  remote,
		senders: make(map[webrtc.TrackLocal]*webrtc.RTPSender),
	}, nil
}

func (l *Link) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	l.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(l.remote)).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	l.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && l.onICE != nil {
			l.onICE(cand.ToJSON())
		}
	})

	l.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", string(l.remote)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			go l.readAudio(ctx, track)
			return
		}
		// Inbound video (remote screen share) is drained so RTCP keeps
		// flowing; rendering is up to the embedding UI.
		go drainTrack(ctx, track)
	})

	return nil
}

// readAudio decodes inbound RTP audio and forwards PCM to the registered
// callback for playback and activity metering.
func (l *Link) readAudio(ctx context.Context, track *webrtc.TrackRemote) {
	dec := audio.NewDecoder()
	var pkt *rtp.Packet
	var err error
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err = track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "rtc").Str("peer", string(l.remote)).Msg("audio track ended")
			return
		}
		pcm := dec.Decode(pkt.Payload)
		if len(pcm) == 0 {
			continue
		}
		if l.onAudio != nil {
			l.onAudio(pcm)
		}
	}
}

func drainTrack(ctx context.Context, track *webrtc.TrackRemote) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}

func (l *Link) Offer(ctx context.Context) (webrtc.SessionDescription, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	// Candidates trickle via OnICECandidate; no need to wait for gathering.
	return offer, nil
}

func (l *Link) Answer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := l.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (l *Link) AcceptAnswer(answer webrtc.SessionDescription) error {
	return l.pc.SetRemoteDescription(answer)
}

func (l *Link) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return l.pc.AddICECandidate(cand)
}

func (l *Link) OnICECandidate(fn func(webrtc.ICECandidateInit)) { l.onICE = fn }

func (l *Link) OnAudioFrame(fn func(pcm []int16)) { l.onAudio = fn }

func (l *Link) AddLocalTrack(track webrtc.TrackLocal) error {
	sender, err := l.pc.AddTrack(track)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.senders[track] = sender
	l.mu.Unlock()
	return nil
}

func (l *Link) RemoveLocalTrack(track webrtc.TrackLocal) error {
	l.mu.Lock()
	sender, ok := l.senders[track]
	delete(l.senders, track)
	l.mu.Unlock()
	if !ok {
		return ErrUnknownTrack
	}
	return l.pc.RemoveTrack(sender)
}

// Close is safe to call twice; both a user-left event and a full session
// teardown can race onto the same link.
func (l *Link) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	if err := l.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(l.remote)).Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Str("peer", string(l.remote)).Msg("closed")
	}
}

func (l *Link) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
