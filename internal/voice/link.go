package voice

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/core"
	"github.com/jlgrimes/quarrel-voice/internal/domain"
	"github.com/jlgrimes/quarrel-voice/internal/signal"
)

// PeerLink pairs one media connection with its dedicated playback sink.
// Exactly one exists per remote participant; replacing a link for the same
// user tears the old one down first.
type PeerLink struct {
	remote domain.UserID
	link   core.MediaLink
	sink   core.PlaybackSink

	closeOnce sync.Once
}

// teardown closes the connection, detaches the sink and removes the peer's
// monitor entry. Both a user-left event and a full session leave can target
// the same peer, so it must be callable twice.
func (p *PeerLink) teardown(unwatch func(domain.UserID)) {
	p.closeOnce.Do(func() {
		if p.link != nil {
			p.link.Close()
		}
		if p.sink != nil {
			p.sink.Close()
		}
		if unwatch != nil {
			unwatch(p.remote)
		}
		log.Debug().Str("module", "voice").Str("peer", string(p.remote)).Msg("peer link closed")
	})
}

// buildLinkLocked constructs the PeerLink for remote and, in the offerer
// role, sends the initial offer. Any existing link for the same user is torn
// down first. Callers hold s.mu.
func (s *Session) buildLinkLocked(remote domain.UserID, offerer bool) (*PeerLink, error) {
	if old, ok := s.peers[remote]; ok {
		old.teardown(s.monitor.Unwatch)
		delete(s.peers, remote)
	}

	ml, err := s.links(remote)
	if err != nil {
		return nil, &NegotiationError{Remote: remote, Err: err}
	}

	sink, err := s.sinks(remote)
	if err != nil {
		ml.Close()
		return nil, &DeviceError{Err: err}
	}
	sink.SetMuted(s.deafened)

	// Candidates go to this peer only, never broadcast.
	ml.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		s.send(signal.ICECandidate{To: remote, Candidate: cand})
	})

	meter := s.monitor.Watch(remote)
	ml.OnAudioFrame(func(pcm []int16) {
		meter.Push(pcm)
		sink.Play(pcm)
	})

	if err := ml.Start(s.sessCtx); err != nil {
		ml.Close()
		sink.Close()
		s.monitor.Unwatch(remote)
		return nil, &NegotiationError{Remote: remote, Err: err}
	}

	if track := s.mic.Track(); track != nil {
		if err := ml.AddLocalTrack(track); err != nil {
			ml.Close()
			sink.Close()
			s.monitor.Unwatch(remote)
			return nil, &NegotiationError{Remote: remote, Err: fmt.Errorf("attach microphone: %w", err)}
		}
	}
	if s.screenTrack != nil {
		if err := ml.AddLocalTrack(s.screenTrack); err != nil {
			log.Error().Err(err).Str("module", "voice").Str("peer", string(remote)).Msg("attach screen track")
		}
	}

	p := &PeerLink{remote: remote, link: ml, sink: sink}
	s.peers[remote] = p

	if offerer {
		if err := s.offerLocked(p); err != nil {
			s.dropLinkLocked(remote)
			return nil, err
		}
	}
	return p, nil
}

// offerLocked creates a local offer on the link and sends it to the peer.
// Used for the initial negotiation and for renegotiation after track changes.
func (s *Session) offerLocked(p *PeerLink) error {
	desc, err := p.link.Offer(s.sessCtx)
	if err != nil {
		return &NegotiationError{Remote: p.remote, Err: err}
	}
	s.send(signal.Offer{To: p.remote, SDP: desc.SDP})
	return nil
}

// dropLinkLocked tears down and forgets the link for remote, if any.
func (s *Session) dropLinkLocked(remote domain.UserID) {
	if p, ok := s.peers[remote]; ok {
		p.teardown(s.monitor.Unwatch)
		delete(s.peers, remote)
	}
}
