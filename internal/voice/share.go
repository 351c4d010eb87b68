package voice

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/domain"
	"github.com/jlgrimes/quarrel-voice/internal/signal"
)

// StartShare acquires the screen-capture stream, attaches its video track to
// every peer link (renegotiating each) and broadcasts the share start.
// It refuses while another participant is sharing; the relay is the
// authority, so a conflicting remote start arriving mid-attempt wins and
// rolls this one back (see handleShareStartedLocked).
func (s *Session) StartShare(ctx context.Context) error {
	s.mu.Lock()
	err := s.startShareLocked(ctx)
	s.mu.Unlock()
	if err == nil {
		s.notify()
	}
	return err
}

func (s *Session) startShareLocked(ctx context.Context) error {
	if !s.activeLocked() {
		return ErrNotInChannel
	}
	if s.sharer != "" && s.sharer != s.self.ID {
		return ErrShareBusy
	}
	if s.screenTrack != nil {
		return nil
	}
	if s.screen == nil {
		return &DeviceError{Err: fmt.Errorf("no screen capture source")}
	}

	captureCtx, cancel := context.WithCancel(s.sessCtx)
	samples, err := s.screen.Start(captureCtx)
	if err != nil {
		cancel()
		return &DeviceError{Err: err}
	}

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	}, "video", "quarrel-screen")
	if err != nil {
		cancel()
		return fmt.Errorf("create screen track: %w", err)
	}
	go pumpScreen(samples, track)

	s.screenTrack = track
	s.screenStop = cancel
	s.sharer = s.self.ID
	s.setRosterSharingLocked(s.self.ID, true)

	// Screen share reuses each existing peer connection; the extra track
	// just forces a renegotiation per link.
	for id, p := range s.peers {
		if err := p.link.AddLocalTrack(track); err != nil {
			log.Error().Err(err).Str("module", "voice").Str("peer", string(id)).Msg("attach screen track")
			continue
		}
		if err := s.offerLocked(p); err != nil {
			log.Error().Err(err).Str("module", "voice").Str("peer", string(id)).Msg("renegotiate screen track")
			s.dropLinkLocked(id)
		}
	}

	s.send(signal.ShareStarted{ChannelID: s.channel})
	log.Info().Str("module", "voice").Str("channel", string(s.channel)).Msg("screen share started")
	return nil
}

// StopShare removes the screen track from every link, stops the capture
// stream and broadcasts the stop. No-op when not sharing.
func (s *Session) StopShare() {
	s.mu.Lock()
	stopped := s.stopShareLocked(true)
	s.mu.Unlock()
	if stopped {
		s.notify()
	}
}

// stopShareLocked reverses StartShare. With broadcast false (session
// teardown, or losing the share race) the stop event is suppressed; the
// track still comes off any links that remain.
func (s *Session) stopShareLocked(broadcast bool) bool {
	if s.screenTrack == nil {
		return false
	}
	track := s.screenTrack
	s.screenTrack = nil
	if s.screenStop != nil {
		s.screenStop()
		s.screenStop = nil
	}
	if s.sharer == s.self.ID {
		s.sharer = ""
	}
	s.setRosterSharingLocked(s.self.ID, false)

	// The dead track must come off every live link regardless of why the
	// share ended, or lost share races pile up stale video senders.
	for id, p := range s.peers {
		if err := p.link.RemoveLocalTrack(track); err != nil {
			log.Error().Err(err).Str("module", "voice").Str("peer", string(id)).Msg("remove screen track")
			continue
		}
		if err := s.offerLocked(p); err != nil {
			log.Error().Err(err).Str("module", "voice").Str("peer", string(id)).Msg("renegotiate screen removal")
			s.dropLinkLocked(id)
		}
	}
	if broadcast {
		s.send(signal.ShareStopped{ChannelID: s.channel})
		log.Info().Str("module", "voice").Str("channel", string(s.channel)).Msg("screen share stopped")
	}
	return true
}

// handleShareStartedLocked records the remote sharer. If this client was
// sharing (or mid-start), the other party won and the local share is rolled
// back rather than showing both as sharing.
func (s *Session) handleShareStartedLocked(e signal.ShareStarted) {
	if e.UserID == "" || e.UserID == s.self.ID {
		return
	}
	if s.screenTrack != nil {
		s.stopShareLocked(false)
		log.Warn().Str("module", "voice").Str("winner", string(e.UserID)).Msg("share conflict, remote party wins")
	}
	s.sharer = e.UserID
	s.setRosterSharingLocked(e.UserID, true)
}

func (s *Session) handleShareStoppedLocked(e signal.ShareStopped) {
	if e.UserID == "" || e.UserID == s.self.ID {
		return
	}
	if s.sharer == e.UserID {
		s.sharer = ""
	}
	s.setRosterSharingLocked(e.UserID, false)
}

func (s *Session) setRosterSharingLocked(id domain.UserID, sharing bool) {
	if p, ok := s.roster[id]; ok {
		p.ScreenSharing = sharing
		s.roster[id] = p
	}
}

func pumpScreen(samples <-chan media.Sample, track *webrtc.TrackLocalStaticSample) {
	for sample := range samples {
		if err := track.WriteSample(sample); err != nil {
			log.Error().Err(err).Str("module", "voice").Msg("write screen sample")
		}
	}
}
