package core

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/jlgrimes/quarrel-voice/internal/domain"
)

// MediaLink is one underlying peer connection to a single remote participant.
type MediaLink interface {
	// Start configures internal callbacks. Must be called before negotiation.
	Start(ctx context.Context) error
	// Offer creates and sets a local offer.
	Offer(ctx context.Context) (webrtc.SessionDescription, error)
	// Answer applies a remote offer and returns the local answer.
	Answer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	// AcceptAnswer applies the remote answer to a previously sent offer.
	AcceptAnswer(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnAudioFrame sets a callback invoked with decoded PCM from the remote
	// audio track. The adapter owns RTP reading and codec work.
	OnAudioFrame(func(pcm []int16))
	// AddLocalTrack attaches a local track to the underlying connection.
	// Adding a track after negotiation requires a follow-up Offer.
	AddLocalTrack(track webrtc.TrackLocal) error
	RemoveLocalTrack(track webrtc.TrackLocal) error
	// Close should stop all underlying media resources. Safe to call twice.
	Close()
	IsClosed() bool
}

// LinkFactory builds a MediaLink for a remote participant.
type LinkFactory func(remote domain.UserID) (MediaLink, error)
