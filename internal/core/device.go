package core

import (
	"context"

	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/jlgrimes/quarrel-voice/internal/domain"
)

// CaptureDevice is the local microphone. Start may prompt the user and block
// on their response; the returned channel closes when ctx is canceled or the
// device goes away.
type CaptureDevice interface {
	Start(ctx context.Context) (<-chan []int16, error)
}

// ScreenSource produces encoded video samples of the local screen capture.
type ScreenSource interface {
	Start(ctx context.Context) (<-chan media.Sample, error)
}

// PlaybackSink is the per-peer audio output. SetMuted silences playback
// without touching the peer connection.
type PlaybackSink interface {
	Play(pcm []int16)
	SetMuted(bool)
	Close()
}

// SinkFactory builds a dedicated playback sink for one remote participant.
type SinkFactory func(user domain.UserID) (PlaybackSink, error)
