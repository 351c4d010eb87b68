package device

import (
	"sync"
	"sync/atomic"

	malgo "github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/audio"
	"github.com/jlgrimes/quarrel-voice/internal/core"
	"github.com/jlgrimes/quarrel-voice/internal/domain"
)

const speakerBuffer = 32

// Speaker plays one remote participant's audio. Each peer gets its own
// playback device so a misbehaving stream cannot stall the rest.
type Speaker struct {
	dev   *malgo.Device
	mCtx  *malgo.AllocatedContext
	in    chan []int16
	muted atomic.Bool
	once  sync.Once
}

var _ core.PlaybackSink = (*Speaker)(nil)

// NewSpeaker is a core.SinkFactory.
func NewSpeaker(user domain.UserID) (core.PlaybackSink, error) {
	s := &Speaker{in: make(chan []int16, speakerBuffer)}

	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug().Str("module", "device").Str("backend", "malgo").Msg(message)
	})
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(audio.Channels)
	cfg.SampleRate = uint32(audio.SampleRate)

	var pending []int16
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			if len(pOutput) == 0 {
				return
			}
			need := int(frameCount) * audio.Channels
			out := make([]int16, need)
			filled := 0
			for filled < need {
				if len(pending) == 0 {
					select {
					case frame := <-s.in:
						pending = frame
					default:
					}
					if len(pending) == 0 {
						break
					}
				}
				n := copy(out[filled:], pending)
				filled += n
				pending = pending[n:]
			}
			copy(pOutput, pcmToBytes(out))
		},
	}

	dev, err := malgo.InitDevice(mCtx.Context, cfg, callbacks)
	if err != nil {
		mCtx.Uninit()
		return nil, err
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		mCtx.Uninit()
		return nil, err
	}

	s.dev = dev
	s.mCtx = mCtx
	log.Info().Str("module", "device").Str("peer", string(user)).Msg("playback sink ready")
	return s, nil
}

// Play queues PCM for playback. Frames are dropped while muted or when
// the device lags behind.
func (s *Speaker) Play(pcm []int16) {
	if s.muted.Load() {
		return
	}
	select {
	case s.in <- pcm:
	default:
	}
}

func (s *Speaker) SetMuted(muted bool) { s.muted.Store(muted) }

func (s *Speaker) Close() {
	s.once.Do(func() {
		if s.dev != nil {
			_ = s.dev.Stop()
			s.dev.Uninit()
		}
		if s.mCtx != nil {
			s.mCtx.Uninit()
		}
	})
}
