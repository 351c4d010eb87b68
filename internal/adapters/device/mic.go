// Package device implements the local audio devices with malgo and the
// screen source from pre-encoded video.
package device

import (
	"context"
	"sync"

	malgo "github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/audio"
	"github.com/jlgrimes/quarrel-voice/internal/core"
)

const micBuffer = 16

// Microphone captures mono 16-bit PCM at the codec sample rate.
type Microphone struct{}

var _ core.CaptureDevice = Microphone{}

func (Microphone) Start(ctx context.Context) (<-chan []int16, error) {
	out := make(chan []int16, micBuffer)

	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug().Str("module", "device").Str("backend", "malgo").Msg(message)
	})
	if err != nil {
		close(out)
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(audio.Channels)
	cfg.SampleRate = uint32(audio.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			if len(pInput) == 0 {
				return
			}
			// Drop the frame when the consumer lags; stale audio is
			// worse than a gap.
			select {
			case out <- bytesToPCM(pInput):
			default:
			}
		},
	}

	dev, err := malgo.InitDevice(mCtx.Context, cfg, callbacks)
	if err != nil {
		mCtx.Uninit()
		close(out)
		return nil, err
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		mCtx.Uninit()
		close(out)
		return nil, err
	}

	var once sync.Once
	go func() {
		<-ctx.Done()
		once.Do(func() {
			_ = dev.Stop()
			dev.Uninit()
			mCtx.Uninit()
			close(out)
		})
	}()

	return out, nil
}

func bytesToPCM(b []byte) []int16 {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

func pcmToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		b[2*i] = byte(v)
		b[2*i+1] = byte(v >> 8)
	}
	return b
}
