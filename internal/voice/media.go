package voice

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/activity"
	"github.com/jlgrimes/quarrel-voice/internal/audio"
	"github.com/jlgrimes/quarrel-voice/internal/core"
)

// MediaController owns the local microphone stream for the session's
// lifetime. Mute toggles the track-enable flag; the hardware device is
// never stopped or restarted for a mute.
type MediaController struct {
	device core.CaptureDevice

	enabled atomic.Bool
	meter   atomic.Pointer[activity.Meter]

	mu     sync.Mutex
	track  *webrtc.TrackLocalStaticSample
	cancel context.CancelFunc
}

func NewMediaController(device core.CaptureDevice) *MediaController {
	c := &MediaController{device: device}
	c.enabled.Store(true)
	return c
}

// Acquire requests the microphone and starts the encode pump. A capture
// failure comes back as a DeviceError; callers abort the join on it.
func (c *MediaController) Acquire(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.track != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	frames, err := c.device.Start(ctx)
	if err != nil {
		cancel()
		return &DeviceError{Err: err}
	}

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeG722,
		ClockRate: audio.SampleRate,
		Channels:  audio.Channels,
	}, "audio", "quarrel-mic")
	if err != nil {
		cancel()
		return fmt.Errorf("create microphone track: %w", err)
	}

	c.track = track
	c.cancel = cancel
	go c.pump(frames, track)
	return nil
}

func (c *MediaController) pump(frames <-chan []int16, track *webrtc.TrackLocalStaticSample) {
	enc := audio.NewEncoder()
	for pcm := range frames {
		if len(pcm) == 0 || !c.enabled.Load() {
			continue
		}
		if meter := c.meter.Load(); meter != nil {
			meter.Push(pcm)
		}
		payload := enc.Encode(pcm)
		if payload == nil {
			continue
		}
		sample := media.Sample{
			Data:     payload,
			Duration: time.Duration(len(pcm)) * time.Second / audio.SampleRate,
		}
		if err := track.WriteSample(sample); err != nil {
			log.Error().Err(err).Str("module", "media").Msg("write microphone sample")
		}
	}
}

// SetEnabled applies mute semantics: the pump drops frames while disabled.
func (c *MediaController) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

func (c *MediaController) Enabled() bool {
	return c.enabled.Load()
}

// SetMeter routes transmitted audio into the activity monitor under the
// local user's id. A nil meter detaches.
func (c *MediaController) SetMeter(meter *activity.Meter) {
	if meter == nil {
		c.meter.Store(nil)
		return
	}
	c.meter.Store(meter)
}

// Track returns the local audio track, or nil before Acquire.
func (c *MediaController) Track() webrtc.TrackLocal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.track == nil {
		return nil
	}
	return c.track
}

// Stop releases the device. Safe to call twice and with nothing acquired.
func (c *MediaController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.track = nil
	c.meter.Store(nil)
	c.enabled.Store(true)
}
