package device

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/core"
)

// FileScreen replays a pre-encoded VP8 IVF file as the screen share feed.
// Capture of a live desktop is platform work outside this module; anything
// that can produce VP8 samples satisfies core.ScreenSource the same way.
type FileScreen struct {
	Path string
	// Loop restarts the file when it ends instead of closing the stream.
	Loop bool
}

var _ core.ScreenSource = FileScreen{}

func (f FileScreen) Start(ctx context.Context) (<-chan media.Sample, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	ivf, header, err := ivfreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	frameDur := time.Millisecond * time.Duration(
		float32(header.TimebaseNumerator)/float32(header.TimebaseDenominator)*1000)
	if frameDur <= 0 {
		frameDur = time.Second / 30
	}

	out := make(chan media.Sample)
	go func() {
		defer close(out)
		defer file.Close()

		ticker := time.NewTicker(frameDur)
		defer ticker.Stop()

		for {
			frame, _, err := ivf.ParseNextFrame()
			if errors.Is(err, io.EOF) {
				if !f.Loop {
					return
				}
				if _, err := file.Seek(0, io.SeekStart); err != nil {
					return
				}
				if ivf, header, err = ivfreader.NewWith(file); err != nil {
					return
				}
				continue
			}
			if err != nil {
				log.Error().Err(err).Str("module", "device").Str("path", f.Path).Msg("screen frame read failed")
				return
			}
			select {
			case out <- media.Sample{Data: frame, Duration: frameDur}:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
