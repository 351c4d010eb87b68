package activity

import (
	"math"
	"sync"
)

// Meter accumulates audio energy for one monitored stream between polls.
// Push is called from the stream's decode path, Drain from the monitor loop.
type Meter struct {
	mu        sync.Mutex
	sumSquare float64
	samples   int
}

func NewMeter() *Meter {
	return &Meter{}
}

// Push folds a PCM frame into the pending energy window.
func (m *Meter) Push(pcm []int16) {
	if len(pcm) == 0 {
		return
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768.0
		sum += v * v
	}
	m.mu.Lock()
	m.sumSquare += sum
	m.samples += len(pcm)
	m.mu.Unlock()
}

// Drain returns the RMS level (0..1) of everything pushed since the last
// call and resets the window. A stream with no frames since the last poll
// reads as silent, so a dead stream can never stay "speaking".
func (m *Meter) Drain() float64 {
	m.mu.Lock()
	sum, n := m.sumSquare, m.samples
	m.sumSquare, m.samples = 0, 0
	m.mu.Unlock()
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}
