// Package activity derives the "currently speaking" participant set from
// live audio streams. One shared polling loop averages each stream's energy
// over a fixed interval and compares it to a threshold; event-driven VAD is
// deliberately avoided.
package activity

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jlgrimes/quarrel-voice/internal/domain"
)

const (
	DefaultInterval  = 50 * time.Millisecond
	DefaultThreshold = 0.01
)

// Monitor owns the polling loop. The loop starts lazily on the first Watch
// and stops when the last monitored stream is removed, so no timer survives
// a session leave.
type Monitor struct {
	interval  time.Duration
	threshold float64
	onChange  func([]domain.UserID)

	mu       sync.Mutex
	meters   map[domain.UserID]*Meter
	speaking map[domain.UserID]struct{}
	stop     chan struct{}
}

// NewMonitor creates a stopped monitor. onChange is invoked from the polling
// goroutine whenever the speaking set's membership actually changes.
func NewMonitor(interval time.Duration, threshold float64, onChange func([]domain.UserID)) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Monitor{
		interval:  interval,
		threshold: threshold,
		onChange:  onChange,
		meters:    make(map[domain.UserID]*Meter),
		speaking:  make(map[domain.UserID]struct{}),
	}
}

// Watch registers a stream under the given id, replacing any prior meter for
// that id, and returns the meter its decode path should push into.
func (m *Monitor) Watch(id domain.UserID) *Meter {
	meter := NewMeter()
	m.mu.Lock()
	m.meters[id] = meter
	if m.stop == nil {
		m.stop = make(chan struct{})
		go m.loop(m.stop)
		log.Debug().Str("module", "activity").Msg("monitor loop started")
	}
	m.mu.Unlock()
	return meter
}

// Unwatch removes a stream. Stops the loop when nothing is left.
func (m *Monitor) Unwatch(id domain.UserID) {
	m.mu.Lock()
	delete(m.meters, id)
	delete(m.speaking, id)
	m.stopLocked()
	m.mu.Unlock()
}

// Reset drops every monitored stream and clears the speaking set.
// Safe to call on an already stopped monitor.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.meters = make(map[domain.UserID]*Meter)
	m.speaking = make(map[domain.UserID]struct{})
	m.stopLocked()
	m.mu.Unlock()
}

// Speaking returns a snapshot of the current speaking set.
func (m *Monitor) Speaking() []domain.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedIDs(m.speaking)
}

func (m *Monitor) stopLocked() {
	if len(m.meters) == 0 && m.stop != nil {
		close(m.stop)
		m.stop = nil
		log.Debug().Str("module", "activity").Msg("monitor loop stopped")
	}
}

func (m *Monitor) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if ids, changed := m.poll(); changed && m.onChange != nil {
				m.onChange(ids)
			}
		}
	}
}

// poll recomputes the full set and reports whether membership changed.
func (m *Monitor) poll() ([]domain.UserID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[domain.UserID]struct{}, len(m.meters))
	for id, meter := range m.meters {
		if meter.Drain() >= m.threshold {
			next[id] = struct{}{}
		}
	}

	changed := len(next) != len(m.speaking)
	if !changed {
		for id := range next {
			if _, ok := m.speaking[id]; !ok {
				changed = true
				break
			}
		}
	}
	if !changed {
		return nil, false
	}
	m.speaking = next
	return sortedIDs(next), true
}

func sortedIDs(set map[domain.UserID]struct{}) []domain.UserID {
	out := make([]domain.UserID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
