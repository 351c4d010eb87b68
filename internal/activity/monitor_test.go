package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlgrimes/quarrel-voice/internal/domain"
)

func loudFrame(n int) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = 16000
	}
	return pcm
}

func TestMeterDrainResets(t *testing.T) {
	m := NewMeter()

	m.Push(loudFrame(160))
	level := m.Drain()
	assert.Greater(t, level, 0.4)

	// A stream with no frames since the last poll reads as silent.
	assert.Zero(t, m.Drain())
}

func TestMeterSilence(t *testing.T) {
	m := NewMeter()
	m.Push(make([]int16, 160))
	assert.Zero(t, m.Drain())

	m.Push(nil)
	assert.Zero(t, m.Drain())
}

func TestPollReportsMembershipChanges(t *testing.T) {
	m := NewMonitor(time.Hour, DefaultThreshold, nil)
	defer m.Reset()

	alice := m.Watch(domain.UserID("alice"))
	m.Watch(domain.UserID("bob"))

	alice.Push(loudFrame(160))
	ids, changed := m.poll()
	require.True(t, changed)
	assert.Equal(t, []domain.UserID{"alice"}, ids)

	// Same loudness again: membership unchanged, no event.
	alice.Push(loudFrame(160))
	_, changed = m.poll()
	assert.False(t, changed)

	// Alice goes quiet: one more change down to the empty set.
	ids, changed = m.poll()
	require.True(t, changed)
	assert.Empty(t, ids)
}

func TestUnwatchRemovesSpeaker(t *testing.T) {
	m := NewMonitor(time.Hour, DefaultThreshold, nil)
	defer m.Reset()

	alice := m.Watch(domain.UserID("alice"))
	alice.Push(loudFrame(160))
	_, changed := m.poll()
	require.True(t, changed)
	assert.Equal(t, []domain.UserID{"alice"}, m.Speaking())

	m.Unwatch(domain.UserID("alice"))
	assert.Empty(t, m.Speaking())
}

func TestLoopEmitsChanges(t *testing.T) {
	changes := make(chan []domain.UserID, 4)
	m := NewMonitor(5*time.Millisecond, DefaultThreshold, func(ids []domain.UserID) {
		changes <- ids
	})
	defer m.Reset()

	meter := m.Watch(domain.UserID("alice"))
	go func() {
		for i := 0; i < 50; i++ {
			meter.Push(loudFrame(160))
			time.Sleep(time.Millisecond)
		}
	}()

	select {
	case ids := <-changes:
		assert.Equal(t, []domain.UserID{"alice"}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("no speaking change observed")
	}
}
