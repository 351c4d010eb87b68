package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlgrimes/quarrel-voice/internal/domain"
)

const room = domain.ChannelID("general")

func bindAndJoin(t *testing.T, r *Registry, token, name string) domain.Participant {
	t.Helper()
	r.Bind(token, nil, nil)
	part, _, ok := r.Join(token, room, name)
	require.True(t, ok)
	return part
}

func TestJoinReturnsExistingMembers(t *testing.T) {
	r := NewRegistry()
	bindAndJoin(t, r, "t1", "Ana")

	r.Bind("t2", nil, nil)
	part, others, ok := r.Join("t2", room, "Ben")
	require.True(t, ok)

	assert.Equal(t, "Ben", part.User.DisplayName)
	require.Len(t, others, 1)
	assert.Equal(t, "Ana", others[0].User.DisplayName)
	assert.Equal(t, domain.UserID("t1"), others[0].User.ID)
}

func TestJoinUnboundSessionFails(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.Join("ghost", room, "")
	assert.False(t, ok)
}

func TestInvalidDisplayNameKeepsDefault(t *testing.T) {
	r := NewRegistry()
	part := bindAndJoin(t, r, "t1", string(make([]byte, 100)))
	assert.Equal(t, "guest", part.User.DisplayName)
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	bindAndJoin(t, r, "t1", "Ana")

	ch, part, ok := r.Leave("t1")
	require.True(t, ok)
	assert.Equal(t, room, ch)
	assert.Equal(t, domain.UserID("t1"), part.User.ID)

	_, _, ok = r.Leave("t1")
	assert.False(t, ok)
	assert.Empty(t, r.MembersOf(room))
}

func TestSetFlagsVisibleToChannel(t *testing.T) {
	r := NewRegistry()
	bindAndJoin(t, r, "t1", "Ana")

	r.SetFlags("t1", true, true)

	members := r.MembersOf(room)
	require.Len(t, members, 1)
	assert.True(t, members[0].Part.Muted)
	assert.True(t, members[0].Part.Deafened)
}

func TestShareLockSingleHolder(t *testing.T) {
	r := NewRegistry()
	bindAndJoin(t, r, "t1", "Ana")
	bindAndJoin(t, r, "t2", "Ben")

	ch, holder, taken := r.TryStartShare("t1")
	require.True(t, taken)
	assert.Equal(t, room, ch)
	assert.Equal(t, domain.UserID("t1"), holder)

	// Second sharer is refused and told who holds the lock.
	_, holder, taken = r.TryStartShare("t2")
	assert.False(t, taken)
	assert.Equal(t, domain.UserID("t1"), holder)

	// Re-asserting your own share is fine.
	_, _, taken = r.TryStartShare("t1")
	assert.True(t, taken)
}

func TestShareLockReleasedOnStop(t *testing.T) {
	r := NewRegistry()
	bindAndJoin(t, r, "t1", "Ana")
	bindAndJoin(t, r, "t2", "Ben")

	_, _, taken := r.TryStartShare("t1")
	require.True(t, taken)

	// Only the holder can stop.
	_, _, ok := r.StopShare("t2")
	assert.False(t, ok)

	ch, user, ok := r.StopShare("t1")
	require.True(t, ok)
	assert.Equal(t, room, ch)
	assert.Equal(t, domain.UserID("t1"), user)

	_, _, taken = r.TryStartShare("t2")
	assert.True(t, taken)
}

func TestShareLockReleasedOnLeave(t *testing.T) {
	r := NewRegistry()
	bindAndJoin(t, r, "t1", "Ana")
	bindAndJoin(t, r, "t2", "Ben")

	_, _, taken := r.TryStartShare("t1")
	require.True(t, taken)

	r.Leave("t1")

	_, _, taken = r.TryStartShare("t2")
	assert.True(t, taken)
}

func TestShareLockReleasedOnUnbind(t *testing.T) {
	r := NewRegistry()
	bindAndJoin(t, r, "t1", "Ana")
	bindAndJoin(t, r, "t2", "Ben")

	_, _, taken := r.TryStartShare("t1")
	require.True(t, taken)

	r.Unbind("t1")

	_, _, taken = r.TryStartShare("t2")
	assert.True(t, taken)
	assert.Len(t, r.MembersOf(room), 1)
}

func TestFindInChannel(t *testing.T) {
	r := NewRegistry()
	bindAndJoin(t, r, "t1", "Ana")

	_, ok := r.FindInChannel(room, domain.UserID("t1"))
	assert.True(t, ok)

	_, ok = r.FindInChannel(room, domain.UserID("t2"))
	assert.False(t, ok)

	_, ok = r.FindInChannel(domain.ChannelID("other"), domain.UserID("t1"))
	assert.False(t, ok)
}
