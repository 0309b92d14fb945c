package room_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mzharov/sketchroom/room"
	"github.com/mzharov/sketchroom/wire"
)

func TestGet_Idempotent(t *testing.T) {
	reg := newTestRegistry(t)

	r1 := reg.Get("room1")
	r2 := reg.Get("room1")

	assert.Same(t, r1, r2)
	assert.Equal(t, 1, reg.Len())
}

func TestEvictIdle_NeverReferencedRoom(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Get("idle")
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, reg.EvictIdle(0))
	assert.Equal(t, 0, reg.Len())
}

func TestEvictIdle_SkipsOccupiedRoom(t *testing.T) {
	reg := newTestRegistry(t)
	m := room.NewMember("s1")
	joinAndDrain(t, reg, "room1", m)

	assert.Equal(t, 0, reg.EvictIdle(0))
	assert.Equal(t, 1, reg.Len())
}

func TestEvictIdle_SkipsRoomWithinGracePeriod(t *testing.T) {
	reg := newTestRegistry(t)
	m := room.NewMember("s1")
	r, _ := joinAndDrain(t, reg, "room1", m)
	r.Leave("s1")
	assert.Eventually(t, func() bool { return r.MemberCount() == 0 }, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, reg.EvictIdle(time.Hour))
	assert.Equal(t, 1, reg.Len())
}

func TestEvictIdle_DropsHistoryWithRoom(t *testing.T) {
	reg := newTestRegistry(t)
	m := room.NewMember("s1")
	r, _ := joinAndDrain(t, reg, "room1", m)
	r.CommitDraw("s1", validDraw)
	recvEventOfType(t, m, wire.TypeOperationCommitted)
	r.Leave("s1")
	assert.Eventually(t, func() bool { return r.MemberCount() == 0 }, time.Second, 10*time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	require.Equal(t, 1, reg.EvictIdle(0))

	// Same id after eviction is a brand-new room with a fresh log.
	m2 := room.NewMember("s2")
	fresh, snap := joinAndDrain(t, reg, "room1", m2)
	assert.NotSame(t, r, fresh)
	assert.Empty(t, snap.History)
}
