package room_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mzharov/sketchroom/models"
	"github.com/mzharov/sketchroom/room"
	"github.com/mzharov/sketchroom/wire"
)

var validDraw = models.DrawPayload{
	Points: []models.Point{{X: 1, Y: 1}, {X: 2, Y: 2}},
	Color:  "#000000",
	Size:   5,
	Tool:   models.ToolBrush,
}

func newTestRegistry(t *testing.T) *room.Registry {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return room.NewRegistry(ctx)
}

func recvEvent(t *testing.T, m *room.Member) wire.Envelope {
	t.Helper()
	select {
	case frame := <-m.Send:
		var env wire.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event for member %s", m.SessionId)
		return wire.Envelope{}
	}
}

func recvEventOfType(t *testing.T, m *room.Member, eventType string) wire.Envelope {
	t.Helper()
	env := recvEvent(t, m)
	require.Equal(t, eventType, env.Type)
	return env
}

func assertNoEvent(t *testing.T, m *room.Member) {
	t.Helper()
	select {
	case frame := <-m.Send:
		t.Fatalf("unexpected event for member %s: %s", m.SessionId, frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func decode[T any](t *testing.T, env wire.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// joinAndDrain joins the member and consumes its snapshot.
func joinAndDrain(t *testing.T, reg *room.Registry, roomId string, m *room.Member) (*room.Room, models.Snapshot) {
	t.Helper()
	r := reg.Join(roomId, m)
	env := recvEventOfType(t, m, wire.TypeRoomState)
	return r, decode[models.Snapshot](t, env)
}

func TestJoin_SnapshotAndJoinNotice(t *testing.T) {
	reg := newTestRegistry(t)
	m1 := room.NewMember("s1")
	m2 := room.NewMember("s2")

	_, snap1 := joinAndDrain(t, reg, "room1", m1)
	assert.Equal(t, "s1", snap1.MyId)
	assert.NotEmpty(t, snap1.MyColor)
	assert.Empty(t, snap1.History)
	require.Len(t, snap1.Users, 1)

	_, snap2 := joinAndDrain(t, reg, "room1", m2)
	assert.Equal(t, "s2", snap2.MyId)
	assert.Len(t, snap2.Users, 2)
	assert.NotEqual(t, snap1.MyColor, snap2.MyColor)

	joined := decode[models.User](t, recvEventOfType(t, m1, wire.TypeUserJoined))
	assert.Equal(t, "s2", joined.Id)
	assert.Equal(t, snap2.MyColor, joined.Color)
}

func TestDraw_BroadcastToAllIncludingSender(t *testing.T) {
	reg := newTestRegistry(t)
	m1 := room.NewMember("s1")
	m2 := room.NewMember("s2")
	r, _ := joinAndDrain(t, reg, "room1", m1)
	joinAndDrain(t, reg, "room1", m2)
	recvEventOfType(t, m1, wire.TypeUserJoined)

	r.CommitDraw("s1", validDraw)

	for _, m := range []*room.Member{m1, m2} {
		op := decode[models.Operation](t, recvEventOfType(t, m, wire.TypeOperationCommitted))
		assert.Equal(t, models.OpDraw, op.Type)
		assert.Equal(t, "s1", op.AuthorId)
		require.NotNil(t, op.Draw)
		assert.Equal(t, validDraw.Points, op.Draw.Points)
	}
}

func TestDraw_Degenerate_RejectedPrivately(t *testing.T) {
	reg := newTestRegistry(t)
	m1 := room.NewMember("s1")
	m2 := room.NewMember("s2")
	r, _ := joinAndDrain(t, reg, "room1", m1)
	joinAndDrain(t, reg, "room1", m2)
	recvEventOfType(t, m1, wire.TypeUserJoined)

	r.CommitDraw("s1", models.DrawPayload{Color: "#000000", Size: 5, Tool: models.ToolBrush})

	rejected := decode[wire.RejectedData](t, recvEventOfType(t, m1, wire.TypeDrawRejected))
	assert.NotEmpty(t, rejected.Reason)
	assertNoEvent(t, m2)
}

func TestUndo_NoTarget_RejectedOnlyToRequester(t *testing.T) {
	reg := newTestRegistry(t)
	m1 := room.NewMember("s1")
	m2 := room.NewMember("s2")
	r, _ := joinAndDrain(t, reg, "room1", m1)
	joinAndDrain(t, reg, "room1", m2)
	recvEventOfType(t, m1, wire.TypeUserJoined)

	r.CommitUndo("s1")

	recvEventOfType(t, m1, wire.TypeUndoRejected)
	assertNoEvent(t, m2)
}

func TestUndo_BroadcastsOperationAndRetractionNotice(t *testing.T) {
	reg := newTestRegistry(t)
	m1 := room.NewMember("s1")
	r, _ := joinAndDrain(t, reg, "room1", m1)

	r.CommitDraw("s1", validDraw)
	draw := decode[models.Operation](t, recvEventOfType(t, m1, wire.TypeOperationCommitted))

	r.CommitUndo("s1")

	undoOp := decode[models.Operation](t, recvEventOfType(t, m1, wire.TypeOperationCommitted))
	require.Equal(t, models.OpUndo, undoOp.Type)
	require.NotNil(t, undoOp.Undo)
	assert.Equal(t, draw.Id, undoOp.Undo.TargetOperationId)

	notice := decode[wire.UndoCommittedData](t, recvEventOfType(t, m1, wire.TypeUndoCommitted))
	assert.Equal(t, draw.Id, notice.TargetOperationId)
}

func TestClear_Broadcast(t *testing.T) {
	reg := newTestRegistry(t)
	m1 := room.NewMember("s1")
	r, _ := joinAndDrain(t, reg, "room1", m1)

	r.CommitClear("s1")

	op := decode[models.Operation](t, recvEventOfType(t, m1, wire.TypeOperationCommitted))
	assert.Equal(t, models.OpClear, op.Type)
	assert.Nil(t, op.Draw)
	assert.Nil(t, op.Undo)
}

func TestCursorAndLiveStroke_ForwardedToOthersOnly(t *testing.T) {
	reg := newTestRegistry(t)
	m1 := room.NewMember("s1")
	m2 := room.NewMember("s2")
	r, _ := joinAndDrain(t, reg, "room1", m1)
	joinAndDrain(t, reg, "room1", m2)
	recvEventOfType(t, m1, wire.TypeUserJoined)

	r.MoveCursor("s1", models.Point{X: 10, Y: 20})
	cursor := decode[wire.UserCursorData](t, recvEventOfType(t, m2, wire.TypeUserCursor))
	assert.Equal(t, "s1", cursor.UserId)
	assert.Equal(t, models.Point{X: 10, Y: 20}, cursor.Pos)

	r.StreamLive("s1", models.LiveStroke{Points: []models.Point{{X: 1, Y: 1}}, Color: "#ff0000", Size: 3})
	part := decode[wire.StrokePartData](t, recvEventOfType(t, m2, wire.TypeStrokePart))
	assert.Equal(t, "s1", part.UserId)
	assert.Equal(t, "#ff0000", part.Color)

	assertNoEvent(t, m1)
}

func TestSecondJoinerSnapshotMatchesObservedHistory(t *testing.T) {
	reg := newTestRegistry(t)
	m1 := room.NewMember("s1")
	r, _ := joinAndDrain(t, reg, "room1", m1)

	r.CommitDraw("s1", validDraw)
	r.CommitDraw("s1", validDraw)
	r.CommitUndo("s1")

	observed := []models.Operation{
		decode[models.Operation](t, recvEventOfType(t, m1, wire.TypeOperationCommitted)),
		decode[models.Operation](t, recvEventOfType(t, m1, wire.TypeOperationCommitted)),
		decode[models.Operation](t, recvEventOfType(t, m1, wire.TypeOperationCommitted)),
	}
	recvEventOfType(t, m1, wire.TypeUndoCommitted)

	m2 := room.NewMember("s2")
	_, snap := joinAndDrain(t, reg, "room1", m2)

	require.Len(t, snap.History, len(observed))
	for i, op := range observed {
		assert.Equal(t, op.Id, snap.History[i].Id)
		assert.Equal(t, op.Type, snap.History[i].Type)
	}
}

func TestLeave_NotifiesRemainingMembers(t *testing.T) {
	reg := newTestRegistry(t)
	m1 := room.NewMember("s1")
	m2 := room.NewMember("s2")
	r, _ := joinAndDrain(t, reg, "room1", m1)
	joinAndDrain(t, reg, "room1", m2)
	recvEventOfType(t, m1, wire.TypeUserJoined)

	r.Leave("s1")

	left := decode[wire.UserLeftData](t, recvEventOfType(t, m2, wire.TypeUserLeft))
	assert.Equal(t, "s1", left.UserId)

	assert.Eventually(t, func() bool { return r.MemberCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSlowMember_DroppedOnFullSendBuffer(t *testing.T) {
	reg := newTestRegistry(t)
	slow := room.NewMember("s1")
	r, _ := joinAndDrain(t, reg, "room1", slow)

	// The member stops draining; keep broadcasting until its buffer
	// overflows and the room drops it.
	for i := 0; i < 300; i++ {
		r.CommitDraw("s1", validDraw)
	}
	assert.Eventually(t, func() bool { return r.MemberCount() == 0 }, time.Second, 10*time.Millisecond)

	// The channel is closed behind the buffered frames.
	closed := false
	for i := 0; i < 400 && !closed; i++ {
		select {
		case _, ok := <-slow.Send:
			closed = !ok
		case <-time.After(time.Second):
			t.Fatal("send channel neither delivered nor closed")
		}
	}
	assert.True(t, closed)

	// The room keeps running: a fresh member joins and sees every commit,
	// including the ones broadcast after the drop.
	m2 := room.NewMember("s2")
	_, snap := joinAndDrain(t, reg, "room1", m2)
	assert.Len(t, snap.History, 300)
}

func TestHistorySurvivesEmptyRoom(t *testing.T) {
	reg := newTestRegistry(t)
	m1 := room.NewMember("s1")
	r, _ := joinAndDrain(t, reg, "room1", m1)

	r.CommitDraw("s1", validDraw)
	recvEventOfType(t, m1, wire.TypeOperationCommitted)
	r.Leave("s1")
	assert.Eventually(t, func() bool { return r.MemberCount() == 0 }, time.Second, 10*time.Millisecond)

	// Rejoining the same id before eviction recovers the full history.
	m2 := room.NewMember("s2")
	_, snap := joinAndDrain(t, reg, "room1", m2)
	require.Len(t, snap.History, 1)
	assert.Equal(t, models.OpDraw, snap.History[0].Type)
}
