package room

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/mzharov/sketchroom/models"
	"github.com/mzharov/sketchroom/oplog"
	"github.com/mzharov/sketchroom/wire"
)

// palette is the fixed set of colors assigned to users by join order.
var palette = []string{"#FF5733", "#33FF57", "#3357FF", "#F333FF", "#33FFF5", "#F5FF33"}

const sendBuffer = 256

// Member is one subscribed session. The room delivers every outbound frame
// for the session on Send; the transport layer drains it.
type Member struct {
	SessionId string
	Send      chan []byte
}

func NewMember(sessionId string) *Member {
	return &Member{
		SessionId: sessionId,
		Send:      make(chan []byte, sendBuffer),
	}
}

// Commands processed by the room's run loop. Each command is handled
// atomically: log mutation and broadcast happen before the next command is
// read, which keeps undo resolution race-free without locks.
type cmd interface{ isCmd() }

type joinCmd struct{ member *Member }
type leaveCmd struct{ sessionId string }
type drawCmd struct {
	sessionId string
	payload   models.DrawPayload
}
type undoCmd struct{ sessionId string }
type clearCmd struct{ sessionId string }
type cursorCmd struct {
	sessionId string
	pos       models.Point
}
type liveCmd struct {
	sessionId string
	stroke    models.LiveStroke
}

func (joinCmd) isCmd()   {}
func (leaveCmd) isCmd()  {}
func (drawCmd) isCmd()   {}
func (undoCmd) isCmd()   {}
func (clearCmd) isCmd()  {}
func (cursorCmd) isCmd() {}
func (liveCmd) isCmd()   {}

// Room owns the authoritative state of one canvas: the operation log, the
// user table, the subscriber list and the ephemeral live state. All of it is
// mutated only by the run loop goroutine; rooms share nothing with each
// other and may run fully concurrently.
type Room struct {
	Id string

	log     *oplog.Log
	users   map[string]*models.User
	members map[string]*Member
	live    *liveState

	cmdCh  chan cmd
	ctx    context.Context
	cancel context.CancelFunc

	// Read by the registry janitor without entering the run loop.
	memberCount  atomic.Int64
	emptySince   atomic.Int64 // unix nano of last transition to empty, 0 while occupied
	pendingJoins atomic.Int64
}

func newRoom(parent context.Context, id string) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		Id:      id,
		log:     oplog.New(),
		users:   make(map[string]*models.User),
		members: make(map[string]*Member),
		live:    newLiveState(),
		cmdCh:   make(chan cmd, 1024),
		ctx:     ctx,
		cancel:  cancel,
	}
	r.emptySince.Store(time.Now().UnixNano())
	return r
}

func (r *Room) Run() {
	for {
		select {
		case c := <-r.cmdCh:
			r.handle(c)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Room) enqueue(c cmd) {
	select {
	case r.cmdCh <- c:
	case <-r.ctx.Done():
		// Room evicted; the session will get a fresh room on rejoin.
	}
}

func (r *Room) Leave(sessionId string) { r.enqueue(leaveCmd{sessionId: sessionId}) }

func (r *Room) CommitDraw(sessionId string, payload models.DrawPayload) {
	r.enqueue(drawCmd{sessionId: sessionId, payload: payload})
}

func (r *Room) CommitUndo(sessionId string) { r.enqueue(undoCmd{sessionId: sessionId}) }

func (r *Room) CommitClear(sessionId string) { r.enqueue(clearCmd{sessionId: sessionId}) }

func (r *Room) MoveCursor(sessionId string, pos models.Point) {
	r.enqueue(cursorCmd{sessionId: sessionId, pos: pos})
}

func (r *Room) StreamLive(sessionId string, stroke models.LiveStroke) {
	r.enqueue(liveCmd{sessionId: sessionId, stroke: stroke})
}

func (r *Room) MemberCount() int {
	return int(r.memberCount.Load())
}

func (r *Room) handle(c cmd) {
	switch c := c.(type) {
	case joinCmd:
		r.handleJoin(c.member)
	case leaveCmd:
		r.handleLeave(c.sessionId)
	case drawCmd:
		r.handleDraw(c.sessionId, c.payload)
	case undoCmd:
		r.handleUndo(c.sessionId)
	case clearCmd:
		r.handleClear(c.sessionId)
	case cursorCmd:
		r.live.setCursor(c.sessionId, c.pos)
		r.broadcastExcept(c.sessionId, wire.TypeUserCursor, wire.UserCursorData{UserId: c.sessionId, Pos: c.pos})
	case liveCmd:
		r.live.appendStroke(c.sessionId, c.stroke.Points, c.stroke.Color, c.stroke.Size)
		r.broadcastExcept(c.sessionId, wire.TypeStrokePart, wire.StrokePartData{
			UserId: c.sessionId,
			Points: c.stroke.Points,
			Color:  c.stroke.Color,
			Size:   c.stroke.Size,
		})
	}
}

func (r *Room) handleJoin(m *Member) {
	r.pendingJoins.Add(-1)

	user := &models.User{
		Id:    m.SessionId,
		Color: palette[len(r.users)%len(palette)],
	}
	r.users[m.SessionId] = user
	r.members[m.SessionId] = m
	r.memberCount.Store(int64(len(r.members)))
	r.emptySince.Store(0)

	snapshot := models.Snapshot{
		Users:   r.userList(),
		History: r.log.History(),
		MyId:    m.SessionId,
		MyColor: user.Color,
	}
	r.deliver(m, wire.TypeRoomState, snapshot)
	r.broadcastExcept(m.SessionId, wire.TypeUserJoined, user)
}

func (r *Room) handleLeave(sessionId string) {
	if _, ok := r.members[sessionId]; !ok {
		return
	}
	delete(r.members, sessionId)
	delete(r.users, sessionId)
	r.live.clearSession(sessionId)
	r.memberCount.Store(int64(len(r.members)))
	if len(r.members) == 0 {
		r.emptySince.Store(time.Now().UnixNano())
	}
	r.broadcast(wire.TypeUserLeft, wire.UserLeftData{UserId: sessionId})
}

func (r *Room) handleDraw(sessionId string, payload models.DrawPayload) {
	if err := ValidateDraw(payload); err != nil {
		r.deliverTo(sessionId, wire.TypeDrawRejected, wire.RejectedData{Reason: err.Error()})
		return
	}
	op := r.log.AppendDraw(sessionId, payload.Points, payload.Color, payload.Size, payload.Tool)
	// The in-flight preview buffer is superseded by the committed stroke.
	r.live.clearSession(sessionId)
	r.broadcast(wire.TypeOperationCommitted, op)
}

func (r *Room) handleUndo(sessionId string) {
	op, ok := r.log.AppendUndo(sessionId)
	if !ok {
		// No surviving draw to retract. Only the requester hears about it.
		r.deliverTo(sessionId, wire.TypeUndoRejected, wire.RejectedData{})
		return
	}
	r.broadcast(wire.TypeOperationCommitted, op)
	r.broadcast(wire.TypeUndoCommitted, wire.UndoCommittedData{TargetOperationId: op.Undo.TargetOperationId})
}

func (r *Room) handleClear(sessionId string) {
	op := r.log.AppendClear(sessionId)
	r.broadcast(wire.TypeOperationCommitted, op)
}

func (r *Room) userList() []models.User {
	users := make([]models.User, 0, len(r.users))
	for id, u := range r.users {
		out := *u
		if pos, ok := r.live.cursors[id]; ok {
			p := pos
			out.Cursor = &p
		}
		users = append(users, out)
	}
	return users
}

func (r *Room) broadcast(eventType string, data any) {
	frame, err := wire.Encode(eventType, data)
	if err != nil {
		log.Printf("Room %s: failed to encode %s: %v", r.Id, eventType, err)
		return
	}
	for _, m := range r.members {
		r.send(m, frame)
	}
}

func (r *Room) broadcastExcept(sessionId string, eventType string, data any) {
	frame, err := wire.Encode(eventType, data)
	if err != nil {
		log.Printf("Room %s: failed to encode %s: %v", r.Id, eventType, err)
		return
	}
	for id, m := range r.members {
		if id == sessionId {
			continue
		}
		r.send(m, frame)
	}
}

func (r *Room) deliver(m *Member, eventType string, data any) {
	frame, err := wire.Encode(eventType, data)
	if err != nil {
		log.Printf("Room %s: failed to encode %s: %v", r.Id, eventType, err)
		return
	}
	r.send(m, frame)
}

func (r *Room) deliverTo(sessionId string, eventType string, data any) {
	if m, ok := r.members[sessionId]; ok {
		r.deliver(m, eventType, data)
	}
}

// send enqueues a frame for one member. A member whose send buffer is full
// is dropped from the room and its channel closed; a stalled transport must
// not stall the room. A dropped member must never be registered again — a
// rejoin subscribes with a fresh Member.
func (r *Room) send(m *Member, frame []byte) {
	select {
	case m.Send <- frame:
	default:
		log.Printf("Room %s: member %s send buffer full, dropping member", r.Id, m.SessionId)
		r.handleLeave(m.SessionId)
		close(m.Send)
	}
}
