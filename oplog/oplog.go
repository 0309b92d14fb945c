package oplog

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/mzharov/sketchroom/models"
)

// Log is the authoritative append-only operation history of a single room.
// Entries are never removed or mutated after append; undo is expressed as a
// new UNDO entry plus an index update, so replay is a deterministic function
// of (history, undo index). Log is not safe for concurrent use; the owning
// room serializes all access.
type Log struct {
	ops []models.Operation

	// undoIndex maps a DRAW operation id to the UNDO operation ids that
	// target it. A draw is considered undone iff its entry is non-empty;
	// only presence matters, there is no redo.
	undoIndex map[string]map[string]struct{}

	lastTimestamp int64
}

func New() *Log {
	return &Log{
		undoIndex: make(map[string]map[string]struct{}),
	}
}

func newOperationId() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does; fall back to V4
		// rather than poisoning the log.
		return uuid.Must(uuid.NewV4()).String()
	}
	return id.String()
}

// timestamp returns wall-clock ms clamped to be non-decreasing within the
// log, so timestamp order never disagrees with log order.
func (l *Log) timestamp() int64 {
	now := time.Now().UnixMilli()
	if now < l.lastTimestamp {
		now = l.lastTimestamp
	}
	l.lastTimestamp = now
	return now
}

func (l *Log) AppendDraw(authorId string, points []models.Point, color string, size float64, tool models.Tool) models.Operation {
	op := models.Operation{
		Id:        newOperationId(),
		Type:      models.OpDraw,
		AuthorId:  authorId,
		Timestamp: l.timestamp(),
		Draw: &models.DrawPayload{
			Points: points,
			Color:  color,
			Size:   size,
			Tool:   tool,
		},
	}
	l.ops = append(l.ops, op)
	return op
}

// AppendUndo retracts the most recent DRAW that is not already undone,
// scanning the log from the newest entry backward. The undo stack is global
// to the room, not per author. When no eligible target exists the log is
// left untouched and ok is false; the caller must not broadcast anything.
func (l *Log) AppendUndo(authorId string) (models.Operation, bool) {
	targetId := ""
	for i := len(l.ops) - 1; i >= 0; i-- {
		op := l.ops[i]
		if op.Type != models.OpDraw {
			continue
		}
		if !l.IsUndone(op.Id) {
			targetId = op.Id
			break
		}
	}
	if targetId == "" {
		return models.Operation{}, false
	}

	op := models.Operation{
		Id:        newOperationId(),
		Type:      models.OpUndo,
		AuthorId:  authorId,
		Timestamp: l.timestamp(),
		Undo:      &models.UndoPayload{TargetOperationId: targetId},
	}
	l.ops = append(l.ops, op)

	if l.undoIndex[targetId] == nil {
		l.undoIndex[targetId] = make(map[string]struct{})
	}
	l.undoIndex[targetId][op.Id] = struct{}{}
	return op, true
}

// AppendClear records a full-surface reset checkpoint. Prior entries stay in
// the log; replay blanks the surface at this marker and continues on top.
func (l *Log) AppendClear(authorId string) models.Operation {
	op := models.Operation{
		Id:        newOperationId(),
		Type:      models.OpClear,
		AuthorId:  authorId,
		Timestamp: l.timestamp(),
	}
	l.ops = append(l.ops, op)
	return op
}

func (l *Log) IsUndone(opId string) bool {
	return len(l.undoIndex[opId]) > 0
}

// History returns the full log, oldest first. The returned slice is a copy;
// callers may hold it across later appends.
func (l *Log) History() []models.Operation {
	out := make([]models.Operation, len(l.ops))
	copy(out, l.ops)
	return out
}

func (l *Log) Len() int {
	return len(l.ops)
}

// UndoneIds returns the set of DRAW ids currently considered undone.
func (l *Log) UndoneIds() map[string]struct{} {
	out := make(map[string]struct{}, len(l.undoIndex))
	for id, undos := range l.undoIndex {
		if len(undos) > 0 {
			out[id] = struct{}{}
		}
	}
	return out
}
