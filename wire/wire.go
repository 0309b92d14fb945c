// Package wire defines the JSON event protocol spoken between sessions and
// the server. Every frame is an Envelope whose Data field is decoded by the
// payload struct matching Type.
package wire

import (
	"encoding/json"

	"github.com/mzharov/sketchroom/models"
)

type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client to server event types.
const (
	TypeJoinRoom    = "join_room"
	TypeDrawStroke  = "draw_stroke"
	TypeUndo        = "undo"
	TypeClearCanvas = "clear_canvas"
	TypeCursorMove  = "cursor_move"
	TypeLiveStroke  = "live_stroke"
)

// Server to client event types.
const (
	TypeRoomState          = "room_state"
	TypeOperationCommitted = "operation_committed"
	TypeUndoCommitted      = "undo_committed"
	TypeDrawRejected       = "draw_rejected"
	TypeUndoRejected       = "undo_rejected"
	TypeUserJoined         = "user_joined"
	TypeUserLeft           = "user_left"
	TypeUserCursor         = "user_cursor"
	TypeStrokePart         = "stroke_part"
)

type JoinRoomData struct {
	RoomId string `json:"roomId"`
}

type DrawStrokeData struct {
	Points []models.Point `json:"points"`
	Color  string         `json:"color"`
	Size   float64        `json:"size"`
	Tool   models.Tool    `json:"tool"`
}

type LiveStrokeData struct {
	Points []models.Point `json:"points"`
	Color  string         `json:"color"`
	Size   float64        `json:"size"`
}

type UndoCommittedData struct {
	TargetOperationId string `json:"targetOperationId"`
}

type RejectedData struct {
	Reason string `json:"reason,omitempty"`
}

type UserLeftData struct {
	UserId string `json:"userId"`
}

type UserCursorData struct {
	UserId string       `json:"userId"`
	Pos    models.Point `json:"pos"`
}

type StrokePartData struct {
	UserId string         `json:"userId"`
	Points []models.Point `json:"points"`
	Color  string         `json:"color"`
	Size   float64        `json:"size"`
}

// Encode wraps a payload in an Envelope and marshals the whole frame.
func Encode(eventType string, data any) ([]byte, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Data: dataBytes})
}
