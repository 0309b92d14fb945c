package models

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Tool string

const (
	ToolBrush     Tool = "brush"
	ToolEraser    Tool = "eraser"
	ToolRectangle Tool = "rectangle"
)

func (t Tool) Valid() bool {
	switch t {
	case ToolBrush, ToolEraser, ToolRectangle:
		return true
	}
	return false
}

type OpType string

const (
	OpDraw  OpType = "DRAW"
	OpUndo  OpType = "UNDO"
	OpClear OpType = "CLEAR"
)

// Operation is one durable entry in a room's history. Exactly one payload
// pointer is set, matching Type; CLEAR carries no payload at all.
// Operations are created only by the server's log and never mutated after.
type Operation struct {
	Id        string       `json:"id"`
	Type      OpType       `json:"type"`
	AuthorId  string       `json:"authorId"`
	Timestamp int64        `json:"timestamp"`
	Draw      *DrawPayload `json:"draw,omitempty"`
	Undo      *UndoPayload `json:"undo,omitempty"`
}

type DrawPayload struct {
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Size   float64 `json:"size"`
	Tool   Tool    `json:"tool"`
}

type UndoPayload struct {
	TargetOperationId string `json:"targetOperationId"`
}

type User struct {
	Id     string `json:"id"`
	Color  string `json:"color"`
	Cursor *Point `json:"cursor,omitempty"`
}

// Snapshot is delivered once to a session when it joins a room.
type Snapshot struct {
	Users   []User      `json:"users"`
	History []Operation `json:"history"`
	MyId    string      `json:"myId"`
	MyColor string      `json:"myColor"`
}

// LiveStroke is the ephemeral in-flight stroke buffer for one author.
// It is never logged and never survives the author's commit or disconnect.
type LiveStroke struct {
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Size   float64 `json:"size"`
}
