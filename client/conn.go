package client

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mzharov/sketchroom/models"
	"github.com/mzharov/sketchroom/wire"
)

type EventHandler func(data json.RawMessage)

// Conn is the client side of the room event protocol: a websocket plus a
// per-event handler registry. Reads happen on the Listen goroutine; writes
// are serialized by a mutex so the pen, the flusher and UI actions can emit
// concurrently.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	handlerMu sync.Mutex
	handlers  map[string][]EventHandler
}

func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{
		ws:       ws,
		handlers: make(map[string][]EventHandler),
	}, nil
}

func (c *Conn) On(eventType string, handler EventHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// Listen reads frames until the connection fails or is closed, dispatching
// each to the registered handlers in registration order.
func (c *Conn) Listen() error {
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}

		var msg wire.Envelope
		if err := json.Unmarshal(frame, &msg); err != nil {
			log.Printf("Invalid server frame: %v", err)
			continue
		}

		c.handlerMu.Lock()
		handlers := append([]EventHandler(nil), c.handlers[msg.Type]...)
		c.handlerMu.Unlock()

		for _, h := range handlers {
			h(msg.Data)
		}
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) Emit(eventType string, data any) error {
	frame, err := wire.Encode(eventType, data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Conn) JoinRoom(roomId string) error {
	return c.Emit(wire.TypeJoinRoom, wire.JoinRoomData{RoomId: roomId})
}

func (c *Conn) EmitCursor(pos models.Point) error {
	return c.Emit(wire.TypeCursorMove, pos)
}

func (c *Conn) EmitLiveStroke(points []models.Point, color string, size float64) error {
	return c.Emit(wire.TypeLiveStroke, wire.LiveStrokeData{Points: points, Color: color, Size: size})
}

func (c *Conn) EmitDraw(points []models.Point, color string, size float64, tool models.Tool) error {
	return c.Emit(wire.TypeDrawStroke, wire.DrawStrokeData{Points: points, Color: color, Size: size, Tool: tool})
}

func (c *Conn) EmitUndo() error {
	return c.Emit(wire.TypeUndo, struct{}{})
}

func (c *Conn) EmitClear() error {
	return c.Emit(wire.TypeClearCanvas, struct{}{})
}

// Bind subscribes a reconciler to every server event the connection can
// receive.
func (r *Reconciler) Bind(c *Conn) {
	c.On(wire.TypeRoomState, func(data json.RawMessage) {
		var s models.Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			log.Printf("Invalid room state: %v", err)
			return
		}
		r.ApplySnapshot(s)
	})

	c.On(wire.TypeOperationCommitted, func(data json.RawMessage) {
		var op models.Operation
		if err := json.Unmarshal(data, &op); err != nil {
			log.Printf("Invalid committed operation: %v", err)
			return
		}
		r.ApplyCommitted(op)
	})

	c.On(wire.TypeUndoCommitted, func(data json.RawMessage) {
		var undo wire.UndoCommittedData
		if err := json.Unmarshal(data, &undo); err != nil {
			return
		}
		r.ApplyUndoCommitted(undo.TargetOperationId)
	})

	c.On(wire.TypeUserJoined, func(data json.RawMessage) {
		var u models.User
		if err := json.Unmarshal(data, &u); err != nil {
			return
		}
		r.ApplyUserJoined(u)
	})

	c.On(wire.TypeUserLeft, func(data json.RawMessage) {
		var left wire.UserLeftData
		if err := json.Unmarshal(data, &left); err != nil {
			return
		}
		r.ApplyUserLeft(left.UserId)
	})

	c.On(wire.TypeUserCursor, func(data json.RawMessage) {
		var cursor wire.UserCursorData
		if err := json.Unmarshal(data, &cursor); err != nil {
			return
		}
		r.ApplyCursor(cursor.UserId, cursor.Pos)
	})

	c.On(wire.TypeStrokePart, func(data json.RawMessage) {
		var part wire.StrokePartData
		if err := json.Unmarshal(data, &part); err != nil {
			return
		}
		r.ApplyStrokePart(part.UserId, part.Points, part.Color, part.Size)
	})

	c.On(wire.TypeDrawRejected, func(data json.RawMessage) {
		var rejected wire.RejectedData
		_ = json.Unmarshal(data, &rejected)
		log.Printf("Draw rejected by server: %s", rejected.Reason)
	})

	c.On(wire.TypeUndoRejected, func(data json.RawMessage) {
		log.Printf("Undo rejected by server: nothing to undo")
	})
}
