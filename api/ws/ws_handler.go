package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"github.com/mzharov/sketchroom/models"
	"github.com/mzharov/sketchroom/room"
	"github.com/mzharov/sketchroom/wire"
)

type Handler struct {
	Registry *room.Registry

	messagesPerSecond int
	burst             int
}

func NewHandler(registry *room.Registry, messagesPerSecond int, burst int) *Handler {
	return &Handler{
		Registry:          registry,
		messagesPerSecond: messagesPerSecond,
		burst:             burst,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if requiredOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == requiredOrigin
		},
	}
}

// ServeWS upgrades the connection and starts the session pumps. Sessions
// are anonymous; the server assigns the id.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	sessionId := uuid.Must(uuid.NewV4()).String()
	client := NewClient(conn, sessionId, h.HandleWsMessage, h.messagesPerSecond, h.burst)

	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

func (h *Handler) HandleWsMessage(client *Client, messageBytes []byte) {
	var msg wire.Envelope
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Invalid JSON: %v", err)
		return
	}

	if msg.Type == wire.TypeJoinRoom {
		var joinMsg wire.JoinRoomData
		if err := json.Unmarshal(msg.Data, &joinMsg); err != nil {
			log.Printf("Invalid join data: %v", err)
			return
		}
		if joinMsg.RoomId == "" {
			joinMsg.RoomId = "default-room"
		}
		if client.room != nil {
			client.room.Leave(client.SessionId())
		}
		// A dropped member's send channel is closed; subscribe with a fresh
		// one on every join.
		client.swapMember(room.NewMember(client.SessionId()))
		client.room = h.Registry.Join(joinMsg.RoomId, client.member)
		return
	}

	// Every other event is room-scoped.
	if client.room == nil {
		log.Printf("Session %s sent %s before joining a room", client.SessionId(), msg.Type)
		return
	}

	switch msg.Type {
	case wire.TypeDrawStroke:
		var drawMsg wire.DrawStrokeData
		if err := json.Unmarshal(msg.Data, &drawMsg); err != nil {
			log.Printf("Invalid draw data: %v", err)
			return
		}
		client.room.CommitDraw(client.SessionId(), models.DrawPayload{
			Points: drawMsg.Points,
			Color:  drawMsg.Color,
			Size:   drawMsg.Size,
			Tool:   drawMsg.Tool,
		})

	case wire.TypeUndo:
		client.room.CommitUndo(client.SessionId())

	case wire.TypeClearCanvas:
		client.room.CommitClear(client.SessionId())

	case wire.TypeCursorMove:
		var pos models.Point
		if err := json.Unmarshal(msg.Data, &pos); err != nil {
			log.Printf("Invalid cursor data: %v", err)
			return
		}
		client.room.MoveCursor(client.SessionId(), pos)

	case wire.TypeLiveStroke:
		var liveMsg wire.LiveStrokeData
		if err := json.Unmarshal(msg.Data, &liveMsg); err != nil {
			log.Printf("Invalid live stroke data: %v", err)
			return
		}
		client.room.StreamLive(client.SessionId(), models.LiveStroke{
			Points: liveMsg.Points,
			Color:  liveMsg.Color,
			Size:   liveMsg.Size,
		})

	default:
		log.Printf("Unknown message type: %v", msg.Type)
	}
}
