package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mzharov/sketchroom/client"
	"github.com/mzharov/sketchroom/models"
	"github.com/mzharov/sketchroom/wire"
)

// echoServer upgrades each connection and sends every received frame back
// unchanged.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, frame); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func dialConn(t *testing.T, server *httptest.Server) *client.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, err := client.Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConn_EmitDispatchesToRegisteredHandler(t *testing.T) {
	conn := dialConn(t, echoServer(t))

	received := make(chan wire.DrawStrokeData, 1)
	conn.On(wire.TypeDrawStroke, func(data json.RawMessage) {
		var d wire.DrawStrokeData
		require.NoError(t, json.Unmarshal(data, &d))
		received <- d
	})
	go conn.Listen()

	require.NoError(t, conn.EmitDraw(
		[]models.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, "#ff0000", 5, models.ToolBrush))

	select {
	case d := <-received:
		assert.Equal(t, []models.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, d.Points)
		assert.Equal(t, "#ff0000", d.Color)
		assert.Equal(t, models.ToolBrush, d.Tool)
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestConn_UnregisteredEventTypesAreIgnored(t *testing.T) {
	conn := dialConn(t, echoServer(t))

	received := make(chan struct{}, 2)
	conn.On(wire.TypeClearCanvas, func(json.RawMessage) { received <- struct{}{} })
	go conn.Listen()

	require.NoError(t, conn.EmitUndo())
	require.NoError(t, conn.EmitClear())

	// The clear frame arrives after the undo frame; seeing it proves the
	// undo frame was dispatched to nobody without disrupting the loop.
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}
	assert.Empty(t, received)
}

func TestConn_BindRoutesServerEventsIntoReconciler(t *testing.T) {
	conn := dialConn(t, echoServer(t))
	rec := client.NewReconciler(testWidth, testHeight)
	rec.Bind(conn)
	go conn.Listen()

	// The echo server reflects whatever we emit, so a hand-built room_state
	// frame stands in for the real server here.
	require.NoError(t, conn.Emit(wire.TypeRoomState, models.Snapshot{
		MyId:    "me",
		MyColor: "#FF5733",
		Users:   []models.User{{Id: "me", Color: "#FF5733"}},
	}))

	assert.Eventually(t, func() bool { return rec.MyId() == "me" },
		time.Second, 10*time.Millisecond)
}
