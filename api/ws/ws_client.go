package ws

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mzharov/sketchroom/room"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024 * 64
)

type MessageHandler func(client *Client, messageBytes []byte)

// Client is the middleman between one websocket connection and the room it
// has joined. The session id is server-assigned for the connection lifetime;
// a reconnect is a brand-new session. Every join subscribes with a fresh
// member: a member dropped by a room has a closed send channel and must
// never be registered again.
type Client struct {
	conn      *websocket.Conn
	sessionId string
	handler   MessageHandler
	limiter   *rate.Limiter

	// Current subscription, owned by the read pump goroutine; each fresh
	// member is handed to the write pump through memberCh.
	member   *room.Member
	memberCh chan *room.Member

	// Set by the message handler on join; read only from the read pump
	// goroutine where the handler runs.
	room *room.Room
}

func NewClient(conn *websocket.Conn, sessionId string, handler MessageHandler, messagesPerSecond int, burst int) *Client {
	return &Client{
		conn:      conn,
		sessionId: sessionId,
		handler:   handler,
		limiter:   rate.NewLimiter(rate.Limit(messagesPerSecond), burst),
		memberCh:  make(chan *room.Member, 1),
	}
}

func (c *Client) SessionId() string {
	return c.sessionId
}

// swapMember installs the subscription for a newly joined room and hands it
// to the write pump, discarding a stale member the pump never picked up.
func (c *Client) swapMember(m *room.Member) {
	c.member = m
	for {
		select {
		case c.memberCh <- m:
			return
		case <-c.memberCh:
		}
	}
}

func (c *Client) ReadPump() {
	defer func() {
		if c.room != nil {
			c.room.Leave(c.sessionId)
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS close error: %v", err)
			}
			break
		}

		if !c.limiter.Allow() {
			log.Printf("Closing connection for session %s: message rate limit exceeded", c.sessionId)
			break
		}

		c.handler(c, messageBytes)
	}
}

func (c *Client) WritePump(shutdownCtx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	// Nil until the first join; a receive from a nil channel blocks, so the
	// select simply ignores that case until a member arrives.
	var send chan []byte
	for {
		select {
		case m := <-c.memberCh:
			send = m.Send

		case message, ok := <-send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The room dropped this member for lagging.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WS send error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-shutdownCtx.Done():
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"),
			)
			return
		}
	}
}
