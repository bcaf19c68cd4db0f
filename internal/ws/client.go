package ws

import (
	"context"
	"encoding/json"
	"time"

	"rps_arena/internal/game"
	"rps_arena/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	maxMessageSize = 4096
	sendBuffer     = 64
)

type Client struct {
	ID      string
	Address string
	MatchID int64
	Conn    *websocket.Conn
	Send    chan []byte

	hub  *Hub
	done chan struct{}
}

func NewClient(address string, matchID int64, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:      uuid.NewString(),
		Address: address,
		MatchID: matchID,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		hub:     hub,
		done:    make(chan struct{}),
	}
}

// Run subscribes the client, sends the current state and blocks until the socket closes.
func (c *Client) Run() {
	go c.writePump()

	c.queue(Message{Type: MsgReady, MatchID: c.MatchID})
	c.hub.Subscribe(c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	st, err := c.hub.api.Get(ctx, c.MatchID, c.Address)
	cancel()
	if err != nil {
		c.queue(Message{Type: MsgError, MatchID: c.MatchID, Payload: ErrorPayload{Message: err.Error()}})
	} else {
		c.queue(Message{Type: MsgState, MatchID: c.MatchID, Payload: st})
	}

	c.readPump()
}

func (c *Client) queue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	case <-c.done:
	case <-time.After(writeWait):
		logger.Warn("ws queue timeout", "client", c.ID, "type", msg.Type)
	}
}

func (c *Client) readPump() {
	defer c.disconnect()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "client", c.ID, "error", err)
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.queue(Message{Type: MsgError, Payload: ErrorPayload{Message: "malformed message"}})
		return
	}

	switch msg.Type {
	case MsgPing:
		c.queue(Message{Type: MsgPong})
	case MsgMove:
		var p MovePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.queue(Message{Type: MsgError, Payload: ErrorPayload{Message: "malformed move"}})
			return
		}
		move, err := game.ParseMove(p.Move)
		if err != nil {
			c.queue(Message{Type: MsgError, Payload: ErrorPayload{Message: err.Error()}})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		st, err := c.hub.api.SubmitMove(ctx, c.MatchID, c.Address, move)
		if err != nil {
			c.queue(Message{Type: MsgError, MatchID: c.MatchID, Payload: ErrorPayload{Message: err.Error()}})
			return
		}
		c.queue(Message{Type: MsgState, MatchID: c.MatchID, Payload: st})
	default:
		c.queue(Message{Type: MsgError, Payload: ErrorPayload{Message: "unknown message type"}})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "client", c.ID, "error", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) disconnect() {
	c.hub.Unsubscribe(c)
	close(c.done)
	_ = c.Conn.Close()
}
