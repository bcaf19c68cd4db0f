package ws

import "encoding/json"

const (
	// client -> server
	MsgMove = "move"
	MsgPing = "ping"

	// server -> client
	MsgReady       = "ready"
	MsgState       = "state"
	MsgMatchUpdate = "match_update"
	MsgPong        = "pong"
	MsgError       = "error"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    string      `json:"type"`
	MatchID int64       `json:"match_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// inbound is a client frame before its payload is interpreted.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type MovePayload struct {
	Move string `json:"move"` // rock | paper | scissors
}

type ErrorPayload struct {
	Message string `json:"message"`
}
