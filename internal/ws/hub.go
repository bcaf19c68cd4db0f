package ws

import (
	"context"
	"encoding/json"
	"sync"

	"rps_arena/internal/domain"
	"rps_arena/internal/logger"
	"rps_arena/internal/service"
)

// MatchAPI is the part of the match service reachable over the socket.
type MatchAPI interface {
	Get(ctx context.Context, id int64, address string) (*service.MatchState, error)
	SubmitMove(ctx context.Context, id int64, address string, move domain.Move) (*service.MatchState, error)
}

// Projector turns a stored record into what clients may see.
type Projector func(m *domain.Match) (domain.MatchView, error)

// Hub fans match updates out to the sockets subscribed to each match.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int64]map[*Client]struct{}
	api     MatchAPI
	project Projector
}

func NewHub(api MatchAPI, project Projector) *Hub {
	return &Hub{
		subs:    make(map[int64]map[*Client]struct{}),
		api:     api,
		project: project,
	}
}

func (h *Hub) Subscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[c.MatchID]
	if !ok {
		set = make(map[*Client]struct{})
		h.subs[c.MatchID] = set
	}
	set[c] = struct{}{}
	logger.Debug("ws subscribed", "match_id", c.MatchID, "client", c.ID)
}

func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[c.MatchID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, c.MatchID)
		}
	}
}

// Subscribers reports how many sockets watch matchID.
func (h *Hub) Subscribers(matchID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[matchID])
}

// MatchUpdated pushes the masked view of m to its subscribers.
func (h *Hub) MatchUpdated(m *domain.Match) {
	view, err := h.project(m)
	if err != nil {
		logger.ForMatch(context.Background(), m.ID).Warn("ws projection failed", "error", err)
		view = m.View()
	}
	h.Broadcast(m.ID, Message{Type: MsgMatchUpdate, MatchID: m.ID, Payload: view})
}

// Broadcast queues msg for every subscriber of matchID. Slow clients drop the frame.
func (h *Hub) Broadcast(matchID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("ws marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[matchID] {
		select {
		case c.Send <- data:
		default:
			logger.Warn("ws send buffer full, dropping frame", "match_id", matchID, "client", c.ID)
		}
	}
}
