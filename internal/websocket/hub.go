package websocket

import (
	"encoding/json"
	"sync"
)

// Update is pushed to a user's open connections when their escrow balance or
// payout position changes.
type Update struct {
	Type     string `json:"type"`
	GroupID  string `json:"group_id,omitempty"`
	Position int    `json:"position,omitempty"`
	Balance  string `json:"balance,omitempty"`
	Message  string `json:"message,omitempty"`
}

const (
	UpdateEscrowBalance   = "escrow_balance"
	UpdatePayoutPosition  = "payout_position"
	UpdateReserveCoverage = "reserve_coverage"
	UpdatePayout          = "payout"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) Broadcast(userID string, update Update) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
