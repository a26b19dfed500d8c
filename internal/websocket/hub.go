package websocket

import (
	"encoding/json"
	"sync"
)

// maxStreamsPerUser caps concurrent balance streams for one user; extra
// upgrades are closed right away.
const maxStreamsPerUser = 5

// BalanceUpdate is pushed to every open connection of the account owner
// after a balance-changing transaction commits.
type BalanceUpdate struct {
	AccountID     string `json:"accountId"`
	Balance       int64  `json:"saldo"`
	TransactionID string `json:"transacaoId,omitempty"`
}

// Hub fans balance updates out to the streams of each user.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[*Client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{streams: make(map[string]map[*Client]struct{})}
}

// Register adds client under userID. It returns false once the hub is closed
// or the user already has maxStreamsPerUser streams.
func (h *Hub) Register(userID string, client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || len(h.streams[userID]) >= maxStreamsPerUser {
		return false
	}
	set, ok := h.streams[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.streams[userID] = set
	}
	set[client] = struct{}{}
	return true
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.streams[userID]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.streams, userID)
	}
}

// BroadcastBalance never blocks; a client whose buffer is full misses the
// update and catches up on its next balance read.
func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.streams[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

// Close drops every open stream and refuses new ones. http.Server.Shutdown
// does not wait for hijacked connections, so the server calls this itself.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var open []*Client
	for _, set := range h.streams {
		for client := range set {
			open = append(open, client)
		}
	}
	h.mu.Unlock()
	for _, client := range open {
		client.shutdown()
	}
}

// Connections returns the number of open streams for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[userID])
}
