// Package sse streams session status changes to connected clients.
package sse

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealbridge/orchestrator/internal/domain/session"
)

// Event is one session snapshot pushed over a stream.
type Event struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	SealHash  string    `json:"seal_hash,omitempty"`
	MintTxRef *string   `json:"mint_tx_ref,omitempty"`
	LastError *string   `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Client is one connected stream. A zero SessionID subscribes to every
// session.
type Client struct {
	ID        string
	SessionID uuid.UUID
	Events    chan *Event

	closeOnce sync.Once
}

func NewClient(id string, sessionID uuid.UUID) *Client {
	return &Client{ID: id, SessionID: sessionID, Events: make(chan *Event, 16)}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Events) })
}

// Hub fans session updates out to registered clients. A slow client drops
// events rather than blocking the pipeline.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.Close()
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NotifySessionUpdate implements the session service's Notifier.
func (h *Hub) NotifySessionUpdate(s *session.SealSession) {
	ev := &Event{
		SessionID: s.ID.String(),
		Status:    string(s.Status),
		SealHash:  s.SealHash,
		MintTxRef: s.MintTxRef,
		LastError: s.LastError,
		UpdatedAt: s.UpdatedAt,
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.SessionID != uuid.Nil && c.SessionID != s.ID {
			continue
		}
		trySend(c, ev)
	}
}

// Stop disconnects every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

func trySend(c *Client, ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
