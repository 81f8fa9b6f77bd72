// internal/handlers/hub.go
package handlers

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/shadow-signal/internal/models"
)

// Client is one connected participant. Its ID is also its player ID.
type Client struct {
	ID      string
	OutChan chan []byte
}

// NewClient returns a client with a buffered outbound queue.
func NewClient(id string) *Client {
	return &Client{ID: id, OutChan: make(chan []byte, 32)}
}

// send queues data without blocking. A full queue drops the message.
func (c *Client) send(data []byte) bool {
	select {
	case c.OutChan <- data:
		return true
	default:
		return false
	}
}

// Hub tracks which clients are subscribed to which room and fans events out to them.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	log    logrus.FieldLogger
	redact bool
}

// NewHub returns an empty hub. When redact is set every subscriber gets its own view of the room.
func NewHub(logger logrus.FieldLogger, redact bool) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		log:    logger,
		redact: redact,
	}
}

func (h *Hub) Subscribe(code string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[code]
	if !ok {
		subs = make(map[*Client]struct{})
		h.rooms[code] = subs
	}
	subs[c] = struct{}{}
}

// UnsubscribeAll removes c from every room it joined.
func (h *Hub) UnsubscribeAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for code, subs := range h.rooms {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, code)
		}
	}
}

// Subscribers returns the number of clients subscribed to code.
func (h *Hub) Subscribers(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// View returns room as c should see it.
func (h *Hub) View(room *models.Room, playerID string) *models.Room {
	if room == nil || !h.redact {
		return room
	}
	return room.ViewFor(playerID)
}

// Broadcast sends ev to every subscriber of ev.Code.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	subs := make([]*Client, 0, len(h.rooms[ev.Code]))
	for c := range h.rooms[ev.Code] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	var shared []byte
	if !h.redact || ev.Room == nil {
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.WithError(err).Warn("failed to marshal event")
			return
		}
		shared = data
	}
	room := ev.Room
	for _, c := range subs {
		data := shared
		if data == nil {
			ev.Room = room.ViewFor(c.ID)
			var err error
			if data, err = json.Marshal(ev); err != nil {
				h.log.WithError(err).Warn("failed to marshal event")
				continue
			}
		}
		if !c.send(data) {
			h.log.WithFields(logrus.Fields{"room": ev.Code, "client": c.ID, "event": ev.Type}).Warn("client queue full, dropping event")
		}
	}
}
