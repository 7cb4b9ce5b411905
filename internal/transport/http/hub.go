package http

import "sync"

// Envelope is the wire format for every outbound message.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub fans published aggregates out to every connection in a room. The core
// services only return post-state; dissemination is a transport concern and
// lives here.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[chan Envelope]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[chan Envelope]struct{})}
}

// Subscribe returns a channel receiving the room's broadcasts. The caller
// must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(roomID string) (<-chan Envelope, func()) {
	ch := make(chan Envelope, 16)

	h.mu.Lock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[chan Envelope]struct{})
		h.rooms[roomID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.rooms[roomID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.rooms, roomID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers the message to every subscriber in the room, dropping
// the oldest queued message for slow consumers rather than blocking.
func (h *Hub) Broadcast(roomID string, msg Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.rooms[roomID] {
		select {
		case ch <- msg:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- msg
		}
	}
}
