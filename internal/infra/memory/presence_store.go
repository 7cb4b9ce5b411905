package memory

import (
	"sync"

	"gameroom-service/internal/app"
)

// PresenceStore is an in-memory implementation of app.PresenceRepository.
type PresenceStore struct {
	mu    sync.RWMutex
	rooms map[string]*app.PresenceRoom
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{
		rooms: make(map[string]*app.PresenceRoom),
	}
}

func (s *PresenceStore) GetOrCreate(roomID string) *app.PresenceRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		return room
	}
	room := app.NewPresenceRoom()
	s.rooms[roomID] = room
	return room
}

func (s *PresenceStore) Get(roomID string) (*app.PresenceRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *PresenceStore) DeleteIfEmpty(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if room.IsEmpty() {
		delete(s.rooms, roomID)
	}
}
