package redis

import (
	"context"
	"sync"
	"time"

	"gameroom-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// PresenceStore is a Redis-aware implementation of app.PresenceRepository.
// Notes:
//   - It still keeps a local in-memory map of presence rooms to reuse the
//     in-process handle logic; presence is single-instance authority.
//   - Redis is used to mark room liveness (and could be extended to route
//     cross-instance pub/sub).
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.PresenceRoom
}

func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	return &PresenceStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.PresenceRoom),
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(roomID), "1", s.ttl).Err()
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
		_ = s.client.Del(context.Background(), s.key(roomID)).Err()
	}
}

func (s *PresenceStore) key(roomID string) string {
	return "room:presence:" + roomID
}
