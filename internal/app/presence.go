package app

import (
	"sort"
	"sync"

	"gameroom-service/internal/domain"
)

// PresenceRepository abstracts how per-room presence handles are stored
// (in-memory, Redis-marked, etc).
type PresenceRepository interface {
	GetOrCreate(roomID string) *PresenceRoom
	Get(roomID string) (*PresenceRoom, bool)
	DeleteIfEmpty(roomID string)
}

// PresenceService tracks who is currently connected to each room. The state
// is ephemeral: nothing here is persisted and none of it survives a restart.
type PresenceService struct {
	rooms PresenceRepository
}

func NewPresenceService(rooms PresenceRepository) *PresenceService {
	return &PresenceService{rooms: rooms}
}

// Join inserts the participant, replacing any prior entry with the same id,
// and returns the name-ordered participant list.
func (s *PresenceService) Join(roomID string, participant domain.Participant) []domain.Participant {
	return s.rooms.GetOrCreate(roomID).join(participant)
}

// Leave removes the participant by id. A room with no presence state yields
// the empty list, never an error.
func (s *PresenceService) Leave(roomID string, participant domain.Participant) []domain.Participant {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return []domain.Participant{}
	}
	users := room.leave(participant.UserID)
	if room.IsEmpty() {
		s.rooms.DeleteIfEmpty(roomID)
	}
	return users
}

// Participants returns the current name-ordered list for the room.
func (s *PresenceService) Participants(roomID string) []domain.Participant {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return []domain.Participant{}
	}
	return room.participants()
}

// Start flips the room's live flag to started. Idempotent.
func (s *PresenceService) Start(roomID string) domain.LiveStatus {
	return s.rooms.GetOrCreate(roomID).start()
}

// LiveStatus returns the room's live flag; rooms without state are waiting.
func (s *PresenceService) LiveStatus(roomID string) domain.LiveStatus {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.LiveWaiting
	}
	return room.liveStatus()
}

// PresenceRoom holds the connected participants of one room behind its own
// lock so rooms never contend with each other.
type PresenceRoom struct {
	mu     sync.RWMutex
	users  map[string]domain.Participant
	status domain.LiveStatus
}

// NewPresenceRoom is exported for repository implementations.
func NewPresenceRoom() *PresenceRoom {
	return &PresenceRoom{users: make(map[string]domain.Participant), status: domain.LiveWaiting}
}

func (r *PresenceRoom) join(participant domain.Participant) []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[participant.UserID] = participant
	return r.listLocked()
}

func (r *PresenceRoom) leave(userID string) []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
	return r.listLocked()
}

func (r *PresenceRoom) participants() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *PresenceRoom) start() domain.LiveStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = domain.LiveStarted
	return r.status
}

func (r *PresenceRoom) liveStatus() domain.LiveStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// IsEmpty reports whether nobody is connected.
func (r *PresenceRoom) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users) == 0
}

func (r *PresenceRoom) listLocked() []domain.Participant {
	users := make([]domain.Participant, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})
	return users
}
