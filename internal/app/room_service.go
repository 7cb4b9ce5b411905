package app

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"gameroom-service/internal/domain"
	"github.com/google/uuid"
)

const roomCodeLength = 6

// maxCodeAttempts bounds the collision-retry loop for join codes. With a
// 16^6 code space collisions are rare; hitting the bound means storage is
// returning garbage and we surface a conflict instead of spinning.
const maxCodeAttempts = 20

// CreateRoomRequest carries the inputs for opening a new room.
type CreateRoomRequest struct {
	Name            string            `json:"name"`
	Games           []domain.GameKind `json:"games"`
	Difficulty      domain.Difficulty `json:"difficulty"`
	DurationMinutes int               `json:"durationMinutes"`
}

// StatusUpdate is the generic transition payload for UpdateStatus.
type StatusUpdate struct {
	Status   domain.RoomStatus `json:"status"`
	IsActive *bool             `json:"isActive,omitempty"`
	StartsAt *time.Time        `json:"startsAt,omitempty"`
	EndsAt   *time.Time        `json:"endsAt,omitempty"`
}

// StudentSession is returned when a student joins a room by code.
type StudentSession struct {
	Room         domain.Room    `json:"room"`
	Student      domain.Student `json:"student"`
	SessionToken string         `json:"sessionToken"`
}

// RoomService owns the room lifecycle state machine: creation, status
// transitions, lazy timing refresh, and enrollment. Transitions for a given
// room are serialized through a per-room lock.
type RoomService struct {
	store Store
	now   func() time.Time
	locks *lockTable
}

func NewRoomService(store Store) *RoomService {
	return &RoomService{store: store, now: time.Now, locks: newLockTable()}
}

// NewRoomServiceWithClock is test-only for deterministic timing.
func NewRoomServiceWithClock(store Store, now func() time.Time) *RoomService {
	return &RoomService{store: store, now: now, locks: newLockTable()}
}

// CreateRoom validates the request, generates a unique join code, and
// persists a pending room.
func (s *RoomService) CreateRoom(ctx context.Context, req CreateRoomRequest) (domain.Room, error) {
	var fields []domain.FieldError
	if strings.TrimSpace(req.Name) == "" {
		fields = append(fields, domain.FieldError{Field: "name", Message: "must not be blank"})
	}
	if len(req.Games) == 0 {
		fields = append(fields, domain.FieldError{Field: "games", Message: "at least one game is required"})
	}
	if req.DurationMinutes < 1 {
		fields = append(fields, domain.FieldError{Field: "durationMinutes", Message: "must be at least 1"})
	}
	if len(fields) > 0 {
		return domain.Room{}, domain.ValidationFailed("invalid room request", fields...)
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return domain.Room{}, err
	}

	room := domain.Room{
		ID:              uuid.NewString(),
		Code:            code,
		Name:            req.Name,
		Games:           append([]domain.GameKind(nil), req.Games...),
		Difficulty:      req.Difficulty,
		DurationMinutes: req.DurationMinutes,
		Status:          domain.RoomPending,
		CreatedAt:       s.now(),
	}
	saved, err := s.store.SaveRoom(ctx, room)
	if err != nil {
		return domain.Room{}, err
	}
	log.Printf("room created code=%s name=%s id=%s", saved.Code, saved.Name, saved.ID)
	return saved, nil
}

// GetRoom returns the room with its timing refreshed, persisting the refresh
// only when something changed.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()
	return s.refreshLocked(ctx, roomID)
}

// GetRoomByCode resolves a join code (case-insensitive) to a refreshed room.
func (s *RoomService) GetRoomByCode(ctx context.Context, code string) (domain.Room, error) {
	room, ok, err := s.store.FindRoomByCode(ctx, strings.ToUpper(code))
	if err != nil {
		return domain.Room{}, err
	}
	if !ok {
		return domain.Room{}, domain.NotFound("room", code)
	}
	return s.GetRoom(ctx, room.ID)
}

// ListRooms returns refreshed summaries, optionally filtered by status.
// The status filter is applied after the timing refresh so a just-expired
// room never shows up as active.
func (s *RoomService) ListRooms(ctx context.Context, status domain.RoomStatus) ([]domain.RoomSummary, error) {
	rooms, err := s.store.ListRooms(ctx, "")
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		refreshed, err := s.GetRoom(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		if status != "" && refreshed.Status != status {
			continue
		}
		results, err := s.store.ListResultsByRoom(ctx, refreshed.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summarize(refreshed, results))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// StartRoom transitions a room to active. Calling it again without overrides
// preserves the original start time.
func (s *RoomService) StartRoom(ctx context.Context, roomID string, startsAt, endsAt *time.Time) (domain.Room, error) {
	return s.UpdateStatus(ctx, roomID, StatusUpdate{Status: domain.RoomActive, StartsAt: startsAt, EndsAt: endsAt})
}

// FinishRoom closes a room. The end time falls back to the existing one, then
// to now.
func (s *RoomService) FinishRoom(ctx context.Context, roomID string, endsAt *time.Time) (domain.Room, error) {
	return s.UpdateStatus(ctx, roomID, StatusUpdate{Status: domain.RoomFinished, EndsAt: endsAt})
}

// UpdateStatus applies a status transition. Active gets start timing applied,
// Finished deactivates, anything else takes the field overrides verbatim.
func (s *RoomService) UpdateStatus(ctx context.Context, roomID string, update StatusUpdate) (domain.Room, error) {
	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}

	now := s.now()
	room.Status = update.Status
	switch update.Status {
	case domain.RoomActive:
		start := now
		if room.StartsAt != nil {
			start = *room.StartsAt
		}
		if update.StartsAt != nil {
			start = *update.StartsAt
		}
		room.StartsAt = &start
		switch {
		case update.EndsAt != nil:
			room.EndsAt = update.EndsAt
		case room.EndsAt == nil:
			ends := start.Add(time.Duration(room.DurationMinutes) * time.Minute)
			room.EndsAt = &ends
		}
		room.IsActive = true
	case domain.RoomFinished:
		room.IsActive = false
		switch {
		case update.EndsAt != nil:
			room.EndsAt = update.EndsAt
		case room.EndsAt == nil:
			ends := now
			room.EndsAt = &ends
		}
	default:
		if update.IsActive != nil {
			room.IsActive = *update.IsActive
		}
		if update.StartsAt != nil {
			room.StartsAt = update.StartsAt
		}
		if update.EndsAt != nil {
			room.EndsAt = update.EndsAt
		}
	}
	room.UpdatedAt = &now

	saved, err := s.store.SaveRoom(ctx, room)
	if err != nil {
		return domain.Room{}, err
	}
	log.Printf("room status updated id=%s status=%s isActive=%v", saved.ID, saved.Status, saved.IsActive)
	return s.applyTimingLocked(ctx, saved)
}

// AddStudent enrolls a student in a room, reusing an existing student record
// when the email is already known.
func (s *RoomService) AddStudent(ctx context.Context, roomID, name, email string) (domain.Student, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Student{}, domain.ValidationFailed("invalid join request",
			domain.FieldError{Field: "name", Message: "must not be blank"})
	}

	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Student{}, err
	}

	student, err := s.findOrCreateStudent(ctx, name, email)
	if err != nil {
		return domain.Student{}, err
	}

	if !room.Enrolled(student.ID) {
		room.Students = append(room.Students, student)
		now := s.now()
		room.UpdatedAt = &now
		if _, err := s.store.SaveRoom(ctx, room); err != nil {
			return domain.Student{}, err
		}
	}
	return student, nil
}

// JoinByCode enrolls a student through a join code and hands back a session.
func (s *RoomService) JoinByCode(ctx context.Context, code, name, email string) (StudentSession, error) {
	room, err := s.GetRoomByCode(ctx, code)
	if err != nil {
		return StudentSession{}, err
	}
	student, err := s.AddStudent(ctx, room.ID, name, email)
	if err != nil {
		return StudentSession{}, err
	}
	room, err = s.GetRoom(ctx, room.ID)
	if err != nil {
		return StudentSession{}, err
	}
	return StudentSession{
		Room:         room,
		Student:      student,
		SessionToken: "session-" + room.ID + "-" + student.ID,
	}, nil
}

// AcceptsAnswers is the admission check for answer ingestion. It fails
// closed: only a room that is declared active and flagged active accepts.
func AcceptsAnswers(room domain.Room) bool {
	return room.Status == domain.RoomActive && room.IsActive
}

func (s *RoomService) refreshLocked(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	return s.applyTimingLocked(ctx, room)
}

func (s *RoomService) applyTimingLocked(ctx context.Context, room domain.Room) (domain.Room, error) {
	refreshed, changed := deriveTiming(room, s.now())
	if !changed {
		return room, nil
	}
	saved, err := s.store.SaveRoom(ctx, refreshed)
	if err != nil {
		return domain.Room{}, err
	}
	return saved, nil
}

func (s *RoomService) findOrCreateStudent(ctx context.Context, name, email string) (domain.Student, error) {
	if email != "" {
		existing, ok, err := s.store.FindStudentByEmail(ctx, email)
		if err != nil {
			return domain.Student{}, err
		}
		if ok {
			return existing, nil
		}
	}
	return s.store.SaveStudent(ctx, domain.Student{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: s.now(),
	})
}

// generateCode produces a 6-character upper-case join code unique among
// stored rooms.
func (s *RoomService) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := strings.ToUpper(uuid.NewString()[:roomCodeLength])
		_, exists, err := s.store.FindRoomByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", domain.Conflict("could not generate a unique room code")
}

func summarize(room domain.Room, results []domain.GameResult) domain.RoomSummary {
	summary := domain.RoomSummary{
		ID:              room.ID,
		Code:            room.Code,
		Name:            room.Name,
		Games:           room.Games,
		Difficulty:      room.Difficulty,
		DurationMinutes: room.DurationMinutes,
		Status:          room.Status,
		IsActive:        room.IsActive,
		StudentsCount:   len(room.Students),
		CreatedAt:       room.CreatedAt,
		LastActivityAt:  room.UpdatedAt,
	}
	if len(results) > 0 {
		var total float64
		completed := make(map[string]struct{})
		for _, r := range results {
			total += r.Score
			completed[r.StudentID] = struct{}{}
		}
		summary.AverageScore = total / float64(len(results))
		if summary.StudentsCount > 0 {
			rate := float64(len(completed)) / float64(summary.StudentsCount) * 100
			if rate > 100 {
				rate = 100
			}
			summary.CompletionRate = rate
		}
	}
	return summary
}
