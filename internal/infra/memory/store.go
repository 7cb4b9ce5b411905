package memory

import (
	"context"
	"strings"
	"sync"

	"gameroom-service/internal/app"
	"gameroom-service/internal/domain"
)

// Store is the in-memory implementation of app.Store, used by unit tests and
// the no-database server mode.
type Store struct {
	mu       sync.RWMutex
	rooms    map[string]domain.Room
	students map[string]domain.Student
	answers  map[domain.AnswerKey]domain.AnswerRecord
	results  map[string][]domain.GameResult
}

func NewStore() *Store {
	return &Store{
		rooms:    make(map[string]domain.Room),
		students: make(map[string]domain.Student),
		answers:  make(map[domain.AnswerKey]domain.AnswerRecord),
		results:  make(map[string][]domain.GameResult),
	}
}

func (s *Store) GetRoom(_ context.Context, roomID string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.NotFound("room", roomID)
	}
	return cloneRoom(room), nil
}

func (s *Store) SaveRoom(_ context.Context, room domain.Room) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = cloneRoom(room)
	return room, nil
}

func (s *Store) FindRoomByCode(_ context.Context, code string) (domain.Room, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, room := range s.rooms {
		if strings.EqualFold(room.Code, code) {
			return cloneRoom(room), true, nil
		}
	}
	return domain.Room{}, false, nil
}

func (s *Store) ListRooms(_ context.Context, status domain.RoomStatus) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if status != "" && room.Status != status {
			continue
		}
		rooms = append(rooms, cloneRoom(room))
	}
	return rooms, nil
}

func (s *Store) GetStudent(_ context.Context, studentID string) (domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[studentID]
	if !ok {
		return domain.Student{}, domain.NotFound("student", studentID)
	}
	return student, nil
}

func (s *Store) SaveStudent(_ context.Context, student domain.Student) (domain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.ID] = student
	return student, nil
}

func (s *Store) FindStudentByEmail(_ context.Context, email string) (domain.Student, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, student := range s.students {
		if student.Email != "" && strings.EqualFold(student.Email, email) {
			return student, true, nil
		}
	}
	return domain.Student{}, false, nil
}

func (s *Store) FindAnswerByKey(_ context.Context, key domain.AnswerKey) (domain.AnswerRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.answers[key]
	return record, ok, nil
}

func (s *Store) SaveAnswer(_ context.Context, record domain.AnswerRecord) (domain.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[record.Key()] = record
	return record, nil
}

func (s *Store) ListAnswersByRoom(_ context.Context, roomID string, filter app.AnswerFilter) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answers := make([]domain.AnswerRecord, 0)
	for _, record := range s.answers {
		if record.RoomID != roomID {
			continue
		}
		if filter.StudentID != "" && record.StudentID != filter.StudentID {
			continue
		}
		if filter.QuestionID != "" && record.QuestionID != filter.QuestionID {
			continue
		}
		answers = append(answers, record)
	}
	return answers, nil
}

func (s *Store) ListResultsByRoom(_ context.Context, roomID string) ([]domain.GameResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.GameResult(nil), s.results[roomID]...), nil
}

func (s *Store) SaveResult(_ context.Context, result domain.GameResult) (domain.GameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.RoomID] = append(s.results[result.RoomID], result)
	return result, nil
}

// cloneRoom copies the slices so callers can't mutate stored state through a
// returned room.
func cloneRoom(room domain.Room) domain.Room {
	room.Games = append([]domain.GameKind(nil), room.Games...)
	room.Students = append([]domain.Student(nil), room.Students...)
	return room
}
