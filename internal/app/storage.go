package app

import (
	"context"

	"gameroom-service/internal/domain"
)

// AnswerFilter narrows ListAnswersByRoom. Zero values mean no filtering.
type AnswerFilter struct {
	StudentID  string
	QuestionID string
}

// Store abstracts the durable storage collaborator. Implementations exist for
// in-memory maps and Postgres; calls are synchronous and never retried here.
type Store interface {
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
	SaveRoom(ctx context.Context, room domain.Room) (domain.Room, error)
	FindRoomByCode(ctx context.Context, code string) (domain.Room, bool, error)
	ListRooms(ctx context.Context, status domain.RoomStatus) ([]domain.Room, error)

	GetStudent(ctx context.Context, studentID string) (domain.Student, error)
	SaveStudent(ctx context.Context, student domain.Student) (domain.Student, error)
	FindStudentByEmail(ctx context.Context, email string) (domain.Student, bool, error)

	FindAnswerByKey(ctx context.Context, key domain.AnswerKey) (domain.AnswerRecord, bool, error)
	SaveAnswer(ctx context.Context, record domain.AnswerRecord) (domain.AnswerRecord, error)
	ListAnswersByRoom(ctx context.Context, roomID string, filter AnswerFilter) ([]domain.AnswerRecord, error)

	ListResultsByRoom(ctx context.Context, roomID string) ([]domain.GameResult, error)
	SaveResult(ctx context.Context, result domain.GameResult) (domain.GameResult, error)
}
