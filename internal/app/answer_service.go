package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"gameroom-service/internal/domain"
	"github.com/google/uuid"
)

// AnswerService ingests answer submissions: admission gating against the
// room lifecycle, idempotent dedup on (room, student, question, attempt),
// explicit replace, and filtered listing.
type AnswerService struct {
	store Store
	rooms *RoomService
	now   func() time.Time
	// locks serializes check-then-insert per answer key so concurrent
	// duplicates cannot both create records.
	locks *lockTable
}

func NewAnswerService(store Store, rooms *RoomService) *AnswerService {
	return &AnswerService{store: store, rooms: rooms, now: time.Now, locks: newLockTable()}
}

// NewAnswerServiceWithClock is test-only for deterministic timestamps.
func NewAnswerServiceWithClock(store Store, rooms *RoomService, now func() time.Time) *AnswerService {
	return &AnswerService{store: store, rooms: rooms, now: now, locks: newLockTable()}
}

// Submit records an answer. Resubmitting the same key with replace=false
// returns the stored record unchanged; replace=true overwrites the mutable
// fields while keeping the record id.
func (s *AnswerService) Submit(ctx context.Context, roomID string, sub domain.AnswerSubmission) (domain.AnswerRecord, error) {
	if err := validateSubmission(sub); err != nil {
		return domain.AnswerRecord{}, err
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	if !AcceptsAnswers(room) {
		return domain.AnswerRecord{}, domain.PreconditionFailed("room is not accepting answers")
	}

	student, err := s.store.GetStudent(ctx, sub.StudentID)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	if !room.Enrolled(student.ID) {
		return domain.AnswerRecord{}, domain.PreconditionFailed("student is not enrolled in the room")
	}

	key := domain.AnswerKey{RoomID: room.ID, StudentID: student.ID, QuestionID: sub.QuestionID, Attempt: sub.Attempt}
	lock := s.locks.get(keyString(key))
	lock.Lock()
	defer lock.Unlock()

	existing, found, err := s.store.FindAnswerByKey(ctx, key)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	if found {
		if !sub.Replace {
			return existing, nil
		}
		if sub.GameID != "" {
			existing.GameID = sub.GameID
		}
		if sub.QuestionText != "" {
			existing.QuestionText = sub.QuestionText
		}
		existing.Answer = sub.Answer
		existing.IsCorrect = sub.IsCorrect
		existing.ElapsedMs = sub.ElapsedMs
		existing.SentAt = sub.SentAt
		saved, err := s.store.SaveAnswer(ctx, existing)
		if err != nil {
			return domain.AnswerRecord{}, err
		}
		log.Printf("answer replaced room=%s student=%s question=%s attempt=%d", room.ID, student.ID, sub.QuestionID, sub.Attempt)
		return saved, nil
	}

	record := domain.AnswerRecord{
		ID:           uuid.NewString(),
		RoomID:       room.ID,
		StudentID:    student.ID,
		GameID:       sub.GameID,
		QuestionID:   sub.QuestionID,
		QuestionText: sub.QuestionText,
		Answer:       sub.Answer,
		IsCorrect:    sub.IsCorrect,
		ElapsedMs:    sub.ElapsedMs,
		Attempt:      sub.Attempt,
		CreatedAt:    s.now(),
		SentAt:       sub.SentAt,
	}
	saved, err := s.store.SaveAnswer(ctx, record)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	log.Printf("answer recorded room=%s student=%s question=%s attempt=%d", room.ID, student.ID, sub.QuestionID, sub.Attempt)
	return saved, nil
}

// ListAnswers returns a room's answers ordered by (createdAt, attempt),
// optionally narrowed by student and question.
func (s *AnswerService) ListAnswers(ctx context.Context, roomID string, filter AnswerFilter) ([]domain.AnswerRecord, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswersByRoom(ctx, roomID, filter)
	if err != nil {
		return nil, err
	}
	sort.Slice(answers, func(i, j int) bool {
		if !answers[i].CreatedAt.Equal(answers[j].CreatedAt) {
			return answers[i].CreatedAt.Before(answers[j].CreatedAt)
		}
		return answers[i].Attempt < answers[j].Attempt
	})
	return answers, nil
}

func validateSubmission(sub domain.AnswerSubmission) error {
	var fields []domain.FieldError
	if strings.TrimSpace(sub.QuestionID) == "" {
		fields = append(fields, domain.FieldError{Field: "questionId", Message: "must not be blank"})
	}
	if sub.Attempt < 1 {
		fields = append(fields, domain.FieldError{Field: "attempt", Message: "must be at least 1"})
	}
	if len(fields) > 0 {
		return domain.ValidationFailed("invalid answer submission", fields...)
	}
	return nil
}

func keyString(key domain.AnswerKey) string {
	return fmt.Sprintf("%s|%s|%s|%d", key.RoomID, key.StudentID, key.QuestionID, key.Attempt)
}
