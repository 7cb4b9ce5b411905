package app

import (
	"context"
	"time"

	"gameroom-service/internal/domain"
	"github.com/google/uuid"
)

// StudentResult pairs a persisted game result with the answers behind it.
type StudentResult struct {
	domain.GameResult
	Answers []domain.AnswerRecord `json:"answers"`
}

// RoomReport is the teacher-facing roll-up for one room.
type RoomReport struct {
	RoomID         string            `json:"roomId"`
	RoomName       string            `json:"roomName"`
	Games          []domain.GameKind `json:"games"`
	Difficulty     domain.Difficulty `json:"difficulty"`
	StudentsCount  int               `json:"studentsCount"`
	AverageScore   float64           `json:"averageScore"`
	CompletionRate float64           `json:"completionRate"`
	CreatedAt      time.Time         `json:"createdAt"`
	Students       []StudentResult   `json:"students"`
}

// ResultService derives and serves per-(student, game) results. Results not
// explicitly submitted are backfilled from the recorded answers on read.
type ResultService struct {
	store Store
	rooms *RoomService
	now   func() time.Time
}

func NewResultService(store Store, rooms *RoomService) *ResultService {
	return &ResultService{store: store, rooms: rooms, now: time.Now}
}

// ListResults returns the room's results with their answers attached,
// backfilling missing rows from answers first.
func (s *ResultService) ListResults(ctx context.Context, roomID string) ([]StudentResult, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if err := s.backfill(ctx, roomID); err != nil {
		return nil, err
	}
	return s.resultsWithAnswers(ctx, roomID)
}

// RoomReport assembles the roll-up view: refreshed room, backfilled results,
// and summary stats.
func (s *ResultService) RoomReport(ctx context.Context, roomID string) (RoomReport, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return RoomReport{}, err
	}
	if err := s.backfill(ctx, roomID); err != nil {
		return RoomReport{}, err
	}
	students, err := s.resultsWithAnswers(ctx, roomID)
	if err != nil {
		return RoomReport{}, err
	}
	results, err := s.store.ListResultsByRoom(ctx, roomID)
	if err != nil {
		return RoomReport{}, err
	}
	summary := summarize(room, results)
	return RoomReport{
		RoomID:         room.ID,
		RoomName:       room.Name,
		Games:          room.Games,
		Difficulty:     room.Difficulty,
		StudentsCount:  summary.StudentsCount,
		AverageScore:   summary.AverageScore,
		CompletionRate: summary.CompletionRate,
		CreatedAt:      room.CreatedAt,
		Students:       students,
	}, nil
}

type resultKey struct {
	studentID string
	gameID    domain.GameKind
}

func (s *ResultService) resultsWithAnswers(ctx context.Context, roomID string) ([]StudentResult, error) {
	answersByKey, err := s.answersByStudentAndGame(ctx, roomID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListResultsByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]StudentResult, 0, len(results))
	for _, result := range results {
		key := resultKey{studentID: result.StudentID, gameID: result.GameID}
		out = append(out, StudentResult{GameResult: result, Answers: answersByKey[key]})
	}
	return out, nil
}

// backfill creates a result row for every (student, game) group of answers
// that has none yet. Answers recorded without a game id cannot be attributed
// to a result and are excluded from the grouping.
func (s *ResultService) backfill(ctx context.Context, roomID string) error {
	results, err := s.store.ListResultsByRoom(ctx, roomID)
	if err != nil {
		return err
	}
	existing := make(map[resultKey]struct{}, len(results))
	for _, r := range results {
		existing[resultKey{studentID: r.StudentID, gameID: r.GameID}] = struct{}{}
	}

	answersByKey, err := s.answersByStudentAndGame(ctx, roomID)
	if err != nil {
		return err
	}

	for key, answers := range answersByKey {
		if _, ok := existing[key]; ok {
			continue
		}
		student, err := s.store.GetStudent(ctx, key.studentID)
		if err != nil {
			if domain.IsKind(err, domain.KindNotFound) {
				continue
			}
			return err
		}
		result := deriveResult(roomID, student, key.gameID, answers, s.now())
		if _, err := s.store.SaveResult(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *ResultService) answersByStudentAndGame(ctx context.Context, roomID string) (map[resultKey][]domain.AnswerRecord, error) {
	answers, err := s.store.ListAnswersByRoom(ctx, roomID, AnswerFilter{})
	if err != nil {
		return nil, err
	}
	grouped := make(map[resultKey][]domain.AnswerRecord)
	for _, answer := range answers {
		if answer.GameID == "" {
			continue
		}
		key := resultKey{studentID: answer.StudentID, gameID: answer.GameID}
		grouped[key] = append(grouped[key], answer)
	}
	return grouped, nil
}

func deriveResult(roomID string, student domain.Student, gameID domain.GameKind, answers []domain.AnswerRecord, now time.Time) domain.GameResult {
	questions := make(map[string]struct{})
	correct := 0
	var elapsedSum int64
	elapsedCount := 0
	completedAt := time.Time{}
	for _, a := range answers {
		questions[a.QuestionID] = struct{}{}
		if a.IsCorrect != nil && *a.IsCorrect {
			correct++
		}
		if a.ElapsedMs != nil {
			elapsedSum += *a.ElapsedMs
			elapsedCount++
		}
		at := a.CreatedAt
		if a.SentAt != nil {
			at = *a.SentAt
		}
		if at.After(completedAt) {
			completedAt = at
		}
	}
	total := len(questions)
	incorrect := total - correct
	if incorrect < 0 {
		incorrect = 0
	}
	var avgSeconds float64
	if elapsedCount > 0 {
		avgSeconds = float64(elapsedSum) / float64(elapsedCount) / 1000
	}
	var score float64
	if total > 0 {
		score = float64(correct) / float64(total) * 100
	}
	if completedAt.IsZero() {
		completedAt = now
	}
	return domain.GameResult{
		ID:                 uuid.NewString(),
		RoomID:             roomID,
		StudentID:          student.ID,
		StudentName:        student.Name,
		GameID:             gameID,
		TotalQuestions:     total,
		CorrectAnswers:     correct,
		IncorrectAnswers:   incorrect,
		AverageTimeSeconds: avgSeconds,
		Score:              score,
		CompletedAt:        completedAt,
	}
}
