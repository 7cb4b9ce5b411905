package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gameroom-service/internal/app"
	"gameroom-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store is the Postgres implementation of app.Store. The schema is managed
// by the bun migrations in the migrations subpackage.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const roomColumns = `id, code, name, games, difficulty, duration_minutes, status, is_active, starts_at, ends_at, created_at, updated_at`

func (s *Store) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id=$1`, roomID)
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Room{}, domain.NotFound("room", roomID)
		}
		return domain.Room{}, domain.StorageError("get room", err)
	}
	if err := s.loadStudents(ctx, &room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

func (s *Store) SaveRoom(ctx context.Context, room domain.Room) (domain.Room, error) {
	games, err := json.Marshal(room.Games)
	if err != nil {
		return domain.Room{}, domain.StorageError("encode games", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Room{}, domain.StorageError("begin", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			code=EXCLUDED.code, name=EXCLUDED.name, games=EXCLUDED.games,
			difficulty=EXCLUDED.difficulty, duration_minutes=EXCLUDED.duration_minutes,
			status=EXCLUDED.status, is_active=EXCLUDED.is_active,
			starts_at=EXCLUDED.starts_at, ends_at=EXCLUDED.ends_at,
			updated_at=EXCLUDED.updated_at`,
		room.ID, room.Code, room.Name, games, string(room.Difficulty), room.DurationMinutes,
		string(room.Status), room.IsActive, room.StartsAt, room.EndsAt, room.CreatedAt, room.UpdatedAt)
	if err != nil {
		return domain.Room{}, domain.StorageError("save room", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM room_students WHERE room_id=$1`, room.ID); err != nil {
		return domain.Room{}, domain.StorageError("save room roster", err)
	}
	for _, student := range room.Students {
		if _, err := tx.Exec(ctx, `INSERT INTO room_students (room_id, student_id) VALUES ($1,$2)`, room.ID, student.ID); err != nil {
			return domain.Room{}, domain.StorageError("save room roster", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Room{}, domain.StorageError("commit room", err)
	}
	return room, nil
}

func (s *Store) FindRoomByCode(ctx context.Context, code string) (domain.Room, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code=$1`, strings.ToUpper(code))
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Room{}, false, nil
		}
		return domain.Room{}, false, domain.StorageError("find room by code", err)
	}
	if err := s.loadStudents(ctx, &room); err != nil {
		return domain.Room{}, false, err
	}
	return room, true, nil
}

func (s *Store) ListRooms(ctx context.Context, status domain.RoomStatus) ([]domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError("list rooms", err)
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, domain.StorageError("list rooms", err)
		}
		rooms = append(rooms, room)
	}
	if rows.Err() != nil {
		return nil, domain.StorageError("list rooms", rows.Err())
	}
	for i := range rooms {
		if err := s.loadStudents(ctx, &rooms[i]); err != nil {
			return nil, err
		}
	}
	return rooms, nil
}

func (s *Store) GetStudent(ctx context.Context, studentID string) (domain.Student, error) {
	var student domain.Student
	var email *string
	err := s.pool.QueryRow(ctx, `SELECT id, name, email, created_at FROM students WHERE id=$1`, studentID).
		Scan(&student.ID, &student.Name, &email, &student.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Student{}, domain.NotFound("student", studentID)
		}
		return domain.Student{}, domain.StorageError("get student", err)
	}
	if email != nil {
		student.Email = *email
	}
	return student, nil
}

func (s *Store) SaveStudent(ctx context.Context, student domain.Student) (domain.Student, error) {
	var email *string
	if student.Email != "" {
		email = &student.Email
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (id, name, email, created_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email`,
		student.ID, student.Name, email, student.CreatedAt)
	if err != nil {
		return domain.Student{}, domain.StorageError("save student", err)
	}
	return student, nil
}

func (s *Store) FindStudentByEmail(ctx context.Context, email string) (domain.Student, bool, error) {
	var student domain.Student
	var stored *string
	err := s.pool.QueryRow(ctx, `SELECT id, name, email, created_at FROM students WHERE lower(email)=lower($1)`, email).
		Scan(&student.ID, &student.Name, &stored, &student.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Student{}, false, nil
		}
		return domain.Student{}, false, domain.StorageError("find student by email", err)
	}
	if stored != nil {
		student.Email = *stored
	}
	return student, true, nil
}

const answerColumns = `id, room_id, student_id, game_id, question_id, question_text, answer, is_correct, elapsed_ms, attempt, created_at, sent_at`

func (s *Store) FindAnswerByKey(ctx context.Context, key domain.AnswerKey) (domain.AnswerRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+answerColumns+` FROM answers
		WHERE room_id=$1 AND student_id=$2 AND question_id=$3 AND attempt=$4`,
		key.RoomID, key.StudentID, key.QuestionID, key.Attempt)
	record, err := scanAnswer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AnswerRecord{}, false, nil
		}
		return domain.AnswerRecord{}, false, domain.StorageError("find answer", err)
	}
	return record, true, nil
}

func (s *Store) SaveAnswer(ctx context.Context, record domain.AnswerRecord) (domain.AnswerRecord, error) {
	var gameID *string
	if record.GameID != "" {
		g := string(record.GameID)
		gameID = &g
	}
	var questionText *string
	if record.QuestionText != "" {
		questionText = &record.QuestionText
	}
	// The unique index on the idempotency key backs up the service-level
	// keyed lock: a racing duplicate updates instead of inserting twice.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO answers (`+answerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (room_id, student_id, question_id, attempt) DO UPDATE SET
			game_id=EXCLUDED.game_id, question_text=EXCLUDED.question_text,
			answer=EXCLUDED.answer, is_correct=EXCLUDED.is_correct,
			elapsed_ms=EXCLUDED.elapsed_ms, sent_at=EXCLUDED.sent_at`,
		record.ID, record.RoomID, record.StudentID, gameID, record.QuestionID, questionText,
		record.Answer, record.IsCorrect, record.ElapsedMs, record.Attempt, record.CreatedAt, record.SentAt)
	if err != nil {
		return domain.AnswerRecord{}, domain.StorageError("save answer", err)
	}
	return record, nil
}

func (s *Store) ListAnswersByRoom(ctx context.Context, roomID string, filter app.AnswerFilter) ([]domain.AnswerRecord, error) {
	query := `SELECT ` + answerColumns + ` FROM answers WHERE room_id=$1`
	args := []interface{}{roomID}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		query += fmt.Sprintf(` AND student_id=$%d`, len(args))
	}
	if filter.QuestionID != "" {
		args = append(args, filter.QuestionID)
		query += fmt.Sprintf(` AND question_id=$%d`, len(args))
	}
	query += ` ORDER BY created_at, attempt`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError("list answers", err)
	}
	defer rows.Close()

	var answers []domain.AnswerRecord
	for rows.Next() {
		record, err := scanAnswer(rows)
		if err != nil {
			return nil, domain.StorageError("list answers", err)
		}
		answers = append(answers, record)
	}
	if rows.Err() != nil {
		return nil, domain.StorageError("list answers", rows.Err())
	}
	return answers, nil
}

func (s *Store) ListResultsByRoom(ctx context.Context, roomID string) ([]domain.GameResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.room_id, r.student_id, st.name, r.game_id, r.total_questions,
		       r.correct_answers, r.incorrect_answers, r.avg_time_seconds, r.score, r.completed_at
		FROM results r JOIN students st ON st.id = r.student_id
		WHERE r.room_id=$1 ORDER BY r.completed_at`, roomID)
	if err != nil {
		return nil, domain.StorageError("list results", err)
	}
	defer rows.Close()

	var results []domain.GameResult
	for rows.Next() {
		var result domain.GameResult
		var gameID string
		if err := rows.Scan(&result.ID, &result.RoomID, &result.StudentID, &result.StudentName, &gameID,
			&result.TotalQuestions, &result.CorrectAnswers, &result.IncorrectAnswers,
			&result.AverageTimeSeconds, &result.Score, &result.CompletedAt); err != nil {
			return nil, domain.StorageError("list results", err)
		}
		result.GameID = domain.GameKind(gameID)
		results = append(results, result)
	}
	if rows.Err() != nil {
		return nil, domain.StorageError("list results", rows.Err())
	}
	return results, nil
}

func (s *Store) SaveResult(ctx context.Context, result domain.GameResult) (domain.GameResult, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO results (id, room_id, student_id, game_id, total_questions, correct_answers,
		                     incorrect_answers, avg_time_seconds, score, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		result.ID, result.RoomID, result.StudentID, string(result.GameID), result.TotalQuestions,
		result.CorrectAnswers, result.IncorrectAnswers, result.AverageTimeSeconds, result.Score, result.CompletedAt)
	if err != nil {
		return domain.GameResult{}, domain.StorageError("save result", err)
	}
	return result, nil
}

func (s *Store) loadStudents(ctx context.Context, room *domain.Room) error {
	rows, err := s.pool.Query(ctx, `
		SELECT st.id, st.name, st.email, st.created_at
		FROM room_students rs JOIN students st ON st.id = rs.student_id
		WHERE rs.room_id=$1 ORDER BY st.name`, room.ID)
	if err != nil {
		return domain.StorageError("load roster", err)
	}
	defer rows.Close()

	for rows.Next() {
		var student domain.Student
		var email *string
		if err := rows.Scan(&student.ID, &student.Name, &email, &student.CreatedAt); err != nil {
			return domain.StorageError("load roster", err)
		}
		if email != nil {
			student.Email = *email
		}
		room.Students = append(room.Students, student)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row rowScanner) (domain.Room, error) {
	var room domain.Room
	var games []byte
	var difficulty, status string
	if err := row.Scan(&room.ID, &room.Code, &room.Name, &games, &difficulty, &room.DurationMinutes,
		&status, &room.IsActive, &room.StartsAt, &room.EndsAt, &room.CreatedAt, &room.UpdatedAt); err != nil {
		return domain.Room{}, err
	}
	room.Difficulty = domain.Difficulty(difficulty)
	room.Status = domain.RoomStatus(status)
	if err := json.Unmarshal(games, &room.Games); err != nil {
		return domain.Room{}, fmt.Errorf("decode games: %w", err)
	}
	return room, nil
}

func scanAnswer(row rowScanner) (domain.AnswerRecord, error) {
	var record domain.AnswerRecord
	var gameID, questionText *string
	if err := row.Scan(&record.ID, &record.RoomID, &record.StudentID, &gameID, &record.QuestionID,
		&questionText, &record.Answer, &record.IsCorrect, &record.ElapsedMs, &record.Attempt,
		&record.CreatedAt, &record.SentAt); err != nil {
		return domain.AnswerRecord{}, err
	}
	if gameID != nil {
		record.GameID = domain.GameKind(*gameID)
	}
	if questionText != nil {
		record.QuestionText = *questionText
	}
	return record, nil
}
