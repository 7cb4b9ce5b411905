package domain

import "time"

// RoomStatus is the declared lifecycle state of a room.
type RoomStatus string

const (
	RoomPending  RoomStatus = "pending"
	RoomActive   RoomStatus = "active"
	RoomFinished RoomStatus = "finished"
)

// Difficulty of the games played in a room.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// GameKind identifies one of the playable game types.
type GameKind string

const (
	GameImageWord     GameKind = "image-word"
	GameSyllableCount GameKind = "syllable-count"
	GameRhyme         GameKind = "rhyme-identification"
	GameAudio         GameKind = "audio-recognition"
)

// Label returns the human-readable name for a game kind.
func (g GameKind) Label() string {
	switch g {
	case GameImageWord:
		return "Image-Word Association"
	case GameSyllableCount:
		return "Syllable Counting"
	case GameRhyme:
		return "Rhyme Identification"
	case GameAudio:
		return "Audio Recognition"
	default:
		return string(g)
	}
}

// Student is an enrolled participant.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Room is one timed game session owned by a teacher.
type Room struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	Games           []GameKind `json:"games"`
	Difficulty      Difficulty `json:"difficulty"`
	DurationMinutes int        `json:"durationMinutes"`
	Status          RoomStatus `json:"status"`
	IsActive        bool       `json:"isActive"`
	StartsAt        *time.Time `json:"startsAt,omitempty"`
	EndsAt          *time.Time `json:"endsAt,omitempty"`
	Students        []Student  `json:"students"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// Enrolled reports whether the student id is in the room's roster.
func (r Room) Enrolled(studentID string) bool {
	for _, s := range r.Students {
		if s.ID == studentID {
			return true
		}
	}
	return false
}

// RoomSummary is the listing view of a room with derived result stats.
type RoomSummary struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	Games           []GameKind `json:"games"`
	Difficulty      Difficulty `json:"difficulty"`
	DurationMinutes int        `json:"durationMinutes"`
	Status          RoomStatus `json:"status"`
	IsActive        bool       `json:"isActive"`
	StudentsCount   int        `json:"studentsCount"`
	AverageScore    float64    `json:"averageScore"`
	CompletionRate  float64    `json:"completionRate"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastActivityAt  *time.Time `json:"lastActivityAt,omitempty"`
}

// AnswerSubmission is the inbound payload for recording an answer.
type AnswerSubmission struct {
	StudentID    string     `json:"studentId"`
	GameID       GameKind   `json:"gameId,omitempty"`
	QuestionID   string     `json:"questionId"`
	QuestionText string     `json:"questionText,omitempty"`
	Answer       string     `json:"answer"`
	IsCorrect    *bool      `json:"isCorrect,omitempty"`
	ElapsedMs    *int64     `json:"elapsedMs,omitempty"`
	Attempt      int        `json:"attempt"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	Replace      bool       `json:"replace"`
}

// AnswerRecord is a persisted answer. At most one record exists per
// (room, student, question, attempt) key.
type AnswerRecord struct {
	ID           string     `json:"id"`
	RoomID       string     `json:"roomId"`
	StudentID    string     `json:"studentId"`
	GameID       GameKind   `json:"gameId,omitempty"`
	QuestionID   string     `json:"questionId"`
	QuestionText string     `json:"questionText,omitempty"`
	Answer       string     `json:"answer"`
	IsCorrect    *bool      `json:"isCorrect,omitempty"`
	ElapsedMs    *int64     `json:"elapsedMs,omitempty"`
	Attempt      int        `json:"attempt"`
	CreatedAt    time.Time  `json:"createdAt"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
}

// AnswerKey is the idempotency key for answer submissions.
type AnswerKey struct {
	RoomID     string
	StudentID  string
	QuestionID string
	Attempt    int
}

// Key returns the record's idempotency key.
func (a AnswerRecord) Key() AnswerKey {
	return AnswerKey{RoomID: a.RoomID, StudentID: a.StudentID, QuestionID: a.QuestionID, Attempt: a.Attempt}
}

// GameResult is a per-(student, game) aggregate persisted for reporting.
type GameResult struct {
	ID                 string    `json:"id"`
	RoomID             string    `json:"roomId"`
	StudentID          string    `json:"studentId"`
	StudentName        string    `json:"studentName"`
	GameID             GameKind  `json:"gameId"`
	TotalQuestions     int       `json:"totalQuestions"`
	CorrectAnswers     int       `json:"correctAnswers"`
	IncorrectAnswers   int       `json:"incorrectAnswers"`
	AverageTimeSeconds float64   `json:"averageTimeSeconds"`
	Score              float64   `json:"score"`
	CompletedAt        time.Time `json:"completedAt"`
}

// AnswerEvent is the monitoring signal emitted when a student answers.
type AnswerEvent struct {
	RoomID             string    `json:"roomId"`
	StudentID          string    `json:"studentId"`
	StudentName        string    `json:"studentName"`
	GameID             GameKind  `json:"gameId"`
	QuestionID         string    `json:"questionId"`
	QuestionText       string    `json:"questionText"`
	SelectedOptionID   string    `json:"selectedOptionId,omitempty"`
	SelectedOptionText string    `json:"selectedOptionText,omitempty"`
	IsCorrect          bool      `json:"isCorrect"`
	ElapsedMillis      int64     `json:"elapsedMillis"`
	AnsweredAt         time.Time `json:"answeredAt"`
}

// StudentMonitoringState is the per-student slice of a monitoring snapshot.
type StudentMonitoringState struct {
	StudentID          string   `json:"studentId"`
	StudentName        string   `json:"studentName"`
	CurrentGameID      GameKind `json:"currentGameId"`
	CurrentQuestionID  string   `json:"currentQuestionId,omitempty"`
	CurrentQuestion    string   `json:"currentQuestionText,omitempty"`
	LastSelectedOption string   `json:"lastSelectedOptionId,omitempty"`
	LastOptionText     string   `json:"lastSelectedOptionText,omitempty"`
	LastIsCorrect      *bool    `json:"lastIsCorrect,omitempty"`
	TotalAnswered      int      `json:"totalAnswered"`
	TotalCorrect       int      `json:"totalCorrect"`
	AccuracyPct        float64  `json:"accuracyPct"`
	AvgResponseMillis  float64  `json:"avgResponseMillis"`
}

// RankingEntry places one student in the room ranking.
type RankingEntry struct {
	StudentID         string  `json:"studentId"`
	StudentName       string  `json:"studentName"`
	TotalAnswered     int     `json:"totalAnswered"`
	AvgResponseMillis float64 `json:"avgResponseMillis"`
	Rank              int     `json:"rank"`
}

// GlobalMonitoringStats are the room-wide counters of a snapshot.
type GlobalMonitoringStats struct {
	TotalAnsweredAll  int64   `json:"totalAnsweredAll"`
	TotalCorrectAll   int64   `json:"totalCorrectAll"`
	GlobalAccuracyPct float64 `json:"globalAccuracyPct"`
}

// MonitoringSnapshot is an immutable, fully recomputed view of a room's
// monitoring state. Holding a snapshot never observes later mutations.
type MonitoringSnapshot struct {
	RoomID   string                   `json:"roomId"`
	Students []StudentMonitoringState `json:"students"`
	Global   GlobalMonitoringStats    `json:"global"`
	Ranking  []RankingEntry           `json:"ranking"`
}

// Participant is an ephemeral connected user (not persisted).
type Participant struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// LiveStatus is the ephemeral waiting/started flag of a room lobby.
type LiveStatus string

const (
	LiveWaiting LiveStatus = "WAITING"
	LiveStarted LiveStatus = "STARTED"
)
