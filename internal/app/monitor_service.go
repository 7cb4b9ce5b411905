package app

import (
	"sort"
	"sync"

	"gameroom-service/internal/domain"
)

// MonitorService maintains one independent in-memory aggregation state per
// room. State is process-local and never persisted; a restart or an explicit
// reset starts it fresh. Each room's state has its own mutex so rooms never
// block each other, while fold-and-snapshot for a single room is one critical
// section.
type MonitorService struct {
	mu    sync.RWMutex
	rooms map[string]*roomMonitor
}

func NewMonitorService() *MonitorService {
	return &MonitorService{rooms: make(map[string]*roomMonitor)}
}

// RecordAnswer folds an answer event into the room's running totals and
// returns the freshly recomputed snapshot. Events must carry a game id;
// unclassified answers are rejected rather than silently skipped.
func (m *MonitorService) RecordAnswer(roomID string, event domain.AnswerEvent) (domain.MonitoringSnapshot, error) {
	if event.GameID == "" {
		return domain.MonitoringSnapshot{}, domain.ValidationFailed("answer event requires a game id",
			domain.FieldError{Field: "gameId", Message: "must not be blank"})
	}
	monitor := m.getOrCreate(roomID)
	return monitor.record(event), nil
}

// Snapshot returns the current view without recording anything.
func (m *MonitorService) Snapshot(roomID string) domain.MonitoringSnapshot {
	return m.getOrCreate(roomID).snapshot()
}

// Reset discards all accumulated state for the room and returns the empty
// snapshot.
func (m *MonitorService) Reset(roomID string) domain.MonitoringSnapshot {
	fresh := newRoomMonitor(roomID)
	m.mu.Lock()
	m.rooms[roomID] = fresh
	m.mu.Unlock()
	return fresh.snapshot()
}

func (m *MonitorService) getOrCreate(roomID string) *roomMonitor {
	m.mu.RLock()
	monitor, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if ok {
		return monitor
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if monitor, ok := m.rooms[roomID]; ok {
		return monitor
	}
	monitor = newRoomMonitor(roomID)
	m.rooms[roomID] = monitor
	return monitor
}

type roomMonitor struct {
	roomID string

	mu          sync.Mutex
	students    map[string]*studentState
	answeredAll int64
	correctAll  int64
}

func newRoomMonitor(roomID string) *roomMonitor {
	return &roomMonitor{roomID: roomID, students: make(map[string]*studentState)}
}

type studentState struct {
	studentID          string
	studentName        string
	currentGameID      domain.GameKind
	currentQuestionID  string
	currentQuestion    string
	lastSelectedOption string
	lastOptionText     string
	lastIsCorrect      *bool
	totalAnswered      int
	totalCorrect       int
	totalElapsedMillis int64
}

func (r *roomMonitor) record(event domain.AnswerEvent) domain.MonitoringSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.students[event.StudentID]
	if !ok {
		state = &studentState{studentID: event.StudentID}
		r.students[event.StudentID] = state
	}

	correct := event.IsCorrect
	state.studentName = event.StudentName
	state.currentGameID = event.GameID
	state.currentQuestionID = event.QuestionID
	state.currentQuestion = event.QuestionText
	state.lastSelectedOption = event.SelectedOptionID
	state.lastOptionText = event.SelectedOptionText
	state.lastIsCorrect = &correct
	state.totalAnswered++
	if correct {
		state.totalCorrect++
	}
	state.totalElapsedMillis += event.ElapsedMillis

	r.answeredAll++
	if correct {
		r.correctAll++
	}

	return r.snapshotLocked()
}

func (r *roomMonitor) snapshot() domain.MonitoringSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// snapshotLocked rebuilds the full snapshot from scratch; callers hold r.mu,
// so the result is a consistent point-in-time view and shares no mutable
// state with the monitor.
func (r *roomMonitor) snapshotLocked() domain.MonitoringSnapshot {
	students := make([]domain.StudentMonitoringState, 0, len(r.students))
	ordered := make([]*studentState, 0, len(r.students))
	for _, state := range r.students {
		students = append(students, state.view())
		ordered = append(ordered, state)
	}

	sort.Slice(students, func(i, j int) bool {
		return students[i].StudentName < students[j].StudentName
	})

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].totalAnswered != ordered[j].totalAnswered {
			return ordered[i].totalAnswered > ordered[j].totalAnswered
		}
		return ordered[i].avgResponseMillis() < ordered[j].avgResponseMillis()
	})
	ranking := make([]domain.RankingEntry, 0, len(ordered))
	for i, state := range ordered {
		ranking = append(ranking, domain.RankingEntry{
			StudentID:         state.studentID,
			StudentName:       state.studentName,
			TotalAnswered:     state.totalAnswered,
			AvgResponseMillis: state.avgResponseMillis(),
			Rank:              i + 1,
		})
	}

	global := domain.GlobalMonitoringStats{
		TotalAnsweredAll: r.answeredAll,
		TotalCorrectAll:  r.correctAll,
	}
	if r.answeredAll > 0 {
		global.GlobalAccuracyPct = float64(r.correctAll) / float64(r.answeredAll) * 100
	}

	return domain.MonitoringSnapshot{
		RoomID:   r.roomID,
		Students: students,
		Global:   global,
		Ranking:  ranking,
	}
}

func (s *studentState) view() domain.StudentMonitoringState {
	view := domain.StudentMonitoringState{
		StudentID:          s.studentID,
		StudentName:        s.studentName,
		CurrentGameID:      s.currentGameID,
		CurrentQuestionID:  s.currentQuestionID,
		CurrentQuestion:    s.currentQuestion,
		LastSelectedOption: s.lastSelectedOption,
		LastOptionText:     s.lastOptionText,
		TotalAnswered:      s.totalAnswered,
		TotalCorrect:       s.totalCorrect,
		AvgResponseMillis:  s.avgResponseMillis(),
	}
	if s.lastIsCorrect != nil {
		correct := *s.lastIsCorrect
		view.LastIsCorrect = &correct
	}
	if s.totalAnswered > 0 {
		view.AccuracyPct = float64(s.totalCorrect) / float64(s.totalAnswered) * 100
	}
	return view
}

func (s *studentState) avgResponseMillis() float64 {
	if s.totalAnswered == 0 {
		return 0
	}
	return float64(s.totalElapsedMillis) / float64(s.totalAnswered)
}
