package app_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gameroom-service/internal/app"
	"gameroom-service/internal/domain"
	"gameroom-service/internal/infra/memory"
)

// fakeClock lets tests move wall-clock time forward deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRoomFixture(t *testing.T) (*app.RoomService, *memory.Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	return app.NewRoomServiceWithClock(store, clock.Now), store, clock
}

func createTestRoom(t *testing.T, rooms *app.RoomService) domain.Room {
	t.Helper()
	room, err := rooms.CreateRoom(context.Background(), app.CreateRoomRequest{
		Name:            "Reading practice",
		Games:           []domain.GameKind{domain.GameImageWord},
		Difficulty:      domain.DifficultyEasy,
		DurationMinutes: 10,
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func TestCreateRoomGeneratesCode(t *testing.T) {
	rooms, _, _ := newRoomFixture(t)
	room := createTestRoom(t, rooms)

	if len(room.Code) != 6 {
		t.Fatalf("expected 6-char code, got %q", room.Code)
	}
	if room.Code != strings.ToUpper(room.Code) {
		t.Fatalf("expected upper-case code, got %q", room.Code)
	}
	if room.Status != domain.RoomPending {
		t.Fatalf("expected pending room, got %s", room.Status)
	}

	other := createTestRoom(t, rooms)
	if other.Code == room.Code {
		t.Fatalf("expected distinct codes, both %q", room.Code)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	rooms, _, _ := newRoomFixture(t)
	_, err := rooms.CreateRoom(context.Background(), app.CreateRoomRequest{Name: " "})
	if !domain.IsKind(err, domain.KindValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestStartRoomIsIdempotent(t *testing.T) {
	rooms, _, clock := newRoomFixture(t)
	room := createTestRoom(t, rooms)

	started, err := rooms.StartRoom(context.Background(), room.ID, nil, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	firstStart := *started.StartsAt

	clock.Advance(2 * time.Minute)
	again, err := rooms.StartRoom(context.Background(), room.ID, nil, nil)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !again.StartsAt.Equal(firstStart) {
		t.Fatalf("expected startsAt preserved (%v), got %v", firstStart, again.StartsAt)
	}
	if !again.IsActive || again.Status != domain.RoomActive {
		t.Fatalf("expected active room, got status=%s isActive=%v", again.Status, again.IsActive)
	}
	wantEnd := firstStart.Add(10 * time.Minute)
	if !again.EndsAt.Equal(wantEnd) {
		t.Fatalf("expected endsAt=%v, got %v", wantEnd, again.EndsAt)
	}
}

func TestStartRoomWithOverrides(t *testing.T) {
	rooms, _, clock := newRoomFixture(t)
	room := createTestRoom(t, rooms)

	starts := clock.Now().Add(time.Hour)
	ends := starts.Add(30 * time.Minute)
	started, err := rooms.StartRoom(context.Background(), room.ID, &starts, &ends)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !started.StartsAt.Equal(starts) || !started.EndsAt.Equal(ends) {
		t.Fatalf("expected overrides applied, got starts=%v ends=%v", started.StartsAt, started.EndsAt)
	}
}

func TestFinishRoom(t *testing.T) {
	rooms, _, _ := newRoomFixture(t)
	room := createTestRoom(t, rooms)

	if _, err := rooms.StartRoom(context.Background(), room.ID, nil, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	finished, err := rooms.FinishRoom(context.Background(), room.ID, nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if finished.Status != domain.RoomFinished || finished.IsActive {
		t.Fatalf("expected finished inactive room, got status=%s isActive=%v", finished.Status, finished.IsActive)
	}
	if app.AcceptsAnswers(finished) {
		t.Fatalf("finished room must not accept answers")
	}
}

func TestGetRoomAutoExpires(t *testing.T) {
	rooms, _, clock := newRoomFixture(t)
	room := createTestRoom(t, rooms)

	if _, err := rooms.StartRoom(context.Background(), room.ID, nil, nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(11 * time.Minute)
	refreshed, err := rooms.GetRoom(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if refreshed.Status != domain.RoomFinished || refreshed.IsActive {
		t.Fatalf("expected expired room finished, got status=%s isActive=%v", refreshed.Status, refreshed.IsActive)
	}

	// The expiry is persisted, not just derived on the way out.
	stored, err := rooms.GetRoom(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if stored.Status != domain.RoomFinished {
		t.Fatalf("expected persisted expiry, got %s", stored.Status)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	rooms, _, _ := newRoomFixture(t)
	_, err := rooms.GetRoom(context.Background(), "missing")
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetRoomByCodeIsCaseInsensitive(t *testing.T) {
	rooms, _, _ := newRoomFixture(t)
	room := createTestRoom(t, rooms)

	found, err := rooms.GetRoomByCode(context.Background(), strings.ToLower(room.Code))
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if found.ID != room.ID {
		t.Fatalf("expected room %s, got %s", room.ID, found.ID)
	}
}

func TestAddStudentReusesByEmail(t *testing.T) {
	rooms, _, _ := newRoomFixture(t)
	roomA := createTestRoom(t, rooms)
	roomB := createTestRoom(t, rooms)

	first, err := rooms.AddStudent(context.Background(), roomA.ID, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("add student: %v", err)
	}
	second, err := rooms.AddStudent(context.Background(), roomB.ID, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("add student: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same student reused, got %s and %s", first.ID, second.ID)
	}

	enrolled, err := rooms.GetRoom(context.Background(), roomB.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !enrolled.Enrolled(first.ID) {
		t.Fatalf("expected student enrolled in second room")
	}
}

func TestJoinByCode(t *testing.T) {
	rooms, _, _ := newRoomFixture(t)
	room := createTestRoom(t, rooms)

	session, err := rooms.JoinByCode(context.Background(), room.Code, "Bob", "")
	if err != nil {
		t.Fatalf("join by code: %v", err)
	}
	if session.Room.ID != room.ID {
		t.Fatalf("expected room %s, got %s", room.ID, session.Room.ID)
	}
	if session.SessionToken == "" {
		t.Fatalf("expected a session token")
	}
	if !session.Room.Enrolled(session.Student.ID) {
		t.Fatalf("expected student enrolled after join")
	}
}

func TestListRoomsFiltersByRefreshedStatus(t *testing.T) {
	rooms, _, clock := newRoomFixture(t)
	active := createTestRoom(t, rooms)
	createTestRoom(t, rooms) // stays pending

	if _, err := rooms.StartRoom(context.Background(), active.ID, nil, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(11 * time.Minute)

	// The started room expired, so filtering by active yields nothing.
	summaries, err := rooms.ListRooms(context.Background(), domain.RoomActive)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected no active rooms after expiry, got %d", len(summaries))
	}

	finished, err := rooms.ListRooms(context.Background(), domain.RoomFinished)
	if err != nil {
		t.Fatalf("list finished: %v", err)
	}
	if len(finished) != 1 || finished[0].ID != active.ID {
		t.Fatalf("expected the expired room listed as finished, got %+v", finished)
	}
}

func TestConcurrentStartPreservesStartTime(t *testing.T) {
	rooms, _, _ := newRoomFixture(t)
	room := createTestRoom(t, rooms)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = rooms.StartRoom(context.Background(), room.ID, nil, nil)
		}()
	}
	wg.Wait()

	final, err := rooms.GetRoom(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.StartsAt == nil {
		t.Fatalf("expected startsAt set")
	}
	wantEnd := final.StartsAt.Add(10 * time.Minute)
	if !final.EndsAt.Equal(wantEnd) {
		t.Fatalf("expected endsAt derived from one start time, got starts=%v ends=%v", final.StartsAt, final.EndsAt)
	}
}
