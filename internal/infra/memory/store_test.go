package memory

import (
	"context"
	"testing"
	"time"

	"gameroom-service/internal/app"
	"gameroom-service/internal/domain"
)

func testRoom(id, code string) domain.Room {
	return domain.Room{
		ID:              id,
		Code:            code,
		Name:            "Room " + id,
		Games:           []domain.GameKind{domain.GameImageWord},
		Difficulty:      domain.DifficultyEasy,
		DurationMinutes: 10,
		Status:          domain.RoomPending,
		CreatedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStoreRoomRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.SaveRoom(ctx, testRoom("r1", "ABC123")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Code != "ABC123" {
		t.Fatalf("unexpected code %q", got.Code)
	}

	_, err = store.GetRoom(ctx, "missing")
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	room := testRoom("r1", "ABC123")
	room.Students = []domain.Student{{ID: "s1", Name: "Alice"}}
	if _, err := store.SaveRoom(ctx, room); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Students[0].Name = "Mallory"
	got.Games[0] = domain.GameRhyme

	again, err := store.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.Students[0].Name != "Alice" {
		t.Fatalf("stored room mutated through returned slice")
	}
	if again.Games[0] != domain.GameImageWord {
		t.Fatalf("stored games mutated through returned slice")
	}
}

func TestFindRoomByCodeIgnoresCase(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.SaveRoom(ctx, testRoom("r1", "ABC123")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.FindRoomByCode(ctx, "abc123")
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	if got.ID != "r1" {
		t.Fatalf("unexpected room %s", got.ID)
	}
	if _, ok, _ := store.FindRoomByCode(ctx, "ZZZZZZ"); ok {
		t.Fatalf("unexpected match for unknown code")
	}
}

func TestListRoomsFiltersByStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	pending := testRoom("r1", "AAAAAA")
	active := testRoom("r2", "BBBBBB")
	active.Status = domain.RoomActive
	for _, room := range []domain.Room{pending, active} {
		if _, err := store.SaveRoom(ctx, room); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	all, err := store.ListRooms(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(all))
	}
	actives, err := store.ListRooms(ctx, domain.RoomActive)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(actives) != 1 || actives[0].ID != "r2" {
		t.Fatalf("unexpected active rooms %+v", actives)
	}
}

func TestStoreAnswerKeyedByIdempotencyKey(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	record := domain.AnswerRecord{
		ID:         "a1",
		RoomID:     "r1",
		StudentID:  "s1",
		QuestionID: "q1",
		Attempt:    1,
		Answer:     "x",
	}
	if _, err := store.SaveAnswer(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.FindAnswerByKey(ctx, record.Key())
	if err != nil || !ok {
		t.Fatalf("expected answer, got ok=%v err=%v", ok, err)
	}
	if got.ID != "a1" {
		t.Fatalf("unexpected id %s", got.ID)
	}

	// Same key overwrites in place rather than adding a row.
	record.Answer = "y"
	if _, err := store.SaveAnswer(ctx, record); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	list, err := store.ListAnswersByRoom(ctx, "r1", app.AnswerFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Answer != "y" {
		t.Fatalf("expected single overwritten record, got %+v", list)
	}

	second := record
	second.ID = "a2"
	second.Attempt = 2
	if _, err := store.SaveAnswer(ctx, second); err != nil {
		t.Fatalf("save attempt 2: %v", err)
	}
	byStudent, err := store.ListAnswersByRoom(ctx, "r1", app.AnswerFilter{StudentID: "s1"})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(byStudent) != 2 {
		t.Fatalf("expected both attempts, got %d", len(byStudent))
	}
	byQuestion, err := store.ListAnswersByRoom(ctx, "r1", app.AnswerFilter{QuestionID: "none"})
	if err != nil {
		t.Fatalf("filter question: %v", err)
	}
	if len(byQuestion) != 0 {
		t.Fatalf("expected no matches, got %d", len(byQuestion))
	}
}

func TestStoreStudentByEmail(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.SaveStudent(ctx, domain.Student{ID: "s1", Name: "Alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.FindStudentByEmail(ctx, "alice@example.com")
	if err != nil || !ok {
		t.Fatalf("expected student, got ok=%v err=%v", ok, err)
	}
	if got.ID != "s1" {
		t.Fatalf("unexpected student %s", got.ID)
	}
	if _, ok, _ := store.FindStudentByEmail(ctx, "bob@example.com"); ok {
		t.Fatalf("unexpected match")
	}
}
