package app_test

import (
	"testing"

	"gameroom-service/internal/app"
	"gameroom-service/internal/domain"
	"gameroom-service/internal/infra/memory"
)

func TestJoinOrdersByNameAndReplacesRejoin(t *testing.T) {
	presence := app.NewPresenceService(memory.NewPresenceStore())

	presence.Join("room-1", domain.Participant{UserID: "u2", Name: "Zoe"})
	users := presence.Join("room-1", domain.Participant{UserID: "u1", Name: "Ana"})
	if len(users) != 2 || users[0].Name != "Ana" || users[1].Name != "Zoe" {
		t.Fatalf("expected name-ordered list, got %+v", users)
	}

	// Rejoining with the same id replaces the prior entry.
	users = presence.Join("room-1", domain.Participant{UserID: "u2", Name: "Zoey"})
	if len(users) != 2 {
		t.Fatalf("expected rejoin to replace, got %d entries", len(users))
	}
	if users[1].Name != "Zoey" {
		t.Fatalf("expected updated name, got %+v", users)
	}
}

func TestLeaveUnknownRoomReturnsEmpty(t *testing.T) {
	presence := app.NewPresenceService(memory.NewPresenceStore())
	users := presence.Leave("nowhere", domain.Participant{UserID: "u1", Name: "Ana"})
	if len(users) != 0 {
		t.Fatalf("expected empty list, got %+v", users)
	}
}

func TestLeaveRemovesAndDropsEmptyRoom(t *testing.T) {
	store := memory.NewPresenceStore()
	presence := app.NewPresenceService(store)

	presence.Join("room-1", domain.Participant{UserID: "u1", Name: "Ana"})
	users := presence.Leave("room-1", domain.Participant{UserID: "u1", Name: "Ana"})
	if len(users) != 0 {
		t.Fatalf("expected empty room, got %+v", users)
	}
	if _, ok := store.Get("room-1"); ok {
		t.Fatalf("expected empty room dropped from store")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	presence := app.NewPresenceService(memory.NewPresenceStore())

	if status := presence.LiveStatus("room-1"); status != domain.LiveWaiting {
		t.Fatalf("expected waiting before start, got %s", status)
	}
	if status := presence.Start("room-1"); status != domain.LiveStarted {
		t.Fatalf("expected started, got %s", status)
	}
	if status := presence.Start("room-1"); status != domain.LiveStarted {
		t.Fatalf("expected started after repeat, got %s", status)
	}
}
