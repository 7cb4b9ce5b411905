package redis

import (
	"testing"
	"time"

	"gameroom-service/internal/app"
	"gameroom-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestPresenceStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewPresenceStore(client, time.Minute)

	_ = store.GetOrCreate("room-1")
	if !mr.Exists("room:presence:room-1") {
		t.Fatalf("expected redis key to be set")
	}

	store.DeleteIfEmpty("room-1")
	if mr.Exists("room:presence:room-1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestPresenceStoreKeepsNonEmptyRoom(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewPresenceStore(client, time.Minute)
	presence := app.NewPresenceService(store)

	presence.Join("room-1", domain.Participant{UserID: "u1", Name: "Alice"})

	store.DeleteIfEmpty("room-1")
	if _, ok := store.Get("room-1"); !ok {
		t.Fatalf("expected occupied room to survive")
	}
	if !mr.Exists("room:presence:room-1") {
		t.Fatalf("expected redis key to survive while occupied")
	}
}
