package app

import (
	"testing"
	"time"

	"gameroom-service/internal/domain"
)

func TestDeriveTimingFirstActivation(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	room := domain.Room{Status: domain.RoomActive, DurationMinutes: 10}

	refreshed, changed := deriveTiming(room, now)
	if !changed {
		t.Fatalf("expected change on first activation")
	}
	if refreshed.StartsAt == nil || !refreshed.StartsAt.Equal(now) {
		t.Fatalf("expected startsAt=%v, got %v", now, refreshed.StartsAt)
	}
	wantEnd := now.Add(10 * time.Minute)
	if refreshed.EndsAt == nil || !refreshed.EndsAt.Equal(wantEnd) {
		t.Fatalf("expected endsAt=%v, got %v", wantEnd, refreshed.EndsAt)
	}
	if !refreshed.IsActive {
		t.Fatalf("expected isActive")
	}
}

func TestDeriveTimingAutoExpiry(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)
	room := domain.Room{
		Status:          domain.RoomActive,
		IsActive:        true,
		DurationMinutes: 10,
		StartsAt:        &start,
		EndsAt:          &end,
	}

	refreshed, changed := deriveTiming(room, start.Add(11*time.Minute))
	if !changed {
		t.Fatalf("expected change past the end time")
	}
	if refreshed.Status != domain.RoomFinished {
		t.Fatalf("expected finished, got %s", refreshed.Status)
	}
	if refreshed.IsActive {
		t.Fatalf("expected isActive=false after expiry")
	}
}

func TestDeriveTimingFinishedForcesInactive(t *testing.T) {
	room := domain.Room{Status: domain.RoomFinished, IsActive: true}
	refreshed, changed := deriveTiming(room, time.Now())
	if !changed || refreshed.IsActive {
		t.Fatalf("expected finished room to be forced inactive, changed=%v isActive=%v", changed, refreshed.IsActive)
	}
}

func TestDeriveTimingNoChange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)
	room := domain.Room{
		Status:          domain.RoomActive,
		IsActive:        true,
		DurationMinutes: 10,
		StartsAt:        &start,
		EndsAt:          &end,
	}
	if _, changed := deriveTiming(room, start.Add(time.Minute)); changed {
		t.Fatalf("expected no change mid-session")
	}

	pending := domain.Room{Status: domain.RoomPending}
	if _, changed := deriveTiming(pending, time.Now()); changed {
		t.Fatalf("expected no change for pending room")
	}
}
