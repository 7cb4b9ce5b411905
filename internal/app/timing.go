package app

import (
	"time"

	"gameroom-service/internal/domain"
)

// deriveTiming recomputes a room's timing fields and status from wall-clock
// time. It is pure: the input room is copied, the returned flag tells the
// caller whether anything changed and a write-back is needed.
func deriveTiming(room domain.Room, now time.Time) (domain.Room, bool) {
	changed := false

	switch {
	case room.Status == domain.RoomActive:
		if room.StartsAt == nil {
			// First activation observed on a read path.
			starts := now
			room.StartsAt = &starts
			changed = true
		}
		if room.EndsAt == nil {
			ends := room.StartsAt.Add(time.Duration(room.DurationMinutes) * time.Minute)
			room.EndsAt = &ends
			changed = true
		}
		if !room.IsActive {
			room.IsActive = true
			changed = true
		}
		if room.EndsAt != nil && now.After(*room.EndsAt) {
			room.Status = domain.RoomFinished
			room.IsActive = false
			changed = true
		}
	case room.Status == domain.RoomFinished && room.IsActive:
		room.IsActive = false
		changed = true
	}

	if changed {
		touched := now
		room.UpdatedAt = &touched
	}
	return room, changed
}
