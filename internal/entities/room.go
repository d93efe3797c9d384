package entities

import (
	"time"
)

type Room struct {
	ID             string `gorm:"primaryKey"`
	Code           string `gorm:"uniqueIndex;size:4"`
	HostID         string
	Phase          Phase `gorm:"index"`
	TownName       string
	TownNamingMode TownNamingMode
	CurrentDay     int
	State          GameState `gorm:"serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transition moves the room into the phase of payload. Phase and State are
// only ever changed together through here.
func (r *Room) Transition(payload PhaseState, now time.Time, duration time.Duration) {
	if r.State.Roles == nil {
		r.State.Roles = make(map[string]Role)
	}
	r.Phase = payload.Phase()
	r.State.Payload = payload
	r.State.PhaseStartTime = now
	r.State.PhaseDuration = duration
}

func (r Room) Clone() Room {
	r.State = r.State.Clone()
	return r
}

func (r Room) Expired(now time.Time) bool {
	return r.Phase.Expires() && !now.Before(r.State.Deadline())
}
