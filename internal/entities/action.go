package entities

import (
	"time"
)

// ActionLogEntry is an append-only record of a gameplay action.
type ActionLogEntry struct {
	ID         string `gorm:"primaryKey"`
	GameID     string `gorm:"index:idx_action_lookup"`
	PlayerID   string
	Phase      Phase `gorm:"index:idx_action_lookup"`
	Day        int   `gorm:"index:idx_action_lookup"`
	ActionType ActionType
	TargetID   string
	Data       map[string]string `gorm:"serializer:json"`
	Seq        int
	CreatedAt  time.Time
}
