package entities

import (
	"time"
)

type Player struct {
	ID               string `gorm:"primaryKey"`
	GameID           string `gorm:"uniqueIndex:idx_player_game_player;index"`
	PlayerID         string `gorm:"uniqueIndex:idx_player_game_player"`
	Name             string
	Role             Role
	IsAlive          bool
	IsHost           bool
	RoleAcknowledged bool
	ConnectionStatus string
	Seat             int
	JoinedAt         time.Time
}
