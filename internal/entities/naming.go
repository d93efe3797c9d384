package entities

import (
	"time"
)

type NameSuggestion struct {
	ID         string `gorm:"primaryKey"`
	GameID     string `gorm:"uniqueIndex:idx_suggestion_game_player;index"`
	PlayerID   string `gorm:"uniqueIndex:idx_suggestion_game_player"`
	Suggestion string
	Votes      int
	CreatedAt  time.Time
}

type NameVote struct {
	ID           string `gorm:"primaryKey"`
	GameID       string `gorm:"uniqueIndex:idx_vote_game_player;index"`
	PlayerID     string `gorm:"uniqueIndex:idx_vote_game_player"`
	SuggestionID string
	CreatedAt    time.Time
}
