package database

import (
	"context"
	"errors"

	"mafia-server/internal/entities"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Store is the key-indexed access layer for every game entity. It holds no
// game rules. Implementations are strongly consistent: a write is visible to
// the next read.
type Store interface {
	CreateRoom(ctx context.Context, room entities.Room) error
	GetRoomByCode(ctx context.Context, code string) (entities.Room, error)
	ListRooms(ctx context.Context) ([]entities.Room, error)
	UpdateRoom(ctx context.Context, room entities.Room) error

	AddPlayer(ctx context.Context, player entities.Player) error
	GetPlayer(ctx context.Context, gameID, playerID string) (entities.Player, error)
	GetPlayersByRoom(ctx context.Context, gameID string) ([]entities.Player, error)
	UpdatePlayer(ctx context.Context, player entities.Player) error

	AddSuggestion(ctx context.Context, suggestion entities.NameSuggestion) error
	GetSuggestion(ctx context.Context, gameID, id string) (entities.NameSuggestion, error)
	GetSuggestionsByRoom(ctx context.Context, gameID string) ([]entities.NameSuggestion, error)
	UpdateSuggestion(ctx context.Context, suggestion entities.NameSuggestion) error

	AddVote(ctx context.Context, vote entities.NameVote) error
	GetVotesByRoom(ctx context.Context, gameID string) ([]entities.NameVote, error)
	GetVoteByPlayer(ctx context.Context, gameID, playerID string) (entities.NameVote, error)

	AddActionLogEntry(ctx context.Context, entry entities.ActionLogEntry) error
	GetActionsByRoomPhaseDay(ctx context.Context, gameID string, phase entities.Phase, day int) ([]entities.ActionLogEntry, error)

	// Atomically runs fn against a transactional view of the store. Every
	// write made through tx is committed if fn returns nil and discarded
	// otherwise. tx must not be used after fn returns.
	Atomically(ctx context.Context, fn func(tx Store) error) error
}
