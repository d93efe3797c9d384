package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"mafia-server/internal/entities"
)

// SQLStore persists entities through gorm. The game state of a room is kept
// as a JSON column.
type SQLStore struct {
	db *gorm.DB
}

func OpenSQLite(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// sqlite allows a single writer
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	return NewSQLStore(db)
}

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	err := db.AutoMigrate(
		&entities.Room{},
		&entities.Player{},
		&entities.NameSuggestion{},
		&entities.NameVote{},
		&entities.ActionLogEntry{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Info().Msg("DB Init finished")
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLStore{db: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// ---------- Rooms ----------

func (s *SQLStore) CreateRoom(ctx context.Context, room entities.Room) error {
	room.Code = strings.ToUpper(room.Code)
	var n int64
	if err := s.db.WithContext(ctx).Model(&entities.Room{}).Where("code = ?", room.Code).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: room code %s already exists", ErrConflict, room.Code)
	}
	return translate(s.db.WithContext(ctx).Create(&room).Error)
}

func (s *SQLStore) GetRoomByCode(ctx context.Context, code string) (entities.Room, error) {
	var room entities.Room
	tx := s.db.WithContext(ctx).First(&room, "code = ?", strings.ToUpper(code))
	return room, translate(tx.Error)
}

func (s *SQLStore) ListRooms(ctx context.Context) ([]entities.Room, error) {
	var rooms []entities.Room
	tx := s.db.WithContext(ctx).Order("created_at").Find(&rooms)
	return rooms, tx.Error
}

func (s *SQLStore) UpdateRoom(ctx context.Context, room entities.Room) error {
	return s.update(ctx, &entities.Room{}, room.ID, &room)
}

// ---------- Players ----------

func (s *SQLStore) AddPlayer(ctx context.Context, player entities.Player) error {
	if err := s.ensureAbsent(ctx, &entities.Player{}, player.GameID, player.PlayerID); err != nil {
		return err
	}
	return translate(s.db.WithContext(ctx).Create(&player).Error)
}

func (s *SQLStore) GetPlayer(ctx context.Context, gameID, playerID string) (entities.Player, error) {
	var player entities.Player
	tx := s.db.WithContext(ctx).First(&player, "game_id = ? AND player_id = ?", gameID, playerID)
	return player, translate(tx.Error)
}

func (s *SQLStore) GetPlayersByRoom(ctx context.Context, gameID string) ([]entities.Player, error) {
	var players []entities.Player
	tx := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("seat").Find(&players)
	return players, tx.Error
}

func (s *SQLStore) UpdatePlayer(ctx context.Context, player entities.Player) error {
	return s.update(ctx, &entities.Player{}, player.ID, &player)
}

// ---------- Town names ----------

func (s *SQLStore) AddSuggestion(ctx context.Context, suggestion entities.NameSuggestion) error {
	if err := s.ensureAbsent(ctx, &entities.NameSuggestion{}, suggestion.GameID, suggestion.PlayerID); err != nil {
		return err
	}
	return translate(s.db.WithContext(ctx).Create(&suggestion).Error)
}

func (s *SQLStore) GetSuggestion(ctx context.Context, gameID, id string) (entities.NameSuggestion, error) {
	var suggestion entities.NameSuggestion
	tx := s.db.WithContext(ctx).First(&suggestion, "game_id = ? AND id = ?", gameID, id)
	return suggestion, translate(tx.Error)
}

func (s *SQLStore) GetSuggestionsByRoom(ctx context.Context, gameID string) ([]entities.NameSuggestion, error) {
	var suggestions []entities.NameSuggestion
	tx := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("created_at, id").Find(&suggestions)
	return suggestions, tx.Error
}

func (s *SQLStore) UpdateSuggestion(ctx context.Context, suggestion entities.NameSuggestion) error {
	return s.update(ctx, &entities.NameSuggestion{}, suggestion.ID, &suggestion)
}

func (s *SQLStore) AddVote(ctx context.Context, vote entities.NameVote) error {
	if err := s.ensureAbsent(ctx, &entities.NameVote{}, vote.GameID, vote.PlayerID); err != nil {
		return err
	}
	return translate(s.db.WithContext(ctx).Create(&vote).Error)
}

func (s *SQLStore) GetVotesByRoom(ctx context.Context, gameID string) ([]entities.NameVote, error) {
	var votes []entities.NameVote
	tx := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("created_at").Find(&votes)
	return votes, tx.Error
}

func (s *SQLStore) GetVoteByPlayer(ctx context.Context, gameID, playerID string) (entities.NameVote, error) {
	var vote entities.NameVote
	tx := s.db.WithContext(ctx).First(&vote, "game_id = ? AND player_id = ?", gameID, playerID)
	return vote, translate(tx.Error)
}

// ---------- Action log ----------

func (s *SQLStore) AddActionLogEntry(ctx context.Context, entry entities.ActionLogEntry) error {
	if entry.Seq == 0 {
		var n int64
		err := s.db.WithContext(ctx).Model(&entities.ActionLogEntry{}).Where("game_id = ?", entry.GameID).Count(&n).Error
		if err != nil {
			return err
		}
		entry.Seq = int(n) + 1
	}
	return translate(s.db.WithContext(ctx).Create(&entry).Error)
}

func (s *SQLStore) GetActionsByRoomPhaseDay(ctx context.Context, gameID string, phase entities.Phase, day int) ([]entities.ActionLogEntry, error) {
	var entries []entities.ActionLogEntry
	tx := s.db.WithContext(ctx).
		Where("game_id = ? AND phase = ? AND day = ?", gameID, phase, day).
		Order("seq").
		Find(&entries)
	return entries, tx.Error
}

func (s *SQLStore) ensureAbsent(ctx context.Context, model interface{}, gameID, playerID string) error {
	var n int64
	err := s.db.WithContext(ctx).Model(model).Where("game_id = ? AND player_id = ?", gameID, playerID).Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %s already submitted", ErrConflict, playerID)
	}
	return nil
}

func (s *SQLStore) update(ctx context.Context, model interface{}, id string, values interface{}) error {
	tx := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Select("*").Updates(values)
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
