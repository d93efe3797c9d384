package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-memdb"
	"mafia-server/internal/entities"
)

const (
	roomTable       = "room"
	playerTable     = "player"
	suggestionTable = "suggestion"
	voteTable       = "vote"
	actionTable     = "action"
)

func memSchema() *memdb.DBSchema {
	gamePlayer := func() *memdb.IndexSchema {
		return &memdb.IndexSchema{
			Name:   "game_player",
			Unique: true,
			Indexer: &memdb.CompoundIndex{Indexes: []memdb.Indexer{
				&memdb.StringFieldIndex{Field: "GameID"},
				&memdb.StringFieldIndex{Field: "PlayerID"},
			}},
		}
	}
	byID := &memdb.IndexSchema{Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}}
	byGame := &memdb.IndexSchema{Name: "game", Indexer: &memdb.StringFieldIndex{Field: "GameID"}}

	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			roomTable: {
				Name: roomTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id":   byID,
					"code": {Name: "code", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Code", Lowercase: true}},
				},
			},
			playerTable: {
				Name: playerTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id":          byID,
					"game":        byGame,
					"game_player": gamePlayer(),
				},
			},
			suggestionTable: {
				Name: suggestionTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id":          byID,
					"game":        byGame,
					"game_player": gamePlayer(),
				},
			},
			voteTable: {
				Name: voteTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id":          byID,
					"game":        byGame,
					"game_player": gamePlayer(),
				},
			},
			actionTable: {
				Name: actionTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id":   byID,
					"game": byGame,
					"lookup": {
						Name: "lookup",
						Indexer: &memdb.CompoundIndex{Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "GameID"},
							&memdb.StringFieldIndex{Field: "Phase"},
							&memdb.IntFieldIndex{Field: "Day"},
						}},
					},
				},
			},
		},
	}
}

// MemoryStore keeps every entity in a go-memdb database. Each instance is
// independent, so tests can use a fresh one per case.
type MemoryStore struct {
	db *memdb.MemDB
}

func NewMemoryStore() (*MemoryStore, error) {
	db, err := memdb.NewMemDB(memSchema())
	if err != nil {
		return nil, fmt.Errorf("memdb schema: %w", err)
	}
	return &MemoryStore{db: db}, nil
}

func read[T any](s *MemoryStore, fn func(t *memTxn) (T, error)) (T, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return fn(&memTxn{txn: txn})
}

func (s *MemoryStore) write(fn func(t *memTxn) error) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := fn(&memTxn{txn: txn}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) Atomically(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(func(t *memTxn) error { return fn(t) })
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room entities.Room) error {
	return s.write(func(t *memTxn) error { return t.CreateRoom(ctx, room) })
}

func (s *MemoryStore) GetRoomByCode(ctx context.Context, code string) (entities.Room, error) {
	return read(s, func(t *memTxn) (entities.Room, error) { return t.GetRoomByCode(ctx, code) })
}

func (s *MemoryStore) ListRooms(ctx context.Context) ([]entities.Room, error) {
	return read(s, func(t *memTxn) ([]entities.Room, error) { return t.ListRooms(ctx) })
}

func (s *MemoryStore) UpdateRoom(ctx context.Context, room entities.Room) error {
	return s.write(func(t *memTxn) error { return t.UpdateRoom(ctx, room) })
}

func (s *MemoryStore) AddPlayer(ctx context.Context, player entities.Player) error {
	return s.write(func(t *memTxn) error { return t.AddPlayer(ctx, player) })
}

func (s *MemoryStore) GetPlayer(ctx context.Context, gameID, playerID string) (entities.Player, error) {
	return read(s, func(t *memTxn) (entities.Player, error) { return t.GetPlayer(ctx, gameID, playerID) })
}

func (s *MemoryStore) GetPlayersByRoom(ctx context.Context, gameID string) ([]entities.Player, error) {
	return read(s, func(t *memTxn) ([]entities.Player, error) { return t.GetPlayersByRoom(ctx, gameID) })
}

func (s *MemoryStore) UpdatePlayer(ctx context.Context, player entities.Player) error {
	return s.write(func(t *memTxn) error { return t.UpdatePlayer(ctx, player) })
}

func (s *MemoryStore) AddSuggestion(ctx context.Context, suggestion entities.NameSuggestion) error {
	return s.write(func(t *memTxn) error { return t.AddSuggestion(ctx, suggestion) })
}

func (s *MemoryStore) GetSuggestion(ctx context.Context, gameID, id string) (entities.NameSuggestion, error) {
	return read(s, func(t *memTxn) (entities.NameSuggestion, error) { return t.GetSuggestion(ctx, gameID, id) })
}

func (s *MemoryStore) GetSuggestionsByRoom(ctx context.Context, gameID string) ([]entities.NameSuggestion, error) {
	return read(s, func(t *memTxn) ([]entities.NameSuggestion, error) { return t.GetSuggestionsByRoom(ctx, gameID) })
}

func (s *MemoryStore) UpdateSuggestion(ctx context.Context, suggestion entities.NameSuggestion) error {
	return s.write(func(t *memTxn) error { return t.UpdateSuggestion(ctx, suggestion) })
}

func (s *MemoryStore) AddVote(ctx context.Context, vote entities.NameVote) error {
	return s.write(func(t *memTxn) error { return t.AddVote(ctx, vote) })
}

func (s *MemoryStore) GetVotesByRoom(ctx context.Context, gameID string) ([]entities.NameVote, error) {
	return read(s, func(t *memTxn) ([]entities.NameVote, error) { return t.GetVotesByRoom(ctx, gameID) })
}

func (s *MemoryStore) GetVoteByPlayer(ctx context.Context, gameID, playerID string) (entities.NameVote, error) {
	return read(s, func(t *memTxn) (entities.NameVote, error) { return t.GetVoteByPlayer(ctx, gameID, playerID) })
}

func (s *MemoryStore) AddActionLogEntry(ctx context.Context, entry entities.ActionLogEntry) error {
	return s.write(func(t *memTxn) error { return t.AddActionLogEntry(ctx, entry) })
}

func (s *MemoryStore) GetActionsByRoomPhaseDay(ctx context.Context, gameID string, phase entities.Phase, day int) ([]entities.ActionLogEntry, error) {
	return read(s, func(t *memTxn) ([]entities.ActionLogEntry, error) {
		return t.GetActionsByRoomPhaseDay(ctx, gameID, phase, day)
	})
}

// memTxn implements Store on top of a single memdb transaction. Objects are
// copied on the way in and out so callers never share memory with the
// database.
type memTxn struct {
	txn *memdb.Txn
}

func (t *memTxn) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memTxn) first(table, index string, args ...interface{}) (interface{}, error) {
	raw, err := t.txn.First(table, index, args...)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (t *memTxn) each(table, index string, fn func(raw interface{}), args ...interface{}) error {
	it, err := t.txn.Get(table, index, args...)
	if err != nil {
		return err
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		fn(obj)
	}
	return nil
}

func (t *memTxn) exists(table, index string, args ...interface{}) (bool, error) {
	raw, err := t.txn.First(table, index, args...)
	return raw != nil, err
}

// ---------- Rooms ----------

func (t *memTxn) CreateRoom(_ context.Context, room entities.Room) error {
	if found, err := t.exists(roomTable, "code", room.Code); err != nil || found {
		return conflictOr(err, "room code %s", room.Code)
	}
	if found, err := t.exists(roomTable, "id", room.ID); err != nil || found {
		return conflictOr(err, "room %s", room.ID)
	}
	room = room.Clone()
	return t.txn.Insert(roomTable, &room)
}

func (t *memTxn) GetRoomByCode(_ context.Context, code string) (entities.Room, error) {
	raw, err := t.first(roomTable, "code", code)
	if err != nil {
		return entities.Room{}, err
	}
	return raw.(*entities.Room).Clone(), nil
}

func (t *memTxn) ListRooms(_ context.Context) ([]entities.Room, error) {
	var rooms []entities.Room
	err := t.each(roomTable, "id", func(raw interface{}) {
		rooms = append(rooms, raw.(*entities.Room).Clone())
	})
	return rooms, err
}

func (t *memTxn) UpdateRoom(_ context.Context, room entities.Room) error {
	if _, err := t.first(roomTable, "id", room.ID); err != nil {
		return err
	}
	room = room.Clone()
	return t.txn.Insert(roomTable, &room)
}

// ---------- Players ----------

func (t *memTxn) AddPlayer(_ context.Context, player entities.Player) error {
	if found, err := t.exists(playerTable, "game_player", player.GameID, player.PlayerID); err != nil || found {
		return conflictOr(err, "player %s", player.PlayerID)
	}
	return t.txn.Insert(playerTable, &player)
}

func (t *memTxn) GetPlayer(_ context.Context, gameID, playerID string) (entities.Player, error) {
	raw, err := t.first(playerTable, "game_player", gameID, playerID)
	if err != nil {
		return entities.Player{}, err
	}
	return *raw.(*entities.Player), nil
}

func (t *memTxn) GetPlayersByRoom(_ context.Context, gameID string) ([]entities.Player, error) {
	var players []entities.Player
	err := t.each(playerTable, "game", func(raw interface{}) {
		players = append(players, *raw.(*entities.Player))
	}, gameID)
	sort.SliceStable(players, func(i, j int) bool { return players[i].Seat < players[j].Seat })
	return players, err
}

func (t *memTxn) UpdatePlayer(_ context.Context, player entities.Player) error {
	if _, err := t.first(playerTable, "id", player.ID); err != nil {
		return err
	}
	return t.txn.Insert(playerTable, &player)
}

// ---------- Town names ----------

func (t *memTxn) AddSuggestion(_ context.Context, suggestion entities.NameSuggestion) error {
	if found, err := t.exists(suggestionTable, "game_player", suggestion.GameID, suggestion.PlayerID); err != nil || found {
		return conflictOr(err, "suggestion from %s", suggestion.PlayerID)
	}
	return t.txn.Insert(suggestionTable, &suggestion)
}

func (t *memTxn) GetSuggestion(_ context.Context, gameID, id string) (entities.NameSuggestion, error) {
	raw, err := t.first(suggestionTable, "id", id)
	if err != nil {
		return entities.NameSuggestion{}, err
	}
	suggestion := *raw.(*entities.NameSuggestion)
	if suggestion.GameID != gameID {
		return entities.NameSuggestion{}, ErrNotFound
	}
	return suggestion, nil
}

func (t *memTxn) GetSuggestionsByRoom(_ context.Context, gameID string) ([]entities.NameSuggestion, error) {
	var suggestions []entities.NameSuggestion
	err := t.each(suggestionTable, "game", func(raw interface{}) {
		suggestions = append(suggestions, *raw.(*entities.NameSuggestion))
	}, gameID)
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].CreatedAt.Equal(suggestions[j].CreatedAt) {
			return suggestions[i].ID < suggestions[j].ID
		}
		return suggestions[i].CreatedAt.Before(suggestions[j].CreatedAt)
	})
	return suggestions, err
}

func (t *memTxn) UpdateSuggestion(_ context.Context, suggestion entities.NameSuggestion) error {
	if _, err := t.first(suggestionTable, "id", suggestion.ID); err != nil {
		return err
	}
	return t.txn.Insert(suggestionTable, &suggestion)
}

func (t *memTxn) AddVote(_ context.Context, vote entities.NameVote) error {
	if found, err := t.exists(voteTable, "game_player", vote.GameID, vote.PlayerID); err != nil || found {
		return conflictOr(err, "vote from %s", vote.PlayerID)
	}
	return t.txn.Insert(voteTable, &vote)
}

func (t *memTxn) GetVotesByRoom(_ context.Context, gameID string) ([]entities.NameVote, error) {
	var votes []entities.NameVote
	err := t.each(voteTable, "game", func(raw interface{}) {
		votes = append(votes, *raw.(*entities.NameVote))
	}, gameID)
	return votes, err
}

func (t *memTxn) GetVoteByPlayer(_ context.Context, gameID, playerID string) (entities.NameVote, error) {
	raw, err := t.first(voteTable, "game_player", gameID, playerID)
	if err != nil {
		return entities.NameVote{}, err
	}
	return *raw.(*entities.NameVote), nil
}

// ---------- Action log ----------

func (t *memTxn) AddActionLogEntry(_ context.Context, entry entities.ActionLogEntry) error {
	if found, err := t.exists(actionTable, "id", entry.ID); err != nil || found {
		return conflictOr(err, "action %s", entry.ID)
	}
	if entry.Seq == 0 {
		n := 0
		if err := t.each(actionTable, "game", func(interface{}) { n++ }, entry.GameID); err != nil {
			return err
		}
		entry.Seq = n + 1
	}
	entry.Data = copyData(entry.Data)
	return t.txn.Insert(actionTable, &entry)
}

func (t *memTxn) GetActionsByRoomPhaseDay(_ context.Context, gameID string, phase entities.Phase, day int) ([]entities.ActionLogEntry, error) {
	var entries []entities.ActionLogEntry
	err := t.each(actionTable, "lookup", func(raw interface{}) {
		entry := *raw.(*entities.ActionLogEntry)
		entry.Data = copyData(entry.Data)
		entries = append(entries, entry)
	}, gameID, string(phase), day)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, err
}

func copyData(data map[string]string) map[string]string {
	if data == nil {
		return nil
	}
	c := make(map[string]string, len(data))
	for k, v := range data {
		c[k] = v
	}
	return c
}

func conflictOr(err error, format string, args ...interface{}) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s already exists", ErrConflict, fmt.Sprintf(format, args...))
}
