package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	database "mafia-server/internal/db"
	"mafia-server/internal/entities"
)

// Membership is a player together with the room they belong to.
type Membership struct {
	Room   entities.Room
	Player entities.Player
}

type CreateRoomRequest struct {
	HostName string
	// PlayerID is generated when empty.
	PlayerID string
	Mode     entities.TownNamingMode
}

// CreateRoom opens a lobby with a fresh code and seats the host in it.
func (c *Controller) CreateRoom(ctx context.Context, req CreateRoomRequest) (Membership, error) {
	name, err := validText(req.HostName, "name")
	if err != nil {
		return Membership{}, err
	}
	mode := req.Mode
	if mode == "" {
		mode = entities.TownNamingHost
	}
	if !mode.Valid() {
		return Membership{}, fmt.Errorf("%w: unknown town naming mode %q", ErrValidation, mode)
	}
	playerID := strings.TrimSpace(req.PlayerID)
	if playerID == "" {
		playerID = uuid.NewString()
	}

	for {
		if err := ctx.Err(); err != nil {
			return Membership{}, err
		}
		now := c.now()
		room := entities.Room{
			ID:             uuid.NewString(),
			Code:           normalizeCode(c.newCode()),
			HostID:         playerID,
			TownNamingMode: mode,
			CreatedAt:      now,
		}
		room.Transition(entities.LobbyState{}, now, 0)
		host := entities.Player{
			ID:       uuid.NewString(),
			GameID:   room.ID,
			PlayerID: playerID,
			Name:     name,
			IsAlive:  true,
			IsHost:   true,
			Seat:     1,
			JoinedAt: now,
		}

		err := c.store.Atomically(ctx, func(tx database.Store) error {
			if err := tx.CreateRoom(ctx, room); err != nil {
				return err
			}
			return tx.AddPlayer(ctx, host)
		})
		if errors.Is(err, database.ErrConflict) {
			c.log.Debug().Str("room", room.Code).Msg("room code taken, retrying")
			continue
		}
		if err != nil {
			return Membership{}, err
		}

		c.log.Info().Str("room", room.Code).Str("player", playerID).Str("mode", string(mode)).Msg("room created")
		return Membership{Room: room, Player: host}, nil
	}
}

// Join seats a new player in a lobby. Names are unique per room ignoring case.
func (c *Controller) Join(ctx context.Context, code, playerID, name string) (Membership, error) {
	name, err := validText(name, "name")
	if err != nil {
		return Membership{}, err
	}
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		playerID = uuid.NewString()
	}

	var out Membership
	err = c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if room.Phase != entities.PhaseLobby {
			return wrongPhase(room, "join")
		}
		players, err := loadPlayers(ctx, tx, room)
		if err != nil {
			return err
		}

		seat := 0
		for _, p := range players {
			if p.PlayerID == playerID {
				return fmt.Errorf("%w: player %s already joined", ErrDuplicateSubmission, playerID)
			}
			if strings.EqualFold(p.Name, name) {
				return fmt.Errorf("%w: name %q is already taken", ErrDuplicateSubmission, name)
			}
			if p.Seat > seat {
				seat = p.Seat
			}
		}

		player := entities.Player{
			ID:       uuid.NewString(),
			GameID:   room.ID,
			PlayerID: playerID,
			Name:     name,
			IsAlive:  true,
			IsHost:   playerID == room.HostID,
			Seat:     seat + 1,
			JoinedAt: c.now(),
		}
		if err := tx.AddPlayer(ctx, player); err != nil {
			return storeErr(err, "player "+playerID)
		}
		out = Membership{Room: room, Player: player}
		return nil
	})
	if err != nil {
		return Membership{}, err
	}

	c.log.Info().Str("room", out.Room.Code).Str("player", playerID).Msg("player joined")
	return out, nil
}

func (c *Controller) SetTownNamingMode(ctx context.Context, code, playerID string, mode entities.TownNamingMode) (entities.Room, error) {
	if !mode.Valid() {
		return entities.Room{}, fmt.Errorf("%w: unknown town naming mode %q", ErrValidation, mode)
	}
	return c.updateRoom(ctx, code, func(room *entities.Room) error {
		if err := requireHost(*room, playerID, "change the naming mode"); err != nil {
			return err
		}
		if room.Phase != entities.PhaseLobby {
			return wrongPhase(*room, "change the naming mode")
		}
		room.TownNamingMode = mode
		return nil
	})
}

// SetTownName lets the host pick the name directly in host naming mode.
func (c *Controller) SetTownName(ctx context.Context, code, playerID, name string) (entities.Room, error) {
	name, err := validText(name, "town name")
	if err != nil {
		return entities.Room{}, err
	}
	return c.updateRoom(ctx, code, func(room *entities.Room) error {
		if err := requireHost(*room, playerID, "name the town"); err != nil {
			return err
		}
		if room.TownNamingMode != entities.TownNamingHost {
			return fmt.Errorf("%w: the town name is being voted on", ErrInvalidPhase)
		}
		if room.Phase != entities.PhaseLobby && room.Phase != entities.PhaseRoleAssignment {
			return wrongPhase(*room, "name the town")
		}
		room.TownName = name
		return nil
	})
}

// Start leaves the lobby. In vote mode the players name the town first,
// otherwise roles are dealt right away.
func (c *Controller) Start(ctx context.Context, code, playerID string) (entities.Room, error) {
	var out entities.Room
	err := c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if err := requireHost(room, playerID, "start the game"); err != nil {
			return err
		}
		if room.Phase != entities.PhaseLobby {
			return wrongPhase(room, "start")
		}
		players, err := loadPlayers(ctx, tx, room)
		if err != nil {
			return err
		}
		if len(players) == 0 {
			return fmt.Errorf("%w: no players in room", ErrValidation)
		}

		if room.TownNamingMode == entities.TownNamingVote {
			err = c.transition(&room, entities.TownNamingState{}, c.timings.TownNaming)
		} else {
			err = c.dealRoles(ctx, tx, &room, players, c.timings.HostRoleReveal)
		}
		if err != nil {
			return err
		}
		if err := tx.UpdateRoom(ctx, room); err != nil {
			return err
		}
		out = room
		return nil
	})
	if err != nil {
		return entities.Room{}, err
	}
	c.log.Info().Str("room", out.Code).Str("phase", string(out.Phase)).Msg("game started")
	return out, nil
}

// updateRoom applies fn to the room and saves it, without touching players.
func (c *Controller) updateRoom(ctx context.Context, code string, fn func(room *entities.Room) error) (entities.Room, error) {
	var out entities.Room
	err := c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if err := fn(&room); err != nil {
			return err
		}
		if err := tx.UpdateRoom(ctx, room); err != nil {
			return err
		}
		out = room
		return nil
	})
	return out, err
}

// dealRoles shuffles the role template over the players in seat order and
// opens role assignment.
func (c *Controller) dealRoles(ctx context.Context, tx database.Store, room *entities.Room, players []entities.Player, d time.Duration) error {
	roles := AssignRoles(len(players), c.rand)
	if err := c.transition(room, entities.RoleAssignmentState{}, d); err != nil {
		return err
	}
	room.State.Roles = make(map[string]entities.Role, len(players))
	for i := range players {
		players[i].Role = roles[i]
		players[i].RoleAcknowledged = false
		room.State.Roles[players[i].PlayerID] = roles[i]
		if err := tx.UpdatePlayer(ctx, players[i]); err != nil {
			return err
		}
	}
	c.log.Info().Str("room", room.Code).Int("players", len(players)).Msg("roles assigned")
	return nil
}
