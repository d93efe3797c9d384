package core

import (
	"context"

	database "mafia-server/internal/db"
	"mafia-server/internal/entities"
)

// Player returns a member of the room.
func (c *Controller) Player(ctx context.Context, code, playerID string) (entities.Player, error) {
	room, err := loadRoom(ctx, c.store, normalizeCode(code))
	if err != nil {
		return entities.Player{}, err
	}
	player, err := c.store.GetPlayer(ctx, room.ID, playerID)
	if err != nil {
		return entities.Player{}, storeErr(err, "player "+playerID)
	}
	return player, nil
}

// AcknowledgeRole marks that the player has seen their role. Repeating it is
// harmless.
func (c *Controller) AcknowledgeRole(ctx context.Context, code, playerID string) (entities.Player, error) {
	var out entities.Player
	err := c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if room.Phase != entities.PhaseRoleAssignment {
			return wrongPhase(room, "acknowledge a role")
		}
		player, err := tx.GetPlayer(ctx, room.ID, playerID)
		if err != nil {
			return storeErr(err, "player "+playerID)
		}
		if !player.RoleAcknowledged {
			player.RoleAcknowledged = true
			if err := tx.UpdatePlayer(ctx, player); err != nil {
				return err
			}
		}
		out = player
		return nil
	})
	return out, err
}

// SetConnectionStatus stores what the client reports. The game never reads it.
func (c *Controller) SetConnectionStatus(ctx context.Context, code, playerID, status string) error {
	return c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		player, err := tx.GetPlayer(ctx, room.ID, playerID)
		if err != nil {
			return storeErr(err, "player "+playerID)
		}
		if player.ConnectionStatus == status {
			return nil
		}
		player.ConnectionStatus = status
		return tx.UpdatePlayer(ctx, player)
	})
}
