package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	database "mafia-server/internal/db"
	"mafia-server/internal/entities"
)

const (
	VoteYes = "yes"
	VoteNo  = "no"
)

// StartGameplay begins the first night once every player has seen their role.
func (c *Controller) StartGameplay(ctx context.Context, code, playerID string) (entities.Room, error) {
	var out entities.Room
	err := c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if room.Phase != entities.PhaseRoleAssignment {
			return wrongPhase(room, "start gameplay")
		}
		if err := requireHost(room, playerID, "start gameplay"); err != nil {
			return err
		}
		players, err := loadPlayers(ctx, tx, room)
		if err != nil {
			return err
		}
		waiting := 0
		for _, p := range players {
			if !p.RoleAcknowledged {
				waiting++
			}
		}
		if waiting > 0 {
			return fmt.Errorf("%w: %d players have not acknowledged their role", ErrInvalidPhase, waiting)
		}

		if err := c.transition(&room, entities.NewNightState(), c.timings.Night); err != nil {
			return err
		}
		room.CurrentDay = 1
		if err := tx.UpdateRoom(ctx, room); err != nil {
			return err
		}
		out = room
		return nil
	})
	if err != nil {
		return entities.Room{}, err
	}
	c.log.Info().Str("room", out.Code).Msg("gameplay started")
	return out, nil
}

type NightActionRequest struct {
	PlayerID   string
	ActionType entities.ActionType
	TargetID   string
	Data       map[string]string
}

// SubmitNightAction logs a night action. A later submission by the same
// player replaces the active one for that night.
func (c *Controller) SubmitNightAction(ctx context.Context, code string, req NightActionRequest) (entities.ActionLogEntry, error) {
	var out entities.ActionLogEntry
	err := c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if room.Phase != entities.PhaseNight {
			return wrongPhase(room, "act at night")
		}
		players, err := loadPlayers(ctx, tx, room)
		if err != nil {
			return err
		}
		if _, err := livingMember(players, req.PlayerID); err != nil {
			return err
		}

		switch req.ActionType {
		case entities.ActionKill, entities.ActionInvestigate, entities.ActionSave, entities.ActionBlock, entities.ActionSkip:
		default:
			return fmt.Errorf("%w: unknown night action %q", ErrValidation, req.ActionType)
		}
		role := room.State.Roles[req.PlayerID]
		if !role.CanPerform(req.ActionType) {
			return fmt.Errorf("%w: a %s cannot %s", ErrUnauthorized, role, req.ActionType)
		}

		target := ""
		if req.ActionType.NeedsTarget() {
			if req.TargetID == "" {
				return fmt.Errorf("%w: %s needs a target", ErrValidation, req.ActionType)
			}
			t, err := member(players, req.TargetID)
			if err != nil {
				return err
			}
			if !t.IsAlive {
				return fmt.Errorf("%w: target %s has been eliminated", ErrValidation, req.TargetID)
			}
			target = t.PlayerID
		}

		out = entities.ActionLogEntry{
			ID:         uuid.NewString(),
			GameID:     room.ID,
			PlayerID:   req.PlayerID,
			Phase:      entities.PhaseNight,
			Day:        room.CurrentDay,
			ActionType: req.ActionType,
			TargetID:   target,
			Data:       req.Data,
			CreatedAt:  c.now(),
		}
		if err := tx.AddActionLogEntry(ctx, out); err != nil {
			return err
		}

		night, ok := room.State.Payload.(*entities.NightState)
		if !ok {
			return fmt.Errorf("night room %s carries %T", room.Code, room.State.Payload)
		}
		if night.NightActions == nil {
			night.NightActions = make(map[string]entities.NightAction)
		}
		night.NightActions[req.PlayerID] = entities.NightAction{ActionType: req.ActionType, TargetID: target}
		return tx.UpdateRoom(ctx, room)
	})
	if err != nil {
		return entities.ActionLogEntry{}, err
	}
	c.log.Debug().Str("room", normalizeCode(code)).Str("player", out.PlayerID).Int("day", out.Day).Msg("night action recorded")
	return out, nil
}

// Nominate puts a living player on trial and opens the elimination vote.
func (c *Controller) Nominate(ctx context.Context, code, playerID, targetID string) (entities.Room, error) {
	var out entities.Room
	err := c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if room.Phase != entities.PhaseDay {
			return wrongPhase(room, "nominate")
		}
		players, err := loadPlayers(ctx, tx, room)
		if err != nil {
			return err
		}
		if _, err := livingMember(players, playerID); err != nil {
			return err
		}
		if targetID == playerID {
			return fmt.Errorf("%w: players cannot nominate themselves", ErrValidation)
		}
		nominee, err := member(players, targetID)
		if err != nil {
			return err
		}
		if !nominee.IsAlive {
			return fmt.Errorf("%w: nominee %s has been eliminated", ErrValidation, targetID)
		}

		err = tx.AddActionLogEntry(ctx, entities.ActionLogEntry{
			ID:         uuid.NewString(),
			GameID:     room.ID,
			PlayerID:   playerID,
			Phase:      entities.PhaseDay,
			Day:        room.CurrentDay,
			ActionType: entities.ActionNominate,
			TargetID:   targetID,
			CreatedAt:  c.now(),
		})
		if err != nil {
			return err
		}

		if err := c.transition(&room, entities.NewVotingState(targetID, playerID), c.timings.Voting); err != nil {
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
	c.log.Info().Str("room", out.Code).Str("player", playerID).Str("nominee", targetID).Msg("player nominated")
	return out, nil
}

// CastVote records a yes or no on the current nominee. The vote is resolved
// as soon as every eligible player has voted.
func (c *Controller) CastVote(ctx context.Context, code, playerID, vote string) (entities.Room, error) {
	vote = strings.ToLower(strings.TrimSpace(vote))
	if vote != VoteYes && vote != VoteNo {
		return entities.Room{}, fmt.Errorf("%w: vote must be %q or %q", ErrValidation, VoteYes, VoteNo)
	}

	var out entities.Room
	err := c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if room.Phase != entities.PhaseVoting {
			return wrongPhase(room, "vote")
		}
		voting, ok := room.State.Payload.(*entities.VotingState)
		if !ok {
			return fmt.Errorf("voting room %s carries %T", room.Code, room.State.Payload)
		}
		players, err := loadPlayers(ctx, tx, room)
		if err != nil {
			return err
		}
		if _, err := member(players, playerID); err != nil {
			return err
		}
		if playerID == voting.Nominee {
			return fmt.Errorf("%w: the nominee cannot vote", ErrUnauthorized)
		}
		if _, err := livingMember(players, playerID); err != nil {
			return err
		}
		if voting.DayVotes == nil {
			voting.DayVotes = make(map[string]string)
		}
		if _, voted := voting.DayVotes[playerID]; voted {
			return fmt.Errorf("%w: player %s already voted", ErrDuplicateSubmission, playerID)
		}
		voting.DayVotes[playerID] = vote

		err = tx.AddActionLogEntry(ctx, entities.ActionLogEntry{
			ID:         uuid.NewString(),
			GameID:     room.ID,
			PlayerID:   playerID,
			Phase:      entities.PhaseVoting,
			Day:        room.CurrentDay,
			ActionType: entities.ActionVote,
			TargetID:   voting.Nominee,
			Data:       map[string]string{"vote": vote},
			CreatedAt:  c.now(),
		})
		if err != nil {
			return err
		}

		if len(voting.DayVotes) >= eligibleVoters(players, voting.Nominee) {
			if err := c.advance(ctx, tx, &room, players, triggerSubmissions); err != nil {
				return err
			}
		}
		if err := tx.UpdateRoom(ctx, room); err != nil {
			return err
		}
		out = room
		return nil
	})
	return out, err
}

func eligibleVoters(players []entities.Player, nominee string) int {
	n := 0
	for _, p := range players {
		if p.IsAlive && p.PlayerID != nominee {
			n++
		}
	}
	return n
}
