package core

import (
	"context"
	"fmt"
	"time"

	database "mafia-server/internal/db"
	"mafia-server/internal/entities"
)

type trigger string

const (
	triggerTimer       trigger = "timer"
	triggerSubmissions trigger = "submissions"
)

// advance moves the room out of its current phase. It is the only place that
// decides where a phase leads; callers save the room afterwards.
func (c *Controller) advance(ctx context.Context, tx database.Store, room *entities.Room, players []entities.Player, why trigger) error {
	from := room.Phase
	var err error
	switch room.Phase {
	case entities.PhaseTownNaming:
		err = c.transition(room, entities.TownVotingState{}, c.timings.TownVoting)
	case entities.PhaseTownVoting:
		if err = c.settleTownName(ctx, tx, room); err == nil {
			err = c.dealRoles(ctx, tx, room, players, c.timings.RoleReveal)
		}
	case entities.PhaseNight:
		err = c.endNight(ctx, tx, room, players)
	case entities.PhaseDay:
		// nobody was nominated
		if err = c.transition(room, entities.NewNightState(), c.timings.Night); err == nil {
			room.CurrentDay++
		}
	case entities.PhaseVoting:
		err = c.endVoting(ctx, tx, room, players)
	default:
		return wrongPhase(*room, "advance")
	}
	if err != nil {
		return err
	}

	c.log.Info().
		Str("room", room.Code).
		Str("from", string(from)).
		Str("to", string(room.Phase)).
		Str("trigger", string(why)).
		Int("day", room.CurrentDay).
		Msg("phase advanced")
	return nil
}

// TimeElapsed is called when the timer of expected ran out. A stale call,
// made after the room already left expected, changes nothing.
func (c *Controller) TimeElapsed(ctx context.Context, code string, expected entities.Phase) (entities.Room, error) {
	var out entities.Room
	err := c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if room.Phase != expected {
			return fmt.Errorf("%w: room is in %s, not %s", ErrInvalidPhase, room.Phase, expected)
		}
		if !room.Phase.Expires() {
			return fmt.Errorf("%w: %s has no timer", ErrInvalidPhase, room.Phase)
		}
		players, err := loadPlayers(ctx, tx, room)
		if err != nil {
			return err
		}
		if err := c.advance(ctx, tx, &room, players, triggerTimer); err != nil {
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

// ExpiredRooms lists rooms whose timed phase is over at now.
func (c *Controller) ExpiredRooms(ctx context.Context, now time.Time) ([]entities.Room, error) {
	rooms, err := c.store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	expired := rooms[:0]
	for _, room := range rooms {
		if room.Expired(now) {
			expired = append(expired, room)
		}
	}
	return expired, nil
}

// endVoting counts the elimination vote. A Joker voted out wins on the spot,
// any other elimination is followed by the faction check.
func (c *Controller) endVoting(ctx context.Context, tx database.Store, room *entities.Room, players []entities.Player) error {
	voting, ok := room.State.Payload.(*entities.VotingState)
	if !ok {
		return fmt.Errorf("voting room %s carries %T", room.Code, room.State.Payload)
	}

	verdict := &entities.Verdict{Nominee: voting.Nominee, Eligible: eligibleVoters(players, voting.Nominee)}
	for _, v := range voting.DayVotes {
		if v == VoteYes {
			verdict.Yes++
		} else {
			verdict.No++
		}
	}
	verdict.Eliminated = Eliminated(verdict.Yes, verdict.Eligible)

	if verdict.Eliminated {
		if i, found := findPlayer(players, voting.Nominee); found {
			players[i].IsAlive = false
			if err := tx.UpdatePlayer(ctx, players[i]); err != nil {
				return err
			}
			c.log.Info().Str("room", room.Code).Str("player", voting.Nominee).Int("yes", verdict.Yes).Msg("player voted out")
			if outcome, won := JokerOutcome(players[i], room.State.Roles); won {
				return c.endGame(room, outcome, verdict)
			}
		}
	}

	if outcome := EvaluateWin(players, room.State.Roles); outcome.Decided() {
		return c.endGame(room, outcome, verdict)
	}

	night := entities.NewNightState()
	night.Verdict = verdict
	if err := c.transition(room, night, c.timings.Night); err != nil {
		return err
	}
	room.CurrentDay++
	return nil
}

func (c *Controller) endGame(room *entities.Room, outcome Outcome, verdict *entities.Verdict) error {
	err := c.transition(room, &entities.GameEndState{
		Winner:  outcome.Winner,
		Winners: outcome.Winners,
		Reason:  outcome.Reason,
		Verdict: verdict,
	}, 0)
	if err != nil {
		return err
	}
	c.log.Info().Str("room", room.Code).Str("winner", string(outcome.Winner)).Msg("game over")
	return nil
}
