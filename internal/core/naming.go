package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	database "mafia-server/internal/db"
	"mafia-server/internal/entities"
)

// SubmitTownName records a player's suggestion. Voting opens as soon as every
// player has suggested a name.
func (c *Controller) SubmitTownName(ctx context.Context, code, playerID, suggestion string) (entities.NameSuggestion, error) {
	text, err := validText(suggestion, "town name")
	if err != nil {
		return entities.NameSuggestion{}, err
	}

	var out entities.NameSuggestion
	err = c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if room.Phase != entities.PhaseTownNaming {
			return wrongPhase(room, "suggest a town name")
		}
		players, err := loadPlayers(ctx, tx, room)
		if err != nil {
			return err
		}
		if _, err := member(players, playerID); err != nil {
			return err
		}

		out = entities.NameSuggestion{
			ID:         uuid.NewString(),
			GameID:     room.ID,
			PlayerID:   playerID,
			Suggestion: text,
			CreatedAt:  c.now(),
		}
		if err := tx.AddSuggestion(ctx, out); err != nil {
			return storeErr(err, "player "+playerID+" already suggested a name")
		}

		suggestions, err := tx.GetSuggestionsByRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		if len(suggestions) < len(players) {
			return nil
		}
		if err := c.advance(ctx, tx, &room, players, triggerSubmissions); err != nil {
			return err
		}
		return tx.UpdateRoom(ctx, room)
	})
	if err != nil {
		return entities.NameSuggestion{}, err
	}
	return out, nil
}

// VoteTownName adds a player's vote to a suggestion. Once everybody voted the
// name is settled and roles are dealt.
func (c *Controller) VoteTownName(ctx context.Context, code, playerID, suggestionID string) (entities.Room, error) {
	var out entities.Room
	err := c.exec(ctx, code, func(ctx context.Context, tx database.Store) error {
		room, err := loadRoom(ctx, tx, normalizeCode(code))
		if err != nil {
			return err
		}
		if room.Phase != entities.PhaseTownVoting {
			return wrongPhase(room, "vote for a town name")
		}
		players, err := loadPlayers(ctx, tx, room)
		if err != nil {
			return err
		}
		if _, err := member(players, playerID); err != nil {
			return err
		}

		_, err = tx.GetVoteByPlayer(ctx, room.ID, playerID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: player %s already voted", ErrDuplicateSubmission, playerID)
		case !errors.Is(err, database.ErrNotFound):
			return err
		}

		suggestion, err := tx.GetSuggestion(ctx, room.ID, suggestionID)
		if err != nil {
			return storeErr(err, "suggestion "+suggestionID)
		}
		suggestion.Votes++
		if err := tx.UpdateSuggestion(ctx, suggestion); err != nil {
			return err
		}
		vote := entities.NameVote{
			ID:           uuid.NewString(),
			GameID:       room.ID,
			PlayerID:     playerID,
			SuggestionID: suggestion.ID,
			CreatedAt:    c.now(),
		}
		if err := tx.AddVote(ctx, vote); err != nil {
			return storeErr(err, "player "+playerID+" already voted")
		}

		votes, err := tx.GetVotesByRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		if len(votes) >= len(players) {
			if err := c.advance(ctx, tx, &room, players, triggerSubmissions); err != nil {
				return err
			}
			if err := tx.UpdateRoom(ctx, room); err != nil {
				return err
			}
		}
		out = room
		return nil
	})
	return out, err
}

// settleTownName picks the suggestion with the most votes, breaking ties at
// random. Without suggestions the town gets DefaultTownName.
func (c *Controller) settleTownName(ctx context.Context, tx database.Store, room *entities.Room) error {
	suggestions, err := tx.GetSuggestionsByRoom(ctx, room.ID)
	if err != nil {
		return err
	}

	counts := make(map[string]int, len(suggestions))
	byID := make(map[string]entities.NameSuggestion, len(suggestions))
	for _, s := range suggestions {
		counts[s.ID] = s.Votes
		byID[s.ID] = s
	}
	result, ok := Tally(counts, c.rand)
	if !ok {
		room.TownName = DefaultTownName
		return nil
	}

	room.TownName = byID[result.Winner].Suggestion
	c.log.Info().
		Str("room", room.Code).
		Str("town", room.TownName).
		Int("votes", result.Votes).
		Bool("tie_break", result.TieBreak).
		Msg("town named")
	return nil
}
