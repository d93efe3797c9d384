package core

import (
	"context"
	"time"

	"mafia-server/internal/entities"
)

type PlayerView struct {
	PlayerID         string        `json:"playerId"`
	Name             string        `json:"name"`
	IsAlive          bool          `json:"isAlive"`
	IsHost           bool          `json:"isHost"`
	RoleAcknowledged bool          `json:"roleAcknowledged"`
	ConnectionStatus string        `json:"connectionStatus,omitempty"`
	Role             entities.Role `json:"role,omitempty"`
}

type SuggestionView struct {
	ID         string `json:"id"`
	PlayerID   string `json:"playerId"`
	Suggestion string `json:"suggestion"`
	Votes      int    `json:"votes"`
}

// View is a room as one player is allowed to see it.
type View struct {
	Code           string                  `json:"code"`
	Phase          entities.Phase          `json:"phase"`
	HostID         string                  `json:"hostId"`
	TownName       string                  `json:"townName,omitempty"`
	TownNamingMode entities.TownNamingMode `json:"townNamingMode"`
	CurrentDay     int                     `json:"currentDay"`
	PhaseStartTime time.Time               `json:"phaseStartTime"`
	PhaseDeadline  *time.Time              `json:"phaseDeadline,omitempty"`
	Players        []PlayerView            `json:"players"`
	You            *PlayerView             `json:"you,omitempty"`

	Suggestions []SuggestionView `json:"suggestions,omitempty"`
	VotedFor    string           `json:"votedFor,omitempty"`

	NightAction   *entities.NightAction   `json:"nightAction,omitempty"`
	Killed        string                  `json:"killed,omitempty"`
	KillAttempted bool                    `json:"killAttempted,omitempty"`
	Saved         bool                    `json:"saved,omitempty"`
	Investigation *entities.Investigation `json:"investigation,omitempty"`

	Nominee     string            `json:"nominee,omitempty"`
	NominatedBy string            `json:"nominatedBy,omitempty"`
	DayVotes    map[string]string `json:"dayVotes,omitempty"`
	Threshold   int               `json:"threshold,omitempty"`
	Verdict     *entities.Verdict `json:"verdict,omitempty"`

	Winner  entities.Faction `json:"winner,omitempty"`
	Winners []string         `json:"winners,omitempty"`
	Reason  string           `json:"gameEndReason,omitempty"`
}

// Snapshot renders the room for viewerID. Roles stay hidden except the
// viewer's own and, for Mafia members, their partners. Everything is revealed
// once the game is over.
func (c *Controller) Snapshot(ctx context.Context, code, viewerID string) (View, error) {
	room, err := loadRoom(ctx, c.store, normalizeCode(code))
	if err != nil {
		return View{}, err
	}
	players, err := loadPlayers(ctx, c.store, room)
	if err != nil {
		return View{}, err
	}

	v := View{
		Code:           room.Code,
		Phase:          room.Phase,
		HostID:         room.HostID,
		TownName:       room.TownName,
		TownNamingMode: room.TownNamingMode,
		CurrentDay:     room.CurrentDay,
		PhaseStartTime: room.State.PhaseStartTime,
		Players:        make([]PlayerView, 0, len(players)),
	}
	if room.Phase.Expires() {
		deadline := room.State.Deadline()
		v.PhaseDeadline = &deadline
	}

	viewerRole, isMember := room.State.Roles[viewerID]
	for _, p := range players {
		pv := PlayerView{
			PlayerID:         p.PlayerID,
			Name:             p.Name,
			IsAlive:          p.IsAlive,
			IsHost:           p.IsHost,
			RoleAcknowledged: p.RoleAcknowledged,
			ConnectionStatus: p.ConnectionStatus,
		}
		role := room.State.Roles[p.PlayerID]
		switch {
		case room.Phase == entities.PhaseGameEnd,
			p.PlayerID == viewerID,
			isMember && viewerRole.Faction() == entities.FactionMafia && role.Faction() == entities.FactionMafia:
			pv.Role = role
		}
		v.Players = append(v.Players, pv)
		if p.PlayerID == viewerID {
			you := pv
			v.You = &you
		}
	}

	switch s := room.State.Payload.(type) {
	case entities.TownNamingState, entities.TownVotingState:
		if err := c.addNaming(ctx, room, viewerID, &v); err != nil {
			return View{}, err
		}
	case *entities.NightState:
		if a, ok := s.NightActions[viewerID]; ok {
			v.NightAction = &a
		}
		v.Verdict = s.Verdict
	case *entities.DayState:
		v.Killed = s.Report.Killed
		v.KillAttempted = s.Report.KillAttempted
		v.Saved = s.Report.Saved
		if inv, ok := s.Report.Investigations[viewerID]; ok {
			v.Investigation = &inv
		}
	case *entities.VotingState:
		v.Nominee = s.Nominee
		v.NominatedBy = s.NominatedBy
		v.DayVotes = s.DayVotes
		v.Threshold = MajorityThreshold(eligibleVoters(players, s.Nominee))
	case *entities.GameEndState:
		v.Winner = s.Winner
		v.Winners = s.Winners
		v.Reason = s.Reason
		v.Verdict = s.Verdict
	}
	return v, nil
}

func (c *Controller) addNaming(ctx context.Context, room entities.Room, viewerID string, v *View) error {
	suggestions, err := c.store.GetSuggestionsByRoom(ctx, room.ID)
	if err != nil {
		return err
	}
	for _, s := range suggestions {
		v.Suggestions = append(v.Suggestions, SuggestionView{
			ID:         s.ID,
			PlayerID:   s.PlayerID,
			Suggestion: s.Suggestion,
			Votes:      s.Votes,
		})
	}
	if vote, err := c.store.GetVoteByPlayer(ctx, room.ID, viewerID); err == nil {
		v.VotedFor = vote.SuggestionID
	}
	return nil
}
