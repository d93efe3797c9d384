package core

import (
	"mafia-server/internal/entities"
)

// Outcome is the result of a win check. A zero Winner means the game goes on.
type Outcome struct {
	Winner  entities.Faction
	Winners []string
	Reason  string
}

func (o Outcome) Decided() bool {
	return o.Winner != entities.FactionNone
}

func roleOf(p entities.Player, roles map[string]entities.Role) entities.Role {
	if role, ok := roles[p.PlayerID]; ok {
		return role
	}
	return p.Role
}

// EvaluateWin checks the faction win conditions over the living players.
// Mafia wins once it is at least as large as the living town, town wins when
// no Mafia is left. Living Jokers count for neither side.
func EvaluateWin(players []entities.Player, roles map[string]entities.Role) Outcome {
	var livingMafia, livingTown int
	for _, p := range players {
		if !p.IsAlive {
			continue
		}
		switch roleOf(p, roles).Faction() {
		case entities.FactionMafia:
			livingMafia++
		case entities.FactionJoker:
		default:
			livingTown++
		}
	}

	switch {
	case livingMafia > 0 && livingMafia >= livingTown:
		return Outcome{
			Winner:  entities.FactionMafia,
			Winners: factionMembers(players, roles, entities.FactionMafia),
			Reason:  "The Mafia has taken over the town",
		}
	case livingMafia == 0:
		return Outcome{
			Winner:  entities.FactionTown,
			Winners: factionMembers(players, roles, entities.FactionTown),
			Reason:  "All members of the Mafia have been eliminated",
		}
	}
	return Outcome{}
}

// JokerOutcome is checked when a player is voted out. A Joker wins alone at
// that moment, whatever the faction balance is.
func JokerOutcome(eliminated entities.Player, roles map[string]entities.Role) (Outcome, bool) {
	if roleOf(eliminated, roles) != entities.RoleJoker {
		return Outcome{}, false
	}
	return Outcome{
		Winner:  entities.FactionJoker,
		Winners: []string{eliminated.PlayerID},
		Reason:  "The Joker tricked the town into voting them out",
	}, true
}

func factionMembers(players []entities.Player, roles map[string]entities.Role, faction entities.Faction) []string {
	ids := make([]string, 0, len(players))
	for _, p := range players {
		if roleOf(p, roles).Faction() == faction {
			ids = append(ids, p.PlayerID)
		}
	}
	return ids
}
