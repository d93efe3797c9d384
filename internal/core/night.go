package core

import (
	"context"
	"fmt"
	"slices"

	database "mafia-server/internal/db"
	"mafia-server/internal/entities"
)

const (
	InvestigatedMafia    = "Mafia"
	InvestigatedNotMafia = "Not Mafia"
)

// ResolveNight works out what the active night actions did. Blocked players
// lose their action, the Mafia kill goes to the most chosen target, and a
// Doctor save on that target prevents the death. The Godfather reads as Not
// Mafia to the Sheriff.
func ResolveNight(actions map[string]entities.NightAction, roles map[string]entities.Role, alive map[string]bool, r Rand) entities.NightReport {
	actors := make([]string, 0, len(actions))
	for id := range actions {
		if alive[id] {
			actors = append(actors, id)
		}
	}
	slices.Sort(actors)

	valid := func(actor string) (entities.NightAction, bool) {
		a := actions[actor]
		if !roles[actor].CanPerform(a.ActionType) || a.ActionType == entities.ActionSkip {
			return a, false
		}
		return a, alive[a.TargetID]
	}

	blocked := make(map[string]bool)
	for _, actor := range actors {
		if a, ok := valid(actor); ok && a.ActionType == entities.ActionBlock {
			blocked[a.TargetID] = true
		}
	}

	var report entities.NightReport
	kills := make(map[string]int)
	saved := make(map[string]bool)
	for _, actor := range actors {
		a, ok := valid(actor)
		if !ok || blocked[actor] {
			continue
		}
		switch a.ActionType {
		case entities.ActionKill:
			kills[a.TargetID]++
		case entities.ActionSave:
			saved[a.TargetID] = true
		case entities.ActionInvestigate:
			if report.Investigations == nil {
				report.Investigations = make(map[string]entities.Investigation)
			}
			report.Investigations[actor] = entities.Investigation{
				TargetID: a.TargetID,
				Result:   investigate(roles[a.TargetID]),
			}
		}
	}

	if kill, ok := Tally(kills, r); ok {
		report.KillAttempted = true
		if saved[kill.Winner] {
			report.Saved = true
		} else {
			report.Killed = kill.Winner
		}
	}

	for id := range blocked {
		report.Blocked = append(report.Blocked, id)
	}
	slices.Sort(report.Blocked)
	return report
}

func investigate(role entities.Role) string {
	if role == entities.RoleMafia {
		return InvestigatedMafia
	}
	return InvestigatedNotMafia
}

func (c *Controller) endNight(ctx context.Context, tx database.Store, room *entities.Room, players []entities.Player) error {
	night, ok := room.State.Payload.(*entities.NightState)
	if !ok {
		return fmt.Errorf("night room %s carries %T", room.Code, room.State.Payload)
	}

	alive := make(map[string]bool, len(players))
	for _, p := range players {
		alive[p.PlayerID] = p.IsAlive
	}
	report := ResolveNight(night.NightActions, room.State.Roles, alive, c.rand)

	if report.Killed != "" {
		if i, found := findPlayer(players, report.Killed); found {
			players[i].IsAlive = false
			if err := tx.UpdatePlayer(ctx, players[i]); err != nil {
				return err
			}
		}
		c.log.Info().Str("room", room.Code).Str("player", report.Killed).Int("day", room.CurrentDay).Msg("player killed at night")
	}

	return c.transition(room, &entities.DayState{Report: report}, c.timings.Day)
}
