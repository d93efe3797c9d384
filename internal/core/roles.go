package core

import (
	"mafia-server/internal/entities"
)

// roleThresholds lists the special roles in the order they join the
// template and the player count each one needs.
var roleThresholds = []struct {
	minPlayers int
	role       entities.Role
}{
	{1, entities.RoleMafia},
	{4, entities.RoleSheriff},
	{5, entities.RoleDoctor},
	{6, entities.RoleMafia},
	{7, entities.RoleGodfather},
	{8, entities.RoleJoker},
	{9, entities.RoleProstitute},
	{10, entities.RoleVigilante},
}

// RoleTemplate returns the unshuffled roles for playerCount players. Seats
// not taken by a special role are Citizens.
func RoleTemplate(playerCount int) []entities.Role {
	if playerCount < 1 {
		return nil
	}
	roles := make([]entities.Role, 0, playerCount)
	for _, t := range roleThresholds {
		if playerCount >= t.minPlayers {
			roles = append(roles, t.role)
		}
	}
	for len(roles) < playerCount {
		roles = append(roles, entities.RoleCitizen)
	}
	return roles
}

// AssignRoles shuffles the template for playerCount with Fisher-Yates. The
// result is zipped with players in seat order.
func AssignRoles(playerCount int, r Rand) []entities.Role {
	roles := RoleTemplate(playerCount)
	shuffle(roles, r)
	return roles
}
