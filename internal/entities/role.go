package entities

type Role string

const (
	RoleMafia      Role = "Mafia"
	RoleGodfather  Role = "Godfather"
	RoleSheriff    Role = "Sheriff"
	RoleDoctor     Role = "Doctor"
	RoleJoker      Role = "Joker"
	RoleProstitute Role = "Prostitute"
	RoleVigilante  Role = "Vigilante"
	RoleCitizen    Role = "Citizen"
)

type Faction string

const (
	FactionNone  Faction = ""
	FactionMafia Faction = "Mafia"
	FactionTown  Faction = "Town"
	FactionJoker Faction = "Joker"
)

func (r Role) Faction() Faction {
	switch r {
	case RoleMafia, RoleGodfather:
		return FactionMafia
	case RoleJoker:
		return FactionJoker
	default:
		return FactionTown
	}
}

type ActionType string

const (
	ActionKill        ActionType = "kill"
	ActionInvestigate ActionType = "investigate"
	ActionSave        ActionType = "save"
	ActionBlock       ActionType = "block"
	ActionSkip        ActionType = "skip"
	ActionNominate    ActionType = "nominate"
	ActionVote        ActionType = "vote"
)

// CanPerform reports whether a player holding r may submit a at night.
func (r Role) CanPerform(a ActionType) bool {
	switch a {
	case ActionSkip:
		return true
	case ActionKill:
		return r == RoleMafia || r == RoleGodfather
	case ActionInvestigate:
		return r == RoleSheriff
	case ActionSave:
		return r == RoleDoctor
	case ActionBlock:
		return r == RoleProstitute
	}
	return false
}

// NeedsTarget reports whether the night action must name another player.
func (a ActionType) NeedsTarget() bool {
	return a != ActionSkip
}
