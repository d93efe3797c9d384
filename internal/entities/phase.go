package entities

type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhaseTownNaming     Phase = "town_naming"
	PhaseTownVoting     Phase = "town_voting"
	PhaseRoleAssignment Phase = "role_assignment"
	PhaseNight          Phase = "night"
	PhaseDay            Phase = "day"
	PhaseVoting         Phase = "voting"
	PhaseGameEnd        Phase = "game_end"
)

var transitions = map[Phase][]Phase{
	PhaseLobby:          {PhaseTownNaming, PhaseRoleAssignment},
	PhaseTownNaming:     {PhaseTownVoting},
	PhaseTownVoting:     {PhaseRoleAssignment},
	PhaseRoleAssignment: {PhaseNight},
	PhaseNight:          {PhaseDay},
	PhaseDay:            {PhaseVoting, PhaseNight},
	PhaseVoting:         {PhaseNight, PhaseGameEnd},
}

func (p Phase) String() string {
	return string(p)
}

// CanTransitionTo reports whether target is a legal next phase from p.
func (p Phase) CanTransitionTo(target Phase) bool {
	for _, next := range transitions[p] {
		if next == target {
			return true
		}
	}
	return false
}

// Expires reports whether the phase is advanced by the external timer.
func (p Phase) Expires() bool {
	switch p {
	case PhaseTownNaming, PhaseTownVoting, PhaseNight, PhaseDay, PhaseVoting:
		return true
	}
	return false
}

func (p Phase) Valid() bool {
	switch p {
	case PhaseLobby, PhaseTownNaming, PhaseTownVoting, PhaseRoleAssignment,
		PhaseNight, PhaseDay, PhaseVoting, PhaseGameEnd:
		return true
	}
	return false
}

type TownNamingMode string

const (
	TownNamingHost TownNamingMode = "host"
	TownNamingVote TownNamingMode = "vote"
)

func (m TownNamingMode) Valid() bool {
	return m == TownNamingHost || m == TownNamingVote
}
