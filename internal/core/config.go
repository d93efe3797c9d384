package core

import (
	"time"
)

const DefaultTownName = "Unnamed Town"

// Timings holds how long each timed phase lasts before the scheduler may
// advance it.
type Timings struct {
	TownNaming     time.Duration `mapstructure:"town_naming"`
	TownVoting     time.Duration `mapstructure:"town_voting"`
	RoleReveal     time.Duration `mapstructure:"role_reveal"`
	HostRoleReveal time.Duration `mapstructure:"host_role_reveal"`
	Night          time.Duration `mapstructure:"night"`
	Day            time.Duration `mapstructure:"day"`
	Voting         time.Duration `mapstructure:"voting"`
}

func DefaultTimings() Timings {
	return Timings{
		TownNaming:     60 * time.Second,
		TownVoting:     30 * time.Second,
		RoleReveal:     300 * time.Second,
		HostRoleReveal: 600 * time.Second,
		Night:          60 * time.Second,
		Day:            180 * time.Second,
		Voting:         90 * time.Second,
	}
}

// orDefault fills zero durations from DefaultTimings.
func (t Timings) orDefault() Timings {
	d := DefaultTimings()
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.TownNaming, d.TownNaming)
	fill(&t.TownVoting, d.TownVoting)
	fill(&t.RoleReveal, d.RoleReveal)
	fill(&t.HostRoleReveal, d.HostRoleReveal)
	fill(&t.Night, d.Night)
	fill(&t.Day, d.Day)
	fill(&t.Voting, d.Voting)
	return t
}
