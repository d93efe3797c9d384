package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// PhaseState is the phase specific part of a GameState. Exactly one variant
// is present at a time and its Phase always equals the owning room's phase.
type PhaseState interface {
	Phase() Phase
	clone() PhaseState
}

type LobbyState struct{}

type TownNamingState struct{}

type TownVotingState struct{}

type RoleAssignmentState struct{}

type NightAction struct {
	ActionType ActionType `json:"actionType"`
	TargetID   string     `json:"targetId,omitempty"`
}

// Verdict is the outcome of the elimination vote that closed a day.
type Verdict struct {
	Nominee    string `json:"nominee"`
	Yes        int    `json:"yes"`
	No         int    `json:"no"`
	Eligible   int    `json:"eligible"`
	Eliminated bool   `json:"eliminated"`
}

type NightState struct {
	NightActions map[string]NightAction `json:"nightActions"`
	Verdict      *Verdict               `json:"verdict,omitempty"`
}

type Investigation struct {
	TargetID string `json:"targetId"`
	Result   string `json:"result"`
}

type NightReport struct {
	Killed         string                   `json:"killed,omitempty"`
	KillAttempted  bool                     `json:"killAttempted"`
	Saved          bool                     `json:"saved"`
	Blocked        []string                 `json:"blocked,omitempty"`
	Investigations map[string]Investigation `json:"investigations,omitempty"`
}

type DayState struct {
	Report NightReport `json:"report"`
}

type VotingState struct {
	Nominee     string            `json:"nominatedPlayer"`
	NominatedBy string            `json:"nominatedBy"`
	DayVotes    map[string]string `json:"dayVotes"`
}

type GameEndState struct {
	Winner  Faction  `json:"winner"`
	Winners []string `json:"winners"`
	Reason  string   `json:"gameEndReason"`
	Verdict *Verdict `json:"verdict,omitempty"`
}

func (LobbyState) Phase() Phase          { return PhaseLobby }
func (TownNamingState) Phase() Phase     { return PhaseTownNaming }
func (TownVotingState) Phase() Phase     { return PhaseTownVoting }
func (RoleAssignmentState) Phase() Phase { return PhaseRoleAssignment }
func (*NightState) Phase() Phase         { return PhaseNight }
func (*DayState) Phase() Phase           { return PhaseDay }
func (*VotingState) Phase() Phase        { return PhaseVoting }
func (*GameEndState) Phase() Phase       { return PhaseGameEnd }

func (s LobbyState) clone() PhaseState          { return s }
func (s TownNamingState) clone() PhaseState     { return s }
func (s TownVotingState) clone() PhaseState     { return s }
func (s RoleAssignmentState) clone() PhaseState { return s }

func (s *NightState) clone() PhaseState {
	c := &NightState{NightActions: make(map[string]NightAction, len(s.NightActions))}
	for k, v := range s.NightActions {
		c.NightActions[k] = v
	}
	if s.Verdict != nil {
		v := *s.Verdict
		c.Verdict = &v
	}
	return c
}

func (s *DayState) clone() PhaseState {
	c := &DayState{Report: s.Report}
	c.Report.Blocked = append([]string(nil), s.Report.Blocked...)
	if s.Report.Investigations != nil {
		c.Report.Investigations = make(map[string]Investigation, len(s.Report.Investigations))
		for k, v := range s.Report.Investigations {
			c.Report.Investigations[k] = v
		}
	}
	return c
}

func (s *VotingState) clone() PhaseState {
	c := &VotingState{Nominee: s.Nominee, NominatedBy: s.NominatedBy, DayVotes: make(map[string]string, len(s.DayVotes))}
	for k, v := range s.DayVotes {
		c.DayVotes[k] = v
	}
	return c
}

func (s *GameEndState) clone() PhaseState {
	c := *s
	c.Winners = append([]string(nil), s.Winners...)
	if s.Verdict != nil {
		v := *s.Verdict
		c.Verdict = &v
	}
	return &c
}

func NewNightState() *NightState {
	return &NightState{NightActions: make(map[string]NightAction)}
}

func NewVotingState(nominee, nominatedBy string) *VotingState {
	return &VotingState{Nominee: nominee, NominatedBy: nominatedBy, DayVotes: make(map[string]string)}
}

// GameState is embedded in a Room. Roles and the timer survive every
// transition, everything else lives in Payload.
type GameState struct {
	Roles          map[string]Role
	PhaseStartTime time.Time
	PhaseDuration  time.Duration
	Payload        PhaseState
}

func (s GameState) Phase() Phase {
	if s.Payload == nil {
		return PhaseLobby
	}
	return s.Payload.Phase()
}

func (s GameState) Deadline() time.Time {
	return s.PhaseStartTime.Add(s.PhaseDuration)
}

func (s GameState) Clone() GameState {
	c := GameState{
		PhaseStartTime: s.PhaseStartTime,
		PhaseDuration:  s.PhaseDuration,
		Roles:          make(map[string]Role, len(s.Roles)),
	}
	for k, v := range s.Roles {
		c.Roles[k] = v
	}
	if s.Payload != nil {
		c.Payload = s.Payload.clone()
	}
	return c
}

type gameStateJSON struct {
	Phase          Phase           `json:"phase"`
	Roles          map[string]Role `json:"roles"`
	PhaseStartTime time.Time       `json:"phaseStartTime"`
	PhaseDuration  time.Duration   `json:"phaseDuration"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func (s GameState) MarshalJSON() ([]byte, error) {
	out := gameStateJSON{
		Phase:          s.Phase(),
		Roles:          s.Roles,
		PhaseStartTime: s.PhaseStartTime,
		PhaseDuration:  s.PhaseDuration,
	}
	if out.Roles == nil {
		out.Roles = map[string]Role{}
	}
	if s.Payload != nil {
		payload, err := json.Marshal(s.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = payload
	}
	return json.Marshal(out)
}

func (s *GameState) UnmarshalJSON(data []byte) error {
	var in gameStateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var payload PhaseState
	switch in.Phase {
	case PhaseLobby, "":
		payload = LobbyState{}
	case PhaseTownNaming:
		payload = TownNamingState{}
	case PhaseTownVoting:
		payload = TownVotingState{}
	case PhaseRoleAssignment:
		payload = RoleAssignmentState{}
	case PhaseNight:
		payload = NewNightState()
	case PhaseDay:
		payload = &DayState{}
	case PhaseVoting:
		payload = NewVotingState("", "")
	case PhaseGameEnd:
		payload = &GameEndState{}
	default:
		return fmt.Errorf("unknown phase %q", in.Phase)
	}

	if len(in.Payload) > 0 && in.Phase.usesPointerPayload() {
		if err := json.Unmarshal(in.Payload, payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", in.Phase, err)
		}
	}

	s.Roles = in.Roles
	if s.Roles == nil {
		s.Roles = map[string]Role{}
	}
	s.PhaseStartTime = in.PhaseStartTime
	s.PhaseDuration = in.PhaseDuration
	s.Payload = payload
	return nil
}

func (p Phase) usesPointerPayload() bool {
	switch p {
	case PhaseNight, PhaseDay, PhaseVoting, PhaseGameEnd:
		return true
	}
	return false
}
