package core

import (
	"context"
	"fmt"
	mrand "math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	database "mafia-server/internal/db"
	"mafia-server/internal/entities"
)

var epoch = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

type lockedRand struct {
	mu sync.Mutex
	r  *mrand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func newTestController(t *testing.T, opts ...Option) (*Controller, database.Store) {
	t.Helper()
	store, err := database.NewMemoryStore()
	require.NoError(t, err)
	base := []Option{
		WithRand(&lockedRand{r: mrand.New(mrand.NewSource(1))}),
		WithClock(func() time.Time { return epoch }),
		WithLogger(zerolog.Nop()),
	}
	c := New(store, append(base, opts...)...)
	t.Cleanup(c.Close)
	return c, store
}

type game struct {
	c       *Controller
	store   database.Store
	code    string
	host    string
	players []string
}

// newLobby creates a room with a host and n-1 more players.
func newLobby(t *testing.T, n int, mode entities.TownNamingMode) *game {
	t.Helper()
	ctx := context.Background()
	c, store := newTestController(t)
	created, err := c.CreateRoom(ctx, CreateRoomRequest{HostName: "Host", PlayerID: "host", Mode: mode})
	require.NoError(t, err)

	g := &game{c: c, store: store, code: created.Room.Code, host: "host", players: []string{"host"}}
	for i := 1; i < n; i++ {
		id := fmt.Sprintf("p%d", i)
		_, err := c.Join(ctx, g.code, id, fmt.Sprintf("Player %d", i))
		require.NoError(t, err)
		g.players = append(g.players, id)
	}
	return g
}

// newNight runs a host-mode game of n players up to the first night.
func newNight(t *testing.T, n int) *game {
	t.Helper()
	ctx := context.Background()
	g := newLobby(t, n, entities.TownNamingHost)
	_, err := g.c.Start(ctx, g.code, g.host)
	require.NoError(t, err)
	for _, id := range g.players {
		_, err := g.c.AcknowledgeRole(ctx, g.code, id)
		require.NoError(t, err)
	}
	room, err := g.c.StartGameplay(ctx, g.code, g.host)
	require.NoError(t, err)
	require.Equal(t, entities.PhaseNight, room.Phase)
	return g
}

func (g *game) room(t *testing.T) entities.Room {
	t.Helper()
	room, err := g.store.GetRoomByCode(context.Background(), g.code)
	require.NoError(t, err)
	return room
}

func (g *game) player(t *testing.T, id string) entities.Player {
	t.Helper()
	p, err := g.c.Player(context.Background(), g.code, id)
	require.NoError(t, err)
	return p
}

// withRole lists the players holding role in id order.
func (g *game) withRole(t *testing.T, role entities.Role) []string {
	t.Helper()
	var ids []string
	for id, r := range g.room(t).State.Roles {
		if r == role {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	codes := []string{"ABCD", "abcd", "WXYZ"}
	c, _ := newTestController(t, WithCodeGenerator(func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}))

	first, err := c.CreateRoom(ctx, CreateRoomRequest{HostName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "ABCD", first.Room.Code)
	assert.Equal(t, entities.PhaseLobby, first.Room.Phase)
	assert.Equal(t, entities.TownNamingHost, first.Room.TownNamingMode)
	assert.NotEmpty(t, first.Player.PlayerID)
	assert.Equal(t, first.Player.PlayerID, first.Room.HostID)
	assert.True(t, first.Player.IsHost)

	// the second code collides ignoring case
	second, err := c.CreateRoom(ctx, CreateRoomRequest{HostName: "Bob", PlayerID: "bob", Mode: entities.TownNamingVote})
	require.NoError(t, err)
	assert.Equal(t, "WXYZ", second.Room.Code)
	assert.Equal(t, entities.TownNamingVote, second.Room.TownNamingMode)

	_, err = c.CreateRoom(ctx, CreateRoomRequest{HostName: "  "})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = c.CreateRoom(ctx, CreateRoomRequest{HostName: "Carol", Mode: "chaos"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestJoin(t *testing.T) {
	ctx := context.Background()
	g := newLobby(t, 2, entities.TownNamingHost)

	_, err := g.c.Join(ctx, g.code, "p9", "player 1")
	assert.ErrorIs(t, err, ErrDuplicateSubmission, "names are case-insensitive")
	_, err = g.c.Join(ctx, g.code, "p1", "Someone Else")
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	_, err = g.c.Join(ctx, g.code, "p9", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = g.c.Join(ctx, g.code, "p9", "This name is far too long to be accepted")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = g.c.Join(ctx, "QQQQ", "p9", "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	joined, err := g.c.Join(ctx, g.code, "", "Player 2")
	require.NoError(t, err)
	assert.NotEmpty(t, joined.Player.PlayerID)
	assert.Equal(t, 3, joined.Player.Seat)
	assert.False(t, joined.Player.IsHost)

	players, err := g.store.GetPlayersByRoom(ctx, g.room(t).ID)
	require.NoError(t, err)
	assert.Len(t, players, 3)

	_, err = g.c.Start(ctx, g.code, g.host)
	require.NoError(t, err)
	_, err = g.c.Join(ctx, g.code, "late", "Late")
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestLobbySettings(t *testing.T) {
	ctx := context.Background()
	g := newLobby(t, 2, entities.TownNamingHost)

	_, err := g.c.SetTownName(ctx, g.code, "p1", "Salem")
	assert.ErrorIs(t, err, ErrUnauthorized)
	room, err := g.c.SetTownName(ctx, g.code, g.host, " Salem ")
	require.NoError(t, err)
	assert.Equal(t, "Salem", room.TownName)

	_, err = g.c.SetTownNamingMode(ctx, g.code, "p1", entities.TownNamingVote)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = g.c.SetTownNamingMode(ctx, g.code, g.host, "chaos")
	assert.ErrorIs(t, err, ErrValidation)
	room, err = g.c.SetTownNamingMode(ctx, g.code, g.host, entities.TownNamingVote)
	require.NoError(t, err)
	assert.Equal(t, entities.TownNamingVote, room.TownNamingMode)

	_, err = g.c.SetTownName(ctx, g.code, g.host, "Arkham")
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestErrorsLeaveStateUntouched(t *testing.T) {
	ctx := context.Background()
	g := newNight(t, 5)
	before := g.room(t)

	citizen := g.withRole(t, entities.RoleCitizen)[0]
	doctor := g.withRole(t, entities.RoleDoctor)[0]
	mafia := g.withRole(t, entities.RoleMafia)[0]

	_, err := g.c.SubmitNightAction(ctx, g.code, NightActionRequest{PlayerID: citizen, ActionType: entities.ActionKill, TargetID: mafia})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = g.c.SubmitNightAction(ctx, g.code, NightActionRequest{PlayerID: doctor, ActionType: "dance", TargetID: mafia})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = g.c.SubmitNightAction(ctx, g.code, NightActionRequest{PlayerID: doctor, ActionType: entities.ActionSave})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = g.c.SubmitNightAction(ctx, g.code, NightActionRequest{PlayerID: doctor, ActionType: entities.ActionSave, TargetID: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.c.SubmitNightAction(ctx, g.code, NightActionRequest{PlayerID: "ghost", ActionType: entities.ActionSkip})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.c.Nominate(ctx, g.code, citizen, mafia)
	assert.ErrorIs(t, err, ErrInvalidPhase)
	_, err = g.c.CastVote(ctx, g.code, citizen, "yes")
	assert.ErrorIs(t, err, ErrInvalidPhase)
	_, err = g.c.CastVote(ctx, g.code, citizen, "maybe")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = g.c.AcknowledgeRole(ctx, g.code, citizen)
	assert.ErrorIs(t, err, ErrInvalidPhase)
	_, err = g.c.TimeElapsed(ctx, g.code, entities.PhaseDay)
	assert.ErrorIs(t, err, ErrInvalidPhase)
	_, err = g.c.Start(ctx, g.code, g.host)
	assert.ErrorIs(t, err, ErrInvalidPhase)

	after := g.room(t)
	assert.Equal(t, before.Phase, after.Phase)
	assert.Equal(t, before.CurrentDay, after.CurrentDay)
	assert.Equal(t, before.State, after.State)
	entries, err := g.store.GetActionsByRoomPhaseDay(ctx, after.ID, entities.PhaseNight, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStartRequiresHostAndAcknowledgements(t *testing.T) {
	ctx := context.Background()
	g := newLobby(t, 3, entities.TownNamingHost)

	_, err := g.c.Start(ctx, g.code, "p1")
	assert.ErrorIs(t, err, ErrUnauthorized)
	room, err := g.c.Start(ctx, g.code, g.host)
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseRoleAssignment, room.Phase)
	assert.Equal(t, DefaultTimings().HostRoleReveal, room.State.PhaseDuration)
	assert.Len(t, room.State.Roles, 3)

	// host mode allows renaming while roles are revealed
	room, err = g.c.SetTownName(ctx, g.code, g.host, "Twin Peaks")
	require.NoError(t, err)
	assert.Equal(t, "Twin Peaks", room.TownName)

	p, err := g.c.AcknowledgeRole(ctx, g.code, "p1")
	require.NoError(t, err)
	assert.True(t, p.RoleAcknowledged)
	p, err = g.c.AcknowledgeRole(ctx, g.code, "p1")
	require.NoError(t, err, "acknowledging twice is fine")
	assert.True(t, p.RoleAcknowledged)

	_, err = g.c.StartGameplay(ctx, g.code, g.host)
	assert.ErrorIs(t, err, ErrInvalidPhase)

	for _, id := range []string{"host", "p2"} {
		_, err := g.c.AcknowledgeRole(ctx, g.code, id)
		require.NoError(t, err)
	}
	_, err = g.c.StartGameplay(ctx, g.code, "p1")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = g.c.TimeElapsed(ctx, g.code, entities.PhaseRoleAssignment)
	assert.ErrorIs(t, err, ErrInvalidPhase, "role assignment has no timer")

	room, err = g.c.StartGameplay(ctx, g.code, g.host)
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseNight, room.Phase)
	assert.Equal(t, 1, room.CurrentDay)
}

func TestTownNamingVote(t *testing.T) {
	ctx := context.Background()
	g := newLobby(t, 3, entities.TownNamingVote)

	_, err := g.c.SetTownName(ctx, g.code, g.host, "Salem")
	assert.ErrorIs(t, err, ErrInvalidPhase)

	room, err := g.c.Start(ctx, g.code, g.host)
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseTownNaming, room.Phase)
	assert.Empty(t, room.State.Roles)

	_, err = g.c.SubmitTownName(ctx, g.code, g.host, "Salem")
	require.NoError(t, err)
	_, err = g.c.SubmitTownName(ctx, g.code, g.host, "Arkham")
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	_, err = g.c.SubmitTownName(ctx, g.code, "stranger", "Arkham")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.c.SubmitTownName(ctx, g.code, "p1", "")
	assert.ErrorIs(t, err, ErrValidation)
	arkham, err := g.c.SubmitTownName(ctx, g.code, "p1", "Arkham")
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseTownNaming, g.room(t).Phase)
	_, err = g.c.SubmitTownName(ctx, g.code, "p2", "Derry")
	require.NoError(t, err)

	room = g.room(t)
	require.Equal(t, entities.PhaseTownVoting, room.Phase, "all players suggested")
	assert.Equal(t, DefaultTimings().TownVoting, room.State.PhaseDuration)

	_, err = g.c.VoteTownName(ctx, g.code, g.host, "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.c.VoteTownName(ctx, g.code, g.host, arkham.ID)
	require.NoError(t, err)
	_, err = g.c.VoteTownName(ctx, g.code, g.host, arkham.ID)
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	_, err = g.c.VoteTownName(ctx, g.code, "p1", arkham.ID)
	require.NoError(t, err)
	view, err := g.c.Snapshot(ctx, g.code, "p1")
	require.NoError(t, err)
	assert.Equal(t, arkham.ID, view.VotedFor)
	assert.Len(t, view.Suggestions, 3)

	room, err = g.c.VoteTownName(ctx, g.code, "p2", arkham.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseRoleAssignment, room.Phase)
	assert.Equal(t, "Arkham", room.TownName)
	assert.Equal(t, DefaultTimings().RoleReveal, room.State.PhaseDuration)
	assert.Len(t, room.State.Roles, 3)

	_, err = g.c.SetTownName(ctx, g.code, g.host, "Salem")
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestTownNamingTimeout(t *testing.T) {
	ctx := context.Background()
	g := newLobby(t, 2, entities.TownNamingVote)
	_, err := g.c.Start(ctx, g.code, g.host)
	require.NoError(t, err)

	room, err := g.c.TimeElapsed(ctx, g.code, entities.PhaseTownNaming)
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseTownVoting, room.Phase)

	_, err = g.c.TimeElapsed(ctx, g.code, entities.PhaseTownNaming)
	assert.ErrorIs(t, err, ErrInvalidPhase, "stale timer")

	room, err = g.c.TimeElapsed(ctx, g.code, entities.PhaseTownVoting)
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseRoleAssignment, room.Phase)
	assert.Equal(t, DefaultTownName, room.TownName)
}

func TestHostModeGame(t *testing.T) {
	ctx := context.Background()
	g := newLobby(t, 5, entities.TownNamingHost)
	phases := []entities.Phase{g.room(t).Phase}
	step := func(room entities.Room, err error) entities.Room {
		t.Helper()
		require.NoError(t, err)
		if last := phases[len(phases)-1]; last != room.Phase {
			assert.True(t, last.CanTransitionTo(room.Phase), "%s -> %s", last, room.Phase)
			phases = append(phases, room.Phase)
		}
		return room
	}

	room := step(g.c.Start(ctx, g.code, g.host))
	require.Equal(t, entities.PhaseRoleAssignment, room.Phase)
	for _, id := range g.players {
		p, err := g.c.AcknowledgeRole(ctx, g.code, id)
		require.NoError(t, err)
		assert.Equal(t, room.State.Roles[id], p.Role)
	}
	room = step(g.c.StartGameplay(ctx, g.code, g.host))
	require.Equal(t, entities.PhaseNight, room.Phase)

	mafia := g.withRole(t, entities.RoleMafia)[0]
	sheriff := g.withRole(t, entities.RoleSheriff)[0]
	doctor := g.withRole(t, entities.RoleDoctor)[0]
	citizens := g.withRole(t, entities.RoleCitizen)
	require.Len(t, citizens, 2)

	submit := func(player string, action entities.ActionType, target string) {
		t.Helper()
		_, err := g.c.SubmitNightAction(ctx, g.code, NightActionRequest{PlayerID: player, ActionType: action, TargetID: target})
		require.NoError(t, err)
	}
	submit(mafia, entities.ActionKill, citizens[1])
	submit(mafia, entities.ActionKill, citizens[0])
	submit(doctor, entities.ActionSave, citizens[0])
	submit(sheriff, entities.ActionInvestigate, mafia)
	submit(citizens[1], entities.ActionSkip, "")

	entries, err := g.store.GetActionsByRoomPhaseDay(ctx, g.room(t).ID, entities.PhaseNight, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 5, "resubmissions are logged")
	night := g.room(t).State.Payload.(*entities.NightState)
	assert.Equal(t, citizens[0], night.NightActions[mafia].TargetID, "last submission wins")

	room = step(g.c.TimeElapsed(ctx, g.code, entities.PhaseNight))
	require.Equal(t, entities.PhaseDay, room.Phase)
	day := room.State.Payload.(*entities.DayState)
	assert.Empty(t, day.Report.Killed)
	assert.True(t, day.Report.Saved)

	view, err := g.c.Snapshot(ctx, g.code, sheriff)
	require.NoError(t, err)
	require.NotNil(t, view.Investigation)
	assert.Equal(t, InvestigatedMafia, view.Investigation.Result)

	nominee := citizens[1]
	_, err = g.c.Nominate(ctx, g.code, nominee, nominee)
	assert.ErrorIs(t, err, ErrValidation)
	room = step(g.c.Nominate(ctx, g.code, citizens[0], nominee))
	require.Equal(t, entities.PhaseVoting, room.Phase)

	_, err = g.c.CastVote(ctx, g.code, nominee, "no")
	assert.ErrorIs(t, err, ErrUnauthorized)

	voters := []string{mafia, sheriff, doctor, citizens[0]}
	votes := []string{"yes", "YES", "yes", "no"}
	for i, voter := range voters {
		room = step(g.c.CastVote(ctx, g.code, voter, votes[i]))
		if i < len(voters)-1 {
			assert.Equal(t, entities.PhaseVoting, room.Phase, "waits for every eligible voter")
		}
	}
	_, err = g.c.CastVote(ctx, g.code, mafia, "yes")
	assert.ErrorIs(t, err, ErrInvalidPhase)

	assert.Equal(t, entities.PhaseNight, room.Phase)
	assert.Equal(t, 2, room.CurrentDay)
	assert.False(t, g.player(t, nominee).IsAlive)
	verdict := room.State.Payload.(*entities.NightState).Verdict
	require.NotNil(t, verdict)
	assert.Equal(t, entities.Verdict{Nominee: nominee, Yes: 3, No: 1, Eligible: 4, Eliminated: true}, *verdict)

	_, err = g.c.SubmitNightAction(ctx, g.code, NightActionRequest{PlayerID: nominee, ActionType: entities.ActionSkip})
	assert.ErrorIs(t, err, ErrUnauthorized, "eliminated players cannot act")

	assert.Equal(t, []entities.Phase{
		entities.PhaseLobby, entities.PhaseRoleAssignment, entities.PhaseNight,
		entities.PhaseDay, entities.PhaseVoting, entities.PhaseNight,
	}, phases)
}

func TestDayWithoutNomination(t *testing.T) {
	ctx := context.Background()
	g := newNight(t, 4)
	_, err := g.c.TimeElapsed(ctx, g.code, entities.PhaseNight)
	require.NoError(t, err)

	room, err := g.c.TimeElapsed(ctx, g.code, entities.PhaseDay)
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseNight, room.Phase)
	assert.Equal(t, 2, room.CurrentDay)
	assert.Nil(t, room.State.Payload.(*entities.NightState).Verdict)
}

func TestVotingTimeoutWithoutMajority(t *testing.T) {
	ctx := context.Background()
	g := newNight(t, 5)
	_, err := g.c.TimeElapsed(ctx, g.code, entities.PhaseNight)
	require.NoError(t, err)

	citizen := g.withRole(t, entities.RoleCitizen)[0]
	mafia := g.withRole(t, entities.RoleMafia)[0]
	_, err = g.c.Nominate(ctx, g.code, citizen, mafia)
	require.NoError(t, err)
	_, err = g.c.CastVote(ctx, g.code, citizen, "yes")
	require.NoError(t, err)

	room, err := g.c.TimeElapsed(ctx, g.code, entities.PhaseVoting)
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseNight, room.Phase)
	assert.True(t, g.player(t, mafia).IsAlive)
	verdict := room.State.Payload.(*entities.NightState).Verdict
	assert.Equal(t, entities.Verdict{Nominee: mafia, Yes: 1, Eligible: 4}, *verdict)
}

func TestTownWinsWhenMafiaVotedOut(t *testing.T) {
	ctx := context.Background()
	g := newNight(t, 4)
	_, err := g.c.TimeElapsed(ctx, g.code, entities.PhaseNight)
	require.NoError(t, err)

	mafia := g.withRole(t, entities.RoleMafia)[0]
	var voters []string
	for _, id := range g.players {
		if id != mafia {
			voters = append(voters, id)
		}
	}
	_, err = g.c.Nominate(ctx, g.code, voters[0], mafia)
	require.NoError(t, err)

	var room entities.Room
	for _, id := range voters {
		room, err = g.c.CastVote(ctx, g.code, id, "yes")
		require.NoError(t, err)
	}
	require.Equal(t, entities.PhaseGameEnd, room.Phase)
	end := room.State.Payload.(*entities.GameEndState)
	assert.Equal(t, entities.FactionTown, end.Winner)
	assert.ElementsMatch(t, voters, end.Winners)

	view, err := g.c.Snapshot(ctx, g.code, voters[0])
	require.NoError(t, err)
	for _, p := range view.Players {
		assert.NotEmpty(t, p.Role, "roles are revealed at the end")
	}
	_, err = g.c.TimeElapsed(ctx, g.code, entities.PhaseGameEnd)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestJokerVotedOutWins(t *testing.T) {
	ctx := context.Background()
	g := newNight(t, 8)
	_, err := g.c.TimeElapsed(ctx, g.code, entities.PhaseNight)
	require.NoError(t, err)

	joker := g.withRole(t, entities.RoleJoker)[0]
	var voters []string
	for _, id := range g.players {
		if id != joker {
			voters = append(voters, id)
		}
	}
	_, err = g.c.Nominate(ctx, g.code, voters[0], joker)
	require.NoError(t, err)

	var room entities.Room
	for _, id := range voters {
		room, err = g.c.CastVote(ctx, g.code, id, "yes")
		require.NoError(t, err)
	}
	require.Equal(t, entities.PhaseGameEnd, room.Phase)
	end := room.State.Payload.(*entities.GameEndState)
	assert.Equal(t, entities.FactionJoker, end.Winner)
	assert.Equal(t, []string{joker}, end.Winners)
}

func TestConcurrentLastVotesAdvanceOnce(t *testing.T) {
	ctx := context.Background()
	g := newNight(t, 6)
	_, err := g.c.TimeElapsed(ctx, g.code, entities.PhaseNight)
	require.NoError(t, err)

	citizen := g.withRole(t, entities.RoleCitizen)[0]
	var voters []string
	for _, id := range g.players {
		if id != citizen {
			voters = append(voters, id)
		}
	}
	_, err = g.c.Nominate(ctx, g.code, voters[0], citizen)
	require.NoError(t, err)
	for _, id := range voters[:3] {
		_, err := g.c.CastVote(ctx, g.code, id, "no")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range voters[3:] {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = g.c.CastVote(ctx, g.code, id, "no")
		}(i, id)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	room := g.room(t)
	assert.Equal(t, entities.PhaseNight, room.Phase)
	assert.Equal(t, 2, room.CurrentDay)
	assert.Equal(t, 5, room.State.Payload.(*entities.NightState).Verdict.No)
}

func TestSnapshotHidesRoles(t *testing.T) {
	ctx := context.Background()
	g := newNight(t, 7)
	mafia := g.withRole(t, entities.RoleMafia)
	godfather := g.withRole(t, entities.RoleGodfather)[0]
	citizen := g.withRole(t, entities.RoleCitizen)[0]

	view, err := g.c.Snapshot(ctx, g.code, citizen)
	require.NoError(t, err)
	require.NotNil(t, view.You)
	assert.Equal(t, entities.RoleCitizen, view.You.Role)
	require.NotNil(t, view.PhaseDeadline)
	assert.Equal(t, epoch.Add(DefaultTimings().Night), *view.PhaseDeadline)
	for _, p := range view.Players {
		if p.PlayerID != citizen {
			assert.Empty(t, p.Role, "role of %s leaked", p.PlayerID)
		}
	}

	view, err = g.c.Snapshot(ctx, g.code, godfather)
	require.NoError(t, err)
	known := 0
	for _, p := range view.Players {
		if p.Role != "" {
			known++
			assert.Equal(t, entities.FactionMafia, p.Role.Faction())
		}
	}
	assert.Equal(t, len(mafia)+1, known)

	_, err = g.c.Snapshot(ctx, "NONE", citizen)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredRooms(t *testing.T) {
	ctx := context.Background()
	g := newNight(t, 4)
	lobby, err := g.c.CreateRoom(ctx, CreateRoomRequest{HostName: "Idle"})
	require.NoError(t, err)

	rooms, err := g.c.ExpiredRooms(ctx, epoch.Add(DefaultTimings().Night-time.Second))
	require.NoError(t, err)
	assert.Empty(t, rooms)

	rooms, err = g.c.ExpiredRooms(ctx, epoch.Add(DefaultTimings().Night))
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, g.code, rooms[0].Code)
	assert.NotEqual(t, lobby.Room.Code, rooms[0].Code)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	g := newLobby(t, 1, entities.TownNamingHost)
	g.c.Close()
	_, err := g.c.Join(ctx, g.code, "p1", "Late")
	assert.ErrorIs(t, err, ErrClosed)
}
