package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	database "mafia-server/internal/db"
	"mafia-server/internal/entities"
)

const MaxNameLength = 30

// Controller owns the phase of every room. All changes to a room go through
// that room's command loop, so reads and writes of one room never interleave
// while different rooms run in parallel.
type Controller struct {
	store   database.Store
	rand    Rand
	newCode func() string
	now     func() time.Time
	timings Timings
	log     zerolog.Logger

	roomsMutex sync.Mutex
	roomsIndex map[string]chan roomCmd
	quit       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

type Option func(*Controller)

func WithRand(r Rand) Option {
	return func(c *Controller) { c.rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithCodeGenerator(fn func() string) Option {
	return func(c *Controller) { c.newCode = fn }
}

func WithTimings(t Timings) Option {
	return func(c *Controller) { c.timings = t }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

func New(store database.Store, opts ...Option) *Controller {
	c := &Controller{
		store:      store,
		rand:       CryptoRand(),
		newCode:    NewRoomCode,
		now:        time.Now,
		timings:    DefaultTimings(),
		log:        log.Logger,
		roomsIndex: make(map[string]chan roomCmd),
		quit:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timings = c.timings.orDefault()
	return c
}

// Close stops every room loop. Commands already accepted finish first.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.roomsMutex.Lock()
		close(c.quit)
		c.roomsMutex.Unlock()
	})
	c.wg.Wait()
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// validText trims s and checks it is 1 to MaxNameLength characters long.
func validText(s, field string) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return "", fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if n > MaxNameLength {
		return "", fmt.Errorf("%w: %s must be at most %d characters", ErrValidation, field, MaxNameLength)
	}
	return s, nil
}

func loadRoom(ctx context.Context, tx database.Store, code string) (entities.Room, error) {
	room, err := tx.GetRoomByCode(ctx, code)
	if err != nil {
		return room, storeErr(err, "room "+code)
	}
	if room.State.Payload == nil {
		room.Transition(entities.LobbyState{}, room.CreatedAt, 0)
	}
	return room, nil
}

func loadPlayers(ctx context.Context, tx database.Store, room entities.Room) ([]entities.Player, error) {
	return tx.GetPlayersByRoom(ctx, room.ID)
}

func findPlayer(players []entities.Player, playerID string) (int, bool) {
	for i, p := range players {
		if p.PlayerID == playerID {
			return i, true
		}
	}
	return -1, false
}

// member returns the player with playerID or ErrNotFound.
func member(players []entities.Player, playerID string) (*entities.Player, error) {
	i, ok := findPlayer(players, playerID)
	if !ok {
		return nil, fmt.Errorf("%w: player %s is not in this room", ErrNotFound, playerID)
	}
	return &players[i], nil
}

// livingMember is member restricted to players still in the game.
func livingMember(players []entities.Player, playerID string) (*entities.Player, error) {
	p, err := member(players, playerID)
	if err != nil {
		return nil, err
	}
	if !p.IsAlive {
		return nil, fmt.Errorf("%w: player %s has been eliminated", ErrUnauthorized, playerID)
	}
	return p, nil
}

func requireHost(room entities.Room, playerID, action string) error {
	if room.HostID != playerID {
		return fmt.Errorf("%w: only the host can %s", ErrUnauthorized, action)
	}
	return nil
}

// transition guards every phase change against the phase graph.
func (c *Controller) transition(room *entities.Room, payload entities.PhaseState, d time.Duration) error {
	if !room.Phase.CanTransitionTo(payload.Phase()) {
		return fmt.Errorf("illegal transition %s -> %s", room.Phase, payload.Phase())
	}
	room.Transition(payload, c.now(), d)
	return nil
}
