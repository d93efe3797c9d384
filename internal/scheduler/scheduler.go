package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"
	"mafia-server/internal/core"
	"mafia-server/internal/entities"
)

// Advancer is the part of the controller the scheduler drives.
type Advancer interface {
	ExpiredRooms(ctx context.Context, now time.Time) ([]entities.Room, error)
	TimeElapsed(ctx context.Context, code string, expected entities.Phase) (entities.Room, error)
}

// Scheduler plays the role of the players' timers: every interval it looks
// for rooms whose phase ran out and advances them.
type Scheduler struct {
	advancer Advancer
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func New(advancer Advancer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		advancer: advancer,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Run sweeps until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep advances every expired room once and returns how many moved.
func (s *Scheduler) Sweep(ctx context.Context) int {
	rooms, err := s.advancer.ExpiredRooms(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("listing expired rooms")
		return 0
	}

	advanced := iter.Map(rooms, func(room *entities.Room) bool {
		_, err := s.advancer.TimeElapsed(ctx, room.Code, room.Phase)
		switch {
		case err == nil:
			return true
		case errors.Is(err, core.ErrInvalidPhase):
			// a player action got there first
			s.log.Debug().Str("room", room.Code).Str("phase", string(room.Phase)).Msg("room already advanced")
		default:
			s.log.Error().Err(err).Str("room", room.Code).Msg("advancing room")
		}
		return false
	})

	n := 0
	for _, ok := range advanced {
		if ok {
			n++
		}
	}
	return n
}
