package core

import (
	"context"
	"fmt"

	database "mafia-server/internal/db"
)

type roomCmd struct {
	ctx  context.Context
	fn   func(ctx context.Context, tx database.Store) error
	done chan error
}

// exec runs fn inside a store transaction on the command loop of the room.
func (c *Controller) exec(ctx context.Context, code string, fn func(ctx context.Context, tx database.Store) error) error {
	code = normalizeCode(code)
	ch, err := c.channelByRoom(ctx, code)
	if err != nil {
		return err
	}

	cmd := roomCmd{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case ch <- cmd:
	case <-c.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-cmd.done
}

// channelByRoom returns the command channel of a room, starting its loop on
// first use. Unknown codes never get a loop.
func (c *Controller) channelByRoom(ctx context.Context, code string) (chan roomCmd, error) {
	c.roomsMutex.Lock()
	ch, ok := c.roomsIndex[code]
	c.roomsMutex.Unlock()
	if ok {
		return ch, nil
	}

	if _, err := c.store.GetRoomByCode(ctx, code); err != nil {
		return nil, storeErr(err, "room "+code)
	}

	c.roomsMutex.Lock()
	defer c.roomsMutex.Unlock()
	if ch, ok := c.roomsIndex[code]; ok {
		return ch, nil
	}
	select {
	case <-c.quit:
		return nil, ErrClosed
	default:
	}

	ch = make(chan roomCmd)
	c.roomsIndex[code] = ch
	c.wg.Add(1)
	go c.roomCycle(code, ch)
	return ch, nil
}

func (c *Controller) roomCycle(code string, cmds <-chan roomCmd) {
	defer c.wg.Done()
	l := c.log.With().Str("room", code).Logger()
	l.Debug().Msg("room loop started")
	for {
		select {
		case cmd := <-cmds:
			cmd.done <- c.run(cmd)
		case <-c.quit:
			l.Debug().Msg("room loop stopped")
			return
		}
	}
}

func (c *Controller) run(cmd roomCmd) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("room command panicked")
			err = fmt.Errorf("room command panicked: %v", r)
		}
	}()
	return c.store.Atomically(cmd.ctx, func(tx database.Store) error {
		return cmd.fn(cmd.ctx, tx)
	})
}
