// internal/game/clock.go
package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/shadow-signal/internal/models"
)

// RoomTicker is the engine operation driven by the clock.
type RoomTicker interface {
	Tick(ctx context.Context, code string) (*models.Room, bool, error)
}

// TickerFunc starts a periodic ticker and returns its channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// NewTimeTicker is the TickerFunc backed by time.NewTicker.
func NewTimeTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// TickHandler observes every tick that changed a room. advanced is true when the tick ended the turn.
type TickHandler func(room *models.Room, advanced bool)

// TurnClock runs one countdown task per speaking room. Arm replaces any running task of the room,
// so a fresh countdown starts at every phase boundary.
type TurnClock struct {
	rooms  RoomTicker
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc

	Interval  time.Duration
	NewTicker TickerFunc
	OnTick    TickHandler

	mu    sync.Mutex
	tasks map[string]*clockTask
	wg    sync.WaitGroup
}

type clockTask struct {
	cancel context.CancelFunc
}

// NewTurnClock returns a clock ticking once per second. Tasks end when ctx is cancelled or Stop is called.
func NewTurnClock(ctx context.Context, rooms RoomTicker, logger logrus.FieldLogger) *TurnClock {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &TurnClock{
		rooms:     rooms,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
		Interval:  time.Second,
		NewTicker: NewTimeTicker,
		tasks:     make(map[string]*clockTask),
	}
}

// Arm starts a countdown for code, cancelling the previous one if any.
func (c *TurnClock) Arm(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return
	}
	if old, ok := c.tasks[code]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	task := &clockTask{cancel: cancel}
	c.tasks[code] = task

	tick, stop := c.NewTicker(c.Interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.release(code, task)
		defer stop()
		c.run(ctx, code, tick)
	}()
}

// Disarm cancels the countdown of code, if one is running.
func (c *TurnClock) Disarm(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if task, ok := c.tasks[code]; ok {
		task.cancel()
		delete(c.tasks, code)
	}
}

// Armed reports whether a countdown is running for code.
func (c *TurnClock) Armed(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tasks[code]
	return ok
}

// Stop cancels every countdown and waits for them to exit.
func (c *TurnClock) Stop() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *TurnClock) release(code string, task *clockTask) {
	task.cancel()
	c.mu.Lock()
	if c.tasks[code] == task {
		delete(c.tasks, code)
	}
	c.mu.Unlock()
}

func (c *TurnClock) run(ctx context.Context, code string, tick <-chan time.Time) {
	logger := c.log.WithField("room", code)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}

		room, advanced, err := c.rooms.Tick(ctx, code)
		if errors.Is(err, ErrNotFound) {
			logger.Debug("room gone, clock stopped")
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("turn clock tick failed")
			continue
		}
		if room.Status != models.StatusSpeaking && !advanced {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if c.OnTick != nil {
			c.OnTick(room, advanced)
		}
		if room.Status != models.StatusSpeaking {
			return
		}
	}
}
