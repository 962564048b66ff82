package clock

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Update advances the simulation by dt seconds.
type Update func(dt float64) error

// Render draws one frame.
type Render func() error

// ErrStop ends a Loop without error when returned from Update or Render.
var ErrStop = errors.New("clock: stop")

// Loop calls Update then Render once per tick from a single goroutine.
type Loop struct {
	// Clock defaults to Real.
	Clock Clock

	// Interval is the target time between ticks. Zero runs ticks back to
	// back.
	Interval time.Duration

	// Frames stops the loop after this many ticks. Zero runs until the
	// context is done.
	Frames int

	// MaxStep caps dt so a stalled frame does not make the animation jump.
	// Zero disables the cap.
	MaxStep time.Duration

	// Logger receives render errors. Nil discards them.
	Logger *slog.Logger

	frame int
}

// Frame returns the number of completed ticks.
func (l *Loop) Frame() int { return l.frame }

// Run ticks until ctx is done, Frames ticks have run, or a callback
// returns an error. Update errors end the loop. Render errors are logged
// and the loop continues, since the next frame may succeed.
//
// The first tick has dt 0. Run returns nil when stopped by Frames or
// ErrStop and ctx.Err() when cancelled.
func (l *Loop) Run(ctx context.Context, update Update, render Render) error {
	clk := l.Clock
	if clk == nil {
		clk = Real{}
	}
	log := l.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	last := clk.Now()
	for l.Frames == 0 || l.frame < l.Frames {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := clk.Now()
		step := start.Sub(last)
		if l.MaxStep > 0 && step > l.MaxStep {
			step = l.MaxStep
		}
		last = start

		if update != nil {
			if err := update(step.Seconds()); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}
		if render != nil {
			if err := render(); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				log.Warn("clock: frame failed", "frame", l.frame, "err", err)
			}
		}
		l.frame++

		if l.Interval > 0 {
			if err := clk.Sleep(ctx, l.Interval-clk.Now().Sub(start)); err != nil {
				return err
			}
		}
	}
	return nil
}
