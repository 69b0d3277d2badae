package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrFatal marks a tick error that must stop the loop instead of being
// retried on the next interval.
var ErrFatal = errors.New("scheduler: fatal tick error")

// TickFunc runs one cycle. The context it receives is not cancelled by the
// stop signal, so a cycle that has started always runs to completion.
type TickFunc func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Interval       time.Duration
	RunImmediately bool
	StartupDelay   time.Duration
}

// Scheduler sequences cycles with a fixed sleep between them.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Interval returns the sleep between cycles.
func (s *Scheduler) Interval() time.Duration {
	return s.opts.Interval
}

// Run blocks, invoking tick once per interval until ctx is cancelled or tick
// returns an error wrapping ErrFatal. Cancellation is observed only before a
// cycle and while sleeping.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := s.sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if !s.opts.RunImmediately {
		if err := s.sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}

	cycleCtx := context.WithoutCancel(ctx)
	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		s.logger.Debug().Int("cycle", cycle).Msg("executing scheduled tick")
		if err := tick(cycleCtx); err != nil {
			if errors.Is(err, ErrFatal) {
				s.logger.Error().Err(err).Int("cycle", cycle).Msg("tick failed fatally; stopping")
				return err
			}
			s.logger.Error().Err(err).Int("cycle", cycle).Msg("tick execution failed")
		}

		s.logger.Debug().
			Dur("took", time.Since(started)).
			Time("next_tick", time.Now().Add(s.opts.Interval)).
			Msg("waiting for next tick")
		if err := s.sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
