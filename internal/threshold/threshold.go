// Package threshold owns the adaptive alert threshold of a single asset.
//
// Two rules move the threshold. Once per DecayPeriod a read lowers it by
// DecayStep, never below Baseline. After an alert the monitor raises it to the
// observed drop plus RearmStep, so the same drawdown cannot alert twice.
package threshold

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"drawdownwatch/internal/storage"
)

// Options tune the threshold rules.
type Options struct {
	Baseline    decimal.Decimal
	DecayStep   decimal.Decimal
	DecayPeriod time.Duration
	RearmStep   decimal.Decimal
}

// DefaultOptions returns the 5% baseline, 1%/day decay, 1% re-arm policy.
func DefaultOptions() Options {
	return Options{
		Baseline:    decimal.NewFromInt(5),
		DecayStep:   decimal.NewFromInt(1),
		DecayPeriod: 24 * time.Hour,
		RearmStep:   decimal.NewFromInt(1),
	}
}

// State is the threshold as observed by one cycle.
type State struct {
	Percent     decimal.Decimal
	LastUpdated time.Time
}

// Controller reads and writes one asset's threshold. It is not safe for
// concurrent use; each asset monitor owns its controller.
type Controller struct {
	store  storage.ThresholdStore
	opts   Options
	now    func() time.Time
	logger zerolog.Logger

	// last is the most recent state this controller read or wrote.
	last *State
	// unsaved is set while last has not reached the store; it then wins over
	// the durable record until a save succeeds.
	unsaved bool
}

// New builds a controller over store. A nil clock means time.Now.
func New(store storage.ThresholdStore, opts Options, now func() time.Time, logger zerolog.Logger) *Controller {
	defaults := DefaultOptions()
	if !opts.Baseline.IsPositive() {
		opts.Baseline = defaults.Baseline
	}
	if opts.DecayStep.IsNegative() {
		opts.DecayStep = defaults.DecayStep
	}
	if opts.DecayPeriod <= 0 {
		opts.DecayPeriod = defaults.DecayPeriod
	}
	if opts.RearmStep.IsNegative() {
		opts.RearmStep = defaults.RearmStep
	}
	if now == nil {
		now = time.Now
	}
	return &Controller{
		store:  store,
		opts:   opts,
		now:    now,
		logger: logger.With().Str("component", "threshold").Logger(),
	}
}

// Baseline returns the most sensitive threshold.
func (c *Controller) Baseline() decimal.Decimal {
	return c.opts.Baseline
}

// Get returns the threshold for the current cycle, applying daily decay when
// due. When the durable record cannot be read the baseline is returned along
// with the read error; that fallback is never written back. A state whose
// save failed is served from memory and saved again before the store is
// consulted.
func (c *Controller) Get(ctx context.Context) (State, error) {
	if c.unsaved && c.last != nil {
		return c.getUnsaved(ctx)
	}

	now := c.now()
	rec, err := c.store.LoadThreshold(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		state := State{Percent: c.opts.Baseline, LastUpdated: now}
		c.remember(state)
		return state, nil
	case err != nil:
		c.logger.Warn().Err(err).Str("threshold_pct", c.opts.Baseline.String()).Msg("threshold unreadable; using baseline for this cycle")
		return State{Percent: c.opts.Baseline, LastUpdated: now}, fmt.Errorf("load threshold: %w", err)
	}

	return c.decay(ctx, State{Percent: rec.ThresholdPct, LastUpdated: rec.LastUpdated}, now)
}

func (c *Controller) getUnsaved(ctx context.Context) (State, error) {
	pending := *c.last
	saveErr := c.save(ctx, pending)

	state, err := c.decay(ctx, pending, c.now())
	if err != nil {
		return state, err
	}
	if c.unsaved {
		c.logger.Warn().Err(saveErr).Str("threshold_pct", state.Percent.String()).Msg("threshold still not persisted; using in-process state")
		return state, fmt.Errorf("retry threshold save: %w", saveErr)
	}
	c.logger.Info().Str("threshold_pct", state.Percent.String()).Msg("pending threshold persisted")
	return state, nil
}

// decay applies one decay step to state when a full period has passed.
func (c *Controller) decay(ctx context.Context, state State, now time.Time) (State, error) {
	if now.Sub(state.LastUpdated) < c.opts.DecayPeriod {
		c.remember(state)
		return state, nil
	}

	decayed := State{
		Percent:     decimal.Max(c.opts.Baseline, state.Percent.Sub(c.opts.DecayStep)),
		LastUpdated: now,
	}
	c.remember(decayed)
	if err := c.save(ctx, decayed); err != nil {
		return decayed, fmt.Errorf("save decayed threshold: %w", err)
	}
	c.logger.Info().
		Str("from_pct", state.Percent.String()).
		Str("threshold_pct", decayed.Percent.String()).
		Msg("threshold decayed")
	return decayed, nil
}

// Tighten overwrites the threshold. The timestamp never moves backwards
// relative to the last state seen by this controller.
func (c *Controller) Tighten(ctx context.Context, percent decimal.Decimal, now time.Time) (State, error) {
	if c.last != nil && now.Before(c.last.LastUpdated) {
		now = c.last.LastUpdated
	}
	state := State{Percent: percent, LastUpdated: now}
	c.remember(state)
	if err := c.save(ctx, state); err != nil {
		return state, fmt.Errorf("save tightened threshold: %w", err)
	}
	return state, nil
}

// Rearm is the threshold that follows an alert at drop.
func (c *Controller) Rearm(drop decimal.Decimal) decimal.Decimal {
	return drop.Add(c.opts.RearmStep)
}

func (c *Controller) remember(s State) {
	c.last = &s
}

func (c *Controller) save(ctx context.Context, s State) error {
	err := c.store.SaveThreshold(ctx, storage.ThresholdRecord{
		ThresholdPct: s.Percent,
		LastUpdated:  s.LastUpdated,
	})
	c.unsaved = err != nil
	return err
}
