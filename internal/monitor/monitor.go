// Package monitor runs the periodic drawdown check of a single asset.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"drawdownwatch/internal/alerting"
	"drawdownwatch/internal/asset"
	"drawdownwatch/internal/drawdown"
	"drawdownwatch/internal/fetcher"
	"drawdownwatch/internal/scheduler"
	"drawdownwatch/internal/storage"
	"drawdownwatch/internal/threshold"
)

// Options tune a monitor.
type Options struct {
	// PeakSamples is the number of highest closes averaged into the peak.
	PeakSamples int
	// MaxConsecutiveFailures escalates to a fatal error after this many failed
	// cycles in a row. Zero retries forever.
	MaxConsecutiveFailures int
}

// Outcome summarises one cycle.
type Outcome struct {
	Asset     asset.ID
	At        time.Time
	Threshold decimal.Decimal
	Peak      decimal.Decimal
	Current   decimal.Decimal
	DropPct   decimal.Decimal
	Alerted   bool
	// NextThreshold is the threshold after the cycle's write, if any.
	NextThreshold decimal.Decimal
}

// Monitor drives the drawdown check of a single asset.
type Monitor struct {
	asset      asset.ID
	source     fetcher.PriceSource
	thresholds *threshold.Controller
	notifier   alerting.Notifier
	opts       Options
	now        func() time.Time
	logger     zerolog.Logger

	failures int
}

// New constructs a monitor for id.
func New(id asset.ID, source fetcher.PriceSource, thresholds *threshold.Controller, notifier alerting.Notifier, opts Options, now func() time.Time, logger zerolog.Logger) *Monitor {
	if opts.PeakSamples <= 0 {
		opts.PeakSamples = drawdown.DefaultPeakSamples
	}
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		asset:      id,
		source:     source,
		thresholds: thresholds,
		notifier:   notifier,
		opts:       opts,
		now:        now,
		logger:     logger.With().Str("component", "monitor").Str("asset", id.String()).Logger(),
	}
}

// Asset returns the monitored asset.
func (m *Monitor) Asset() asset.ID {
	return m.asset
}

// Run hands the cycle to sched and blocks until it stops. A cooperative stop
// returns nil; an escalated failure returns an error wrapping scheduler.ErrFatal.
func (m *Monitor) Run(ctx context.Context, sched *scheduler.Scheduler) error {
	m.logger.Info().
		Str("name", m.asset.DisplayName()).
		Dur("interval", sched.Interval()).
		Msg("starting monitoring with dynamic threshold")

	err := sched.Run(ctx, m.tick)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		m.logger.Info().Msg("monitoring stopped")
		return nil
	}
	return err
}

func (m *Monitor) tick(ctx context.Context) error {
	_, err := m.RunCycle(ctx)
	if err == nil {
		m.failures = 0
		return nil
	}

	m.failures++
	if m.opts.MaxConsecutiveFailures > 0 && m.failures >= m.opts.MaxConsecutiveFailures {
		return fmt.Errorf("%s: %d consecutive failed cycles: %w: %w", m.asset, m.failures, scheduler.ErrFatal, err)
	}
	return err
}

// RunCycle performs one fetch, compute, decide pass. Any error ends the cycle
// before an alert is considered and leaves the stored threshold untouched.
func (m *Monitor) RunCycle(ctx context.Context) (Outcome, error) {
	out := Outcome{Asset: m.asset, At: m.now()}

	state, err := m.thresholds.Get(ctx)
	if err != nil {
		// the controller already substituted a usable threshold
		m.logger.Warn().Err(err).Msg("threshold state degraded for this cycle")
	}
	out.Threshold = state.Percent
	out.NextThreshold = state.Percent

	history, err := m.source.FetchHistorical(ctx, m.asset)
	if err != nil {
		return m.fail(out, fmt.Errorf("fetch historical prices: %w", err))
	}

	peak, err := drawdown.SmoothedPeak(history, m.opts.PeakSamples)
	if err != nil {
		return m.fail(out, fmt.Errorf("smoothed peak: %w", err))
	}
	out.Peak = peak

	current, err := m.source.FetchCurrent(ctx, m.asset)
	if err != nil {
		return m.fail(out, fmt.Errorf("fetch current price: %w", err))
	}
	out.Current = current

	drop, err := drawdown.DropPercent(peak, current)
	if err != nil {
		return m.fail(out, fmt.Errorf("drop percent: %w", err))
	}
	out.DropPct = drop

	m.logger.Info().
		Str("current", current.StringFixed(2)).
		Str("peak", peak.StringFixed(2)).
		Str("drop_pct", drop.StringFixed(1)).
		Str("threshold_pct", state.Percent.StringFixed(1)).
		Msg("cycle evaluated")

	if drop.LessThan(state.Percent) {
		return out, nil
	}

	out.Alerted = true
	m.logger.Warn().
		Str("drop_pct", drop.StringFixed(1)).
		Str("threshold_pct", state.Percent.StringFixed(1)).
		Msg("alert triggered")

	subject, body := alerting.RenderAlert(alerting.AlertEvent{
		Asset:     m.asset,
		Current:   current,
		Peak:      peak,
		DropPct:   drop,
		Threshold: state.Percent,
		At:        out.At,
	})
	if err := m.notifier.Send(ctx, subject, body); err != nil {
		m.logger.Error().Err(err).Msg("failed to dispatch alert")
	}

	next, err := m.thresholds.Tighten(ctx, m.thresholds.Rearm(drop), m.now())
	out.NextThreshold = next.Percent
	if err != nil {
		return out, fmt.Errorf("persist threshold: %w", err)
	}
	m.logger.Info().Str("threshold_pct", next.Percent.StringFixed(1)).Msg("new drop threshold saved")
	return out, nil
}

func (m *Monitor) fail(out Outcome, err error) (Outcome, error) {
	m.logger.Error().Err(err).Str("threshold_pct", out.Threshold.StringFixed(1)).Msg("cycle failed")
	return out, err
}

// IsDataError reports whether err came from the price source or the peak and
// drop computation, as opposed to state persistence.
func IsDataError(err error) bool {
	return errors.Is(err, fetcher.ErrNetwork) ||
		errors.Is(err, fetcher.ErrAuth) ||
		errors.Is(err, fetcher.ErrParse) ||
		errors.Is(err, drawdown.ErrInsufficientData) ||
		errors.Is(err, drawdown.ErrDegenerateInput)
}

// IsStateError reports whether err came from threshold persistence.
func IsStateError(err error) bool {
	return errors.Is(err, storage.ErrIO)
}
