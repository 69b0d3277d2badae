// Package supervisor runs one monitor per asset and coordinates their shutdown.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"drawdownwatch/internal/alerting"
	"drawdownwatch/internal/monitor"
	"drawdownwatch/internal/scheduler"
)

// Options tune the supervisor.
type Options struct {
	// NotifyOnStart sends a notification before the monitors start.
	NotifyOnStart bool
	// NotifyTimeout bounds best-effort notifications.
	NotifyTimeout time.Duration
}

// Supervisor owns the monitors of all tracked assets.
type Supervisor struct {
	monitors     []*monitor.Monitor
	newScheduler func() *scheduler.Scheduler
	notifier     alerting.Notifier
	opts         Options
	logger       zerolog.Logger
}

// New builds a supervisor. newScheduler is called once per monitor.
func New(monitors []*monitor.Monitor, newScheduler func() *scheduler.Scheduler, notifier alerting.Notifier, opts Options, logger zerolog.Logger) *Supervisor {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = time.Minute
	}
	return &Supervisor{
		monitors:     monitors,
		newScheduler: newScheduler,
		notifier:     notifier,
		opts:         opts,
		logger:       logger.With().Str("component", "supervisor").Logger(),
	}
}

// Run starts every monitor and blocks until all have stopped. Cancelling ctx
// stops them cooperatively and Run returns nil. The first fatal monitor error
// is reported, stops the others at their next cycle boundary, and is returned.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.monitors) == 0 {
		return fmt.Errorf("no assets configured")
	}

	if s.opts.NotifyOnStart {
		s.notify(ctx, "drawdownwatch started",
			fmt.Sprintf("drawdownwatch monitoring started successfully at %s", time.Now().Format("2006-01-02 15:04:05")))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, m := range s.monitors {
		sched := s.newScheduler()
		group.Go(func() error {
			err := m.Run(groupCtx, sched)
			if err != nil {
				name := m.Asset().DisplayName()
				s.logger.Error().Err(err).Str("asset", m.Asset().String()).Msg("monitoring fatal error")
				s.notify(ctx, fmt.Sprintf("drawdownwatch Error - %s", name),
					fmt.Sprintf("Fatal error in %s monitoring: %v", name, err))
			}
			return err
		})
	}

	s.logger.Info().Int("monitors", len(s.monitors)).Msg("monitors started")
	err := group.Wait()
	if err != nil {
		s.logger.Error().Err(err).Msg("supervisor stopped after fatal error")
		return err
	}
	s.logger.Info().Msg("all monitors stopped")
	return nil
}

// notify delivers a best-effort message. It outlives ctx cancellation so a
// shutdown caused by the failure can still be reported.
func (s *Supervisor) notify(ctx context.Context, subject, body string) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()
	if err := s.notifier.Send(notifyCtx, subject, body); err != nil {
		s.logger.Error().Err(err).Str("subject", subject).Msg("best-effort notification failed")
	}
}
