package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"

	"drawdownwatch/internal/monitor"
)

var (
	okColor    = color.New(color.FgGreen)
	alertColor = color.New(color.FgRed, color.Bold)
	failColor  = color.New(color.FgYellow)
)

// Check runs one cycle per asset against the real sources and state, and
// prints a verdict line for each. Alerts are delivered as in run.
func (a *App) Check(ctx context.Context, opts CheckOptions) error {
	ids, err := a.resolveAssets(opts.Asset)
	if err != nil {
		return err
	}

	store, err := a.newStore()
	if err != nil {
		return err
	}
	source := a.newPriceSource(store)
	notifier := a.newNotifier()

	var errs []error
	for _, id := range ids {
		out, err := a.newMonitor(id, source, store, notifier).RunCycle(ctx)
		switch {
		case err != nil:
			kind := "error"
			if monitor.IsDataError(err) {
				kind = "data error"
			} else if monitor.IsStateError(err) {
				kind = "state error"
			}
			failColor.Fprintf(a.out, "%-8s %s: %v\n", id, kind, err)
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		case out.Alerted:
			alertColor.Fprintf(a.out, "%-8s ALERT  drop %s%% >= threshold %s%% (peak %s, current %s); next threshold %s%%\n",
				id, out.DropPct.StringFixed(1), out.Threshold.StringFixed(1),
				out.Peak.StringFixed(2), out.Current.StringFixed(2), out.NextThreshold.StringFixed(1))
		default:
			okColor.Fprintf(a.out, "%-8s ok     drop %s%% < threshold %s%% (peak %s, current %s)\n",
				id, out.DropPct.StringFixed(1), out.Threshold.StringFixed(1),
				out.Peak.StringFixed(2), out.Current.StringFixed(2))
		}
	}
	return errors.Join(errs...)
}
