package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"drawdownwatch/internal/asset"
	"drawdownwatch/internal/drawdown"
	"drawdownwatch/internal/storage"
)

// assetReport is what show knows about one asset without touching the network.
type assetReport struct {
	Asset       asset.ID
	Threshold   decimal.Decimal
	Stored      bool
	LastUpdated time.Time
	Points      int
	FetchedAt   time.Time
	Peak        decimal.Decimal
	HasPeak     bool
	Trigger     decimal.Decimal
	Mean        float64
	StdDev      float64
}

// Show prints each asset's persisted threshold and cached price window. It
// only reads state; no decay is applied and nothing is written.
func (a *App) Show(ctx context.Context) error {
	ids, err := a.Config.AssetIDs()
	if err != nil {
		return err
	}
	store, err := a.newStore()
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Asset\tThreshold%\tLast Update\tCached\tFetched\tPeak\tTrigger\tMean\tStdDev")

	for _, id := range ids {
		rep, err := a.report(ctx, store.Partition(id), id)
		if err != nil {
			return err
		}

		threshold := rep.Threshold.StringFixed(1)
		updated := "-"
		if rep.Stored {
			updated = rep.LastUpdated.Local().Format("2006-01-02 15:04:05")
		} else {
			threshold += " (default)"
		}
		fetched, peak, trigger, mean, stddev := "-", "-", "-", "-", "-"
		if rep.Points > 0 {
			fetched = rep.FetchedAt.Local().Format("2006-01-02 15:04:05")
			mean = fmt.Sprintf("%.2f", rep.Mean)
			stddev = fmt.Sprintf("%.2f", rep.StdDev)
		}
		if rep.HasPeak {
			peak = rep.Peak.StringFixed(2)
			trigger = rep.Trigger.StringFixed(2)
		}

		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			id.DisplayName(), threshold, updated, rep.Points, fetched, peak, trigger, mean, stddev)
	}

	return writer.Flush()
}

func (a *App) report(ctx context.Context, part storage.Partition, id asset.ID) (assetReport, error) {
	rep := assetReport{Asset: id, Threshold: decimal.NewFromFloat(a.Config.Monitor.BaselinePct)}

	rec, err := part.LoadThreshold(ctx)
	switch {
	case err == nil:
		rep.Threshold = rec.ThresholdPct
		rep.LastUpdated = rec.LastUpdated
		rep.Stored = true
	case errors.Is(err, storage.ErrNotFound):
	default:
		return rep, fmt.Errorf("%s threshold: %w", id, err)
	}

	hist, err := part.LoadHistory(ctx)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		return rep, nil
	default:
		return rep, fmt.Errorf("%s history: %w", id, err)
	}

	rep.Points = len(hist.Prices)
	rep.FetchedAt = hist.FetchedAt
	if rep.Points > 0 {
		values := toFloats(hist.Prices)
		rep.Mean, rep.StdDev = stat.MeanStdDev(values, nil)
	}

	peak, err := drawdown.SmoothedPeak(hist.Prices, a.Config.Monitor.PeakSamples)
	if err == nil {
		rep.Peak = peak
		rep.HasPeak = true
		rep.Trigger = drawdown.TriggerPrice(peak, rep.Threshold)
	}
	return rep, nil
}

func toFloats(prices []decimal.Decimal) []float64 {
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = p.InexactFloat64()
	}
	return out
}
