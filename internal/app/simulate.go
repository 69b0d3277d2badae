package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"drawdownwatch/internal/asset"
	"drawdownwatch/internal/fetcher"
	"drawdownwatch/internal/monitor"
	"drawdownwatch/internal/storage"
)

// SimulateAlert 用给定的峰值/现价跑一次完整周期，阈值只存在内存中，告警走真实通道。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) (monitor.Outcome, error) {
	if !opts.Peak.IsPositive() || !opts.Current.IsPositive() {
		return monitor.Outcome{}, errors.New("--peak 与 --current 必须大于 0")
	}
	id := asset.EquityIndex
	if opts.Asset != "" {
		parsed, err := asset.Parse(opts.Asset)
		if err != nil {
			return monitor.Outcome{}, err
		}
		id = parsed
	}

	samples := a.Config.Monitor.PeakSamples
	if samples <= 0 {
		samples = 1
	}
	history := make([]decimal.Decimal, samples)
	for i := range history {
		history[i] = opts.Peak
	}

	source := fetcher.NewStatic(map[asset.ID]fetcher.StaticQuote{
		id: {Historical: history, Current: opts.Current},
	})
	states := storage.NewMemoryStore(a.now)

	out, err := a.newMonitor(id, source, states, a.newNotifier()).RunCycle(ctx)
	if err != nil {
		return out, err
	}
	if !out.Alerted {
		a.Logger.Info().
			Str("drop_pct", out.DropPct.StringFixed(1)).
			Str("threshold_pct", out.Threshold.StringFixed(1)).
			Msg("simulated drop below threshold; no alert sent")
	}
	return out, nil
}
