package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"drawdownwatch/internal/alerting"
	"drawdownwatch/internal/asset"
	"drawdownwatch/internal/config"
	"drawdownwatch/internal/fetcher"
	"drawdownwatch/internal/monitor"
	"drawdownwatch/internal/scheduler"
	"drawdownwatch/internal/storage"
	"drawdownwatch/internal/supervisor"
	"drawdownwatch/internal/threshold"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	base     zerolog.Logger
	out      io.Writer
	now      func() time.Time
	notifier alerting.Notifier
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), base: logger, out: os.Stdout, now: time.Now}
}

func (a *App) newStore() (*storage.FileStore, error) {
	return storage.NewFileStore(a.Config.Storage.Dir)
}

func (a *App) newProviders() map[asset.ID]fetcher.Provider {
	src := a.Config.Sources
	return map[asset.ID]fetcher.Provider{
		asset.EquityIndex: fetcher.NewAlphaVantage(fetcher.AlphaVantageOptions{
			BaseURL:  src.AlphaVantage.BaseURL,
			APIKey:   src.AlphaVantage.APIKey,
			Symbol:   src.AlphaVantage.Symbol,
			Timeout:  src.AlphaVantage.Timeout,
			Lookback: a.Config.Monitor.Lookback,
			Now:      a.now,
		}, a.base),
		asset.Crypto: fetcher.NewCoinGecko(fetcher.CoinGeckoOptions{
			BaseURL:    src.CoinGecko.BaseURL,
			APIKey:     src.CoinGecko.APIKey,
			CoinID:     src.CoinGecko.CoinID,
			VsCurrency: src.CoinGecko.VsCurrency,
			Timeout:    src.CoinGecko.Timeout,
			Lookback:   a.Config.Monitor.Lookback,
		}, a.base),
	}
}

// newPriceSource routes each asset to its upstream API behind the history cache.
func (a *App) newPriceSource(caches storage.Partitioner) fetcher.PriceSource {
	router := fetcher.NewRouter(a.newProviders())
	return fetcher.NewCached(router, caches, a.Config.Storage.HistoryMaxAge, a.now, a.base)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.notifier != nil {
		return a.notifier
	}
	email := a.Config.Alerting.Email
	return alerting.New(alerting.EmailOptions{
		Sender:    email.Sender,
		Password:  email.Password,
		Recipient: email.Recipient,
		Host:      email.SMTPHost,
		Port:      email.SMTPPort,
		Timeout:   email.Timeout,
	}, a.base)
}

func (a *App) thresholdOptions() threshold.Options {
	m := a.Config.Monitor
	return threshold.Options{
		Baseline:    decimal.NewFromFloat(m.BaselinePct),
		DecayStep:   decimal.NewFromFloat(m.DecayStepPct),
		DecayPeriod: m.DecayPeriod,
		RearmStep:   decimal.NewFromFloat(m.RearmStepPct),
	}
}

func (a *App) monitorOptions() monitor.Options {
	return monitor.Options{
		PeakSamples:            a.Config.Monitor.PeakSamples,
		MaxConsecutiveFailures: a.Config.Monitor.MaxConsecutiveFailures,
	}
}

// newMonitor wires one asset's monitor. Each monitor owns the threshold
// controller of its own partition.
func (a *App) newMonitor(id asset.ID, source fetcher.PriceSource, states storage.Partitioner, notifier alerting.Notifier) *monitor.Monitor {
	controller := threshold.New(states.Partition(id), a.thresholdOptions(), a.now, a.base.With().Str("asset", id.String()).Logger())
	return monitor.New(id, source, controller, notifier, a.monitorOptions(), a.now, a.base)
}

// resolveAssets narrows the configured assets to only, when given.
func (a *App) resolveAssets(only string) ([]asset.ID, error) {
	if only != "" {
		id, err := asset.Parse(only)
		if err != nil {
			return nil, err
		}
		return []asset.ID{id}, nil
	}
	return a.Config.AssetIDs()
}

func (a *App) newScheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval,
		RunImmediately: a.Config.Scheduler.RunImmediately,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
	}, a.base)
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.newStore()
	if err != nil {
		return err
	}

	ids, err := a.Config.AssetIDs()
	if err != nil {
		return err
	}

	notifier := a.newNotifier()
	source := a.newPriceSource(store)

	monitors := make([]*monitor.Monitor, 0, len(ids))
	for _, id := range ids {
		monitors = append(monitors, a.newMonitor(id, source, store, notifier))
	}

	sup := supervisor.New(monitors, a.newScheduler, notifier, supervisor.Options{
		NotifyOnStart: a.Config.Alerting.NotifyOnStart,
	}, a.base)

	a.Logger.Info().
		Str("state_dir", store.Dir()).
		Dur("interval", a.Config.Scheduler.Interval).
		Int("assets", len(ids)).
		Msg("starting drawdown monitoring")

	err = sup.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitoring terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring stopped")
	return nil
}

// CheckOptions configure the check command.
type CheckOptions struct {
	Asset string
}

// ExportOptions hold parameters for exporting the cached price window.
type ExportOptions struct {
	Asset   string
	PNGPath string
	CSVPath string
}

// SimulateOptions configure simulate-alert.
type SimulateOptions struct {
	Asset   string
	Peak    decimal.Decimal
	Current decimal.Decimal
}
