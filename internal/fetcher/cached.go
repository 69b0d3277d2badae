package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"drawdownwatch/internal/asset"
	"drawdownwatch/internal/storage"
)

// DefaultCacheMaxAge is how long a cached history stays fresh.
const DefaultCacheMaxAge = 24 * time.Hour

// Cached serves historical prices from the per-asset history cache while it
// is fresh and refreshes it from the upstream source otherwise. Current
// prices are never cached.
type Cached struct {
	source PriceSource
	caches storage.Partitioner
	maxAge time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewCached decorates source with the history cache held in caches.
func NewCached(source PriceSource, caches storage.Partitioner, maxAge time.Duration, now func() time.Time, logger zerolog.Logger) *Cached {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	if now == nil {
		now = time.Now
	}
	return &Cached{
		source: source,
		caches: caches,
		maxAge: maxAge,
		now:    now,
		logger: logger.With().Str("component", "history_cache").Logger(),
	}
}

// FetchHistorical implements PriceSource.
func (c *Cached) FetchHistorical(ctx context.Context, id asset.ID) ([]decimal.Decimal, error) {
	cache := c.caches.Partition(id)
	logger := c.logger.With().Str("asset", id.String()).Logger()

	rec, err := cache.LoadHistory(ctx)
	switch {
	case err == nil && c.now().Sub(rec.FetchedAt) < c.maxAge:
		logger.Info().Int("points", len(rec.Prices)).Msg("using cached historical data")
		return rec.Prices, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		logger.Warn().Err(err).Msg("history cache unreadable; refetching")
	}

	logger.Info().Msg("fetching fresh historical data")
	prices, err := c.source.FetchHistorical(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("points", len(prices)).Msg("fetched historical prices")

	if err := cache.SaveHistory(ctx, prices); err != nil {
		logger.Error().Err(err).Msg("failed to cache historical data")
	}
	return prices, nil
}

// FetchCurrent implements PriceSource.
func (c *Cached) FetchCurrent(ctx context.Context, id asset.ID) (decimal.Decimal, error) {
	return c.source.FetchCurrent(ctx, id)
}

var _ PriceSource = (*Cached)(nil)
