package fetcher

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"drawdownwatch/internal/asset"
)

// Router dispatches each asset to the provider configured for it.
type Router struct {
	providers map[asset.ID]Provider
}

// NewRouter builds a router from an asset to provider mapping.
func NewRouter(providers map[asset.ID]Provider) *Router {
	copied := make(map[asset.ID]Provider, len(providers))
	for id, p := range providers {
		copied[id] = p
	}
	return &Router{providers: copied}
}

// FetchHistorical implements PriceSource.
func (r *Router) FetchHistorical(ctx context.Context, id asset.ID) ([]decimal.Decimal, error) {
	p, err := r.provider(id)
	if err != nil {
		return nil, err
	}
	return p.Historical(ctx)
}

// FetchCurrent implements PriceSource.
func (r *Router) FetchCurrent(ctx context.Context, id asset.ID) (decimal.Decimal, error) {
	p, err := r.provider(id)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return p.Current(ctx)
}

func (r *Router) provider(id asset.ID) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	return p, nil
}

var _ PriceSource = (*Router)(nil)
