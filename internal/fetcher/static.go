package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"drawdownwatch/internal/asset"
)

// StaticQuote is a canned response for one asset.
type StaticQuote struct {
	Historical    []decimal.Decimal
	Current       decimal.Decimal
	HistoricalErr error
	CurrentErr    error
}

// Static answers from fixed quotes. It backs simulate-alert and tests.
type Static struct {
	mu              sync.Mutex
	quotes          map[asset.ID]StaticQuote
	historicalCalls map[asset.ID]int
	currentCalls    map[asset.ID]int
}

// NewStatic builds a static source.
func NewStatic(quotes map[asset.ID]StaticQuote) *Static {
	if quotes == nil {
		quotes = make(map[asset.ID]StaticQuote)
	}
	return &Static{
		quotes:          quotes,
		historicalCalls: make(map[asset.ID]int),
		currentCalls:    make(map[asset.ID]int),
	}
}

// Set replaces the quote served for id.
func (s *Static) Set(id asset.ID, q StaticQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[id] = q
}

// Calls reports how many historical and current requests id has received.
func (s *Static) Calls(id asset.ID) (historical, current int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historicalCalls[id], s.currentCalls[id]
}

// FetchHistorical implements PriceSource.
func (s *Static) FetchHistorical(ctx context.Context, id asset.ID) ([]decimal.Decimal, error) {
	s.mu.Lock()
	s.historicalCalls[id]++
	q, ok := s.quotes[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	if q.HistoricalErr != nil {
		return nil, q.HistoricalErr
	}
	return append([]decimal.Decimal(nil), q.Historical...), nil
}

// FetchCurrent implements PriceSource.
func (s *Static) FetchCurrent(ctx context.Context, id asset.ID) (decimal.Decimal, error) {
	s.mu.Lock()
	s.currentCalls[id]++
	q, ok := s.quotes[id]
	s.mu.Unlock()
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	if q.CurrentErr != nil {
		return decimal.Decimal{}, q.CurrentErr
	}
	return q.Current, nil
}

var _ PriceSource = (*Static)(nil)
