package storage

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"drawdownwatch/internal/asset"
)

// MemoryStore is an in-process Partitioner used by simulations and tests.
type MemoryStore struct {
	mu         sync.Mutex
	partitions map[asset.ID]*MemoryPartition
	now        func() time.Time
}

// NewMemoryStore builds an empty store. now defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{partitions: make(map[asset.ID]*MemoryPartition), now: now}
}

// Partition returns the asset's partition, creating it on first use.
func (s *MemoryStore) Partition(id asset.ID) Partition {
	return s.partition(id)
}

// Memory exposes the concrete partition so tests can inspect or break it.
func (s *MemoryStore) Memory(id asset.ID) *MemoryPartition {
	return s.partition(id)
}

func (s *MemoryStore) partition(id asset.ID) *MemoryPartition {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[id]
	if !ok {
		p = &MemoryPartition{now: s.now}
		s.partitions[id] = p
	}
	return p
}

// MemoryPartition holds one asset's records in memory.
type MemoryPartition struct {
	mu        sync.Mutex
	now       func() time.Time
	threshold *ThresholdRecord
	history   *HistoryRecord

	// LoadErr and SaveErr, when set, are returned by threshold operations.
	LoadErr error
	SaveErr error
	// Saves counts successful threshold writes.
	Saves int
}

func (p *MemoryPartition) LoadThreshold(ctx context.Context) (ThresholdRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.LoadErr != nil {
		return ThresholdRecord{}, p.LoadErr
	}
	if p.threshold == nil {
		return ThresholdRecord{}, ErrNotFound
	}
	return *p.threshold, nil
}

func (p *MemoryPartition) SaveThreshold(ctx context.Context, rec ThresholdRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SaveErr != nil {
		return p.SaveErr
	}
	p.threshold = &rec
	p.Saves++
	return nil
}

func (p *MemoryPartition) LoadHistory(ctx context.Context) (HistoryRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.history == nil {
		return HistoryRecord{}, ErrNotFound
	}
	rec := *p.history
	rec.Prices = append([]decimal.Decimal(nil), rec.Prices...)
	return rec, nil
}

func (p *MemoryPartition) SaveHistory(ctx context.Context, prices []decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = &HistoryRecord{
		Prices:    append([]decimal.Decimal(nil), prices...),
		FetchedAt: p.now(),
	}
	return nil
}

var _ Partitioner = (*MemoryStore)(nil)
