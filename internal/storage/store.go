package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"drawdownwatch/internal/asset"
)

var (
	// ErrNotFound indicates no durable record exists yet.
	ErrNotFound = errors.New("storage: record not found")
	// ErrIO wraps any failure to read or write a durable record.
	ErrIO = errors.New("storage: io failure")
)

const (
	thresholdSuffix = "_threshold.json"
	historySuffix   = "_cache.json"
)

// ThresholdStore persists one asset's alert threshold.
type ThresholdStore interface {
	LoadThreshold(ctx context.Context) (ThresholdRecord, error)
	SaveThreshold(ctx context.Context, rec ThresholdRecord) error
}

// HistoryCache persists one asset's trailing price window.
type HistoryCache interface {
	LoadHistory(ctx context.Context) (HistoryRecord, error)
	SaveHistory(ctx context.Context, prices []decimal.Decimal) error
}

// Partitioner hands out per-asset views of a backing store.
type Partitioner interface {
	Partition(id asset.ID) Partition
}

// Partition is the complete storage surface of a single asset.
type Partition interface {
	ThresholdStore
	HistoryCache
}

// FileStore keeps flat JSON files in a directory, one threshold file and one
// history file per asset.
type FileStore struct {
	dir string
}

// NewFileStore prepares dir for use.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create state dir: %v", ErrIO, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Partition returns the file-backed view of one asset.
func (s *FileStore) Partition(id asset.ID) Partition {
	return &filePartition{
		asset:         id,
		thresholdPath: filepath.Join(s.dir, string(id)+thresholdSuffix),
		historyPath:   filepath.Join(s.dir, string(id)+historySuffix),
	}
}

type filePartition struct {
	asset         asset.ID
	thresholdPath string
	historyPath   string
}

func (p *filePartition) LoadThreshold(ctx context.Context) (ThresholdRecord, error) {
	var raw thresholdFile
	if _, err := readJSON(p.thresholdPath, &raw); err != nil {
		return ThresholdRecord{}, err
	}
	rec, err := decodeThreshold(raw)
	if err != nil {
		return ThresholdRecord{}, fmt.Errorf("%w: decode %s: %v", ErrIO, p.thresholdPath, err)
	}
	return rec, nil
}

func (p *filePartition) SaveThreshold(ctx context.Context, rec ThresholdRecord) error {
	return writeJSON(p.thresholdPath, encodeThreshold(rec))
}

func (p *filePartition) LoadHistory(ctx context.Context) (HistoryRecord, error) {
	var raw []float64
	info, err := readJSON(p.historyPath, &raw)
	if err != nil {
		return HistoryRecord{}, err
	}
	return HistoryRecord{Prices: decodeHistory(raw), FetchedAt: info.ModTime()}, nil
}

func (p *filePartition) SaveHistory(ctx context.Context, prices []decimal.Decimal) error {
	return writeJSON(p.historyPath, encodeHistory(prices))
}

func readJSON(path string, dst any) (fs.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}
	if err := json.NewDecoder(f).Decode(dst); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrIO, path, err)
	}
	return info, nil
}

// writeJSON replaces path atomically so readers never observe a partial file.
func writeJSON(path string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrIO, path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", ErrIO, path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrIO, path, err)
	}
	return nil
}

var _ Partitioner = (*FileStore)(nil)
