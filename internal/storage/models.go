package storage

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ThresholdRecord is the durable alert threshold of one asset.
type ThresholdRecord struct {
	ThresholdPct decimal.Decimal
	LastUpdated  time.Time
}

// HistoryRecord is a cached trailing price window.
type HistoryRecord struct {
	Prices    []decimal.Decimal
	FetchedAt time.Time
}

// thresholdFile mirrors the on-disk layout: {"threshold_percent": 5.0, "last_updated": "..."}.
type thresholdFile struct {
	ThresholdPercent *float64 `json:"threshold_percent"`
	LastUpdated      string   `json:"last_updated"`
}

// timestamps written by earlier versions carry no zone and are read as local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func encodeThreshold(rec ThresholdRecord) thresholdFile {
	pct := rec.ThresholdPct.InexactFloat64()
	return thresholdFile{
		ThresholdPercent: &pct,
		LastUpdated:      rec.LastUpdated.Format(time.RFC3339Nano),
	}
}

func decodeThreshold(raw thresholdFile) (ThresholdRecord, error) {
	if raw.ThresholdPercent == nil {
		return ThresholdRecord{}, errors.New("threshold_percent missing")
	}
	pct := *raw.ThresholdPercent
	if math.IsNaN(pct) || math.IsInf(pct, 0) || pct <= 0 {
		return ThresholdRecord{}, fmt.Errorf("threshold_percent %v out of range", pct)
	}
	ts, err := parseTimestamp(raw.LastUpdated)
	if err != nil {
		return ThresholdRecord{}, err
	}
	return ThresholdRecord{
		ThresholdPct: decimal.NewFromFloat(pct),
		LastUpdated:  ts,
	}, nil
}

func parseTimestamp(v string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return ts, nil
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: time.RFC3339Nano, Value: v, Message: ": unrecognised last_updated timestamp"}
}

func encodeHistory(prices []decimal.Decimal) []float64 {
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = p.InexactFloat64()
	}
	return out
}

func decodeHistory(raw []float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(raw))
	for i, v := range raw {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}
