// Package drawdown turns a trailing price window into a smoothed peak and
// measures how far the latest price sits below it.
package drawdown

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultPeakSamples is the number of highest closes averaged into the peak.
const DefaultPeakSamples = 10

var (
	// ErrInsufficientData reports a window shorter than the sample count.
	ErrInsufficientData = errors.New("drawdown: insufficient historical data")
	// ErrDegenerateInput reports a non-positive peak.
	ErrDegenerateInput = errors.New("drawdown: degenerate input")
)

var hundred = decimal.NewFromInt(100)

// SmoothedPeak returns the mean of the `samples` highest values in series.
// The series is not modified and its order does not matter.
func SmoothedPeak(series []decimal.Decimal, samples int) (decimal.Decimal, error) {
	if samples <= 0 {
		samples = DefaultPeakSamples
	}
	if len(series) < samples {
		return decimal.Decimal{}, fmt.Errorf("%w: have %d points, need %d", ErrInsufficientData, len(series), samples)
	}

	sorted := make([]decimal.Decimal, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].GreaterThan(sorted[j])
	})

	top := sorted[:samples]
	return decimal.Avg(top[0], top[1:]...), nil
}

// DropPercent is the decline of current from peak, in percent. A price above
// the peak yields a negative drop.
func DropPercent(peak, current decimal.Decimal) (decimal.Decimal, error) {
	if !peak.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: peak %s", ErrDegenerateInput, peak.String())
	}
	return peak.Sub(current).Mul(hundred).Div(peak), nil
}

// TriggerPrice is the price at which DropPercent reaches thresholdPct.
func TriggerPrice(peak, thresholdPct decimal.Decimal) decimal.Decimal {
	return peak.Mul(hundred.Sub(thresholdPct)).Div(hundred)
}
