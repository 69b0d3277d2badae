package drawdown

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func prices(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestSmoothedPeakAveragesTopTen(t *testing.T) {
	series := prices(100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 90, 90, 90)

	peak, err := SmoothedPeak(series, DefaultPeakSamples)
	if err != nil {
		t.Fatalf("SmoothedPeak 不应报错: %v", err)
	}
	if !peak.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("期望峰值 100, 实际 %s", peak)
	}
}

func TestSmoothedPeakOrderIndependent(t *testing.T) {
	asc := prices(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	shuffled := prices(7, 12, 1, 9, 3, 11, 5, 2, 10, 4, 8, 6)

	a, err := SmoothedPeak(asc, 10)
	if err != nil {
		t.Fatal(err)
	}
	b, err := SmoothedPeak(shuffled, 10)
	if err != nil {
		t.Fatal(err)
	}
	// top ten of 1..12 is 3..12, mean 7.5
	if !a.Equal(decimal.NewFromFloat(7.5)) || !a.Equal(b) {
		t.Fatalf("峰值应与顺序无关: %s vs %s", a, b)
	}
	if !shuffled[0].Equal(decimal.NewFromInt(7)) {
		t.Fatal("输入序列不应被修改")
	}
}

func TestSmoothedPeakInsufficientData(t *testing.T) {
	_, err := SmoothedPeak(prices(1, 2, 3), 10)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("少于 10 个点应返回 ErrInsufficientData, 实际 %v", err)
	}

	if _, err := SmoothedPeak(prices(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), 10); err != nil {
		t.Fatalf("恰好 10 个点应成功: %v", err)
	}
}

func TestDropPercent(t *testing.T) {
	tests := []struct {
		name    string
		peak    float64
		current float64
		want    string
	}{
		{name: "ten percent", peak: 100, current: 90, want: "10"},
		{name: "four percent", peak: 100, current: 96, want: "4"},
		{name: "above peak", peak: 100, current: 110, want: "-10"},
		{name: "fractional", peak: 250, current: 240, want: "4"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DropPercent(decimal.NewFromFloat(tc.peak), decimal.NewFromFloat(tc.current))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("drop = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDropPercentDegeneratePeak(t *testing.T) {
	for _, peak := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		if _, err := DropPercent(peak, decimal.NewFromInt(1)); !errors.Is(err, ErrDegenerateInput) {
			t.Fatalf("peak %s 应返回 ErrDegenerateInput, 实际 %v", peak, err)
		}
	}
}

func TestTriggerPrice(t *testing.T) {
	got := TriggerPrice(decimal.NewFromInt(200), decimal.NewFromInt(5))
	if !got.Equal(decimal.NewFromInt(190)) {
		t.Fatalf("trigger price = %s, want 190", got)
	}
}
