package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"drawdownwatch/internal/asset"
	"drawdownwatch/internal/storage"
)

// Export renders an asset's cached price window as CSV and/or PNG, with the
// smoothed peak and current trigger price as reference lines.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Asset == "" {
		return errors.New("--asset is required")
	}
	id, err := asset.Parse(opts.Asset)
	if err != nil {
		return err
	}

	store, err := a.newStore()
	if err != nil {
		return err
	}
	rep, err := a.report(ctx, store.Partition(id), id)
	if err != nil {
		return err
	}
	if rep.Points == 0 {
		return fmt.Errorf("%s: no cached prices in %s; run check first", id, store.Dir())
	}

	hist, err := store.Partition(id).LoadHistory(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info().Str("asset", id.String()).Int("points", len(hist.Prices)).Msg("exporting cached prices")

	if opts.CSVPath != "" {
		if err := writePricesCSV(opts.CSVPath, hist.Prices); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := a.writePricesPNG(opts.PNGPath, rep, hist); err != nil {
			return err
		}
	}

	return nil
}

func writePricesCSV(path string, prices []decimal.Decimal) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"index", "price"}); err != nil {
		return err
	}
	for i, p := range prices {
		if err := writer.Write([]string{strconv.Itoa(i), p.String()}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func (a *App) writePricesPNG(path string, rep assetReport, hist storage.HistoryRecord) error {
	if len(hist.Prices) < 2 {
		return fmt.Errorf("%s: need at least 2 cached prices to draw a chart", rep.Asset)
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, len(hist.Prices))
	for i := range x {
		x[i] = float64(i)
	}
	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    rep.Asset.DisplayName(),
			XValues: x,
			YValues: toFloats(hist.Prices),
		},
	}
	if rep.HasPeak {
		last := x[len(x)-1]
		series = append(series,
			horizontalLine("Smoothed peak", rep.Peak, last, drawing.ColorBlue),
			horizontalLine(fmt.Sprintf("Trigger (-%s%%)", rep.Threshold.StringFixed(1)), rep.Trigger, last, drawing.ColorRed),
		)
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  fmt.Sprintf("%s cached window (%s)", rep.Asset.DisplayName(), hist.FetchedAt.Format("2006-01-02")),
		Width:  a.Config.Export.Width,
		Height: a.Config.Export.Height,
		XAxis: chart.XAxis{
			Name:           "Sample",
			ValueFormatter: chart.IntValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func horizontalLine(name string, level decimal.Decimal, lastX float64, c drawing.Color) chart.ContinuousSeries {
	y := level.InexactFloat64()
	return chart.ContinuousSeries{
		Name:    name,
		XValues: []float64{0, lastX},
		YValues: []float64{y, y},
		Style: chart.Style{
			StrokeColor:     c,
			StrokeDashArray: []float64{5, 5},
		},
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
