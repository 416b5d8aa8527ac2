package viz

import (
	"fmt"
	"slices"

	"github.com/aclements/go-moremath/stats"

	"github.com/panyam/adaptiva/charts"
	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/tables"
)

const histogramBins = 10

// FigureSeries flattens a figure's traces into drawable series. Cells with
// no numeric value are skipped.
func FigureSeries(fig *charts.Figure) ([]DataSeries, PlotMetadata) {
	meta := PlotMetadata{Title: fig.Layout.Title, XLabel: fig.Layout.XAxis.Title, YLabel: fig.Layout.YAxis.Title}
	colors := fig.Layout.Colorway
	colorAt := func(i int) string {
		if len(colors) == 0 {
			return "#3b82f6"
		}
		return colors[i%len(colors)]
	}

	var out []DataSeries
	for ti, tr := range fig.Traces {
		color := tr.Color
		if color == "" {
			color = colorAt(ti)
		}
		s := DataSeries{Name: tr.Name, Kind: tr.Kind, Color: color}
		switch tr.Kind {
		case chartspec.Pie:
			for i, l := range tr.Labels {
				if y, ok := tables.ToFloat(valueAt(tr.Values, i)); ok {
					s.Points = append(s.Points, DataPoint{Label: tables.FormatValue(l), Y: y})
				}
			}
		case chartspec.Histogram:
			s.Kind = chartspec.Bar
			s.Points = histogramPoints(tr.X)
		case chartspec.Box:
			if s.Name == "" {
				s.Name = meta.YLabel
			}
			vals := tr.Y
			if len(vals) == 0 {
				vals = tr.X
			}
			for _, v := range vals {
				if y, ok := tables.ToFloat(v); ok {
					s.Points = append(s.Points, DataPoint{Label: s.Name, Y: y})
				}
			}
		case chartspec.Heatmap:
			for r, row := range tr.Z {
				hs := DataSeries{Name: tables.FormatValue(valueAt(tr.Y, r)), Kind: chartspec.Heatmap, Color: color}
				for c, v := range row {
					if y, ok := tables.ToFloat(v); ok {
						hs.Points = append(hs.Points, DataPoint{Label: tables.FormatValue(valueAt(tr.X, c)), Y: y})
					}
				}
				out = append(out, hs)
			}
			continue
		default:
			for i, x := range tr.X {
				if y, ok := tables.ToFloat(valueAt(tr.Y, i)); ok {
					s.Points = append(s.Points, DataPoint{Label: tables.FormatValue(x), Y: y})
				}
			}
		}
		out = append(out, s)
	}
	return out, meta
}

func valueAt(vals []any, i int) any {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

// histogramPoints counts numeric values into equal-width bins, or counts
// distinct labels when the values are not numeric.
func histogramPoints(vals []any) []DataPoint {
	var xs []float64
	var labels []string
	counts := map[string]int{}
	for _, v := range vals {
		if v == nil {
			continue
		}
		if f, ok := v.(float64); ok {
			xs = append(xs, f)
			continue
		}
		k := tables.FormatValue(v)
		if counts[k] == 0 {
			labels = append(labels, k)
		}
		counts[k]++
	}
	if len(xs) == 0 {
		slices.Sort(labels)
		out := make([]DataPoint, len(labels))
		for i, l := range labels {
			out[i] = DataPoint{Label: l, Y: float64(counts[l])}
		}
		return out
	}

	lo, hi := stats.Bounds(xs)
	bins := min(histogramBins, len(xs))
	width := (hi - lo) / float64(bins)
	if width == 0 {
		return []DataPoint{{Label: fmt.Sprintf("%g", lo), Y: float64(len(xs))}}
	}
	hist := make([]float64, bins)
	for _, x := range xs {
		i := min(int((x-lo)/width), bins-1)
		hist[i]++
	}
	prec := calculateOptimalPrecision([]float64{lo, lo + width})
	out := make([]DataPoint, bins)
	for i, n := range hist {
		out[i] = DataPoint{Label: formatValue(lo+float64(i)*width, prec), Y: n}
	}
	return out
}

// RenderSVG draws fig with p, or with a default SVGPlotter themed from the
// figure's layout when p is nil.
func RenderSVG(fig *charts.Figure, p Plotter) (string, error) {
	if p == nil {
		cfg := DefaultPlotConfig()
		if fig.Layout.FontColor != "" {
			cfg.TextColor = fig.Layout.FontColor
		}
		if fig.Layout.PaperBG != "" {
			cfg.Background = fig.Layout.PaperBG
		}
		if len(fig.Layout.Colorway) > 0 {
			cfg.Colors = fig.Layout.Colorway
		}
		cfg.ShowLegend = fig.Layout.ShowLegend
		p = NewSVGPlotter(cfg)
	}
	series, meta := FigureSeries(fig)
	return p.Generate(series, meta)
}
