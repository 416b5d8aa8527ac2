// Package viz draws static SVG previews of chart figures.
package viz

import (
	"github.com/panyam/adaptiva/chartspec"
)

// DataPoint is one value at a category. Box series carry raw observations;
// heatmap series carry one row of cells.
type DataPoint struct {
	Label string
	Y     float64
}

// DataSeries is a single named series drawn in one style.
type DataSeries struct {
	Name   string
	Kind   chartspec.ChartType
	Color  string
	Points []DataPoint
}

// PlotMetadata contains chart labels and title.
type PlotMetadata struct {
	XLabel string `json:"xLabel,omitempty"`
	YLabel string `json:"yLabel,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Plotter defines the interface for creating plots and charts.
type Plotter interface {
	Generate(series []DataSeries, meta PlotMetadata) (string, error)
}
