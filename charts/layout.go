package charts

import (
	"github.com/panyam/adaptiva/chartspec"
)

// Layout is the presentation half of a figure.
type Layout struct {
	Title      string        `json:"title,omitempty"`
	XAxis      Axis          `json:"xaxis"`
	YAxis      Axis          `json:"yaxis"`
	YAxis2     *Axis         `json:"yaxis2,omitempty"`
	BarMode    string        `json:"barmode,omitempty"`
	BarNorm    string        `json:"barnorm,omitempty"`
	ShowLegend bool          `json:"showlegend"`
	Legend     *LegendLayout `json:"legend,omitempty"`
	Colorway   []string      `json:"colorway"`
	Template   string        `json:"template"`
	PaperBG    string        `json:"paper_bgcolor"`
	PlotBG     string        `json:"plot_bgcolor"`
	FontColor  string        `json:"font_color"`
	HoverMode  string        `json:"hovermode"`
	DragMode   string        `json:"dragmode"`
	Config     PlotConfig    `json:"config"`
}

type Axis struct {
	Title      string `json:"title,omitempty"`
	Overlaying string `json:"overlaying,omitempty"`
	Side       string `json:"side,omitempty"`
}

// LegendLayout places the legend using paper coordinates.
type LegendLayout struct {
	Orientation string  `json:"orientation"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	XAnchor     string  `json:"xanchor"`
	YAnchor     string  `json:"yanchor"`
}

// PlotConfig carries client-side interaction settings.
type PlotConfig struct {
	ScrollZoom     bool     `json:"scrollZoom"`
	Responsive     bool     `json:"responsive"`
	DisplayModeBar any      `json:"displayModeBar"`
	ExportFormats  []string `json:"exportFormats"`
	DisplayLogo    bool     `json:"displaylogo"`
}

var palettes = map[chartspec.Palette][]string{
	chartspec.PaletteDefault: {
		"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
		"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
	},
	chartspec.PaletteVibrant: {
		"#FF0066", "#00CCFF", "#FFCC00", "#33CC33", "#9933FF",
		"#FF6600", "#00FF99", "#FF3399", "#3366FF", "#CCFF00",
	},
	chartspec.PalettePastel: {
		"#FFB3BA", "#BAFFC9", "#BAE1FF", "#FFFFBA", "#FFDFBA",
		"#E0BBE4", "#957DAD", "#D291BC", "#FEC8D8", "#FFDFD3",
	},
	chartspec.PaletteMonochrome: {
		"#1A1A1A", "#404040", "#666666", "#8C8C8C", "#B3B3B3",
		"#D9D9D9", "#333333", "#595959", "#7F7F7F", "#A6A6A6",
	},
	// Okabe-Ito.
	chartspec.PaletteColorblindSafe: {
		"#0072B2", "#E69F00", "#009E73", "#CC79A7", "#56B4E9",
		"#D55E00", "#F0E442", "#000000",
	},
}

// PaletteColors returns the colors for a palette, falling back to default.
func PaletteColors(p chartspec.Palette) []string {
	if c, ok := palettes[p]; ok {
		return c
	}
	return palettes[chartspec.PaletteDefault]
}

var legendPlacements = map[chartspec.LegendPosition]LegendLayout{
	chartspec.LegendTop:    {Orientation: "h", X: 0.5, Y: 1.02, XAnchor: "center", YAnchor: "bottom"},
	chartspec.LegendBottom: {Orientation: "h", X: 0.5, Y: -0.15, XAnchor: "center", YAnchor: "top"},
	chartspec.LegendLeft:   {Orientation: "v", X: -0.15, Y: 1, XAnchor: "right", YAnchor: "top"},
	chartspec.LegendRight:  {Orientation: "v", X: 1.02, Y: 1, XAnchor: "left", YAnchor: "top"},
}

func buildLayout(spec chartspec.ChartSpec) Layout {
	l := Layout{
		Title: spec.Visual.Title,
		XAxis: Axis{Title: firstNonEmpty(spec.XAxis.Label, spec.XAxis.Column)},
	}
	if ys := spec.YColumns(); len(ys) > 0 {
		l.YAxis.Title = firstNonEmpty(spec.YAxis.Label, ys[0])
		if spec.Visual.SecondaryYAxis && len(ys) > 1 {
			l.YAxis2 = &Axis{Title: ys[1], Overlaying: "y", Side: "right"}
		}
	}

	if spec.ChartType == chartspec.Bar {
		switch spec.Visual.Stacking {
		case chartspec.Stacked:
			l.BarMode = "stack"
		case chartspec.Percent:
			l.BarMode = "stack"
			l.BarNorm = "percent"
		default:
			l.BarMode = "group"
		}
	}

	l.ShowLegend = spec.Legend.Visible && spec.Legend.Position != chartspec.LegendNone
	if l.ShowLegend {
		if p, ok := legendPlacements[spec.Legend.Position]; ok {
			l.Legend = &p
		}
	}

	l.HoverMode = "closest"
	if spec.Interaction.TooltipDetail == chartspec.TooltipDetailed {
		l.HoverMode = "x unified"
	}
	l.DragMode = "zoom"
	if !spec.Interaction.ZoomScroll {
		l.DragMode = "pan"
	}
	var modebar any
	switch spec.Interaction.Modebar {
	case chartspec.ModebarAlways:
		modebar = true
	case chartspec.ModebarHidden:
		modebar = false
	default:
		modebar = "hover"
	}
	l.Config = PlotConfig{
		ScrollZoom:     spec.Interaction.ZoomScroll,
		Responsive:     spec.Interaction.Responsive,
		DisplayModeBar: modebar,
		ExportFormats:  append([]string{}, spec.Interaction.ExportFormats...),
	}
	return l
}

// applyStyling sets the palette, theme and data labels. It only touches
// presentation fields.
func applyStyling(fig *Figure, spec chartspec.ChartSpec) {
	colors := PaletteColors(spec.Styling.ColorPalette)
	fig.Layout.Colorway = append([]string(nil), colors...)
	for i := range fig.Traces {
		if fig.Traces[i].Kind != chartspec.Heatmap && fig.Traces[i].Kind != chartspec.Pie {
			fig.Traces[i].Color = colors[i%len(colors)]
		}
		if spec.Styling.ShowDataLabels {
			fig.Traces[i].TextPosition = "outside"
			if fig.Traces[i].Kind == chartspec.Pie {
				fig.Traces[i].TextPosition = "inside"
			}
		}
	}

	if spec.Styling.Theme == chartspec.ThemeDark {
		fig.Layout.Template = "plotly_dark"
		fig.Layout.PaperBG = "#1e1e1e"
		fig.Layout.PlotBG = "#1e1e1e"
		fig.Layout.FontColor = "#e0e0e0"
	} else {
		fig.Layout.Template = "plotly_white"
		fig.Layout.PaperBG = "#ffffff"
		fig.Layout.PlotBG = "#ffffff"
		fig.Layout.FontColor = "#2a3f5f"
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
