package viz

import (
	"fmt"
	"html/template"
	"math"
	"slices"
	"strings"

	"github.com/aclements/go-moremath/stats"

	"github.com/panyam/adaptiva/chartspec"
)

// PlotConfig holds styling and dimension configuration.
type PlotConfig struct {
	Width        int
	Height       int
	MarginTop    int
	MarginRight  int
	MarginBottom int
	MarginLeft   int
	Background   string
	GridColor    string
	TextColor    string
	YAxisMode    YAxisMode // Y-axis scaling mode
	Colors       []string  // Palette for pie slices and uncolored series
	ShowLegend   bool
	MaxXLabels   int // Category labels beyond this are thinned out
}

// TemplateData contains all data needed for SVG template rendering.
type TemplateData struct {
	Config      PlotConfig
	Metadata    PlotMetadata
	InnerWidth  int
	InnerHeight int
	XTicks      []XTick
	YTicks      []YTick
	GridLines   []GridLine
	Rects       []Rect
	Circles     []Circle
	SeriesPaths []SeriesPath
	LegendItems []LegendItem
	Message     string
}

// Helper structs for template rendering
type XTick struct {
	X     int
	Label string
}
type YTick struct {
	Y     int
	Label string
}
type GridLine struct{ X1, Y1, X2, Y2 int }
type Rect struct {
	X, Y, W, H int
	Fill       string
	Opacity    float64
}
type Circle struct {
	X, Y, R int
	Fill    string
}
type SeriesPath struct {
	Path, Stroke, Fill string
	Opacity            float64
}
type LegendItem struct {
	Name, Color string
	Y           int
}

const svgTemplate = `<svg width="{{.Config.Width}}" height="{{.Config.Height}}" xmlns="http://www.w3.org/2000/svg">
  <defs>
    <style>
      .axis { font: 12px sans-serif; fill: {{.Config.TextColor}}; }
      .axis path, .axis line { fill: none; stroke: {{.Config.TextColor}}; shape-rendering: crispEdges; }
      .grid-line { stroke: {{.Config.GridColor}}; stroke-width: 0.5px; }
      .title { font: bold 16px sans-serif; text-anchor: middle; fill: {{.Config.TextColor}}; }
      .axis-label { font: 12px sans-serif; text-anchor: middle; fill: {{.Config.TextColor}}; }
      .legend { font: 12px sans-serif; fill: {{.Config.TextColor}}; }
      .message { font: 14px sans-serif; text-anchor: middle; fill: {{.Config.TextColor}}; }
    </style>
  </defs>
  <rect width="100%" height="100%" fill="{{.Config.Background}}"></rect>

  {{if .Metadata.Title}}
  <text class="title" x="{{div .Config.Width 2}}" y="20">{{.Metadata.Title}}</text>
  {{end}}

  <g transform="translate({{.Config.MarginLeft}},{{.Config.MarginTop}})">
    {{range .GridLines}}<line class="grid-line" x1="{{.X1}}" x2="{{.X2}}" y1="{{.Y1}}" y2="{{.Y2}}"></line>{{end}}

    {{if .XTicks}}
    <g class="axis" transform="translate(0,{{.InnerHeight}})">
      {{range .XTicks}}<line x1="{{.X}}" x2="{{.X}}" y1="0" y2="6"></line><text x="{{.X}}" y="20" text-anchor="middle">{{.Label}}</text>{{end}}
      <path d="M0,0H{{$.InnerWidth}}"></path>
      {{if .Metadata.XLabel}}<text class="axis-label" x="{{div .InnerWidth 2}}" y="38">{{.Metadata.XLabel}}</text>{{end}}
    </g>
    {{end}}

    {{if .YTicks}}
    <g class="axis">
      {{range .YTicks}}<line x1="0" x2="-6" y1="{{.Y}}" y2="{{.Y}}"></line><text x="-10" y="{{add .Y 4}}" text-anchor="end">{{.Label}}</text>{{end}}
      <path d="M0,0V{{$.InnerHeight}}"></path>
      {{if .Metadata.YLabel}}<text class="axis-label" transform="rotate(-90)" x="{{neg (div .InnerHeight 2)}}" y="-45">{{.Metadata.YLabel}}</text>{{end}}
    </g>
    {{end}}

    {{range .Rects}}<rect x="{{.X}}" y="{{.Y}}" width="{{.W}}" height="{{.H}}" fill="{{.Fill}}" fill-opacity="{{.Opacity}}"></rect>{{end}}
    {{range .SeriesPaths}}<path fill="{{.Fill}}" fill-opacity="{{.Opacity}}" stroke="{{.Stroke}}" stroke-width="2px" d="{{.Path}}"></path>{{end}}
    {{range .Circles}}<circle cx="{{.X}}" cy="{{.Y}}" r="{{.R}}" fill="{{.Fill}}"></circle>{{end}}

    {{if .Message}}<text class="message" x="{{div .InnerWidth 2}}" y="{{div .InnerHeight 2}}">{{.Message}}</text>{{end}}
  </g>

  {{if .Config.ShowLegend}}
  <g class="legend" transform="translate({{add (add .Config.MarginLeft .InnerWidth) 10}}, {{.Config.MarginTop}})">
    {{range .LegendItems}}
    <rect x="0" y="{{.Y}}" width="12" height="12" fill="{{.Color}}"></rect>
    <text x="20" y="{{add .Y 10}}">{{.Name}}</text>
    {{end}}
  </g>
  {{end}}
</svg>`

// SVGPlotter implements the Plotter interface to generate SVG charts.
type SVGPlotter struct {
	config   PlotConfig
	template *template.Template
}

func NewSVGPlotter(config PlotConfig) *SVGPlotter {
	tmpl := template.Must(template.New("svg").Funcs(template.FuncMap{
		"div": func(a, b int) int { return a / b },
		"add": func(a, b int) int { return a + b },
		"neg": func(a int) int { return -a },
	}).Parse(svgTemplate))
	return &SVGPlotter{config: config, template: tmpl}
}

// DefaultPlotConfig returns sensible defaults.
func DefaultPlotConfig() PlotConfig {
	return PlotConfig{
		Width: 800, Height: 400, MarginTop: 40, MarginRight: 140,
		MarginBottom: 50, MarginLeft: 60,
		Background: "#ffffff", GridColor: "#e5e7eb", TextColor: "#000000",
		YAxisMode:  YAxisAuto,
		Colors:     []string{"#3b82f6", "#ef4444", "#10b981", "#f97316", "#8b5cf6", "#ec4899"},
		ShowLegend: true,
		MaxXLabels: 12,
	}
}

// Generate draws the series. Bars are grouped side by side; stacking and
// secondary axes are not drawn in previews.
func (p *SVGPlotter) Generate(series []DataSeries, meta PlotMetadata) (string, error) {
	data := TemplateData{
		Config:      p.config,
		Metadata:    meta,
		InnerWidth:  p.config.Width - p.config.MarginLeft - p.config.MarginRight,
		InnerHeight: p.config.Height - p.config.MarginTop - p.config.MarginBottom,
	}
	points := 0
	for _, s := range series {
		points += len(s.Points)
	}
	switch {
	case points == 0:
		data.Message = "No data"
	case series[0].Kind == chartspec.Pie:
		p.drawPie(&data, series[0])
	case series[0].Kind == chartspec.Heatmap:
		p.drawHeatmap(&data, series)
	default:
		p.drawCartesian(&data, series)
	}

	var result strings.Builder
	if err := p.template.Execute(&result, data); err != nil {
		return "", err
	}
	return "<?xml version=\"1.0\" encoding=\"UTF-8\"?>" + result.String(), nil
}

func (p *SVGPlotter) color(i int) string {
	if len(p.config.Colors) == 0 {
		return "#3b82f6"
	}
	return p.config.Colors[i%len(p.config.Colors)]
}

// categories returns the point labels in first-seen order.
func categories(series []DataSeries) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range series {
		for _, pt := range s.Points {
			if !seen[pt.Label] {
				seen[pt.Label] = true
				out = append(out, pt.Label)
			}
		}
	}
	return out
}

type bandScale struct {
	index map[string]int
	width int
	n     int
}

func newBandScale(cats []string, width int) bandScale {
	b := bandScale{index: make(map[string]int, len(cats)), width: width, n: max(len(cats), 1)}
	for i, c := range cats {
		b.index[c] = i
	}
	return b
}

func (b bandScale) band() float64 { return float64(b.width) / float64(b.n) }

func (b bandScale) center(label string) int {
	return int((float64(b.index[label]) + 0.5) * b.band())
}

func (p *SVGPlotter) drawCartesian(data *TemplateData, series []DataSeries) {
	cats := categories(series)
	xs := newBandScale(cats, data.InnerWidth)

	yExtent := [2]float64{math.Inf(1), math.Inf(-1)}
	mode := p.config.YAxisMode
	var bars []DataSeries
	for _, s := range series {
		for _, pt := range s.Points {
			yExtent[0] = math.Min(yExtent[0], pt.Y)
			yExtent[1] = math.Max(yExtent[1], pt.Y)
		}
		if s.Kind == chartspec.Bar || s.Kind == chartspec.Area {
			mode = YAxisZeroBased
		}
		if s.Kind == chartspec.Bar {
			bars = append(bars, s)
		}
	}
	ys := p.createLinearScale(p.adjustValueExtent(yExtent, mode), data.InnerHeight)
	base := ys.scale(math.Max(ys.domain[0], math.Min(0, ys.domain[1])))

	barWidth := 0.0
	if len(bars) > 0 {
		barWidth = xs.band() * 0.8 / float64(len(bars))
	}
	barIndex := 0
	for i, s := range series {
		color := s.Color
		if color == "" {
			color = p.color(i)
		}
		data.LegendItems = append(data.LegendItems, LegendItem{Name: s.Name, Color: color, Y: i * 20})
		switch s.Kind {
		case chartspec.Bar:
			for _, pt := range s.Points {
				x := float64(xs.center(pt.Label)) - xs.band()*0.4 + float64(barIndex)*barWidth
				y := ys.scale(pt.Y)
				top, h := min(y, base), absInt(base-y)
				data.Rects = append(data.Rects, Rect{X: int(x), Y: top, W: max(int(barWidth)-1, 1), H: h, Fill: color, Opacity: 1})
			}
			barIndex++
		case chartspec.Scatter:
			for _, pt := range s.Points {
				data.Circles = append(data.Circles, Circle{X: xs.center(pt.Label), Y: ys.scale(pt.Y), R: 4, Fill: color})
			}
		case chartspec.Box:
			p.drawBox(data, s, xs, ys, color)
		default:
			line := p.generateLinePath(s.Points, xs, ys)
			if s.Kind == chartspec.Area && len(s.Points) > 1 {
				first, last := s.Points[0], s.Points[len(s.Points)-1]
				fill := fmt.Sprintf("%s L%d,%d L%d,%d Z", line, xs.center(last.Label), base, xs.center(first.Label), base)
				data.SeriesPaths = append(data.SeriesPaths, SeriesPath{Path: fill, Stroke: "none", Fill: color, Opacity: 0.3})
			}
			data.SeriesPaths = append(data.SeriesPaths, SeriesPath{Path: line, Stroke: color, Fill: "none", Opacity: 1})
			if len(s.Points) == 1 {
				pt := s.Points[0]
				data.Circles = append(data.Circles, Circle{X: xs.center(pt.Label), Y: ys.scale(pt.Y), R: 3, Fill: color})
			}
		}
	}

	data.XTicks = p.generateXTicks(cats, xs)
	data.YTicks = p.generateYTicks(ys)
	data.GridLines = p.generateGridLines(ys, data.InnerWidth)
}

// drawBox draws a box from the quartiles of s with whiskers to the extremes.
func (p *SVGPlotter) drawBox(data *TemplateData, s DataSeries, xs bandScale, ys linearScale, color string) {
	if len(s.Points) == 0 {
		return
	}
	vals := make([]float64, len(s.Points))
	for i, pt := range s.Points {
		vals[i] = pt.Y
	}
	slices.Sort(vals)
	sample := stats.Sample{Xs: vals, Sorted: true}
	lo, hi := sample.Bounds()
	q1, q2, q3 := sample.Quantile(0.25), sample.Quantile(0.5), sample.Quantile(0.75)

	cx := xs.center(s.Points[0].Label)
	half := int(xs.band() * 0.3)
	top, bottom := ys.scale(q3), ys.scale(q1)
	data.Rects = append(data.Rects, Rect{X: cx - half, Y: top, W: 2 * half, H: max(bottom-top, 1), Fill: color, Opacity: 0.4})
	path := fmt.Sprintf("M%d,%d H%d M%d,%d V%d M%d,%d V%d",
		cx-half, ys.scale(q2), cx+half,
		cx, top, ys.scale(hi),
		cx, bottom, ys.scale(lo))
	data.SeriesPaths = append(data.SeriesPaths, SeriesPath{Path: path, Stroke: color, Fill: "none", Opacity: 1})
}

func (p *SVGPlotter) drawPie(data *TemplateData, s DataSeries) {
	total := 0.0
	for _, pt := range s.Points {
		total += math.Max(pt.Y, 0)
	}
	if total == 0 {
		data.Message = "No data"
		return
	}
	cx, cy := data.InnerWidth/2, data.InnerHeight/2
	r := float64(min(data.InnerWidth, data.InnerHeight)) / 2
	angle := -math.Pi / 2
	for i, pt := range s.Points {
		color := p.color(i)
		data.LegendItems = append(data.LegendItems, LegendItem{Name: pt.Label, Color: color, Y: i * 20})
		if pt.Y <= 0 {
			continue
		}
		sweep := 2 * math.Pi * pt.Y / total
		if sweep >= 2*math.Pi-1e-9 {
			data.Circles = append(data.Circles, Circle{X: cx, Y: cy, R: int(r), Fill: color})
			continue
		}
		x1, y1 := float64(cx)+r*math.Cos(angle), float64(cy)+r*math.Sin(angle)
		angle += sweep
		x2, y2 := float64(cx)+r*math.Cos(angle), float64(cy)+r*math.Sin(angle)
		large := 0
		if sweep > math.Pi {
			large = 1
		}
		path := fmt.Sprintf("M%d,%d L%.1f,%.1f A%.1f,%.1f 0 %d,1 %.1f,%.1f Z", cx, cy, x1, y1, r, r, large, x2, y2)
		data.SeriesPaths = append(data.SeriesPaths, SeriesPath{Path: path, Stroke: p.config.Background, Fill: color, Opacity: 1})
	}
}

// drawHeatmap draws one row per series; cell opacity scales with the value.
func (p *SVGPlotter) drawHeatmap(data *TemplateData, series []DataSeries) {
	cats := categories(series)
	xs := newBandScale(cats, data.InnerWidth)
	rowHeight := float64(data.InnerHeight) / float64(len(series))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, pt := range s.Points {
			lo, hi = math.Min(lo, pt.Y), math.Max(hi, pt.Y)
		}
	}
	for r, s := range series {
		for _, pt := range s.Points {
			opacity := 1.0
			if hi > lo {
				opacity = 0.15 + 0.85*(pt.Y-lo)/(hi-lo)
			}
			data.Rects = append(data.Rects, Rect{
				X: int(float64(xs.index[pt.Label]) * xs.band()), Y: int(float64(r) * rowHeight),
				W: max(int(xs.band())-1, 1), H: max(int(rowHeight)-1, 1),
				Fill: s.Color, Opacity: math.Round(opacity*100) / 100,
			})
		}
		data.YTicks = append(data.YTicks, YTick{Y: int((float64(r) + 0.5) * rowHeight), Label: s.Name})
	}
	data.XTicks = p.generateXTicks(cats, xs)
}

// --- Helper methods for SVG generation ---

type linearScale struct {
	domain [2]float64
	rangeY [2]int
}

func (p *SVGPlotter) createLinearScale(extent [2]float64, height int) linearScale {
	return linearScale{domain: extent, rangeY: [2]int{height, 0}}
}

func (ls linearScale) scale(v float64) int {
	d := ls.domain[1] - ls.domain[0]
	if d == 0 {
		return ls.rangeY[0]
	}
	r := (v - ls.domain[0]) / d
	return ls.rangeY[0] + int(r*float64(ls.rangeY[1]-ls.rangeY[0]))
}

func (p *SVGPlotter) generateLinePath(data []DataPoint, xs bandScale, ys linearScale) string {
	if len(data) < 2 {
		return ""
	}
	var b strings.Builder
	b.WriteString("M")
	for i, pt := range data {
		x, y := xs.center(pt.Label), ys.scale(pt.Y)
		if i == 0 {
			fmt.Fprintf(&b, "%d,%d", x, y)
		} else {
			fmt.Fprintf(&b, " L%d,%d", x, y)
		}
	}
	return b.String()
}

func (p *SVGPlotter) generateXTicks(cats []string, xs bandScale) []XTick {
	step := 1
	if p.config.MaxXLabels > 0 && len(cats) > p.config.MaxXLabels {
		step = (len(cats) + p.config.MaxXLabels - 1) / p.config.MaxXLabels
	}
	var ticks []XTick
	for i := 0; i < len(cats); i += step {
		ticks = append(ticks, XTick{X: xs.center(cats[i]), Label: cats[i]})
	}
	return ticks
}

func (p *SVGPlotter) generateYTicks(ys linearScale) []YTick {
	var ticks []YTick
	valTicks := p.generateValueTicks(ys.domain[0], ys.domain[1], 6)
	prec := calculateOptimalPrecision(valTicks)
	for _, tick := range valTicks {
		ticks = append(ticks, YTick{Y: ys.scale(tick), Label: formatValue(tick, prec)})
	}
	return ticks
}

func (p *SVGPlotter) generateGridLines(ys linearScale, w int) []GridLine {
	var lines []GridLine
	for _, tick := range p.generateValueTicks(ys.domain[0], ys.domain[1], 6) {
		y := ys.scale(tick)
		lines = append(lines, GridLine{0, y, w, y})
	}
	return lines
}

// --- Value formatting and scaling helpers ---

type YAxisMode int

const (
	YAxisAuto YAxisMode = iota
	YAxisZeroBased
)

func (p *SVGPlotter) adjustValueExtent(extent [2]float64, mode YAxisMode) [2]float64 {
	lo, hi := extent[0], extent[1]
	if lo > hi {
		return [2]float64{0, 1}
	}
	if mode == YAxisZeroBased {
		lo, hi = math.Min(lo, 0), math.Max(hi, 0)
	}
	if lo == hi {
		if lo == 0 {
			return [2]float64{-1, 1}
		}
		padding := math.Abs(lo) * 0.1
		return [2]float64{lo - padding, hi + padding}
	}
	padding := (hi - lo) * 0.05
	if mode == YAxisZeroBased && lo == 0 {
		return [2]float64{0, hi + padding}
	}
	return [2]float64{lo - padding, hi + padding}
}

func (p *SVGPlotter) generateValueTicks(lo, hi float64, maxTicks int) []float64 {
	if lo >= hi {
		return []float64{lo}
	}
	rawStep := (hi - lo) / float64(maxTicks-1)
	magnitude := math.Pow(10, math.Floor(math.Log10(rawStep)))
	var step float64
	switch normalized := rawStep / magnitude; {
	case normalized <= 1:
		step = magnitude
	case normalized <= 2:
		step = 2 * magnitude
	case normalized <= 5:
		step = 5 * magnitude
	default:
		step = 10 * magnitude
	}
	var ticks []float64
	for tick := math.Floor(lo/step) * step; tick <= hi+step/2; tick += step {
		if tick >= lo-step/2 {
			ticks = append(ticks, tick)
		}
	}
	return ticks
}

// calculateOptimalPrecision returns the decimals needed to tell apart the
// closest pair of adjacent values.
func calculateOptimalPrecision(values []float64) int {
	if len(values) <= 1 {
		return 1
	}
	minDiff := math.Inf(1)
	for i := 1; i < len(values); i++ {
		if diff := math.Abs(values[i] - values[i-1]); diff > 0 && diff < minDiff {
			minDiff = diff
		}
	}
	if minDiff > 0 && !math.IsInf(minDiff, 0) {
		return min(int(math.Max(0, -math.Floor(math.Log10(minDiff))))+1, 8)
	}
	return 2
}

func formatValue(value float64, precision int) string {
	formatted := fmt.Sprintf("%.*f", precision, value)
	if strings.Contains(formatted, ".") {
		formatted = strings.TrimRight(strings.TrimRight(formatted, "0"), ".")
	}
	if formatted == "" || formatted == "-" || formatted == "-0" {
		return "0"
	}
	return formatted
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
