package charts

import (
	"fmt"
	"slices"
	"sort"

	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/tables"
)

// Figure is a renderer-agnostic chart description shaped after plotly's
// figure JSON: traces carry data, the layout carries presentation.
type Figure struct {
	Traces []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one drawn series. X and Y are always non-nil so an empty figure
// serializes as empty arrays.
type Trace struct {
	Kind         chartspec.ChartType `json:"type"`
	Name         string              `json:"name,omitempty"`
	X            []any               `json:"x"`
	Y            []any               `json:"y"`
	Z            [][]any             `json:"z,omitempty"`
	Labels       []any               `json:"labels,omitempty"`
	Values       []any               `json:"values,omitempty"`
	Size         []any               `json:"size,omitempty"`
	Color        string              `json:"color,omitempty"`
	Mode         string              `json:"mode,omitempty"`
	Fill         string              `json:"fill,omitempty"`
	StackGroup   string              `json:"stackgroup,omitempty"`
	GroupNorm    string              `json:"groupnorm,omitempty"`
	YAxis        string              `json:"yaxis,omitempty"`
	TextPosition string              `json:"textposition,omitempty"`
}

// Points returns the number of data points the trace carries.
func (t Trace) Points() int {
	return max(len(t.X), len(t.Y), len(t.Values))
}

// BuildFigure maps a prepared table onto traces for the spec's chart type
// and applies layout, styling and interaction settings. It never fails: an
// empty table yields traces with empty data arrays. raw is the table before
// aggregation; histograms always bin raw values.
func BuildFigure(t, raw *tables.Table, spec chartspec.ChartSpec) *Figure {
	var traces []Trace
	switch spec.ChartType {
	case chartspec.Histogram:
		traces = histogramTraces(raw, spec)
	case chartspec.Box:
		traces = boxTraces(t, spec)
	case chartspec.Pie:
		traces = pieTraces(t, spec)
	case chartspec.Heatmap:
		traces = heatmapTraces(t, spec)
	default:
		traces = xyTraces(t, spec)
	}
	fig := &Figure{Traces: traces, Layout: buildLayout(spec)}
	applyStyling(fig, spec)
	return fig
}

func column(t *tables.Table, name string) []any {
	if name == "" || !t.HasColumn(name) {
		return make([]any, t.Len())
	}
	return t.Values(name)
}

// numbers coerces cells to float64, leaving nil where that fails.
func numbers(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		if f, ok := tables.ToFloat(v); ok {
			out[i] = f
		}
	}
	return out
}

// splitRows partitions row indexes by the group column's values, sorted by
// their string form. Without a group column there is one unnamed part.
func splitRows(t *tables.Table, groupCol string) (names []string, parts [][]int) {
	if groupCol == "" || !t.HasColumn(groupCol) {
		rows := make([]int, t.Len())
		for i := range rows {
			rows[i] = i
		}
		return []string{""}, [][]int{rows}
	}
	if t.Len() == 0 {
		return []string{""}, [][]int{{}}
	}
	byName := map[string][]int{}
	for r := 0; r < t.Len(); r++ {
		k := tables.FormatValue(t.Cell(r, groupCol))
		byName[k] = append(byName[k], r)
	}
	for k := range byName {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		parts = append(parts, byName[k])
	}
	return names, parts
}

func pick(vals []any, rows []int) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = vals[r]
	}
	return out
}

func traceName(yCol, group string, multiY bool) string {
	switch {
	case group == "":
		return yCol
	case multiY:
		return fmt.Sprintf("%s (%s)", yCol, group)
	}
	return group
}

// xyTraces handles bar, line, area and scatter: one trace per y column,
// times one per group value when the series is split.
func xyTraces(t *tables.Table, spec chartspec.ChartSpec) []Trace {
	ys := spec.YColumns()
	if len(ys) == 0 {
		return []Trace{}
	}
	xs := column(t, spec.XAxis.Column)
	var sizes []any
	if spec.ChartType == chartspec.Scatter && spec.SizeColumn() != "" {
		sizes = numbers(column(t, spec.SizeColumn()))
	}
	groups, parts := splitRows(t, spec.GroupColumn())

	var traces []Trace
	for yi, y := range ys {
		yvals := numbers(column(t, y))
		for gi, g := range groups {
			tr := Trace{
				Kind: spec.ChartType,
				Name: traceName(y, g, len(ys) > 1),
				X:    pick(xs, parts[gi]),
				Y:    pick(yvals, parts[gi]),
			}
			if sizes != nil {
				tr.Size = pick(sizes, parts[gi])
			}
			switch spec.ChartType {
			case chartspec.Line:
				tr.Mode = "lines"
			case chartspec.Scatter:
				tr.Mode = "markers"
			case chartspec.Area:
				tr.Mode = "lines"
				tr.Fill = "tozeroy"
			}
			if spec.ChartType == chartspec.Line || spec.ChartType == chartspec.Area {
				switch spec.Visual.Stacking {
				case chartspec.Stacked:
					tr.StackGroup = "one"
				case chartspec.Percent:
					tr.StackGroup = "one"
					tr.GroupNorm = "percent"
				}
				if tr.StackGroup != "" && spec.ChartType == chartspec.Area {
					tr.Fill = "tonexty"
				}
			}
			if spec.Visual.SecondaryYAxis && len(ys) > 1 && yi > 0 {
				tr.YAxis = "y2"
			}
			traces = append(traces, tr)
		}
	}
	return traces
}

func histogramTraces(raw *tables.Table, spec chartspec.ChartSpec) []Trace {
	vals := column(raw, spec.XAxis.Column)
	if col, ok := raw.Column(spec.XAxis.Column); ok && col.Type == tables.Numeric {
		vals = numbers(vals)
	}
	x := make([]any, 0, len(vals))
	for _, v := range vals {
		if v != nil {
			x = append(x, v)
		}
	}
	return []Trace{{Kind: chartspec.Histogram, Name: spec.XAxis.Column, X: x, Y: []any{}}}
}

// boxTraces draws one box per distinct x value by pairing every y value with
// its x category. Without a y axis the x values form a single box.
func boxTraces(t *tables.Table, spec chartspec.ChartSpec) []Trace {
	ys := spec.YColumns()
	groups, parts := splitRows(t, spec.GroupColumn())
	if len(ys) == 0 {
		vals := numbers(column(t, spec.XAxis.Column))
		var traces []Trace
		for gi, g := range groups {
			name := g
			if name == "" {
				name = spec.XAxis.Column
			}
			traces = append(traces, Trace{Kind: chartspec.Box, Name: name, X: []any{}, Y: pick(vals, parts[gi])})
		}
		return traces
	}
	xs := column(t, spec.XAxis.Column)
	var traces []Trace
	for _, y := range ys {
		yvals := numbers(column(t, y))
		for gi, g := range groups {
			traces = append(traces, Trace{
				Kind: chartspec.Box,
				Name: traceName(y, g, len(ys) > 1),
				X:    pick(xs, parts[gi]),
				Y:    pick(yvals, parts[gi]),
			})
		}
	}
	return traces
}

// pieTraces uses the first y column as slice values when present and row
// counts per category otherwise, largest first.
func pieTraces(t *tables.Table, spec chartspec.ChartSpec) []Trace {
	labels := column(t, spec.XAxis.Column)
	if ys := spec.YColumns(); len(ys) > 0 {
		return []Trace{{
			Kind:   chartspec.Pie,
			Name:   ys[0],
			X:      labels,
			Y:      numbers(column(t, ys[0])),
			Labels: labels,
			Values: numbers(column(t, ys[0])),
		}}
	}

	type bucket struct {
		label any
		key   string
		n     int
	}
	index := map[string]int{}
	var buckets []bucket
	for _, v := range labels {
		if v == nil {
			continue
		}
		k := tables.FormatValue(v)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, bucket{label: v, key: k})
		}
		buckets[i].n++
	}
	slices.SortStableFunc(buckets, func(a, b bucket) int {
		if a.n != b.n {
			return b.n - a.n
		}
		if a.key < b.key {
			return -1
		} else if a.key > b.key {
			return 1
		}
		return 0
	})
	ls := make([]any, len(buckets))
	vs := make([]any, len(buckets))
	for i, b := range buckets {
		ls[i] = b.label
		vs[i] = float64(b.n)
	}
	return []Trace{{Kind: chartspec.Pie, Name: spec.XAxis.Column, X: ls, Y: vs, Labels: ls, Values: vs}}
}

// heatmapTraces bins rows on x and a second axis. With a series group
// column the second axis is that column and cells hold the mean of the first
// y column (after aggregation, the aggregated value). Otherwise the second
// axis is the first y column and cells count rows.
func heatmapTraces(t *tables.Table, spec chartspec.ChartSpec) []Trace {
	ys := spec.YColumns()
	if len(ys) == 0 {
		return []Trace{{Kind: chartspec.Heatmap, X: []any{}, Y: []any{}, Z: [][]any{}}}
	}
	valueCol := ""
	axisCol := ys[0]
	if g := spec.GroupColumn(); g != "" && t.HasColumn(g) {
		axisCol, valueCol = g, ys[0]
	}

	xs := column(t, spec.XAxis.Column)
	as := column(t, axisCol)
	xCats, xIdx := categories(xs)
	aCats, aIdx := categories(as)

	sums := make([][]float64, len(aCats))
	counts := make([][]int, len(aCats))
	for i := range sums {
		sums[i] = make([]float64, len(xCats))
		counts[i] = make([]int, len(xCats))
	}
	var vals []any
	if valueCol != "" {
		vals = numbers(column(t, valueCol))
	}
	for r := range xs {
		if xs[r] == nil || as[r] == nil {
			continue
		}
		xi, ai := xIdx[tables.FormatValue(xs[r])], aIdx[tables.FormatValue(as[r])]
		if vals == nil {
			counts[ai][xi]++
			continue
		}
		if f, ok := vals[r].(float64); ok {
			sums[ai][xi] += f
			counts[ai][xi]++
		}
	}

	z := make([][]any, len(aCats))
	for ai := range z {
		z[ai] = make([]any, len(xCats))
		for xi := range z[ai] {
			switch {
			case vals == nil:
				z[ai][xi] = float64(counts[ai][xi])
			case counts[ai][xi] > 0:
				z[ai][xi] = sums[ai][xi] / float64(counts[ai][xi])
			}
		}
	}
	name := "count"
	if valueCol != "" {
		name = valueCol
	}
	return []Trace{{Kind: chartspec.Heatmap, Name: name, X: xCats, Y: aCats, Z: z}}
}

// categories returns the distinct non-null values sorted by string form and
// an index from string form to position.
func categories(vals []any) ([]any, map[string]int) {
	seen := map[string]any{}
	for _, v := range vals {
		if v != nil {
			seen[tables.FormatValue(v)] = v
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cats := make([]any, len(keys))
	idx := make(map[string]int, len(keys))
	for i, k := range keys {
		cats[i] = seen[k]
		idx[k] = i
	}
	return cats, idx
}
