// Package chartspec defines ChartSpec, the declarative description of a
// chart over one table, along with its JSON form and structural checks.
package chartspec

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"

	"github.com/panyam/adaptiva/tables"
)

// CurrentVersion is stamped on specs that do not carry a version.
const CurrentVersion = "1.0"

// ChartSpec is a value type. Treat it as immutable: use Clone or the With
// helpers to derive variants.
type ChartSpec struct {
	DatasetRef  tables.DatasetRef `json:"dataset_ref"`
	ChartType   ChartType         `json:"chart_type"`
	XAxis       XAxis             `json:"x_axis"`
	YAxis       *YAxis            `json:"y_axis,omitempty"`
	Series      *Series           `json:"series,omitempty"`
	Aggregation Aggregation       `json:"aggregation"`
	Filters     Filters           `json:"filters"`
	Visual      Visual            `json:"visual"`
	Legend      Legend            `json:"legend"`
	Interaction Interaction       `json:"interaction"`
	Styling     Styling           `json:"styling"`
	Version     string            `json:"version"`
}

type XAxis struct {
	Column string `json:"column"`
	Label  string `json:"label,omitempty"`
}

type YAxis struct {
	Columns []string `json:"columns"`
	Label   string   `json:"label,omitempty"`
}

type Series struct {
	GroupColumn string `json:"group_column,omitempty"`
	SizeColumn  string `json:"size_column,omitempty"`
}

type Aggregation struct {
	Method  AggregationMethod `json:"method"`
	GroupBy []string          `json:"group_by"`
}

// Declared reports whether rows are reduced before building the figure.
func (a Aggregation) Declared() bool {
	return a.Method != "" && a.Method != AggNone
}

// FilterCondition tests one column. Value is a scalar (number, string, bool)
// or, for in/not_in, a list of scalars. ValueEnd is only used by between.
type FilterCondition struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
	ValueEnd any      `json:"value_end,omitempty"`
}

type Filters struct {
	Conditions []FilterCondition `json:"conditions"`
	Logic      Logic             `json:"logic"`
}

type Visual struct {
	Title          string   `json:"title,omitempty"`
	Stacking       Stacking `json:"stacking"`
	SecondaryYAxis bool     `json:"secondary_y_axis"`
}

type Legend struct {
	Visible  bool           `json:"visible"`
	Position LegendPosition `json:"position"`
}

type Interaction struct {
	ZoomScroll    bool          `json:"zoom_scroll"`
	Responsive    bool          `json:"responsive"`
	Modebar       ModebarMode   `json:"modebar"`
	ExportFormats []string      `json:"export_formats"`
	TooltipDetail TooltipDetail `json:"tooltip_detail"`
}

type Styling struct {
	ColorPalette   Palette `json:"color_palette"`
	Theme          Theme   `json:"theme"`
	ShowDataLabels bool    `json:"show_data_labels"`
}

// New returns a spec with every optional section at its default.
func New(ref tables.DatasetRef, chartType ChartType, xColumn string, yColumns ...string) ChartSpec {
	s := defaults()
	s.DatasetRef = ref
	s.ChartType = chartType
	s.XAxis.Column = xColumn
	if len(yColumns) > 0 {
		s.YAxis = &YAxis{Columns: slices.Clone(yColumns)}
	}
	return s
}

func defaults() ChartSpec {
	return ChartSpec{
		Aggregation: Aggregation{Method: AggNone, GroupBy: []string{}},
		Filters:     Filters{Conditions: []FilterCondition{}, Logic: LogicAnd},
		Visual:      Visual{Stacking: Grouped},
		Legend:      Legend{Visible: true, Position: LegendRight},
		Interaction: Interaction{
			ZoomScroll:    true,
			Responsive:    true,
			Modebar:       ModebarHover,
			ExportFormats: []string{"png"},
			TooltipDetail: TooltipSummary,
		},
		Styling: Styling{ColorPalette: PaletteDefault, Theme: ThemeLight},
		Version: CurrentVersion,
	}
}

// UnmarshalJSON decodes onto the defaults, so absent optional fields take
// their default values. Unknown fields are rejected.
func (s *ChartSpec) UnmarshalJSON(data []byte) error {
	type wire ChartSpec
	w := wire(defaults())
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return err
	}
	*s = ChartSpec(w)
	return nil
}

// Parse decodes, normalizes and structurally checks a JSON spec.
func Parse(data []byte) (ChartSpec, error) {
	var s ChartSpec
	if err := json.Unmarshal(data, &s); err != nil {
		return ChartSpec{}, &StructuralError{Problems: []Problem{{Message: err.Error()}}}
	}
	s = s.Normalize()
	if err := s.CheckStructure(); err != nil {
		return ChartSpec{}, err
	}
	return s, nil
}

// Normalize fills zero-valued enums and lists with their defaults and
// converts operands to their JSON shapes (numbers as float64, lists as
// []any). Booleans cannot be told apart from unset and are left alone.
func (s ChartSpec) Normalize() ChartSpec {
	s = s.Clone()
	d := defaults()
	if s.Aggregation.Method == "" {
		s.Aggregation.Method = d.Aggregation.Method
	}
	if s.Aggregation.GroupBy == nil {
		s.Aggregation.GroupBy = []string{}
	}
	if s.Filters.Logic == "" {
		s.Filters.Logic = d.Filters.Logic
	}
	if s.Filters.Conditions == nil {
		s.Filters.Conditions = []FilterCondition{}
	}
	for i, c := range s.Filters.Conditions {
		s.Filters.Conditions[i].Value = normalizeOperand(c.Value)
		s.Filters.Conditions[i].ValueEnd = normalizeOperand(c.ValueEnd)
	}
	if s.Visual.Stacking == "" {
		s.Visual.Stacking = d.Visual.Stacking
	}
	if s.Legend.Position == "" {
		s.Legend.Position = d.Legend.Position
	}
	if s.Interaction.Modebar == "" {
		s.Interaction.Modebar = d.Interaction.Modebar
	}
	if s.Interaction.ExportFormats == nil {
		s.Interaction.ExportFormats = d.Interaction.ExportFormats
	}
	if s.Interaction.TooltipDetail == "" {
		s.Interaction.TooltipDetail = d.Interaction.TooltipDetail
	}
	if s.Styling.ColorPalette == "" {
		s.Styling.ColorPalette = d.Styling.ColorPalette
	}
	if s.Styling.Theme == "" {
		s.Styling.Theme = d.Styling.Theme
	}
	if s.Version == "" {
		s.Version = CurrentVersion
	}
	return s
}

func normalizeOperand(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339)
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case []int:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeOperand(e)
		}
		return out
	}
	return v
}

// Clone returns a deep copy.
func (s ChartSpec) Clone() ChartSpec {
	out := s
	if s.YAxis != nil {
		y := *s.YAxis
		y.Columns = slices.Clone(s.YAxis.Columns)
		out.YAxis = &y
	}
	if s.Series != nil {
		sr := *s.Series
		out.Series = &sr
	}
	out.Aggregation.GroupBy = slices.Clone(s.Aggregation.GroupBy)
	if s.Filters.Conditions != nil {
		out.Filters.Conditions = make([]FilterCondition, len(s.Filters.Conditions))
		for i, c := range s.Filters.Conditions {
			if list, ok := c.Value.([]any); ok {
				c.Value = slices.Clone(list)
			}
			out.Filters.Conditions[i] = c
		}
	}
	out.Interaction.ExportFormats = slices.Clone(s.Interaction.ExportFormats)
	return out
}

// WithDatasetRef returns a copy bound to another dataset.
func (s ChartSpec) WithDatasetRef(ref tables.DatasetRef) ChartSpec {
	out := s.Clone()
	out.DatasetRef = ref
	return out
}

// WithFilters returns a copy with the given conditions combined by logic.
func (s ChartSpec) WithFilters(logic Logic, conds ...FilterCondition) ChartSpec {
	out := s.Clone()
	out.Filters = Filters{Logic: logic, Conditions: slices.Clone(conds)}
	return out.Normalize()
}

// WithAggregation returns a copy reducing with method over groupBy.
func (s ChartSpec) WithAggregation(method AggregationMethod, groupBy ...string) ChartSpec {
	out := s.Clone()
	out.Aggregation = Aggregation{Method: method, GroupBy: slices.Clone(groupBy)}
	return out.Normalize()
}

// WithSeries returns a copy split by group and sized by size.
func (s ChartSpec) WithSeries(group, size string) ChartSpec {
	out := s.Clone()
	out.Series = &Series{GroupColumn: group, SizeColumn: size}
	return out
}

// YColumns returns the declared y columns, or nil.
func (s ChartSpec) YColumns() []string {
	if s.YAxis == nil {
		return nil
	}
	return s.YAxis.Columns
}

// GroupColumn returns the series split column, or "".
func (s ChartSpec) GroupColumn() string {
	if s.Series == nil {
		return ""
	}
	return s.Series.GroupColumn
}

// SizeColumn returns the marker size column, or "".
func (s ChartSpec) SizeColumn() string {
	if s.Series == nil {
		return ""
	}
	return s.Series.SizeColumn
}

// ReferencedColumns lists every column name the spec mentions, in the order
// x, y, series, filters, group_by, without duplicates.
func (s ChartSpec) ReferencedColumns() []string {
	var out []string
	add := func(c string) {
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	add(s.XAxis.Column)
	for _, c := range s.YColumns() {
		add(c)
	}
	add(s.GroupColumn())
	add(s.SizeColumn())
	for _, c := range s.Filters.Conditions {
		add(c.Column)
	}
	for _, c := range s.Aggregation.GroupBy {
		add(c)
	}
	return out
}
