package chartspec

import (
	"encoding/json"
	"fmt"
	"slices"
)

// ChartType selects how a table is drawn.
type ChartType string

const (
	Bar       ChartType = "bar"
	Line      ChartType = "line"
	Scatter   ChartType = "scatter"
	Histogram ChartType = "histogram"
	Box       ChartType = "box"
	Pie       ChartType = "pie"
	Area      ChartType = "area"
	Heatmap   ChartType = "heatmap"
)

var ChartTypes = []ChartType{Bar, Line, Scatter, Histogram, Box, Pie, Area, Heatmap}

// RequiresYAxis reports whether the chart type is meaningless without a
// y axis.
func (c ChartType) RequiresYAxis() bool {
	switch c {
	case Bar, Line, Scatter, Area, Heatmap:
		return true
	}
	return false
}

// NumericY reports whether the chart type expects numeric y values.
func (c ChartType) NumericY() bool {
	return c.RequiresYAxis()
}

// AggregationMethod reduces each group of rows to one value.
type AggregationMethod string

const (
	AggNone   AggregationMethod = "none"
	AggSum    AggregationMethod = "sum"
	AggMean   AggregationMethod = "mean"
	AggCount  AggregationMethod = "count"
	AggMedian AggregationMethod = "median"
	AggMin    AggregationMethod = "min"
	AggMax    AggregationMethod = "max"
)

var AggregationMethods = []AggregationMethod{AggNone, AggSum, AggMean, AggCount, AggMedian, AggMin, AggMax}

// Operator is a filter comparison.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not_in"
	OpBetween  Operator = "between"
	OpContains Operator = "contains"
)

var Operators = []Operator{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpBetween, OpContains}

// Ordered reports whether the operator compares by order.
func (o Operator) Ordered() bool {
	switch o {
	case OpGt, OpGte, OpLt, OpLte, OpBetween:
		return true
	}
	return false
}

type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

var Logics = []Logic{LogicAnd, LogicOr}

type Stacking string

const (
	Grouped Stacking = "grouped"
	Stacked Stacking = "stacked"
	Percent Stacking = "percent"
)

var Stackings = []Stacking{Grouped, Stacked, Percent}

type LegendPosition string

const (
	LegendTop    LegendPosition = "top"
	LegendBottom LegendPosition = "bottom"
	LegendLeft   LegendPosition = "left"
	LegendRight  LegendPosition = "right"
	LegendNone   LegendPosition = "none"
)

var LegendPositions = []LegendPosition{LegendTop, LegendBottom, LegendLeft, LegendRight, LegendNone}

type ModebarMode string

const (
	ModebarHover  ModebarMode = "hover"
	ModebarAlways ModebarMode = "always"
	ModebarHidden ModebarMode = "hidden"
)

var ModebarModes = []ModebarMode{ModebarHover, ModebarAlways, ModebarHidden}

type TooltipDetail string

const (
	TooltipSummary  TooltipDetail = "summary"
	TooltipDetailed TooltipDetail = "detailed"
)

var TooltipDetails = []TooltipDetail{TooltipSummary, TooltipDetailed}

type Palette string

const (
	PaletteDefault        Palette = "default"
	PaletteVibrant        Palette = "vibrant"
	PalettePastel         Palette = "pastel"
	PaletteMonochrome     Palette = "monochrome"
	PaletteColorblindSafe Palette = "colorblind_safe"
)

var Palettes = []Palette{PaletteDefault, PaletteVibrant, PalettePastel, PaletteMonochrome, PaletteColorblindSafe}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var Themes = []Theme{ThemeLight, ThemeDark}

// ExportFormats are the image formats the client-side modebar can export.
var ExportFormats = []string{"png", "svg", "jpeg", "webp"}

// UnknownValueError is returned when JSON carries a value outside an enum.
type UnknownValueError struct {
	Kind    string
	Value   string
	Allowed []string
}

func (e *UnknownValueError) Error() string {
	return fmt.Sprintf("unknown %s %q (allowed: %v)", e.Kind, e.Value, e.Allowed)
}

func decodeEnum[T ~string](data []byte, kind string, allowed []T, out *T) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%s must be a string: %w", kind, err)
	}
	if !slices.Contains(allowed, T(s)) {
		names := make([]string, len(allowed))
		for i, a := range allowed {
			names[i] = string(a)
		}
		return &UnknownValueError{Kind: kind, Value: s, Allowed: names}
	}
	*out = T(s)
	return nil
}

func (c *ChartType) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, "chart_type", ChartTypes, c)
}

func (m *AggregationMethod) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, "aggregation method", AggregationMethods, m)
}

func (o *Operator) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, "operator", Operators, o)
}

func (l *Logic) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, "logic", Logics, l)
}

func (s *Stacking) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, "stacking", Stackings, s)
}

func (p *LegendPosition) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, "legend position", LegendPositions, p)
}

func (m *ModebarMode) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, "modebar", ModebarModes, m)
}

func (t *TooltipDetail) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, "tooltip detail", TooltipDetails, t)
}

func (p *Palette) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, "color palette", Palettes, p)
}

func (t *Theme) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, "theme", Themes, t)
}
