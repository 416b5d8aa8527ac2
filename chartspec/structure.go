package chartspec

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/panyam/adaptiva/tables"
)

// ErrInvalidSpec is matched by every *StructuralError.
var ErrInvalidSpec = errors.New("invalid chart spec")

// Problem is one structural defect, located by a dotted field path.
type Problem struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// StructuralError reports a spec that is malformed independent of any data.
// Such specs never reach validation against a table.
type StructuralError struct {
	Problems []Problem
}

func (e *StructuralError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		if p.Field == "" {
			parts[i] = p.Message
		} else {
			parts[i] = p.Field + ": " + p.Message
		}
	}
	return "invalid chart spec: " + strings.Join(parts, "; ")
}

func (e *StructuralError) Unwrap() error { return ErrInvalidSpec }

// CheckStructure verifies required fields, enum values and filter operand
// shapes. It returns nil or a *StructuralError listing every problem.
func (s ChartSpec) CheckStructure() error {
	var probs []Problem
	add := func(field, format string, args ...any) {
		probs = append(probs, Problem{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(s.DatasetRef.DatasetID) == "" {
		add("dataset_ref.dataset_id", "is required")
	}
	if s.ChartType == "" {
		add("chart_type", "is required")
	} else if !slices.Contains(ChartTypes, s.ChartType) {
		add("chart_type", "unknown chart type %q", s.ChartType)
	}
	if strings.TrimSpace(s.XAxis.Column) == "" {
		add("x_axis.column", "is required")
	}
	if s.YAxis != nil {
		if len(s.YAxis.Columns) == 0 {
			add("y_axis.columns", "must list at least one column")
		}
		for i, c := range s.YAxis.Columns {
			if strings.TrimSpace(c) == "" {
				add(fmt.Sprintf("y_axis.columns[%d]", i), "must not be empty")
			}
		}
	}
	if !slices.Contains(AggregationMethods, s.Aggregation.Method) {
		add("aggregation.method", "unknown method %q", s.Aggregation.Method)
	}
	for i, c := range s.Aggregation.GroupBy {
		if strings.TrimSpace(c) == "" {
			add(fmt.Sprintf("aggregation.group_by[%d]", i), "must not be empty")
		}
	}
	if !slices.Contains(Logics, s.Filters.Logic) {
		add("filters.logic", "unknown logic %q", s.Filters.Logic)
	}
	for i, c := range s.Filters.Conditions {
		prefix := fmt.Sprintf("filters.conditions[%d]", i)
		if strings.TrimSpace(c.Column) == "" {
			add(prefix+".column", "is required")
		}
		if msg := checkOperands(c); msg != "" {
			add(prefix+".value", "%s", msg)
		}
	}
	if !slices.Contains(Stackings, s.Visual.Stacking) {
		add("visual.stacking", "unknown stacking %q", s.Visual.Stacking)
	}
	if !slices.Contains(LegendPositions, s.Legend.Position) {
		add("legend.position", "unknown position %q", s.Legend.Position)
	}
	if !slices.Contains(ModebarModes, s.Interaction.Modebar) {
		add("interaction.modebar", "unknown modebar mode %q", s.Interaction.Modebar)
	}
	if !slices.Contains(TooltipDetails, s.Interaction.TooltipDetail) {
		add("interaction.tooltip_detail", "unknown tooltip detail %q", s.Interaction.TooltipDetail)
	}
	for i, f := range s.Interaction.ExportFormats {
		if !slices.Contains(ExportFormats, f) {
			add(fmt.Sprintf("interaction.export_formats[%d]", i), "unknown format %q", f)
		}
	}
	if !slices.Contains(Palettes, s.Styling.ColorPalette) {
		add("styling.color_palette", "unknown palette %q", s.Styling.ColorPalette)
	}
	if !slices.Contains(Themes, s.Styling.Theme) {
		add("styling.theme", "unknown theme %q", s.Styling.Theme)
	}

	if len(probs) > 0 {
		return &StructuralError{Problems: probs}
	}
	return nil
}

func checkOperands(c FilterCondition) string {
	switch c.Operator {
	case OpIn, OpNotIn:
		list, ok := c.Value.([]any)
		if !ok {
			return fmt.Sprintf("%s requires a list value", c.Operator)
		}
		for _, v := range list {
			if !isScalar(v) {
				return fmt.Sprintf("%s list entries must be numbers, strings or booleans", c.Operator)
			}
		}
	case OpBetween:
		if !isScalar(c.Value) || !isScalar(c.ValueEnd) {
			return "between requires scalar value and value_end"
		}
		if !comparable(c.Value, c.ValueEnd) {
			return "between bounds must both be numbers or both be dates"
		}
	case OpContains:
		if _, ok := c.Value.(string); !ok {
			return "contains requires a string value"
		}
	case OpGt, OpGte, OpLt, OpLte:
		if _, ok := orderKey(c.Value); !ok {
			return fmt.Sprintf("%s requires a number or date value", c.Operator)
		}
	case OpEq, OpNe:
		if !isScalar(c.Value) {
			return fmt.Sprintf("%s requires a scalar value", c.Operator)
		}
	case "":
		return "operator is required"
	default:
		return fmt.Sprintf("unknown operator %q", c.Operator)
	}
	return ""
}

func isScalar(v any) bool {
	switch v.(type) {
	case float64, string, bool:
		return true
	}
	return false
}

// orderKey classifies an operand as a number (kind 1) or a date (kind 2).
func orderKey(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return 1, true
	case string:
		if _, ok := tables.ParseTime(x); ok {
			return 2, true
		}
	case time.Time:
		return 2, true
	}
	return 0, false
}

func comparable(a, b any) bool {
	ka, ok := orderKey(a)
	if !ok {
		return false
	}
	kb, ok := orderKey(b)
	return ok && ka == kb
}
