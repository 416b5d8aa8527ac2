// Package charts turns a ChartSpec and a table into a figure description:
// validation, filtering, aggregation and figure building, sequenced by
// Renderer.
package charts

import (
	"fmt"
	"slices"
	"strings"

	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/tables"
)

// IssueCode classifies a validation issue.
type IssueCode string

const (
	CodeColumnNotFound       IssueCode = "column_not_found"
	CodeMissingRequiredField IssueCode = "missing_required_field"
	CodeInvalidColumns       IssueCode = "invalid_columns"
	CodeTypeMismatch         IssueCode = "type_mismatch"
	CodeColumnDropped        IssueCode = "column_dropped"
	CodeDatasetNotFound      IssueCode = "dataset_not_found"
	CodeTableTooLarge        IssueCode = "table_too_large"
)

// Issue is one validation finding located by a dotted field path such as
// "y_axis.columns[1]".
type Issue struct {
	Field      string    `json:"field"`
	Code       IssueCode `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *ValidationResult) errorf(field string, code IssueCode, suggestion, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Field: field, Code: code, Message: fmt.Sprintf(format, args...), Suggestion: suggestion})
}

func (r *ValidationResult) warnf(field string, code IssueCode, suggestion, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Field: field, Code: code, Message: fmt.Sprintf(format, args...), Suggestion: suggestion})
}

// Failed builds an invalid result carrying a single error.
func Failed(field string, code IssueCode, message string) ValidationResult {
	return ValidationResult{
		Errors:   []Issue{{Field: field, Code: code, Message: message}},
		Warnings: []Issue{},
	}
}

// Validate checks spec against the columns and types of t. Every problem is
// reported; nothing short-circuits. Neither argument is modified.
func Validate(spec chartspec.ChartSpec, t *tables.Table) ValidationResult {
	res := ValidationResult{Errors: []Issue{}, Warnings: []Issue{}}

	if spec.ChartType.RequiresYAxis() && len(spec.YColumns()) == 0 {
		res.errorf("y_axis", CodeMissingRequiredField, "Add at least one numeric column to y_axis.columns",
			"%s chart requires a y_axis", spec.ChartType)
	}

	exists := func(field, col string) bool {
		if t.HasColumn(col) {
			return true
		}
		res.errorf(field, CodeColumnNotFound, suggestColumn(col, t.ColumnNames()),
			"column %q not found in dataset", col)
		return false
	}

	exists("x_axis.column", spec.XAxis.Column)
	for i, c := range spec.YColumns() {
		field := fmt.Sprintf("y_axis.columns[%d]", i)
		if exists(field, c) && spec.ChartType.NumericY() {
			if col, _ := t.Column(c); col.Type != tables.Numeric {
				res.warnf(field, CodeTypeMismatch, "Values will be coerced to numbers where possible",
					"column %q is %s but %s charts expect numeric values", c, col.Type, spec.ChartType)
			}
		}
	}
	if g := spec.GroupColumn(); g != "" {
		exists("series.group_column", g)
	}
	if sz := spec.SizeColumn(); sz != "" {
		if exists("series.size_column", sz) {
			if col, _ := t.Column(sz); col.Type != tables.Numeric {
				res.warnf("series.size_column", CodeTypeMismatch, "",
					"column %q is %s; marker sizes need numbers", sz, col.Type)
			}
		}
	}
	for i, c := range spec.Filters.Conditions {
		field := fmt.Sprintf("filters.conditions[%d]", i)
		if !exists(field+".column", c.Column) {
			continue
		}
		col, _ := t.Column(c.Column)
		switch {
		case c.Operator.Ordered() && !col.Type.Orderable():
			res.warnf(field+".operator", CodeTypeMismatch, "Use eq, ne, in or contains",
				"operator %s cannot order %s column %q; no rows will match", c.Operator, col.Type, c.Column)
		case c.Operator == chartspec.OpContains && col.Type != tables.Text:
			res.warnf(field+".operator", CodeTypeMismatch, "",
				"contains only matches text columns; %q is %s", c.Column, col.Type)
		}
	}
	for i, c := range spec.Aggregation.GroupBy {
		exists(fmt.Sprintf("aggregation.group_by[%d]", i), c)
	}

	if spec.ChartType == chartspec.Histogram {
		if col, ok := t.Column(spec.XAxis.Column); ok && col.Type != tables.Numeric {
			res.warnf("x_axis.column", CodeTypeMismatch, "",
				"histogram over %s column %q will bin its values as categories", col.Type, spec.XAxis.Column)
		}
	} else if spec.Aggregation.Declared() {
		dropped := func(field, col string) {
			if col != "" && t.HasColumn(col) && !slices.Contains(spec.Aggregation.GroupBy, col) && !slices.Contains(spec.YColumns(), col) {
				res.warnf(field, CodeColumnDropped, fmt.Sprintf("Add %q to aggregation.group_by", col),
					"column %q is not grouped and will be empty after aggregation", col)
			}
		}
		dropped("x_axis.column", spec.XAxis.Column)
		dropped("series.group_column", spec.GroupColumn())
		dropped("series.size_column", spec.SizeColumn())
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// suggestColumn proposes the closest existing column name, if any is close.
func suggestColumn(missing string, available []string) string {
	best, bestDist := "", -1
	lower := strings.ToLower(strings.TrimSpace(missing))
	for _, name := range available {
		d := editDistance(lower, strings.ToLower(name))
		if bestDist < 0 || d < bestDist {
			best, bestDist = name, d
		}
	}
	if best == "" || bestDist > max(2, len(missing)/3) {
		if len(available) == 0 {
			return ""
		}
		return "Available columns: " + strings.Join(available, ", ")
	}
	return fmt.Sprintf("Did you mean %q?", best)
}

func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
