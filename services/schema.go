package services

import (
	"github.com/aclements/go-moremath/stats"

	"github.com/panyam/adaptiva/tables"
)

const (
	maxUniqueValues = 10
	maxSampleValues = 5
)

// ColumnSummary describes one column to the model without shipping its data.
type ColumnSummary struct {
	Name         string            `json:"name"`
	Type         tables.ColumnType `json:"type"`
	NullCount    int               `json:"null_count"`
	Cardinality  int               `json:"cardinality"`
	Min          *float64          `json:"min,omitempty"`
	Max          *float64          `json:"max,omitempty"`
	UniqueValues []string          `json:"unique_values,omitempty"`
	SampleValues []string          `json:"sample_values"`
}

type SchemaSummary struct {
	Columns  []ColumnSummary `json:"columns"`
	RowCount int             `json:"row_count"`
}

// SummarizeSchema reports per-column type, null count, cardinality and a few
// sample values. Numeric columns get their bounds; low-cardinality columns
// list their distinct values in first-seen order.
func SummarizeSchema(t *tables.Table) SchemaSummary {
	out := SchemaSummary{RowCount: t.Len(), Columns: make([]ColumnSummary, 0, t.Width())}
	for _, col := range t.Columns() {
		vals := t.Values(col.Name)
		cs := ColumnSummary{Name: col.Name, Type: col.Type, SampleValues: []string{}}

		seen := map[string]bool{}
		var distinct []string
		var nums []float64
		for _, v := range vals {
			if v == nil {
				cs.NullCount++
				continue
			}
			k := tables.FormatValue(v)
			if !seen[k] {
				seen[k] = true
				distinct = append(distinct, k)
			}
			if f, ok := v.(float64); ok {
				nums = append(nums, f)
			}
		}
		cs.Cardinality = len(distinct)

		for _, v := range vals[:min(maxSampleValues, len(vals))] {
			cs.SampleValues = append(cs.SampleValues, tables.FormatValue(v))
		}

		switch {
		case col.Type == tables.Numeric && len(nums) > 0:
			lo, hi := stats.Bounds(nums)
			cs.Min, cs.Max = &lo, &hi
		case cs.Cardinality <= maxUniqueValues:
			cs.UniqueValues = distinct
		}
		out.Columns = append(out.Columns, cs)
	}
	return out
}
