package services

import (
	"context"
	"sort"

	"github.com/aclements/go-moremath/stats"

	"github.com/panyam/adaptiva/tables"
)

type ColumnInsight struct {
	Type         tables.ColumnType `json:"dtype"`
	NonNullCount int               `json:"non_null_count"`
	NullCount    int               `json:"null_count"`
	UniqueValues int               `json:"unique_values"`
}

// NumericSummary mirrors a describe() row. Quartiles use the Hyndman-Fan R8
// estimator.
type NumericSummary struct {
	Count int      `json:"count"`
	Mean  float64  `json:"mean"`
	Std   *float64 `json:"std"`
	Min   float64  `json:"min"`
	Q1    float64  `json:"25%"`
	Q2    float64  `json:"50%"`
	Q3    float64  `json:"75%"`
	Max   float64  `json:"max"`
}

type Insights struct {
	DatasetID        string                    `json:"dataset_id"`
	Sheet            string                    `json:"sheet,omitempty"`
	Rows             int                       `json:"rows"`
	Columns          int                       `json:"columns"`
	ColumnInfo       map[string]ColumnInsight  `json:"column_info"`
	NumericalSummary map[string]NumericSummary `json:"numerical_summary"`
	MissingValues    map[string]int            `json:"missing_values"`
	DuplicatesCount  int                       `json:"duplicates_count"`
}

func (s *DatasetService) Insights(ctx context.Context, ref tables.DatasetRef) (*Insights, error) {
	t, err := s.Store.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	out := &Insights{
		DatasetID:        ref.DatasetID,
		Sheet:            ref.Sheet,
		Rows:             t.Len(),
		Columns:          t.Width(),
		ColumnInfo:       map[string]ColumnInsight{},
		NumericalSummary: map[string]NumericSummary{},
		MissingValues:    map[string]int{},
	}

	for _, c := range t.Columns() {
		vals := t.Values(c.Name)
		info := ColumnInsight{Type: c.Type}
		distinct := map[string]bool{}
		var xs []float64
		for _, v := range vals {
			if v == nil {
				info.NullCount++
				continue
			}
			info.NonNullCount++
			distinct[tables.FormatValue(v)] = true
			if f, ok := v.(float64); ok {
				xs = append(xs, f)
			}
		}
		info.UniqueValues = len(distinct)
		out.ColumnInfo[c.Name] = info
		out.MissingValues[c.Name] = info.NullCount
		if c.Type == tables.Numeric && len(xs) > 0 {
			out.NumericalSummary[c.Name] = summarize(xs)
		}
	}

	data := make([][]any, t.Width())
	for i, name := range t.ColumnNames() {
		data[i] = t.Values(name)
	}
	seen := map[string]bool{}
	for r := 0; r < t.Len(); r++ {
		k := rowKey(data, r)
		if seen[k] {
			out.DuplicatesCount++
		}
		seen[k] = true
	}
	return out, nil
}

func summarize(xs []float64) NumericSummary {
	sort.Float64s(xs)
	sample := stats.Sample{Xs: xs, Sorted: true}
	lo, hi := sample.Bounds()
	ns := NumericSummary{
		Count: len(xs),
		Mean:  sample.Mean(),
		Min:   lo,
		Q1:    sample.Quantile(0.25),
		Q2:    sample.Quantile(0.5),
		Q3:    sample.Quantile(0.75),
		Max:   hi,
	}
	if len(xs) > 1 {
		sd := sample.StdDev()
		ns.Std = &sd
	}
	return ns
}
