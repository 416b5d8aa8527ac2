package charts

import (
	"slices"
	"strings"

	"github.com/aclements/go-moremath/stats"

	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/tables"
)

// ApplyAggregation groups t by the spec's group_by columns and reduces each
// y column with the declared method. Method none returns t itself, as does
// a spec with no y column to reduce, so pie and box charts keep row counts.
//
// The result holds the group_by columns followed by the reduced columns,
// one row per group, ordered by the group key compared component-wise on
// tables.FormatValue. Rows with a null key component belong to no group.
// Without group_by all rows form one group (none if t is empty).
func ApplyAggregation(t *tables.Table, spec chartspec.ChartSpec) *tables.Table {
	method := spec.Aggregation.Method
	if !spec.Aggregation.Declared() {
		return t
	}

	var keys []string
	for _, k := range spec.Aggregation.GroupBy {
		if t.HasColumn(k) && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	var targets []string
	for _, c := range spec.YColumns() {
		if t.HasColumn(c) && !slices.Contains(keys, c) && !slices.Contains(targets, c) {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return t
	}

	groups := groupRows(t, keys)

	b := tables.NewBuilder()
	for _, k := range keys {
		col, _ := t.Column(k)
		vals := make([]any, len(groups))
		for i, g := range groups {
			vals[i] = t.Cell(g.rows[0], k)
		}
		b.Add(k, col.Type, vals)
	}
	for _, c := range targets {
		col, _ := t.Column(c)
		vals := make([]any, len(groups))
		for i, g := range groups {
			vals[i] = reduce(method, col.Type, t, c, g.rows)
		}
		b.Add(c, tables.Numeric, vals)
	}
	return b.Done()
}

type group struct {
	key  []string
	rows []int
}

func groupRows(t *tables.Table, keys []string) []group {
	if len(keys) == 0 {
		if t.Len() == 0 {
			return nil
		}
		rows := make([]int, t.Len())
		for i := range rows {
			rows[i] = i
		}
		return []group{{rows: rows}}
	}

	index := map[string]int{}
	var groups []group
rows:
	for r := 0; r < t.Len(); r++ {
		key := make([]string, len(keys))
		for i, k := range keys {
			v := t.Cell(r, k)
			if v == nil {
				continue rows
			}
			key[i] = tables.FormatValue(v)
		}
		// \x00 cannot appear in formatted cells from our readers.
		id := strings.Join(key, "\x00")
		gi, ok := index[id]
		if !ok {
			gi = len(groups)
			index[id] = gi
			groups = append(groups, group{key: key})
		}
		groups[gi].rows = append(groups[gi].rows, r)
	}
	slices.SortStableFunc(groups, func(a, b group) int {
		return slices.Compare(a.key, b.key)
	})
	return groups
}

func reduce(method chartspec.AggregationMethod, typ tables.ColumnType, t *tables.Table, col string, rows []int) any {
	if method == chartspec.AggCount {
		n := 0
		for _, r := range rows {
			if t.Cell(r, col) != nil {
				n++
			}
		}
		return float64(n)
	}
	if typ != tables.Numeric {
		return nil
	}
	xs := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v, ok := t.Cell(r, col).(float64); ok {
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 {
		return nil
	}
	sample := stats.Sample{Xs: xs}
	switch method {
	case chartspec.AggSum:
		return sample.Sum()
	case chartspec.AggMean:
		return stats.Mean(xs)
	case chartspec.AggMedian:
		slices.Sort(sample.Xs)
		sample.Sorted = true
		return sample.Quantile(0.5)
	case chartspec.AggMin:
		lo, _ := stats.Bounds(xs)
		return lo
	case chartspec.AggMax:
		_, hi := stats.Bounds(xs)
		return hi
	}
	return nil
}
