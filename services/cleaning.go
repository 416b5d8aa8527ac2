package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/aclements/go-moremath/stats"
	gfn "github.com/panyam/goutils/fn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/panyam/adaptiva/tables"
)

// CleanRequest lists the cleaning steps to apply. Steps run in a fixed order:
// normalize names, drop columns, remove empty columns, remove empty rows,
// detect types, smart fill, explicit fill, drop duplicates, drop rows with
// nulls.
type CleanRequest struct {
	Sheet              string         `json:"sheet,omitempty"`
	ColumnsToDrop      []string       `json:"columns_to_drop,omitempty"`
	DropDuplicates     bool           `json:"drop_duplicates"`
	DropNA             bool           `json:"drop_na"`
	FillNA             map[string]any `json:"fill_na,omitempty"`
	NormalizeColumns   bool           `json:"normalize_columns"`
	RemoveEmptyRows    bool           `json:"remove_empty_rows"`
	RemoveEmptyColumns bool           `json:"remove_empty_columns"`
	AutoDetectTypes    bool           `json:"auto_detect_types"`
	SmartFillMissing   bool           `json:"smart_fill_missing"`
}

type CleaningOperation struct {
	Operation     string `json:"operation"`
	Details       string `json:"details"`
	AffectedCount int    `json:"affected_count"`
}

type ColumnChanges struct {
	Renamed       map[string]string `json:"renamed"`
	Dropped       []string          `json:"dropped"`
	TypeConverted map[string]string `json:"type_converted"`
}

type CleanResult struct {
	DatasetID     string              `json:"dataset_id"`
	RowsBefore    int                 `json:"rows_before"`
	RowsAfter     int                 `json:"rows_after"`
	ColumnsBefore int                 `json:"columns_before"`
	ColumnsAfter  int                 `json:"columns_after"`
	Operations    []CleaningOperation `json:"operations_log"`
	ColumnChanges ColumnChanges       `json:"column_changes"`
	MissingBefore map[string]int      `json:"missing_before"`
	MissingAfter  map[string]int      `json:"missing_after"`
	Message       string              `json:"message"`
}

// frame is a mutable working copy of a table used while cleaning.
type frame struct {
	cols []tables.Column
	data [][]any
	rows int
}

func newFrame(t *tables.Table) *frame {
	f := &frame{cols: t.Columns(), rows: t.Len()}
	for _, c := range f.cols {
		f.data = append(f.data, t.Values(c.Name))
	}
	return f
}

func (f *frame) table() (*tables.Table, error) {
	if len(f.cols) == 0 {
		return tables.Empty(), nil
	}
	b := tables.NewBuilder()
	for i, c := range f.cols {
		b.Add(c.Name, c.Type, f.data[i])
	}
	return b.Build()
}

func (f *frame) indexOf(name string) int {
	return slices.IndexFunc(f.cols, func(c tables.Column) bool { return c.Name == name })
}

func (f *frame) dropColumns(drop func(i int) bool) (dropped []string) {
	var cols []tables.Column
	var data [][]any
	for i, c := range f.cols {
		if drop(i) {
			dropped = append(dropped, c.Name)
			continue
		}
		cols = append(cols, c)
		data = append(data, f.data[i])
	}
	f.cols, f.data = cols, data
	return dropped
}

// keepRows retains rows for which keep is true and returns how many went.
func (f *frame) keepRows(keep func(r int) bool) int {
	var idx []int
	for r := 0; r < f.rows; r++ {
		if keep(r) {
			idx = append(idx, r)
		}
	}
	for i := range f.data {
		vals := make([]any, len(idx))
		for j, r := range idx {
			vals[j] = f.data[i][r]
		}
		f.data[i] = vals
	}
	removed := f.rows - len(idx)
	f.rows = len(idx)
	return removed
}

func (f *frame) rowHasNull(r int, all bool) bool {
	if len(f.data) == 0 {
		return all
	}
	for i := range f.data {
		isNull := f.data[i][r] == nil
		if all && !isNull {
			return false
		}
		if !all && isNull {
			return true
		}
	}
	return all
}

func (f *frame) missing() map[string]int {
	out := map[string]int{}
	for i, c := range f.cols {
		n := 0
		for _, v := range f.data[i] {
			if v == nil {
				n++
			}
		}
		if n > 0 {
			out[c.Name] = n
		}
	}
	return out
}

// rowKey identifies a row by content, distinguishing nulls from empty text.
func rowKey(data [][]any, r int) string {
	var b strings.Builder
	for i := range data {
		if v := data[i][r]; v == nil {
			b.WriteString("\x00n")
		} else {
			b.WriteString("\x00v")
			b.WriteString(tables.FormatValue(v))
		}
	}
	return b.String()
}

// Clean applies req to the referenced sheet and replaces the stored table.
// Charts rendered afterwards see the cleaned data.
func (s *DatasetService) Clean(ctx context.Context, id string, req CleanRequest) (*CleanResult, error) {
	ref := tables.DatasetRef{DatasetID: id, Sheet: req.Sheet}
	t, err := s.Store.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	f := newFrame(t)
	res := &CleanResult{
		DatasetID:     id,
		RowsBefore:    t.Len(),
		ColumnsBefore: t.Width(),
		Operations:    []CleaningOperation{},
		ColumnChanges: ColumnChanges{Renamed: map[string]string{}, Dropped: []string{}, TypeConverted: map[string]string{}},
		MissingBefore: f.missing(),
	}
	logOp := func(op string, n int, format string, args ...any) {
		if n > 0 {
			res.Operations = append(res.Operations, CleaningOperation{Operation: op, Details: fmt.Sprintf(format, args...), AffectedCount: n})
		}
	}

	if req.NormalizeColumns {
		names := normalizeColumnNames(gfn.Map(f.cols, func(c tables.Column) string { return c.Name }))
		n := 0
		for i, c := range f.cols {
			if c.Name != names[i] {
				res.ColumnChanges.Renamed[c.Name] = names[i]
				f.cols[i].Name = names[i]
				n++
			}
		}
		logOp("normalize_columns", n, "Normalized %d column names to lowercase with underscores", n)
	}

	if len(req.ColumnsToDrop) > 0 {
		dropped := f.dropColumns(func(i int) bool { return slices.Contains(req.ColumnsToDrop, f.cols[i].Name) })
		res.ColumnChanges.Dropped = append(res.ColumnChanges.Dropped, dropped...)
		logOp("drop_columns", len(dropped), "Dropped columns: %s", strings.Join(dropped, ", "))
	}

	if req.RemoveEmptyColumns {
		dropped := f.dropColumns(func(i int) bool {
			return !slices.ContainsFunc(f.data[i], func(v any) bool { return v != nil })
		})
		res.ColumnChanges.Dropped = append(res.ColumnChanges.Dropped, dropped...)
		logOp("remove_empty_columns", len(dropped), "Removed empty columns: %s", strings.Join(dropped, ", "))
	}

	if req.RemoveEmptyRows {
		n := f.keepRows(func(r int) bool { return !f.rowHasNull(r, true) })
		logOp("remove_empty_rows", n, "Removed %d completely empty rows", n)
	}

	if req.AutoDetectTypes {
		var converted []string
		for i, c := range f.cols {
			if c.Type != tables.Text {
				continue
			}
			if typ, vals, ok := detectType(c.Name, f.data[i]); ok {
				f.cols[i].Type = typ
				f.data[i] = vals
				res.ColumnChanges.TypeConverted[c.Name] = typ.String()
				converted = append(converted, c.Name)
			}
		}
		logOp("auto_detect_types", len(converted), "Converted types for columns: %s", strings.Join(converted, ", "))
	}

	if req.SmartFillMissing {
		filled := 0
		var details []string
		for i, c := range f.cols {
			fill, label, ok := smartFillValue(c, f.data[i])
			if !ok {
				continue
			}
			n := fillNulls(f.data[i], fill)
			filled += n
			details = append(details, fmt.Sprintf("%s(%s)", c.Name, label))
		}
		more := ""
		if len(details) > 5 {
			details, more = details[:5], "..."
		}
		logOp("smart_fill_missing", filled, "Filled %d missing values: %s%s", filled, strings.Join(details, ", "), more)
	}

	if len(req.FillNA) > 0 {
		filled := 0
		var cols []string
		for name, v := range req.FillNA {
			i := f.indexOf(name)
			if i < 0 {
				continue
			}
			cell := tables.ConvertCell(tables.FormatValue(v), f.cols[i].Type)
			if cell == nil {
				slog.Warn("Fill value does not match column type", "column", name, "value", v, "type", f.cols[i].Type)
				continue
			}
			filled += fillNulls(f.data[i], cell)
			cols = append(cols, name)
		}
		sort.Strings(cols)
		logOp("fill_na", filled, "Manually filled %d values in columns: %s", filled, strings.Join(cols, ", "))
	}

	if req.DropDuplicates {
		seen := map[string]bool{}
		n := f.keepRows(func(r int) bool {
			k := rowKey(f.data, r)
			if seen[k] {
				return false
			}
			seen[k] = true
			return true
		})
		logOp("drop_duplicates", n, "Removed %d duplicate rows", n)
	}

	if req.DropNA {
		n := f.keepRows(func(r int) bool { return !f.rowHasNull(r, false) })
		logOp("drop_na", n, "Removed %d rows with missing values", n)
	}

	cleaned, err := f.table()
	if err != nil {
		return nil, err
	}
	if err := s.Store.Replace(ref, cleaned); err != nil {
		return nil, err
	}

	res.RowsAfter, res.ColumnsAfter = cleaned.Len(), cleaned.Width()
	res.MissingAfter = f.missing()
	switch {
	case len(res.Operations) == 0:
		res.Message = "No cleaning operations were necessary."
	default:
		parts := []string{fmt.Sprintf("Data cleaning completed with %d operations.", len(res.Operations))}
		if d := res.RowsBefore - res.RowsAfter; d > 0 {
			parts = append(parts, fmt.Sprintf("Removed %d rows.", d))
		}
		if d := res.ColumnsBefore - res.ColumnsAfter; d > 0 {
			parts = append(parts, fmt.Sprintf("Removed %d columns.", d))
		}
		res.Message = strings.Join(parts, " ")
	}
	slog.Info("Cleaned dataset", "id", id, "sheet", req.Sheet, "operations", len(res.Operations),
		"rows_before", res.RowsBefore, "rows_after", res.RowsAfter)
	return res, nil
}

var (
	spaceRun    = regexp.MustCompile(`\s+`)
	nonNameChar = regexp.MustCompile(`[^a-z0-9_]`)
)

// NormalizeColumnName strips accents, lower-cases, trims and replaces
// whitespace with underscores, keeping only [a-z0-9_].
func NormalizeColumnName(name string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(stripAccents, name)
	if err != nil {
		s = name
	}
	s = cases.Lower(language.Und).String(strings.TrimSpace(s))
	s = spaceRun.ReplaceAllString(s, "_")
	return nonNameChar.ReplaceAllString(s, "")
}

// normalizeColumnNames normalizes every name and suffixes repeats with _1,
// _2 and so on. Names that normalize to nothing become column_N.
func normalizeColumnNames(names []string) []string {
	out := make([]string, len(names))
	seen := map[string]int{}
	for i, n := range names {
		base := NormalizeColumnName(n)
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		name := base
		if k, ok := seen[base]; ok {
			seen[base] = k + 1
			name = fmt.Sprintf("%s_%d", base, k+1)
		} else {
			seen[base] = 0
		}
		out[i] = name
	}
	return tables.UniqueNames(out)
}

var dateNameHints = []string{"date", "time", "created", "updated", "modified", "timestamp", "dt", "dob"}

// detectType retypes a text column as numeric or temporal when at least half
// of its non-null cells parse. Cells that do not parse become null. Columns
// whose names look like dates try temporal first.
func detectType(name string, vals []any) (tables.ColumnType, []any, bool) {
	lower := strings.ToLower(name)
	dateLike := slices.ContainsFunc(dateNameHints, func(h string) bool { return strings.Contains(lower, h) })
	order := []tables.ColumnType{tables.Numeric, tables.Temporal}
	if dateLike {
		order = []tables.ColumnType{tables.Temporal, tables.Numeric}
	}
	for _, typ := range order {
		nonNull, ok := 0, 0
		out := make([]any, len(vals))
		for i, v := range vals {
			if v == nil {
				continue
			}
			nonNull++
			if c := tables.ConvertCell(tables.FormatValue(v), typ); c != nil {
				out[i] = c
				ok++
			}
		}
		if nonNull > 0 && ok*2 >= nonNull {
			return typ, out, true
		}
	}
	return tables.Text, vals, false
}

// smartFillValue picks the median for numeric columns and the most frequent
// value otherwise. All-null text columns get "Unknown".
func smartFillValue(c tables.Column, vals []any) (any, string, bool) {
	if !slices.Contains(vals, nil) {
		return nil, "", false
	}
	if c.Type == tables.Numeric {
		var xs []float64
		for _, v := range vals {
			if f, ok := v.(float64); ok {
				xs = append(xs, f)
			}
		}
		if len(xs) == 0 {
			return nil, "", false
		}
		sort.Float64s(xs)
		m := stats.Sample{Xs: xs, Sorted: true}.Quantile(0.5)
		return m, fmt.Sprintf("median=%.2f", m), true
	}

	counts := map[string]int{}
	first := map[string]any{}
	for _, v := range vals {
		if v == nil {
			continue
		}
		k := tables.FormatValue(v)
		counts[k]++
		if _, ok := first[k]; !ok {
			first[k] = v
		}
	}
	if len(counts) == 0 {
		if c.Type == tables.Text {
			return "Unknown", "mode=Unknown", true
		}
		return nil, "", false
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return first[best], "mode=" + best, true
}

func fillNulls(vals []any, v any) int {
	n := 0
	for i := range vals {
		if vals[i] == nil {
			vals[i] = v
			n++
		}
	}
	return n
}
