// Package tables holds the in-memory tabular data model shared by ingestion,
// cleaning and the chart pipeline.
package tables

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ColumnType is the logical type of every cell in a column.
type ColumnType int

const (
	Text ColumnType = iota
	Numeric
	Boolean
	Temporal
)

var columnTypeNames = map[ColumnType]string{
	Text:     "text",
	Numeric:  "numeric",
	Boolean:  "boolean",
	Temporal: "temporal",
}

func (c ColumnType) String() string {
	if s, ok := columnTypeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ColumnType(%d)", int(c))
}

// Orderable reports whether values of this type support < and >.
func (c ColumnType) Orderable() bool {
	return c == Numeric || c == Temporal
}

func (c ColumnType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ColumnType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, v := range columnTypeNames {
		if v == s {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown column type %q", s)
}

// Column describes one column of a Table.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Table is an immutable, column-oriented table. Cells are nil (null),
// float64, string, bool or time.Time depending on the column type.
// Nothing mutates a Table after Done() returns it; every transformation
// builds a new one, so a *Table can be shared freely between goroutines.
type Table struct {
	columns []Column
	index   map[string]int
	data    [][]any
	rows    int
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Columns returns the column descriptors in order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column looks up a column descriptor by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// Cell returns the value at row, column; nil for nulls or unknown columns.
func (t *Table) Cell(row int, name string) any {
	i, ok := t.index[name]
	if !ok || row < 0 || row >= t.rows {
		return nil
	}
	return t.data[i][row]
}

// Values returns a copy of the named column's cells.
func (t *Table) Values(name string) []any {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	out := make([]any, t.rows)
	copy(out, t.data[i])
	return out
}

// Row returns a copy of one row, keyed by column name.
func (t *Table) Row(row int) map[string]any {
	out := make(map[string]any, len(t.columns))
	for i, c := range t.columns {
		out[c.Name] = t.data[i][row]
	}
	return out
}

// SelectRows returns a new table holding the given rows in the given order.
func (t *Table) SelectRows(rows []int) *Table {
	b := NewBuilder()
	for i, c := range t.columns {
		vals := make([]any, len(rows))
		for j, r := range rows {
			vals[j] = t.data[i][r]
		}
		b.Add(c.Name, c.Type, vals)
	}
	return b.Done()
}

// Project returns a new table with only the named columns, in the given
// order. Unknown names are skipped.
func (t *Table) Project(names ...string) *Table {
	b := NewBuilder()
	for _, n := range names {
		i, ok := t.index[n]
		if !ok {
			continue
		}
		b.Add(n, t.columns[i].Type, t.data[i])
	}
	if len(b.cols) == 0 {
		return Empty()
	}
	return b.Done()
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n >= t.rows {
		return t
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.SelectRows(rows)
}

// Empty returns a table with no columns and no rows.
func Empty() *Table {
	return &Table{index: map[string]int{}}
}

// Builder assembles a Table column by column.
//
//	t := tables.NewBuilder().
//		Add("region", tables.Text, []any{"east", "west"}).
//		Add("sales", tables.Numeric, []any{10.0, 20.0}).
//		Done()
type Builder struct {
	cols []Column
	data [][]any
	err  error
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a column. Values are copied. A later column with the same
// name replaces the earlier one in place.
func (b *Builder) Add(name string, typ ColumnType, values []any) *Builder {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = normalizeCell(v)
	}
	for i, c := range b.cols {
		if c.Name == name {
			b.cols[i].Type = typ
			b.data[i] = vals
			return b
		}
	}
	b.cols = append(b.cols, Column{Name: name, Type: typ})
	b.data = append(b.data, vals)
	return b
}

// Build finalizes the table, failing if the columns differ in length.
func (b *Builder) Build() (*Table, error) {
	if b.err != nil {
		return nil, b.err
	}
	t := &Table{
		columns: make([]Column, len(b.cols)),
		index:   make(map[string]int, len(b.cols)),
		data:    b.data,
	}
	copy(t.columns, b.cols)
	for i, c := range b.cols {
		if i == 0 {
			t.rows = len(b.data[0])
		} else if len(b.data[i]) != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(b.data[i]), t.rows)
		}
		t.index[c.Name] = i
	}
	return t, nil
}

// Done is Build for callers that construct well-formed columns and treat a
// length mismatch as a programming error.
func (b *Builder) Done() *Table {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

func normalizeCell(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		if math.IsNaN(x) {
			return nil
		}
	}
	return v
}

// FormatValue is the canonical string form of a cell. Group keys and
// categorical orderings are sorted on this representation.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		x = x.UTC()
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// ToFloat converts a cell or filter operand to a number when possible.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		return ParseNumber(x)
	}
	return 0, false
}

// ParseNumber parses a decimal number, tolerating surrounding whitespace and
// thousands separators ("1,234.5").
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ",", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006/01/02",
}

// ParseTime parses the date and datetime layouts accepted in datasets and
// filter operands.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToTime converts a cell or filter operand to a time when possible.
func ToTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return ParseTime(x)
	}
	return time.Time{}, false
}
