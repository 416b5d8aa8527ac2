package tables

import (
	"strings"
)

// InferColumn picks a column type for raw string cells and converts them.
// Empty strings are nulls. A column is numeric, boolean or temporal only if
// every non-null cell parses as such; otherwise it stays text.
func InferColumn(raw []string) (ColumnType, []any) {
	nonNull := 0
	numeric, boolean, temporal := true, true, true
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		nonNull++
		if numeric {
			_, numeric = ParseNumber(s)
		}
		if boolean {
			_, boolean = parseBool(s)
		}
		if temporal {
			_, temporal = ParseTime(s)
		}
		if !numeric && !boolean && !temporal {
			break
		}
	}

	typ := Text
	switch {
	case nonNull == 0:
		typ = Text
	case numeric:
		typ = Numeric
	case boolean:
		typ = Boolean
	case temporal:
		typ = Temporal
	}

	out := make([]any, len(raw))
	for i, s := range raw {
		out[i] = ConvertCell(s, typ)
	}
	return typ, out
}

// ConvertCell converts one raw string to the representation used for typ.
func ConvertCell(s string, typ ColumnType) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	switch typ {
	case Numeric:
		if f, ok := ParseNumber(s); ok {
			return f
		}
		return nil
	case Boolean:
		if b, ok := parseBool(s); ok {
			return b
		}
		return nil
	case Temporal:
		if t, ok := ParseTime(s); ok {
			return t
		}
		return nil
	}
	return s
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// FromRecords builds a table from a header row and string records, inferring
// each column's type. Short records are padded with nulls.
func FromRecords(header []string, records [][]string) *Table {
	b := NewBuilder()
	for ci, name := range header {
		raw := make([]string, len(records))
		for ri, rec := range records {
			if ci < len(rec) {
				raw[ri] = rec[ci]
			}
		}
		typ, vals := InferColumn(raw)
		b.Add(name, typ, vals)
	}
	return b.Done()
}
