package charts

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/tables"
)

// ApplyFilters keeps the rows of t that satisfy the spec's conditions,
// preserving their order. With no conditions t itself is returned.
func ApplyFilters(t *tables.Table, spec chartspec.ChartSpec) *tables.Table {
	conds := spec.Filters.Conditions
	if len(conds) == 0 {
		return t
	}
	// Casers carry state, so each call gets its own.
	m := matcher{fold: cases.Fold()}
	types := make([]tables.ColumnType, len(conds))
	for i, c := range conds {
		col, ok := t.Column(c.Column)
		if !ok {
			// Validation reports unknown columns; here they match nothing.
			types[i] = -1
			continue
		}
		types[i] = col.Type
	}

	or := spec.Filters.Logic == chartspec.LogicOr
	keep := make([]int, 0, t.Len())
	for r := 0; r < t.Len(); r++ {
		pass := !or
		for i, c := range conds {
			ok := types[i] >= 0 && m.match(c, types[i], t.Cell(r, c.Column))
			if or && ok {
				pass = true
				break
			}
			if !or && !ok {
				pass = false
				break
			}
		}
		if pass {
			keep = append(keep, r)
		}
	}
	return t.SelectRows(keep)
}

type matcher struct {
	fold cases.Caser
}

// match evaluates one condition against a cell of the given column type.
// Nulls fail every operator except ne.
func (m *matcher) match(c chartspec.FilterCondition, typ tables.ColumnType, cell any) bool {
	if cell == nil {
		return c.Operator == chartspec.OpNe
	}
	switch c.Operator {
	case chartspec.OpEq:
		return equal(typ, cell, c.Value)
	case chartspec.OpNe:
		return !equal(typ, cell, c.Value)
	case chartspec.OpGt:
		cmp, ok := compare(typ, cell, c.Value)
		return ok && cmp > 0
	case chartspec.OpGte:
		cmp, ok := compare(typ, cell, c.Value)
		return ok && cmp >= 0
	case chartspec.OpLt:
		cmp, ok := compare(typ, cell, c.Value)
		return ok && cmp < 0
	case chartspec.OpLte:
		cmp, ok := compare(typ, cell, c.Value)
		return ok && cmp <= 0
	case chartspec.OpBetween:
		lo, ok1 := compare(typ, cell, c.Value)
		hi, ok2 := compare(typ, cell, c.ValueEnd)
		return ok1 && ok2 && lo >= 0 && hi <= 0
	case chartspec.OpIn:
		return member(typ, cell, c.Value)
	case chartspec.OpNotIn:
		return !member(typ, cell, c.Value)
	case chartspec.OpContains:
		s, ok := cell.(string)
		needle, ok2 := c.Value.(string)
		if typ != tables.Text || !ok || !ok2 {
			return false
		}
		return strings.Contains(m.fold.String(s), m.fold.String(needle))
	}
	return false
}

// equal compares without cross-type coercion: numbers only equal numbers,
// text only strings, booleans only bools, dates only dates.
func equal(typ tables.ColumnType, cell, operand any) bool {
	switch typ {
	case tables.Numeric:
		a, ok1 := cell.(float64)
		b, ok2 := operand.(float64)
		return ok1 && ok2 && a == b
	case tables.Text:
		a, ok1 := cell.(string)
		b, ok2 := operand.(string)
		return ok1 && ok2 && a == b
	case tables.Boolean:
		a, ok1 := cell.(bool)
		b, ok2 := operand.(bool)
		return ok1 && ok2 && a == b
	case tables.Temporal:
		a, ok1 := cell.(time.Time)
		b, ok2 := operandTime(operand)
		return ok1 && ok2 && a.Equal(b)
	}
	return false
}

// compare orders cell against operand for numeric and temporal columns.
func compare(typ tables.ColumnType, cell, operand any) (int, bool) {
	switch typ {
	case tables.Numeric:
		a, ok1 := cell.(float64)
		b, ok2 := operand.(float64)
		if !ok1 || !ok2 {
			return 0, false
		}
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		}
		return 0, true
	case tables.Temporal:
		a, ok1 := cell.(time.Time)
		b, ok2 := operandTime(operand)
		if !ok1 || !ok2 {
			return 0, false
		}
		return a.Compare(b), true
	}
	return 0, false
}

func member(typ tables.ColumnType, cell, operand any) bool {
	list, ok := operand.([]any)
	if !ok {
		list = []any{operand}
	}
	for _, v := range list {
		if equal(typ, cell, v) {
			return true
		}
	}
	return false
}

func operandTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		return tables.ParseTime(s)
	}
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	return time.Time{}, false
}
