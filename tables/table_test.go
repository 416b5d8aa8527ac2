package tables

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSalesTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewBuilder().
		Add("region", Text, []any{"east", "west", nil}).
		Add("sales", Numeric, []any{10, 20.5, 30}).
		Build()
	require.NoError(t, err)
	return tbl
}

func TestBuilder(t *testing.T) {
	t.Run("Success Case", func(t *testing.T) {
		tbl := newSalesTable(t)
		assert.Equal(t, 3, tbl.Len())
		assert.Equal(t, 2, tbl.Width())
		assert.Equal(t, []string{"region", "sales"}, tbl.ColumnNames())
		assert.Equal(t, 10.0, tbl.Cell(0, "sales"), "ints are normalized to float64")
		assert.Nil(t, tbl.Cell(2, "region"))
		assert.Nil(t, tbl.Cell(0, "missing"))
	})

	t.Run("Length Mismatch", func(t *testing.T) {
		_, err := NewBuilder().
			Add("a", Numeric, []any{1, 2}).
			Add("b", Numeric, []any{1}).
			Build()
		assert.Error(t, err)
	})

	t.Run("Same Name Replaces", func(t *testing.T) {
		tbl := NewBuilder().
			Add("a", Numeric, []any{1}).
			Add("a", Text, []any{"x"}).
			Done()
		assert.Equal(t, 1, tbl.Width())
		col, ok := tbl.Column("a")
		require.True(t, ok)
		assert.Equal(t, Text, col.Type)
	})
}

func TestTableIsImmutable(t *testing.T) {
	tbl := newSalesTable(t)
	vals := tbl.Values("sales")
	vals[0] = 999.0
	assert.Equal(t, 10.0, tbl.Cell(0, "sales"))

	sub := tbl.SelectRows([]int{2, 0})
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, 30.0, sub.Cell(0, "sales"))
	assert.Equal(t, 3, tbl.Len())

	proj := tbl.Project("sales", "nope")
	assert.Equal(t, []string{"sales"}, proj.ColumnNames())
	assert.Equal(t, 3, proj.Len())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "2024", FormatValue(2024.0))
	assert.Equal(t, "0.25", FormatValue(0.25))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "2024-03-01", FormatValue(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-01T10:30:00Z", FormatValue(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)))

	plus5 := time.FixedZone("", 5*60*60)
	assert.Equal(t, "2023-12-31T19:00:00Z", FormatValue(time.Date(2024, 1, 1, 0, 0, 0, 0, plus5)))
	assert.NotEqual(t, FormatValue(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		FormatValue(time.Date(2024, 1, 1, 0, 0, 0, 0, plus5)), "distinct instants format apart")
	assert.Equal(t, "2024-01-01", FormatValue(time.Date(2024, 1, 1, 5, 0, 0, 0, plus5)))
}

func TestInferColumn(t *testing.T) {
	cases := []struct {
		name string
		raw  []string
		typ  ColumnType
		want []any
	}{
		{"numbers", []string{"1", "2.5", "", "1,000"}, Numeric, []any{1.0, 2.5, nil, 1000.0}},
		{"booleans", []string{"true", "FALSE"}, Boolean, []any{true, false}},
		{"dates", []string{"2024-01-01", "2024-02-01"}, Temporal, []any{
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		}},
		{"mixed falls back to text", []string{"1", "two"}, Text, []any{"1", "two"}},
		{"all empty", []string{"", " "}, Text, []any{nil, nil}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			typ, vals := InferColumn(tc.raw)
			assert.Equal(t, tc.typ, typ)
			assert.Equal(t, tc.want, vals)
		})
	}
}

func TestLimits(t *testing.T) {
	tbl := newSalesTable(t)
	assert.NoError(t, Limits{}.Check(tbl))
	assert.NoError(t, Limits{MaxRows: 3, MaxColumns: 2}.Check(tbl))
	assert.ErrorIs(t, Limits{MaxRows: 2}.Check(tbl), ErrTableTooLarge)
	assert.ErrorIs(t, Limits{MaxColumns: 1}.Check(tbl), ErrTableTooLarge)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	first := newSalesTable(t)
	second := NewBuilder().Add("x", Numeric, []any{1}).Done()

	meta, err := store.Put("book.xlsx", []Sheet{{Name: "Q1", Table: first}, {Name: "Q2", Table: second}})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, "Q1", meta.ActiveSheet)
	assert.Equal(t, []string{"Q1", "Q2"}, meta.Sheets)

	t.Run("Resolve Active Sheet", func(t *testing.T) {
		got, err := store.Resolve(ctx, DatasetRef{DatasetID: meta.ID})
		require.NoError(t, err)
		assert.Same(t, first, got)
	})

	t.Run("Resolve Named Sheet", func(t *testing.T) {
		got, err := store.Resolve(ctx, DatasetRef{DatasetID: meta.ID, Sheet: "Q2"})
		require.NoError(t, err)
		assert.Same(t, second, got)
	})

	t.Run("Unknown Dataset", func(t *testing.T) {
		_, err := store.Resolve(ctx, DatasetRef{DatasetID: "nope"})
		assert.ErrorIs(t, err, ErrDatasetNotFound)
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "nope", nf.Ref.DatasetID)
	})

	t.Run("Unknown Sheet", func(t *testing.T) {
		_, err := store.Resolve(ctx, DatasetRef{DatasetID: meta.ID, Sheet: "Q9"})
		assert.ErrorIs(t, err, ErrDatasetNotFound)
	})

	t.Run("Replace Keeps Old Snapshot", func(t *testing.T) {
		before, err := store.Resolve(ctx, DatasetRef{DatasetID: meta.ID})
		require.NoError(t, err)
		cleaned := before.Head(1)
		require.NoError(t, store.Replace(DatasetRef{DatasetID: meta.ID}, cleaned))

		after, err := store.Resolve(ctx, DatasetRef{DatasetID: meta.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, after.Len())
		assert.Equal(t, 3, before.Len())

		got, err := store.Dataset(meta.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Rows)
	})

	t.Run("Concurrent Resolve", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Resolve(ctx, DatasetRef{DatasetID: meta.ID})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(meta.ID))
		assert.ErrorIs(t, store.Delete(meta.ID), ErrDatasetNotFound)
		assert.Empty(t, store.List())
	})

	t.Run("Put Without Sheets", func(t *testing.T) {
		_, err := store.Put("empty.csv", nil)
		assert.ErrorIs(t, err, ErrNoData)
	})
}
