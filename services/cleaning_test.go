package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/adaptiva/tables"
)

func newMessyTable(t *testing.T) *tables.Table {
	t.Helper()
	tbl, err := tables.NewBuilder().
		Add("Customer Name", tables.Text, []any{"Ana", "Ben", "Ben", nil, "Cy"}).
		Add("Órder Date", tables.Text, []any{"2024-01-05", "2024-01-06", "2024-01-06", nil, "soon"}).
		Add("Amount ($)", tables.Text, []any{"10", "20.5", "20.5", nil, "7"}).
		Add("Empty", tables.Text, []any{nil, nil, nil, nil, nil}).
		Add("Score", tables.Numeric, []any{1, nil, nil, nil, 5}).
		Build()
	require.NoError(t, err)
	return tbl
}

func TestNormalizeColumnName(t *testing.T) {
	cases := map[string]string{
		"Customer Name":  "customer_name",
		"  Órder Date ":  "order_date",
		"Amount ($)":     "amount_",
		"Already_ok_123": "already_ok_123",
		"Tab\tSeparated": "tab_separated",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeColumnName(in), in)
	}
}

func TestNormalizeColumnNamesDeduplicates(t *testing.T) {
	got := normalizeColumnNames([]string{"Total", "total", "TOTAL ", "???"})
	assert.Equal(t, []string{"total", "total_1", "total_2", "column_4"}, got)
}

func TestClean(t *testing.T) {
	ctx := context.Background()

	t.Run("No Operations", func(t *testing.T) {
		svc := newTestDatasetService(t)
		ref := putTable(t, svc.Store, newMessyTable(t))
		res, err := svc.Clean(ctx, ref.DatasetID, CleanRequest{})
		require.NoError(t, err)
		assert.Empty(t, res.Operations)
		assert.Equal(t, "No cleaning operations were necessary.", res.Message)
		assert.Equal(t, res.RowsBefore, res.RowsAfter)
		assert.Equal(t, 5, res.MissingBefore["Empty"])
	})

	t.Run("Full Pipeline", func(t *testing.T) {
		svc := newTestDatasetService(t)
		ref := putTable(t, svc.Store, newMessyTable(t))
		res, err := svc.Clean(ctx, ref.DatasetID, CleanRequest{
			NormalizeColumns:   true,
			RemoveEmptyColumns: true,
			RemoveEmptyRows:    true,
			AutoDetectTypes:    true,
			DropDuplicates:     true,
		})
		require.NoError(t, err)

		assert.Equal(t, "customer_name", res.ColumnChanges.Renamed["Customer Name"])
		assert.Equal(t, "order_date", res.ColumnChanges.Renamed["Órder Date"])
		assert.Equal(t, []string{"empty"}, res.ColumnChanges.Dropped)
		assert.Equal(t, "temporal", res.ColumnChanges.TypeConverted["order_date"])
		assert.Equal(t, "numeric", res.ColumnChanges.TypeConverted["amount_"])

		ops := []string{}
		for _, op := range res.Operations {
			ops = append(ops, op.Operation)
		}
		assert.Equal(t, []string{"normalize_columns", "remove_empty_columns", "remove_empty_rows", "auto_detect_types", "drop_duplicates"}, ops)
		assert.Equal(t, 5, res.RowsBefore)
		assert.Equal(t, 3, res.RowsAfter)
		assert.Equal(t, 5, res.ColumnsBefore)
		assert.Equal(t, 4, res.ColumnsAfter)
		assert.Contains(t, res.Message, "Removed 2 rows.")
		assert.Contains(t, res.Message, "Removed 1 columns.")

		cleaned, err := svc.Store.Resolve(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, []string{"customer_name", "order_date", "amount_", "score"}, cleaned.ColumnNames())
		assert.Equal(t, 20.5, cleaned.Cell(1, "amount_"))
		assert.Equal(t, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), cleaned.Cell(1, "order_date"))
		assert.Nil(t, cleaned.Cell(2, "order_date"), "unparseable date becomes null")
	})

	t.Run("Smart Fill", func(t *testing.T) {
		svc := newTestDatasetService(t)
		ref := putTable(t, svc.Store, newMessyTable(t))
		res, err := svc.Clean(ctx, ref.DatasetID, CleanRequest{SmartFillMissing: true})
		require.NoError(t, err)
		require.Len(t, res.Operations, 1)
		assert.Equal(t, "smart_fill_missing", res.Operations[0].Operation)
		assert.Empty(t, res.MissingAfter)

		cleaned, err := svc.Store.Resolve(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "Ben", cleaned.Cell(3, "Customer Name"), "mode")
		assert.Equal(t, 3.0, cleaned.Cell(1, "Score"), "median")
		assert.Equal(t, "Unknown", cleaned.Cell(0, "Empty"))
	})

	t.Run("Fill NA And Drop NA", func(t *testing.T) {
		svc := newTestDatasetService(t)
		ref := putTable(t, svc.Store, newMessyTable(t))
		res, err := svc.Clean(ctx, ref.DatasetID, CleanRequest{
			ColumnsToDrop: []string{"Empty", "Órder Date"},
			FillNA:        map[string]any{"Score": 0, "Customer Name": "n/a", "Nope": 1},
			DropNA:        true,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Empty", "Órder Date"}, res.ColumnChanges.Dropped)
		assert.Equal(t, 4, res.RowsAfter, "only the row with a null amount goes")

		cleaned, err := svc.Store.Resolve(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, 0.0, cleaned.Cell(1, "Score"))
		assert.Equal(t, "Cy", cleaned.Cell(3, "Customer Name"))

		var fill *CleaningOperation
		for i := range res.Operations {
			if res.Operations[i].Operation == "fill_na" {
				fill = &res.Operations[i]
			}
		}
		require.NotNil(t, fill)
		assert.Equal(t, 4, fill.AffectedCount, "fill runs before drop_na")
		assert.Equal(t, "Manually filled 4 values in columns: Customer Name, Score", fill.Details)
	})

	t.Run("Dataset Not Found", func(t *testing.T) {
		svc := newTestDatasetService(t)
		_, err := svc.Clean(ctx, "missing", CleanRequest{DropNA: true})
		assert.ErrorIs(t, err, tables.ErrDatasetNotFound)
	})
}

func TestDetectType(t *testing.T) {
	typ, vals, ok := detectType("signup", []any{"2024-01-01", "2024-02-01", nil})
	require.True(t, ok)
	assert.Equal(t, tables.Temporal, typ)
	assert.Nil(t, vals[2])

	typ, _, ok = detectType("created_at", []any{"5", "6"})
	require.True(t, ok)
	assert.Equal(t, tables.Numeric, typ, "numbers are not dates even for date-like names")

	_, _, ok = detectType("notes", []any{"a", "b", "3"})
	assert.False(t, ok)
}
