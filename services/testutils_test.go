package services

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/panyam/adaptiva/tables"
)

// newSalesTable has three months of revenue for two regions plus a text
// column with a null.
func newSalesTable(t *testing.T) *tables.Table {
	t.Helper()
	tbl, err := tables.NewBuilder().
		Add("Month", tables.Text, []any{"Jan", "Jan", "Feb", "Feb", "Mar", "Mar"}).
		Add("Region", tables.Text, []any{"East", "West", "East", "West", "East", nil}).
		Add("Revenue", tables.Numeric, []any{100, 80, 120, 90, nil, 95}).
		Build()
	require.NoError(t, err)
	return tbl
}

// putTable stores tbl as a single-sheet dataset and returns its reference.
func putTable(t *testing.T, store *tables.MemoryStore, tbl *tables.Table) tables.DatasetRef {
	t.Helper()
	meta, err := store.Put("sales.csv", []tables.Sheet{{Name: "Sheet1", Table: tbl}})
	require.NoError(t, err)
	return tables.DatasetRef{DatasetID: meta.ID}
}

func newTestDatasetService(t *testing.T) *DatasetService {
	t.Helper()
	return NewDatasetService(tables.NewMemoryStore(), tables.Limits{}, 1<<20)
}

// captureLogs routes slog through an uncolored PrettyHandler into a buffer
// for the duration of the test.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	oldLogger, oldNoColor := slog.Default(), color.NoColor
	color.NoColor = true
	slog.SetDefault(slog.New(NewPrettyHandler(buf, PrettyHandlerOptions{SlogOpts: slog.HandlerOptions{Level: level}})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
		color.NoColor = oldNoColor
	})
	return buf
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}
