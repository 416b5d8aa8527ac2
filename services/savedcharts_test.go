package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/tables"
)

// Helper to create a FileChartStore pointing to a temp directory.
func newTestChartStore(t *testing.T) *FileChartStore {
	t.Helper()
	store, err := NewFileChartStore(t.TempDir())
	require.NoError(t, err, "Failed to create FileChartStore for test")
	return store
}

func newTestSavedChartService(t *testing.T) *SavedChartService {
	t.Helper()
	svc := NewSavedChartService(newTestChartStore(t))
	clock := fixedNow()
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}

func revenueSpec() chartspec.ChartSpec {
	return chartspec.New(tables.DatasetRef{DatasetID: "ds1"}, chartspec.Line, "Month", "Revenue")
}

func TestNewFileChartStore(t *testing.T) {
	t.Run("Success Case", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "charts")
		store, err := NewFileChartStore(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, store.basePath)
		_, statErr := os.Stat(dir)
		assert.NoError(t, statErr, "Base directory should exist")
	})
}

func TestSavedCharts(t *testing.T) {
	ctx := context.Background()

	t.Run("Save And Get", func(t *testing.T) {
		svc := newTestSavedChartService(t)
		saved, err := svc.Save(ctx, "", revenueSpec())
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "line of Month", saved.Name)
		assert.Equal(t, chartspec.CurrentVersion, saved.Spec.Version)

		got, err := svc.Get(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.Name, got.Name)
		assert.Equal(t, saved.Spec.XAxis, got.Spec.XAxis)
		assert.Equal(t, saved.Spec.YColumns(), got.Spec.YColumns())
		assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("Invalid Spec Is Not Stored", func(t *testing.T) {
		svc := newTestSavedChartService(t)
		spec := revenueSpec()
		spec.XAxis.Column = ""
		_, err := svc.Save(ctx, "broken", spec)
		assert.ErrorIs(t, err, chartspec.ErrInvalidSpec)
		list, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("List Newest First", func(t *testing.T) {
		svc := newTestSavedChartService(t)
		first, err := svc.Save(ctx, "first", revenueSpec())
		require.NoError(t, err)
		second, err := svc.Save(ctx, "second", revenueSpec())
		require.NoError(t, err)

		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)
	})

	t.Run("List Skips Unreadable Files", func(t *testing.T) {
		svc := newTestSavedChartService(t)
		_, err := svc.Save(ctx, "ok", revenueSpec())
		require.NoError(t, err)
		store := svc.Store.(*FileChartStore)
		require.NoError(t, os.WriteFile(filepath.Join(store.basePath, "garbage.json"), []byte("{not json"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(store.basePath, "README.txt"), []byte("hi"), 0644))

		list, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		svc := newTestSavedChartService(t)
		saved, err := svc.Save(ctx, "gone", revenueSpec())
		require.NoError(t, err)
		require.NoError(t, svc.Delete(ctx, saved.ID))
		_, err = svc.Get(ctx, saved.ID)
		assert.ErrorIs(t, err, ErrNoSuchEntity)
		assert.ErrorIs(t, svc.Delete(ctx, saved.ID), ErrNoSuchEntity)
	})

	t.Run("Path Traversal Ids", func(t *testing.T) {
		store := newTestChartStore(t)
		_, err := store.Get(ctx, "../etc/passwd")
		assert.ErrorIs(t, err, ErrNoSuchEntity)
		err = store.Put(ctx, &SavedChart{ID: "a/b", Spec: revenueSpec()})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestChartEntityRoundTrip(t *testing.T) {
	c := &SavedChart{ID: "c1", Name: "Revenue", Spec: revenueSpec().Normalize(), CreatedAt: fixedNow(), UpdatedAt: fixedNow()}
	e, err := toChartEntity(c)
	require.NoError(t, err)
	assert.Equal(t, "ds1", e.DatasetID)
	assert.Equal(t, "line", e.ChartType)

	back, err := fromChartEntity("c1", e)
	require.NoError(t, err)
	assert.Equal(t, c.Spec.XAxis, back.Spec.XAxis)
	assert.Equal(t, c.Spec.DatasetRef, back.Spec.DatasetRef)
	assert.Equal(t, "Revenue", back.Name)

	_, err = fromChartEntity("c2", &chartEntity{SpecJSON: `{"chart_type": "nope"}`})
	assert.ErrorIs(t, err, chartspec.ErrInvalidSpec)
}
