package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/adaptiva/charts"
	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/services/llm"
	"github.com/panyam/adaptiva/tables"
)

func newTestChartService(t *testing.T, client llm.LLMClient) (*ChartService, tables.DatasetRef) {
	t.Helper()
	store := tables.NewMemoryStore()
	ref := putTable(t, store, newSalesTable(t))
	svc := NewChartService(
		charts.NewRenderer(store, tables.Limits{}),
		NewSuggester(store, tables.Limits{}, client, DefaultSuggestOptions()),
	)
	svc.now = fixedNow
	return svc, ref
}

func TestChartServiceRender(t *testing.T) {
	ctx := context.Background()

	t.Run("Success Case", func(t *testing.T) {
		svc, ref := newTestChartService(t, nil)
		spec := chartspec.New(ref, chartspec.Bar, "Month", "Revenue").WithAggregation(chartspec.AggSum, "Month")
		res, err := svc.Render(ctx, spec)
		require.NoError(t, err)
		assert.Equal(t, fixedNow(), res.RenderedAt)
		assert.Equal(t, chartspec.CurrentVersion, res.SpecVersion)
		require.Len(t, res.Figure.Traces, 1)
		assert.Equal(t, []any{"Feb", "Jan", "Mar"}, res.Figure.Traces[0].X)
		assert.Equal(t, []any{210.0, 180.0, 95.0}, res.Figure.Traces[0].Y)
	})

	t.Run("Rejected Spec", func(t *testing.T) {
		svc, ref := newTestChartService(t, nil)
		_, err := svc.Render(ctx, chartspec.New(ref, chartspec.Bar, "Quarter", "Revenue"))
		var re *charts.RenderError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, "x_axis.column", re.Issues[0].Field)
	})

	t.Run("Validate Reports Missing Dataset", func(t *testing.T) {
		svc, _ := newTestChartService(t, nil)
		res := svc.Validate(ctx, chartspec.New(tables.DatasetRef{DatasetID: "nope"}, chartspec.Pie, "Region"))
		assert.False(t, res.Valid)
		assert.Equal(t, charts.CodeDatasetNotFound, res.Errors[0].Code)
	})
}

func TestChartServiceSuggest(t *testing.T) {
	ctx := context.Background()
	answer := `{"chart_type": "pie", "x_axis": {"column": "Region"}, "explanation": "share by region", "confidence": 0.9}`

	t.Run("Without Render", func(t *testing.T) {
		svc, ref := newTestChartService(t, mockWithText(answer))
		res, err := svc.Suggest(ctx, SuggestRequest{DatasetRef: ref})
		require.NoError(t, err)
		assert.Equal(t, chartspec.Pie, res.Spec.ChartType)
		assert.Nil(t, res.Render)
	})

	t.Run("With Render", func(t *testing.T) {
		svc, ref := newTestChartService(t, mockWithText(answer))
		res, err := svc.Suggest(ctx, SuggestRequest{DatasetRef: ref, Instructions: "share of rows", Render: true})
		require.NoError(t, err)
		require.NotNil(t, res.Render)

		direct, err := svc.Render(ctx, res.Spec)
		require.NoError(t, err)
		assert.Equal(t, direct.Figure, res.Render.Figure, "suggested specs take the manual render path")
	})

	t.Run("Suggestion Error Passes Through", func(t *testing.T) {
		svc, ref := newTestChartService(t, mockWithText("no idea"))
		_, err := svc.Suggest(ctx, SuggestRequest{DatasetRef: ref, Render: true})
		var se *SuggestionError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, SuggestJSONParseError, se.Code)
	})
}
