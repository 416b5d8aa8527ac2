package charts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gfn "github.com/panyam/goutils/fn"

	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/tables"
)

// ErrSpecRejected is matched by every *RenderError.
var ErrSpecRejected = errors.New("chart spec rejected by validation")

// RenderError carries the validation errors that stopped a render.
type RenderError struct {
	Issues []Issue
}

func (e *RenderError) Error() string {
	msgs := gfn.Map(e.Issues, func(i Issue) string { return i.Field + ": " + i.Message })
	return fmt.Sprintf("chart spec invalid: %s", strings.Join(msgs, "; "))
}

func (e *RenderError) Unwrap() error { return ErrSpecRejected }

// Renderer is the single path from a ChartSpec to a Figure. Manual and
// suggested specs both go through Render.
type Renderer struct {
	Provider tables.Provider
	Limits   tables.Limits
}

func NewRenderer(p tables.Provider, limits tables.Limits) *Renderer {
	return &Renderer{Provider: p, Limits: limits}
}

// resolve fetches the table and enforces size limits.
func (r *Renderer) resolve(ctx context.Context, spec chartspec.ChartSpec) (*tables.Table, error) {
	t, err := r.Provider.Resolve(ctx, spec.DatasetRef)
	if err != nil {
		return nil, err
	}
	if err := r.Limits.Check(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate resolves the spec's table and validates against it. Resolution
// failures are reported as issues rather than errors.
func (r *Renderer) Validate(ctx context.Context, spec chartspec.ChartSpec) ValidationResult {
	spec = spec.Normalize()
	t, err := r.resolve(ctx, spec)
	switch {
	case errors.Is(err, tables.ErrDatasetNotFound):
		return Failed("dataset_ref", CodeDatasetNotFound, err.Error())
	case errors.Is(err, tables.ErrTableTooLarge):
		return Failed("dataset_ref", CodeTableTooLarge, err.Error())
	case err != nil:
		return Failed("dataset_ref", CodeDatasetNotFound, err.Error())
	}
	return Validate(spec, t)
}

// Render resolves, validates, filters, aggregates and builds, in that order.
// It fails with an error matching tables.ErrDatasetNotFound,
// tables.ErrTableTooLarge or a *RenderError.
func (r *Renderer) Render(ctx context.Context, spec chartspec.ChartSpec) (*Figure, error) {
	spec = spec.Normalize()
	t, err := r.resolve(ctx, spec)
	if err != nil {
		slog.Warn("Render could not resolve dataset", "ref", spec.DatasetRef.String(), "error", err)
		return nil, err
	}

	res := Validate(spec, t)
	if !res.Valid {
		slog.Info("Render rejected spec", "ref", spec.DatasetRef.String(), "errors", len(res.Errors))
		return nil, &RenderError{Issues: res.Errors}
	}

	filtered := ApplyFilters(t, spec)
	prepared := filtered
	if spec.ChartType != chartspec.Histogram {
		prepared = ApplyAggregation(filtered, spec)
	}
	fig := BuildFigure(prepared, filtered, spec)
	slog.Debug("Rendered figure", "ref", spec.DatasetRef.String(), "chart_type", spec.ChartType,
		"rows", t.Len(), "filtered", filtered.Len(), "traces", len(fig.Traces))
	return fig, nil
}
