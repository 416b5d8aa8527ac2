package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/panyam/adaptiva/charts"
	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/tables"
)

// RenderResult is a rendered figure plus when and from which spec version.
type RenderResult struct {
	Figure      *charts.Figure `json:"figure"`
	RenderedAt  time.Time      `json:"rendered_at"`
	SpecVersion string         `json:"spec_version"`
}

type SuggestRequest struct {
	DatasetRef   tables.DatasetRef `json:"dataset_ref"`
	Instructions string            `json:"user_instructions,omitempty"`
	// Render also renders the suggested spec.
	Render bool `json:"render,omitempty"`
}

type SuggestResult struct {
	*Suggestion
	Render *RenderResult `json:"render,omitempty"`
}

// ChartService is the caller-facing surface over validation, rendering and
// suggestions.
type ChartService struct {
	Renderer  *charts.Renderer
	Suggester *Suggester
	now       func() time.Time
}

func NewChartService(r *charts.Renderer, s *Suggester) *ChartService {
	return &ChartService{Renderer: r, Suggester: s, now: time.Now}
}

func (c *ChartService) Validate(ctx context.Context, spec chartspec.ChartSpec) charts.ValidationResult {
	return c.Renderer.Validate(ctx, spec)
}

func (c *ChartService) Render(ctx context.Context, spec chartspec.ChartSpec) (*RenderResult, error) {
	fig, err := c.Renderer.Render(ctx, spec)
	if err != nil {
		return nil, err
	}
	version := spec.Version
	if version == "" {
		version = chartspec.CurrentVersion
	}
	return &RenderResult{Figure: fig, RenderedAt: c.now().UTC(), SpecVersion: version}, nil
}

// Suggest returns a validated suggestion. With req.Render set, the spec is
// rendered through Render exactly as a manual spec would be.
func (c *ChartService) Suggest(ctx context.Context, req SuggestRequest) (*SuggestResult, error) {
	sug, err := c.Suggester.Suggest(ctx, req.DatasetRef, req.Instructions)
	if err != nil {
		return nil, err
	}
	out := &SuggestResult{Suggestion: sug}
	if req.Render {
		out.Render, err = c.Render(ctx, sug.Spec)
		if err != nil {
			slog.Warn("Suggested spec failed to render", "ref", req.DatasetRef.String(), "error", err)
			return nil, err
		}
	}
	return out, nil
}
