package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gfn "github.com/panyam/goutils/fn"
	"golang.org/x/text/cases"

	"github.com/panyam/adaptiva/charts"
	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/services/llm"
	"github.com/panyam/adaptiva/tables"
)

// Alternative is another chart type the model considered.
type Alternative struct {
	ChartType string `json:"chart_type"`
	Reason    string `json:"reason"`
}

// Suggestion is a validated spec proposed by the model. Spec always carries
// the caller's dataset reference.
type Suggestion struct {
	Spec         chartspec.ChartSpec `json:"suggested_spec"`
	Explanation  string              `json:"explanation"`
	Confidence   float64             `json:"confidence"`
	Alternatives []Alternative       `json:"alternatives"`
	Warnings     []charts.Issue      `json:"warnings"`
	Usage        llm.Usage           `json:"usage"`
}

type SuggestOptions struct {
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

func DefaultSuggestOptions() SuggestOptions {
	return SuggestOptions{Timeout: 30 * time.Second, Temperature: 0.3, MaxTokens: 1500}
}

// Suggester asks an LLM for a ChartSpec and sanitizes the answer. It never
// renders; callers pass the spec to the same render path as manual specs.
type Suggester struct {
	Provider tables.Provider
	Limits   tables.Limits
	LLM      llm.LLMClient
	Options  SuggestOptions
}

func NewSuggester(p tables.Provider, limits tables.Limits, client llm.LLMClient, opts SuggestOptions) *Suggester {
	if client == nil {
		slog.Warn("NewSuggester created with nil LLMClient; suggestions will fail with api_key_missing")
	}
	return &Suggester{Provider: p, Limits: limits, LLM: client, Options: opts}
}

const systemPrompt = `You design charts for tabular data. Reply with one JSON object describing a chart.

Rules:
1. Use column names exactly as listed under "Available columns". Never use positions or indexes.
2. chart_type is one of: bar, line, scatter, histogram, box, pie, area, heatmap.
3. bar, line, scatter, area and heatmap need y_axis.columns.
4. Prefer line or area for trends over time, bar for comparing categories, scatter for two numeric measures, pie for a few parts of a whole, histogram or box for distributions.
5. Add "explanation" (one or two sentences), "confidence" between 0 and 1, and up to two "alternatives" as {"chart_type", "reason"}.
Return JSON only.`

const specShape = `{
  "chart_type": "bar",
  "x_axis": {"column": "<column>", "label": "<optional>"},
  "y_axis": {"columns": ["<column>"], "label": "<optional>"},
  "series": {"group_column": "<optional column>", "size_column": "<optional column>"},
  "aggregation": {"method": "none|sum|mean|count|median|min|max", "group_by": ["<column>"]},
  "filters": {"conditions": [{"column": "<column>", "operator": "eq", "value": "<value>"}], "logic": "and|or"},
  "visual": {"title": "<title>", "stacking": "grouped|stacked|percent"},
  "styling": {"color_palette": "default|vibrant|pastel|monochrome|colorblind_safe", "theme": "light|dark"},
  "explanation": "<why>",
  "confidence": 0.8,
  "alternatives": [{"chart_type": "line", "reason": "<why>"}]
}`

// buildPrompt renders the schema summary and the caller's instructions.
func buildPrompt(schema SchemaSummary, instructions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Data\nRows: %d\n", schema.RowCount)
	names := gfn.Map(schema.Columns, func(c ColumnSummary) string { return fmt.Sprintf("%q", c.Name) })
	fmt.Fprintf(&b, "Available columns: [%s]\n\n", strings.Join(names, ", "))
	for _, c := range schema.Columns {
		fmt.Fprintf(&b, "- %q (%s, %d nulls, %d distinct)", c.Name, c.Type, c.NullCount, c.Cardinality)
		if c.Min != nil && c.Max != nil {
			fmt.Fprintf(&b, " range [%g, %g]", *c.Min, *c.Max)
		}
		if len(c.UniqueValues) > 0 {
			fmt.Fprintf(&b, " values %q", c.UniqueValues)
		} else if len(c.SampleValues) > 0 {
			fmt.Fprintf(&b, " e.g. %q", c.SampleValues)
		}
		b.WriteString("\n")
	}
	if strings.TrimSpace(instructions) != "" {
		fmt.Fprintf(&b, "\n## Request\n%s\n", strings.TrimSpace(instructions))
	} else {
		b.WriteString("\n## Request\nSuggest the most informative chart for this data.\n")
	}
	fmt.Fprintf(&b, "\n## Response shape\n%s\n", specShape)
	return b.String()
}

// Suggest resolves ref, asks the model for a spec and returns it only if it
// parses and every referenced column exists. All failures are
// *SuggestionError.
func (s *Suggester) Suggest(ctx context.Context, ref tables.DatasetRef, instructions string) (*Suggestion, error) {
	t, err := s.Provider.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, tables.ErrDatasetNotFound) {
			return nil, suggestionErr(SuggestDatasetNotFound, err, map[string]any{"dataset_ref": ref}, "dataset %s not found", ref)
		}
		return nil, suggestionErr(SuggestDatasetNotFound, err, nil, "could not load dataset %s: %v", ref, err)
	}
	if err := s.Limits.Check(t); err != nil {
		return nil, suggestionErr(SuggestTableTooLarge, err, nil, "%v", err)
	}
	if s.LLM == nil {
		return nil, suggestionErr(SuggestAPIKeyMissing, llm.ErrAPIKeyMissing, nil, "LLM client is not configured")
	}

	req := llm.Request{
		System:      systemPrompt,
		User:        buildPrompt(SummarizeSchema(t), instructions),
		JSONMode:    true,
		Temperature: s.Options.Temperature,
		MaxTokens:   s.Options.MaxTokens,
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	started := time.Now()
	resp, err := s.LLM.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			slog.Warn("LLM call timed out", "ref", ref.String(), "timeout", s.timeout())
			return nil, suggestionErr(SuggestLLMTimeout, err, map[string]any{"timeout_seconds": s.timeout().Seconds()},
				"LLM did not answer within %s", s.timeout())
		}
		if errors.Is(err, llm.ErrAPIKeyMissing) {
			return nil, suggestionErr(SuggestAPIKeyMissing, err, nil, "%v", err)
		}
		slog.Error("LLM call failed", "ref", ref.String(), "error", err)
		return nil, suggestionErr(SuggestLLMAPIError, err, map[string]any{"error": err.Error()}, "LLM call failed: %v", err)
	}
	slog.Info("LLM suggestion received", "ref", ref.String(), "tokens", resp.Usage.TotalTokens, "elapsed", time.Since(started))

	sug, err := ParseSuggestion(resp.Text, ref, t)
	if err != nil {
		return nil, err
	}
	sug.Usage = resp.Usage
	return sug, nil
}

func (s *Suggester) timeout() time.Duration {
	if s.Options.Timeout > 0 {
		return s.Options.Timeout
	}
	return DefaultSuggestOptions().Timeout
}

// Top-level keys a ChartSpec accepts. Anything else the model adds is dropped
// before strict decoding.
var specKeys = map[string]bool{
	"chart_type": true, "x_axis": true, "y_axis": true, "series": true,
	"aggregation": true, "filters": true, "visual": true, "legend": true,
	"interaction": true, "styling": true, "version": true,
}

// ParseSuggestion turns raw model output into a Suggestion for table t. The
// dataset reference in the output is always replaced by ref.
func ParseSuggestion(raw string, ref tables.DatasetRef, t *tables.Table) (*Suggestion, error) {
	text := stripFences(raw)
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		if err == nil {
			err = errors.New("response is not a JSON object")
		}
		return nil, suggestionErr(SuggestJSONParseError, err, map[string]any{"raw_response": truncate(raw, 500)},
			"could not parse LLM response as JSON: %v", err)
	}

	sug := &Suggestion{Confidence: 0.5, Alternatives: []Alternative{}}
	if v, ok := obj["explanation"].(string); ok {
		sug.Explanation = v
	}
	if v, ok := obj["confidence"].(float64); ok {
		sug.Confidence = min(max(v, 0), 1)
	}
	if v, ok := obj["alternatives"]; ok {
		if data, err := json.Marshal(v); err == nil {
			var alts []Alternative
			if json.Unmarshal(data, &alts) == nil && alts != nil {
				sug.Alternatives = alts
			}
		}
	}

	clean := map[string]any{}
	for k, v := range obj {
		if specKeys[k] {
			clean[k] = v
		}
	}
	clean["dataset_ref"] = ref
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, suggestionErr(SuggestJSONParseError, err, nil, "could not re-encode LLM response: %v", err)
	}
	spec, err := chartspec.Parse(data)
	if err != nil {
		var se *chartspec.StructuralError
		details := map[string]any{}
		if errors.As(err, &se) {
			details["problems"] = se.Problems
		}
		return nil, suggestionErr(SuggestInvalidSpec, err, details, "LLM response is not a valid chart spec: %v", err)
	}
	spec = repairColumns(spec, t.ColumnNames())

	res := charts.Validate(spec, t)
	var missing []string
	var other []charts.Issue
	for _, is := range res.Errors {
		if is.Code == charts.CodeColumnNotFound {
			missing = append(missing, is.Field)
		} else {
			other = append(other, is)
		}
	}
	if len(missing) > 0 {
		return nil, suggestionErr(SuggestInvalidColumns, nil,
			map[string]any{"invalid_columns": missing, "valid_columns": t.ColumnNames()},
			"LLM referenced unknown columns at %s; valid columns are %s",
			strings.Join(missing, ", "), strings.Join(t.ColumnNames(), ", "))
	}
	if len(other) > 0 {
		return nil, suggestionErr(SuggestInvalidSpec, nil, map[string]any{"errors": other},
			"LLM spec failed validation: %s", other[0].Message)
	}

	sug.Spec = spec
	sug.Warnings = res.Warnings
	return sug, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// repairColumns maps names that match exactly one real column after trimming
// and case folding onto that column. Other names are left for validation to
// report.
func repairColumns(spec chartspec.ChartSpec, columns []string) chartspec.ChartSpec {
	fold := cases.Fold()
	key := func(s string) string { return fold.String(strings.TrimSpace(s)) }
	exact := map[string]bool{}
	byKey := map[string][]string{}
	for _, c := range columns {
		exact[c] = true
		byKey[key(c)] = append(byKey[key(c)], c)
	}
	fix := func(name string) string {
		if name == "" || exact[name] {
			return name
		}
		if m := byKey[key(name)]; len(m) == 1 {
			return m[0]
		}
		return name
	}

	out := spec.Clone()
	out.XAxis.Column = fix(out.XAxis.Column)
	if out.YAxis != nil {
		for i, c := range out.YAxis.Columns {
			out.YAxis.Columns[i] = fix(c)
		}
	}
	if out.Series != nil {
		out.Series.GroupColumn = fix(out.Series.GroupColumn)
		out.Series.SizeColumn = fix(out.Series.SizeColumn)
	}
	for i, c := range out.Aggregation.GroupBy {
		out.Aggregation.GroupBy[i] = fix(c)
	}
	for i, c := range out.Filters.Conditions {
		out.Filters.Conditions[i].Column = fix(c.Column)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
