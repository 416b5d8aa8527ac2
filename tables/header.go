package tables

import (
	"fmt"
	"math"
	"strings"
)

// Header row scoring weights. MaxHeaderScore is their sum.
const (
	weightStringContent   = 2.0
	weightUniqueness      = 2.0
	weightNonEmpty        = 1.5
	weightDataConsistency = 3.0
	weightPosition        = 0.5
	weightKeywords        = 1.5
	weightLength          = 1.0

	MaxHeaderScore = 11.5

	// HeaderConfidenceThreshold is the confidence at which uploads apply a
	// detected header automatically.
	HeaderConfidenceThreshold = 0.7
)

var headerKeywords = []string{
	"id", "name", "date", "time", "type", "category", "status",
	"total", "amount", "price", "cost", "quantity", "qty", "count",
	"email", "phone", "address", "city", "state", "country", "zip",
	"description", "desc", "notes", "comment", "comments",
	"first", "last", "full", "user", "customer", "client", "vendor",
	"product", "item", "sku", "code", "number", "num", "no",
	"created", "updated", "modified", "deleted", "active",
	"start", "end", "from", "to", "value", "rate", "percent",
	"year", "month", "day", "week", "quarter", "period",
	"sales", "revenue", "profit", "margin", "budget", "actual",
	"region", "territory", "department", "division", "unit",
	"order", "invoice", "transaction", "payment", "balance",
	"age", "gender", "title", "role", "position", "level",
	"source", "channel", "medium", "campaign", "ref", "reference",
}

// HeaderOptions tunes DetectHeader.
type HeaderOptions struct {
	MaxSearchRows    int
	MinDataRowsBelow int
}

func DefaultHeaderOptions() HeaderOptions {
	return HeaderOptions{MaxSearchRows: 10, MinDataRowsBelow: 3}
}

// RowScore is the score of one candidate row.
type RowScore struct {
	Row   int     `json:"row"`
	Score float64 `json:"score"`
}

// HeaderDetection is the outcome of DetectHeader.
type HeaderDetection struct {
	HeaderRow    int                `json:"header_row"`
	Confidence   float64            `json:"confidence"`
	TotalScore   float64            `json:"total_score"`
	FactorScores map[string]float64 `json:"factor_scores"`
	RowScores    []RowScore         `json:"row_scores"`
}

// Reliable reports whether the detection should be applied.
func (h HeaderDetection) Reliable() bool {
	return h.Confidence >= HeaderConfidenceThreshold
}

// DetectHeader scores the first rows of a raw grid and returns the most
// header-like one. Ties go to the earliest row.
func DetectHeader(grid [][]string, opts HeaderOptions) HeaderDetection {
	if opts.MaxSearchRows <= 0 {
		opts = DefaultHeaderOptions()
	}
	width := gridWidth(grid)
	if len(grid) == 0 || width == 0 {
		return HeaderDetection{FactorScores: map[string]float64{}}
	}

	limit := min(opts.MaxSearchRows, len(grid))
	best := -1
	var bestScore float64
	var bestFactors map[string]float64
	scores := make([]RowScore, 0, limit)
	for r := 0; r < limit; r++ {
		score, factors := scoreRow(grid, width, r, limit, opts.MinDataRowsBelow)
		scores = append(scores, RowScore{Row: r, Score: score})
		if best < 0 || score > bestScore {
			best, bestScore, bestFactors = r, score, factors
		}
	}

	for k, v := range bestFactors {
		bestFactors[k] = round3(v)
	}
	return HeaderDetection{
		HeaderRow:    best,
		Confidence:   round3(math.Min(bestScore/MaxHeaderScore, 1)),
		TotalScore:   round3(bestScore),
		FactorScores: bestFactors,
		RowScores:    scores,
	}
}

func scoreRow(grid [][]string, width, r, searchRows, minBelow int) (float64, map[string]float64) {
	row := padRow(grid[r], width)
	n := float64(width)
	factors := map[string]float64{}

	var textCells, nonEmpty, keywordCells int
	var lengthSum int
	seen := map[string]bool{}
	for _, cell := range row {
		v := strings.TrimSpace(cell)
		if v == "" {
			continue
		}
		nonEmpty++
		lengthSum += len([]rune(v))
		seen[strings.ToLower(v)] = true
		if _, isNum := ParseNumber(v); isNum {
			continue
		}
		textCells++
		lower := strings.ToLower(v)
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				keywordCells++
				break
			}
		}
	}

	factors["string_content"] = float64(textCells) / n * weightStringContent
	factors["uniqueness"] = float64(len(seen)) / n * weightUniqueness
	factors["non_empty"] = float64(nonEmpty) / n * weightNonEmpty
	if r < len(grid)-minBelow {
		factors["data_consistency"] = consistencyBelow(grid, width, r, minBelow) * weightDataConsistency
	} else {
		factors["data_consistency"] = 0.3 * weightDataConsistency
	}
	factors["position"] = float64(searchRows-r) / float64(searchRows) * weightPosition
	factors["keywords"] = float64(keywordCells) / n * weightKeywords
	if nonEmpty > 0 {
		factors["length"] = lengthScore(float64(lengthSum)/float64(nonEmpty)) * weightLength
	} else {
		factors["length"] = 0
	}

	var total float64
	for _, v := range factors {
		total += v
	}
	return total, factors
}

// consistencyBelow measures how uniformly typed each column is in the few
// rows under a candidate header.
func consistencyBelow(grid [][]string, width, r, minRows int) float64 {
	start := r + 1
	end := min(start+minRows+2, len(grid))
	if end-start < minRows {
		return 0.5
	}
	var consistent float64
	for c := 0; c < width; c++ {
		var numeric, text int
		for _, row := range grid[start:end] {
			if c >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[c])
			if v == "" {
				continue
			}
			if _, ok := ParseNumber(v); ok {
				numeric++
			} else {
				text++
			}
		}
		total := numeric + text
		if total == 0 {
			consistent += 0.5
			continue
		}
		ratio := float64(max(numeric, text)) / float64(total)
		switch {
		case ratio >= 0.7:
			consistent++
		case ratio >= 0.5:
			consistent += 0.5
		}
	}
	return consistent / float64(width)
}

func lengthScore(avg float64) float64 {
	switch {
	case avg >= 3 && avg <= 40:
		return 1
	case avg < 3:
		return avg / 3
	default:
		return math.Max(0, 1-(avg-40)/60)
	}
}

// ApplyHeader turns grid[row] into column names and returns the names and
// the data rows beneath it. Blank names become Column_N and duplicates get
// a numeric suffix.
func ApplyHeader(grid [][]string, row int) ([]string, [][]string, error) {
	if row < 0 || row >= len(grid) {
		return nil, nil, fmt.Errorf("header row %d out of range for %d rows", row, len(grid))
	}
	width := gridWidth(grid)
	header := padRow(grid[row], width)
	names := make([]string, width)
	for i, v := range header {
		v = strings.TrimSpace(v)
		if v == "" {
			v = fmt.Sprintf("Column_%d", i+1)
		}
		names[i] = v
	}
	return UniqueNames(names), grid[row+1:], nil
}

// UniqueNames suffixes repeated names with _1, _2, ... in order of
// appearance.
func UniqueNames(names []string) []string {
	seen := map[string]int{}
	used := map[string]bool{}
	out := make([]string, len(names))
	for i, n := range names {
		name := n
		for used[name] {
			seen[n]++
			name = fmt.Sprintf("%s_%d", n, seen[n])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// TableFromGrid detects the header in a raw grid, applies it when the
// detection is reliable and below the first row, and infers column types.
func TableFromGrid(grid [][]string, opts HeaderOptions) (*Table, HeaderDetection, error) {
	grid = trimEmptyRows(grid)
	if len(grid) == 0 {
		return nil, HeaderDetection{}, ErrNoData
	}
	det := DetectHeader(grid, opts)
	headerRow := 0
	if det.Reliable() && det.HeaderRow > 0 {
		headerRow = det.HeaderRow
	}
	names, rows, err := ApplyHeader(grid, headerRow)
	if err != nil {
		return nil, det, err
	}
	return FromRecords(names, rows), det, nil
}

func trimEmptyRows(grid [][]string) [][]string {
	out := make([][]string, 0, len(grid))
	for _, row := range grid {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

func gridWidth(grid [][]string) int {
	w := 0
	for _, row := range grid {
		w = max(w, len(row))
	}
	return w
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
