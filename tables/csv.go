package tables

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ReadOptions controls how uploaded files become tables.
type ReadOptions struct {
	// Header tunes header-row detection. Detection is skipped when
	// NoHeaderDetection is set and the first row is used as the header.
	Header            HeaderOptions
	NoHeaderDetection bool
}

// Result pairs the sheets read from a file with the header detection made
// for each of them.
type Result struct {
	Sheets     []Sheet
	Detections map[string]HeaderDetection
}

// DetectSeparator picks the most frequent of , ; tab | in the first line.
func DetectSeparator(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		return ','
	}
	first := sc.Text()
	best, bestCount := ',', 0
	for _, sep := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(first, string(sep)); n > bestCount {
			best, bestCount = sep, n
		}
	}
	return best
}

// ReadCSV reads a delimited text file as a single sheet named "Sheet1".
func ReadCSV(r io.Reader, opts ReadOptions) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &IngestError{Format: "csv", Err: err}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = DetectSeparator(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	grid, err := cr.ReadAll()
	if err != nil {
		return nil, &IngestError{Format: "csv", Err: err}
	}

	t, det, err := gridToTable(grid, opts)
	if err != nil {
		return nil, &IngestError{Format: "csv", Err: err}
	}
	return &Result{
		Sheets:     []Sheet{{Name: "Sheet1", Table: t}},
		Detections: map[string]HeaderDetection{"Sheet1": det},
	}, nil
}

func gridToTable(grid [][]string, opts ReadOptions) (*Table, HeaderDetection, error) {
	if !opts.NoHeaderDetection {
		return TableFromGrid(grid, opts.Header)
	}
	grid = trimEmptyRows(grid)
	if len(grid) == 0 {
		return nil, HeaderDetection{}, ErrNoData
	}
	names, rows, err := ApplyHeader(grid, 0)
	if err != nil {
		return nil, HeaderDetection{}, fmt.Errorf("applying header: %w", err)
	}
	return FromRecords(names, rows), HeaderDetection{}, nil
}
