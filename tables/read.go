package tables

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Read parses an uploaded file, choosing the reader from its extension.
func Read(ctx context.Context, filename string, r io.Reader, opts ReadOptions) (*Result, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv", ".tsv", ".txt":
		return ReadCSV(r, opts)
	case ".xlsx", ".xlsm":
		return ReadExcel(r, opts)
	case ".parquet":
		return ReadParquet(ctx, r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
