package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	gfn "github.com/panyam/goutils/fn"

	"github.com/panyam/adaptiva/tables"
)

const (
	DefaultPreviewRows = 100
	MaxPreviewRows     = 1000
)

// SheetInfo describes one sheet of an upload and how its header was found.
type SheetInfo struct {
	Name   string                  `json:"name"`
	Rows   int                     `json:"rows"`
	Header *tables.HeaderDetection `json:"header_detection,omitempty"`
}

type UploadResult struct {
	tables.Dataset
	ColumnNames []string    `json:"column_names"`
	SheetInfo   []SheetInfo `json:"sheet_info"`
	Message     string      `json:"message"`
}

type Preview struct {
	DatasetID   string              `json:"dataset_id"`
	Sheet       string              `json:"sheet,omitempty"`
	Headers     []string            `json:"headers"`
	Data        []map[string]string `json:"data"`
	TotalRows   int                 `json:"total_rows"`
	PreviewRows int                 `json:"preview_rows"`
}

// DatasetService ingests uploads into a MemoryStore and serves read-only
// views of the stored tables.
type DatasetService struct {
	Store          *tables.MemoryStore
	Limits         tables.Limits
	MaxUploadBytes int64
	ReadOptions    tables.ReadOptions
}

func NewDatasetService(store *tables.MemoryStore, limits tables.Limits, maxUploadBytes int64) *DatasetService {
	return &DatasetService{
		Store:          store,
		Limits:         limits,
		MaxUploadBytes: maxUploadBytes,
		ReadOptions:    tables.ReadOptions{Header: tables.DefaultHeaderOptions()},
	}
}

// Upload parses every sheet of the file and stores them as one dataset.
func (s *DatasetService) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	src := r
	if s.MaxUploadBytes > 0 {
		src = io.LimitReader(r, s.MaxUploadBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("reading upload %s: %w", filename, err)
	}
	if s.MaxUploadBytes > 0 && int64(len(data)) > s.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrUploadTooLarge, filename, s.MaxUploadBytes)
	}

	res, err := tables.Read(ctx, filename, bytes.NewReader(data), s.ReadOptions)
	if err != nil {
		slog.Warn("Upload could not be parsed", "filename", filename, "error", err)
		return nil, err
	}
	for _, sh := range res.Sheets {
		if err := s.Limits.Check(sh.Table); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sh.Name, err)
		}
	}
	meta, err := s.Store.Put(filename, res.Sheets)
	if err != nil {
		return nil, err
	}

	out := &UploadResult{
		Dataset:     meta,
		ColumnNames: gfn.Map(meta.Columns, func(c tables.Column) string { return c.Name }),
	}
	for _, sh := range res.Sheets {
		info := SheetInfo{Name: sh.Name, Rows: sh.Table.Len()}
		if det, ok := res.Detections[sh.Name]; ok {
			info.Header = &det
		}
		out.SheetInfo = append(out.SheetInfo, info)
	}
	out.Message = fmt.Sprintf("Loaded %d rows and %d columns from %s", meta.Rows, len(meta.Columns), filename)
	if len(res.Sheets) > 1 {
		out.Message += fmt.Sprintf(" (%d sheets)", len(res.Sheets))
	}
	return out, nil
}

func (s *DatasetService) Get(ctx context.Context, id string) (tables.Dataset, error) {
	return s.Store.Dataset(id)
}

func (s *DatasetService) List(ctx context.Context) []tables.Dataset {
	return s.Store.List()
}

func (s *DatasetService) Delete(ctx context.Context, id string) error {
	return s.Store.Delete(id)
}

// Preview returns up to maxRows rows as display strings. maxRows of zero
// means DefaultPreviewRows; anything outside 1..MaxPreviewRows is rejected.
func (s *DatasetService) Preview(ctx context.Context, ref tables.DatasetRef, maxRows int) (*Preview, error) {
	if maxRows == 0 {
		maxRows = DefaultPreviewRows
	}
	if maxRows < 1 || maxRows > MaxPreviewRows {
		return nil, fmt.Errorf("%w: max_rows must be between 1 and %d", ErrInvalidRequest, MaxPreviewRows)
	}
	t, err := s.Store.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	head := t.Head(maxRows)
	out := &Preview{
		DatasetID:   ref.DatasetID,
		Sheet:       ref.Sheet,
		Headers:     t.ColumnNames(),
		Data:        make([]map[string]string, head.Len()),
		TotalRows:   t.Len(),
		PreviewRows: head.Len(),
	}
	for r := range out.Data {
		row := make(map[string]string, head.Width())
		for _, name := range out.Headers {
			row[name] = tables.FormatValue(head.Cell(r, name))
		}
		out.Data[r] = row
	}
	return out, nil
}
