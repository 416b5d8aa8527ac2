package tables

import (
	"errors"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// ReadExcel reads every non-empty worksheet of an .xlsx workbook, in
// workbook order.
func ReadExcel(r io.Reader, opts ReadOptions) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &IngestError{Format: "xlsx", Err: err}
	}
	defer f.Close()

	res := &Result{Detections: map[string]HeaderDetection{}}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, &IngestError{Format: "xlsx", Sheet: name, Err: err}
		}
		t, det, err := gridToTable(rows, opts)
		if errors.Is(err, ErrNoData) {
			slog.Debug("Skipping empty sheet", "sheet", name)
			continue
		} else if err != nil {
			return nil, &IngestError{Format: "xlsx", Sheet: name, Err: err}
		}
		res.Sheets = append(res.Sheets, Sheet{Name: name, Table: t})
		res.Detections[name] = det
	}
	if len(res.Sheets) == 0 {
		return nil, &IngestError{Format: "xlsx", Err: ErrNoData}
	}
	return res, nil
}
