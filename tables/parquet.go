package tables

import (
	"bytes"
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ReadParquet reads a parquet file into a single sheet named "Sheet1".
// Arrow column types map onto column types directly, so header detection
// does not apply.
func ReadParquet(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &IngestError{Format: "parquet", Err: err}
	}
	pf, err := file.NewParquetReader(bytes.NewReader(data), file.WithReadProps(&parquet.ReaderProperties{}))
	if err != nil {
		return nil, &IngestError{Format: "parquet", Err: err}
	}
	defer pf.Close()

	rdr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, &IngestError{Format: "parquet", Err: err}
	}
	at, err := rdr.ReadTable(ctx)
	if err != nil {
		return nil, &IngestError{Format: "parquet", Err: err}
	}
	defer at.Release()

	t, err := fromArrow(at)
	if err != nil {
		return nil, &IngestError{Format: "parquet", Err: err}
	}
	return &Result{
		Sheets:     []Sheet{{Name: "Sheet1", Table: t}},
		Detections: map[string]HeaderDetection{},
	}, nil
}

func fromArrow(at arrow.Table) (*Table, error) {
	b := NewBuilder()
	schema := at.Schema()
	for i := 0; i < int(at.NumCols()); i++ {
		field := schema.Field(i)
		typ := arrowColumnType(field.Type)
		vals := make([]any, 0, at.NumRows())
		for _, chunk := range at.Column(i).Data().Chunks() {
			for pos := 0; pos < chunk.Len(); pos++ {
				vals = append(vals, arrowValue(chunk, pos))
			}
		}
		b.Add(field.Name, typ, vals)
	}
	return b.Build()
}

func arrowColumnType(dt arrow.DataType) ColumnType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128:
		return Numeric
	case arrow.BOOL:
		return Boolean
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
		return Temporal
	}
	return Text
}

func arrowValue(col arrow.Array, pos int) any {
	if col.IsNull(pos) {
		return nil
	}
	switch a := col.(type) {
	case *array.Int8:
		return float64(a.Value(pos))
	case *array.Int16:
		return float64(a.Value(pos))
	case *array.Int32:
		return float64(a.Value(pos))
	case *array.Int64:
		return float64(a.Value(pos))
	case *array.Uint8:
		return float64(a.Value(pos))
	case *array.Uint16:
		return float64(a.Value(pos))
	case *array.Uint32:
		return float64(a.Value(pos))
	case *array.Uint64:
		return float64(a.Value(pos))
	case *array.Float32:
		return float64(a.Value(pos))
	case *array.Float64:
		return a.Value(pos)
	case *array.Decimal128:
		dt := a.DataType().(*arrow.Decimal128Type)
		return a.Value(pos).ToFloat64(dt.Scale)
	case *array.Boolean:
		return a.Value(pos)
	case *array.Date32:
		return a.Value(pos).ToTime().UTC()
	case *array.Date64:
		return a.Value(pos).ToTime().UTC()
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(pos).ToTime(unit).UTC()
	case *array.String:
		return a.Value(pos)
	case *array.LargeString:
		return a.Value(pos)
	}
	return col.ValueStr(pos)
}
