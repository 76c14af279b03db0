package load

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/ohler55/ojg/oj"
	"github.com/xuri/excelize/v2"

	"github.com/Fervoyush/plotnine-mcp/internal/frame"
)

func readCSV(raw []byte) (*frame.Dataset, error) {
	// Strip a UTF-8 BOM; spreadsheet exports often carry one.
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	r := csv.NewReader(bytes.NewReader(raw))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: no rows")
	}
	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return frame.FromStringTable(header, records[1:])
}

func readJSON(raw []byte) (*frame.Dataset, error) {
	parsed, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	list, ok := parsed.([]any)
	if !ok {
		return nil, fmt.Errorf("parse json: expected an array of row objects")
	}
	rows := make([]map[string]any, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parse json: row %d is not an object", i)
		}
		rows = append(rows, obj)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("parse json: no rows")
	}
	return frame.FromRows(rows)
}

func readParquetFile(path string) (*frame.Dataset, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer func() { _ = rdr.Close() }()
	return parquetToDataset(rdr)
}

func readParquetBytes(raw []byte) (*frame.Dataset, error) {
	rdr, err := file.NewParquetReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer func() { _ = rdr.Close() }()
	return parquetToDataset(rdr)
}

func parquetToDataset(rdr *file.Reader) (*frame.Dataset, error) {
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	defer tbl.Release()

	names := make([]string, tbl.NumCols())
	cells := make([][]any, tbl.NumCols())
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		names[i] = col.Name()
		vals := make([]any, 0, tbl.NumRows())
		for _, chunk := range col.Data().Chunks() {
			vals = append(vals, chunkValues(chunk)...)
		}
		cells[i] = vals
	}
	return frame.FromCells(names, cells)
}

// chunkValues widens one arrow array into generic cells. Unsupported
// physical types fall back to their string form.
func chunkValues(arr arrow.Array) []any {
	out := make([]any, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		switch a := arr.(type) {
		case *array.Float64:
			out[i] = a.Value(i)
		case *array.Float32:
			out[i] = float64(a.Value(i))
		case *array.Int64:
			out[i] = float64(a.Value(i))
		case *array.Int32:
			out[i] = float64(a.Value(i))
		case *array.String:
			out[i] = a.Value(i)
		case *array.LargeString:
			out[i] = a.Value(i)
		case *array.Boolean:
			out[i] = a.Value(i)
		case *array.Timestamp:
			tt := a.DataType().(*arrow.TimestampType)
			out[i] = a.Value(i).ToTime(tt.Unit)
		case *array.Date32:
			out[i] = a.Value(i).ToTime()
		default:
			out[i] = arr.ValueStr(i)
		}
	}
	return out
}

func readExcelFile(path string) (*frame.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()
	return excelToDataset(f)
}

func readExcelBytes(raw []byte) (*frame.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()
	return excelToDataset(f)
}

func excelToDataset(f *excelize.File) (*frame.Dataset, error) {
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("read excel: workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read excel sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read excel sheet %q: no rows", sheet)
	}
	return frame.FromStringTable(rows[0], rows[1:])
}
