// Package load resolves a data-source descriptor into a frame.Dataset.
// Format resolution order: explicitly declared format, then file
// extension, then (for remote sources) the content-type header, then
// delimited text as the default.
package load

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/frame"
)

// Error is the data-loading failure, carrying the attempted path and
// format for diagnostics.
type Error struct {
	Path   string
	Format string
	Err    error
}

func (e *Error) Error() string {
	where := e.Path
	if where == "" {
		where = "inline data"
	}
	if e.Format != "" {
		return fmt.Sprintf("load %s as %s: %v", where, e.Format, e.Err)
	}
	return fmt.Sprintf("load %s: %v", where, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// httpClient bounds remote fetches. The 30 second ceiling matches the
// transport timeout of the reference deployment.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// Load resolves the descriptor into a Dataset.
func Load(ctx context.Context, src api.DataSource) (*frame.Dataset, error) {
	switch src.Type {
	case "inline":
		return loadInline(src)
	case "file":
		return loadFile(src)
	case "url":
		return loadURL(ctx, src)
	default:
		return nil, &Error{Err: fmt.Errorf("unsupported data source type %q", src.Type)}
	}
}

func loadInline(src api.DataSource) (*frame.Dataset, error) {
	if len(src.Data) == 0 {
		return nil, &Error{Err: fmt.Errorf("inline data source requires 'data' rows")}
	}
	ds, err := frame.FromRows(src.Data)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return ds, nil
}

func loadFile(src api.DataSource) (*frame.Dataset, error) {
	if src.Path == "" {
		return nil, &Error{Err: fmt.Errorf("file data source requires 'path'")}
	}
	path, err := expandPath(src.Path)
	if err != nil {
		return nil, &Error{Path: src.Path, Err: err}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("file not found: %w", err)}
	}

	format := src.Format
	if format == "" {
		format = formatFromExt(filepath.Ext(path))
	}
	if format == "" {
		format = "csv"
	}

	// Parquet and excel readers need random access; hand them the path.
	switch format {
	case "parquet":
		ds, err := readParquetFile(path)
		if err != nil {
			return nil, &Error{Path: path, Format: format, Err: err}
		}
		return ds, nil
	case "excel":
		ds, err := readExcelFile(path)
		if err != nil {
			return nil, &Error{Path: path, Format: format, Err: err}
		}
		return ds, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Format: format, Err: err}
	}
	ds, err := readBytes(raw, format)
	if err != nil {
		return nil, &Error{Path: path, Format: format, Err: err}
	}
	return ds, nil
}

func loadURL(ctx context.Context, src api.DataSource) (*frame.Dataset, error) {
	if src.Path == "" {
		return nil, &Error{Err: fmt.Errorf("url data source requires 'path'")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Path, nil)
	if err != nil {
		return nil, &Error{Path: src.Path, Err: err}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &Error{Path: src.Path, Err: fmt.Errorf("fetch failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Path: src.Path, Err: fmt.Errorf("fetch failed: status %s", resp.Status)}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Path: src.Path, Err: err}
	}

	format := src.Format
	if format == "" {
		format = formatFromURL(src.Path, resp.Header.Get("Content-Type"))
	}
	ds, err := readBytes(raw, format)
	if err != nil {
		return nil, &Error{Path: src.Path, Format: format, Err: err}
	}
	return ds, nil
}

func expandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, p[2:])
	}
	return filepath.Abs(p)
}

func formatFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".parquet", ".pq":
		return "parquet"
	case ".xlsx", ".xls":
		return "excel"
	}
	return ""
}

func formatFromURL(url, contentType string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, ".csv"):
		return "csv"
	case strings.Contains(lower, ".json"):
		return "json"
	case strings.Contains(lower, ".parquet"), strings.Contains(lower, ".pq"):
		return "parquet"
	case strings.Contains(lower, ".xlsx"), strings.Contains(lower, ".xls"):
		return "excel"
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "csv"):
		return "csv"
	case strings.Contains(ct, "json"):
		return "json"
	}
	return "csv"
}

func readBytes(raw []byte, format string) (*frame.Dataset, error) {
	switch format {
	case "csv":
		return readCSV(raw)
	case "json":
		return readJSON(raw)
	case "parquet":
		return readParquetBytes(raw)
	case "excel":
		return readExcelBytes(raw)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
