package frame

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// FromRows builds a Dataset from loosely typed rows (decoded JSON
// objects or inline data). Column order follows first appearance; each
// column's kind is inferred from its non-missing values.
func FromRows(rows []map[string]any) (*Dataset, error) {
	var order []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	// First-appearance order within a map is not stable in Go, so order
	// keys of the first row lexically and append later keys as found.
	if len(rows) > 0 {
		first := make([]string, 0, len(rows[0]))
		for k := range rows[0] {
			first = append(first, k)
		}
		sort.Strings(first)
		rest := order[:0]
		inFirst := make(map[string]bool, len(first))
		for _, k := range first {
			inFirst[k] = true
		}
		for _, k := range order {
			if !inFirst[k] {
				rest = append(rest, k)
			}
		}
		order = append(first, rest...)
	}

	cols := make([]*Column, 0, len(order))
	for _, name := range order {
		cells := make([]any, len(rows))
		for i, row := range rows {
			cells[i] = row[name]
		}
		cols = append(cols, inferColumn(name, cells))
	}
	return New(cols...)
}

// FromCells builds a Dataset from per-column cell slices, preserving
// the given column order. Used by readers that already know the column
// layout (parquet).
func FromCells(names []string, cells [][]any) (*Dataset, error) {
	cols := make([]*Column, len(names))
	for i, name := range names {
		cols[i] = inferColumn(name, cells[i])
	}
	return New(cols...)
}

// FromStringTable builds a Dataset from an all-string table (CSV or
// spreadsheet rows, header excluded). Each column's kind is inferred by
// attempting numeric, boolean and datetime parses over the cells.
func FromStringTable(header []string, records [][]string) (*Dataset, error) {
	cols := make([]*Column, len(header))
	for j, name := range header {
		cells := make([]any, len(records))
		for i, rec := range records {
			if j < len(rec) && rec[j] != "" {
				cells[i] = rec[j]
			}
		}
		cols[j] = inferColumn(name, cells)
	}
	return New(cols...)
}

// inferColumn resolves a kind for the cells and converts them. The
// checks run most-specific first: numeric, bool, datetime, then string.
func inferColumn(name string, cells []any) *Column {
	numeric, boolean, datetime := true, true, true
	nonNull := false
	for _, v := range cells {
		if v == nil {
			continue
		}
		nonNull = true
		if _, ok := toFloat(v); !ok {
			numeric = false
		}
		if _, ok := toBool(v); !ok {
			boolean = false
		}
		if _, ok := toTime(v); !ok {
			datetime = false
		}
	}
	kind := String
	switch {
	case !nonNull:
		kind = String
	case boolean:
		kind = Bool
	case numeric:
		kind = Numeric
	case datetime:
		kind = Datetime
	}

	col := &Column{Name: name, Kind: kind, Valid: make([]bool, len(cells))}
	switch kind {
	case Numeric:
		col.Floats = make([]float64, len(cells))
		for i, v := range cells {
			if v == nil {
				continue
			}
			col.Floats[i], col.Valid[i] = mustFloat(v), true
		}
	case Bool:
		col.Bools = make([]bool, len(cells))
		for i, v := range cells {
			if v == nil {
				continue
			}
			b, _ := toBool(v)
			col.Bools[i], col.Valid[i] = b, true
		}
	case Datetime:
		col.Times = make([]time.Time, len(cells))
		for i, v := range cells {
			if v == nil {
				continue
			}
			t, _ := toTime(v)
			col.Times[i], col.Valid[i] = t, true
		}
	default:
		col.Strings = make([]string, len(cells))
		for i, v := range cells {
			if v == nil {
				continue
			}
			col.Strings[i], col.Valid[i] = toString(v), true
		}
	}
	return col
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func mustFloat(v any) float64 {
	f, _ := toFloat(v)
	return f
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		// Bare numbers are not dates even though dateparse accepts some.
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Time{}, false
		}
		t, err := dateparse.ParseAny(s)
		return t, err == nil
	}
	return time.Time{}, false
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return trimFloat(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
