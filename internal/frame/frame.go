// Package frame provides the in-memory tabular dataset the loader
// produces and the transform pipeline and plot assembler consume.
// Columns are homogeneously typed; missing cells are tracked with a
// per-row validity mask. Datasets are never mutated in place: every
// operation returns a new Dataset.
package frame

import (
	"fmt"
	"sort"
	"time"
)

// Kind is the resolved type of a column.
type Kind int

const (
	Numeric Kind = iota
	String
	Datetime
	Bool
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case String:
		return "string"
	case Datetime:
		return "datetime"
	case Bool:
		return "bool"
	}
	return "unknown"
}

// Column is one named, typed column. Exactly one of the value slices is
// populated, matching Kind; Valid marks non-missing cells.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
	Times   []time.Time
	Bools   []bool
	Valid   []bool
}

// Len returns the number of rows in the column.
func (c *Column) Len() int { return len(c.Valid) }

// Value returns the cell at row i as a generic value, or nil if missing.
func (c *Column) Value(i int) any {
	if !c.Valid[i] {
		return nil
	}
	switch c.Kind {
	case Numeric:
		return c.Floats[i]
	case String:
		return c.Strings[i]
	case Datetime:
		return c.Times[i]
	case Bool:
		return c.Bools[i]
	}
	return nil
}

// Float returns the cell as a float64 where that makes sense: numeric
// values directly, bools as 0/1, datetimes as Unix seconds. The second
// return reports whether a numeric view exists.
func (c *Column) Float(i int) (float64, bool) {
	if !c.Valid[i] {
		return 0, false
	}
	switch c.Kind {
	case Numeric:
		return c.Floats[i], true
	case Bool:
		if c.Bools[i] {
			return 1, true
		}
		return 0, true
	case Datetime:
		return float64(c.Times[i].Unix()), true
	}
	return 0, false
}

// Label returns the cell formatted for axis ticks and grouping keys.
func (c *Column) Label(i int) string {
	if !c.Valid[i] {
		return "NA"
	}
	switch c.Kind {
	case Numeric:
		return trimFloat(c.Floats[i])
	case String:
		return c.Strings[i]
	case Datetime:
		return c.Times[i].Format("2006-01-02")
	case Bool:
		if c.Bools[i] {
			return "true"
		}
		return "false"
	}
	return ""
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// take returns a copy of the column restricted to the given row indices.
func (c *Column) take(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Valid: make([]bool, len(idx))}
	switch c.Kind {
	case Numeric:
		out.Floats = make([]float64, len(idx))
		for j, i := range idx {
			out.Floats[j], out.Valid[j] = c.Floats[i], c.Valid[i]
		}
	case String:
		out.Strings = make([]string, len(idx))
		for j, i := range idx {
			out.Strings[j], out.Valid[j] = c.Strings[i], c.Valid[i]
		}
	case Datetime:
		out.Times = make([]time.Time, len(idx))
		for j, i := range idx {
			out.Times[j], out.Valid[j] = c.Times[i], c.Valid[i]
		}
	case Bool:
		out.Bools = make([]bool, len(idx))
		for j, i := range idx {
			out.Bools[j], out.Valid[j] = c.Bools[i], c.Valid[i]
		}
	}
	return out
}

// Dataset is an ordered collection of equally sized columns.
type Dataset struct {
	cols   []*Column
	byName map[string]int
}

// New builds a Dataset from columns, which must all have the same length.
func New(cols ...*Column) (*Dataset, error) {
	ds := &Dataset{byName: make(map[string]int, len(cols))}
	n := -1
	for _, c := range cols {
		if n >= 0 && c.Len() != n {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), n)
		}
		n = c.Len()
		if _, dup := ds.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		ds.byName[c.Name] = len(ds.cols)
		ds.cols = append(ds.cols, c)
	}
	return ds, nil
}

// Len returns the number of rows.
func (ds *Dataset) Len() int {
	if len(ds.cols) == 0 {
		return 0
	}
	return ds.cols[0].Len()
}

// Columns returns the column names in order.
func (ds *Dataset) Columns() []string {
	names := make([]string, len(ds.cols))
	for i, c := range ds.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (ds *Dataset) Column(name string) (*Column, bool) {
	i, ok := ds.byName[name]
	if !ok {
		return nil, false
	}
	return ds.cols[i], true
}

// Has reports whether a column with the given name exists.
func (ds *Dataset) Has(name string) bool {
	_, ok := ds.byName[name]
	return ok
}

// Take returns a new Dataset containing the given rows, in index order.
func (ds *Dataset) Take(idx []int) *Dataset {
	cols := make([]*Column, len(ds.cols))
	for i, c := range ds.cols {
		cols[i] = c.take(idx)
	}
	out, _ := New(cols...)
	return out
}

// Select returns a new Dataset with only the named columns, in the
// order given. Unknown names are reported with the available set.
func (ds *Dataset) Select(names []string) (*Dataset, error) {
	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		c, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// WithColumn returns a new Dataset with col appended. A column with the
// same name is replaced in place, keeping its position.
func (ds *Dataset) WithColumn(col *Column) (*Dataset, error) {
	if ds.Len() > 0 && col.Len() != ds.Len() {
		return nil, fmt.Errorf("column %q has %d rows, want %d", col.Name, col.Len(), ds.Len())
	}
	cols := make([]*Column, len(ds.cols))
	copy(cols, ds.cols)
	if i, ok := ds.byName[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return New(cols...)
}

// Row materializes row i as a name->value map. Missing cells are nil.
func (ds *Dataset) Row(i int) map[string]any {
	row := make(map[string]any, len(ds.cols))
	for _, c := range ds.cols {
		row[c.Name] = c.Value(i)
	}
	return row
}

// Levels returns the distinct labels of a column in first-appearance
// order. Used for discrete axes and facet panels.
func (c *Column) Levels() []string {
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < c.Len(); i++ {
		if !c.Valid[i] {
			continue
		}
		l := c.Label(i)
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// SortedLevels returns the distinct labels sorted lexically.
func (c *Column) SortedLevels() []string {
	out := c.Levels()
	sort.Strings(out)
	return out
}
