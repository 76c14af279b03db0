// Package transform applies an ordered list of named data
// transformations to a dataset before plotting. Each step consumes the
// previous step's output and returns a new dataset; nothing is mutated
// in place.
package transform

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/frame"
	"github.com/Fervoyush/plotnine-mcp/internal/suggest"
)

// Error reports a failed pipeline step by index and type.
type Error struct {
	Step int
	Type string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transform step %d (%s): %v", e.Step+1, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Apply runs the pipeline in order.
func Apply(ds *frame.Dataset, steps []api.TransformStep) (*frame.Dataset, error) {
	cur := ds
	for i, step := range steps {
		out, err := applyStep(cur, step)
		if err != nil {
			return nil, &Error{Step: i, Type: step.Type, Err: err}
		}
		cur = out
	}
	return cur, nil
}

func applyStep(ds *frame.Dataset, step api.TransformStep) (*frame.Dataset, error) {
	switch step.Type {
	case "filter":
		return applyFilter(ds, step.FilterExpr)
	case "group_summarize":
		return applyGroupSummarize(ds, step.GroupBy, step.Aggregations)
	case "sort":
		return applySort(ds, step.SortBy, step.Ascending)
	case "select":
		return applySelect(ds, step.Columns)
	case "rename":
		return applyRename(ds, step.RenameMap)
	case "mutate":
		return applyMutate(ds, step.Mutations)
	case "drop_na":
		return applyDropNA(ds, step.Columns, step.How)
	case "fill_na":
		return applyFillNA(ds, step.FillValues, step.Method)
	case "sample":
		return applySample(ds, step.N, step.Frac, step.RandomState)
	case "unique":
		return applyUnique(ds, step.Columns)
	case "rolling":
		return applyRolling(ds, step.Column, step.Window, step.Function, step.NewColumn)
	case "pivot":
		return applyPivot(ds, step.Index, step.PivotOn, step.Values, step.AggFunc)
	default:
		return nil, fmt.Errorf("unknown transform type %q", step.Type)
	}
}

// cell is the expression-facing view of one cell. Datetimes surface as
// ISO date strings so expressions like `when >= '2024-01-02'` compare
// the obvious way.
func cellValue(c *frame.Column, i int) any {
	if !c.Valid[i] {
		return nil
	}
	switch c.Kind {
	case frame.Numeric:
		return c.Floats[i]
	case frame.Bool:
		return c.Bools[i]
	case frame.Datetime:
		return c.Label(i)
	default:
		return c.Strings[i]
	}
}

func compileChecked(ds *frame.Dataset, src string) (exprNode, error) {
	node, err := parseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", src, err)
	}
	for _, name := range node.columns(nil) {
		if !ds.Has(name) {
			return nil, fmt.Errorf("%s", suggest.ForColumn(name, ds.Columns()))
		}
	}
	return node, nil
}

func rowLookupAt(ds *frame.Dataset, i int) rowLookup {
	return func(name string) (any, bool) {
		c, ok := ds.Column(name)
		if !ok {
			return nil, false
		}
		return cellValue(c, i), true
	}
}

func applyFilter(ds *frame.Dataset, expr string) (*frame.Dataset, error) {
	node, err := compileChecked(ds, expr)
	if err != nil {
		return nil, err
	}
	var keep []int
	for i := 0; i < ds.Len(); i++ {
		v, err := node.eval(rowLookupAt(ds, i))
		if err != nil {
			return nil, fmt.Errorf("evaluate %q on row %d: %w", expr, i, err)
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("filter expression must yield a boolean, got %T", v)
		}
		if b {
			keep = append(keep, i)
		}
	}
	return ds.Take(keep), nil
}

func applyMutate(ds *frame.Dataset, mutations map[string]string) (*frame.Dataset, error) {
	if len(mutations) == 0 {
		return nil, fmt.Errorf("mutate requires 'mutations'")
	}
	// Deterministic application order; later expressions can reference
	// columns created by earlier ones.
	names := make([]string, 0, len(mutations))
	for name := range mutations {
		names = append(names, name)
	}
	sort.Strings(names)

	cur := ds
	for _, name := range names {
		node, err := compileChecked(cur, mutations[name])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		cells := make([]any, cur.Len())
		for i := 0; i < cur.Len(); i++ {
			v, err := node.eval(rowLookupAt(cur, i))
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
			}
			cells[i] = v
		}
		one, err := frame.FromCells([]string{name}, [][]any{cells})
		if err != nil {
			return nil, err
		}
		col, _ := one.Column(name)
		cur, err = cur.WithColumn(col)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

var aggFuncs = map[string]bool{
	"sum": true, "mean": true, "median": true, "min": true,
	"max": true, "count": true, "std": true, "var": true,
}

func applyGroupSummarize(ds *frame.Dataset, groupBy []string, aggs map[string]api.StringList) (*frame.Dataset, error) {
	if len(groupBy) == 0 {
		return nil, fmt.Errorf("group_summarize requires 'group_by'")
	}
	if len(aggs) == 0 {
		return nil, fmt.Errorf("group_summarize requires 'aggregations'")
	}
	keyCols := make([]*frame.Column, 0, len(groupBy))
	for _, name := range groupBy {
		c, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("%s", suggest.ForColumn(name, ds.Columns()))
		}
		keyCols = append(keyCols, c)
	}
	aggNames := make([]string, 0, len(aggs))
	for name, funcs := range aggs {
		if !ds.Has(name) {
			return nil, fmt.Errorf("%s", suggest.ForColumn(name, ds.Columns()))
		}
		for _, f := range funcs {
			if !aggFuncs[f] {
				return nil, fmt.Errorf("unknown aggregation %q for column %q", f, name)
			}
		}
		aggNames = append(aggNames, name)
	}
	sort.Strings(aggNames)

	// Bucket rows by the joined group key, first-appearance order.
	type bucket struct {
		first int
		rows  []int
	}
	order := []string{}
	buckets := map[string]*bucket{}
	for i := 0; i < ds.Len(); i++ {
		parts := make([]string, len(keyCols))
		for j, c := range keyCols {
			parts[j] = c.Label(i)
		}
		key := strings.Join(parts, "\x00")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{first: i}
			buckets[key] = b
			order = append(order, key)
		}
		b.rows = append(b.rows, i)
	}

	// Key columns keep their original kinds via representative rows.
	firsts := make([]int, len(order))
	for gi, key := range order {
		firsts[gi] = buckets[key].first
	}
	keyed := ds.Take(firsts)
	outCols := make([]*frame.Column, 0, len(groupBy)+len(aggNames))
	for _, name := range groupBy {
		c, _ := keyed.Column(name)
		outCols = append(outCols, c)
	}

	for _, name := range aggNames {
		src, _ := ds.Column(name)
		funcs := aggs[name]
		for _, fn := range funcs {
			outName := name
			if len(funcs) > 1 {
				outName = name + "_" + fn
			}
			col := &frame.Column{
				Name:   outName,
				Kind:   frame.Numeric,
				Floats: make([]float64, len(order)),
				Valid:  make([]bool, len(order)),
			}
			for gi, key := range order {
				v, ok := aggregate(src, buckets[key].rows, fn)
				col.Floats[gi], col.Valid[gi] = v, ok
			}
			outCols = append(outCols, col)
		}
	}
	return frame.New(outCols...)
}

func aggregate(c *frame.Column, rows []int, fn string) (float64, bool) {
	vals := make([]float64, 0, len(rows))
	for _, i := range rows {
		if f, ok := c.Float(i); ok {
			vals = append(vals, f)
		}
	}
	if fn == "count" {
		return float64(len(vals)), true
	}
	if len(vals) == 0 {
		return 0, false
	}
	switch fn {
	case "sum":
		s := 0.0
		for _, v := range vals {
			s += v
		}
		return s, true
	case "mean":
		s := 0.0
		for _, v := range vals {
			s += v
		}
		return s / float64(len(vals)), true
	case "median":
		sort.Float64s(vals)
		mid := len(vals) / 2
		if len(vals)%2 == 1 {
			return vals[mid], true
		}
		return (vals[mid-1] + vals[mid]) / 2, true
	case "min":
		m := vals[0]
		for _, v := range vals {
			m = math.Min(m, v)
		}
		return m, true
	case "max":
		m := vals[0]
		for _, v := range vals {
			m = math.Max(m, v)
		}
		return m, true
	case "std", "var":
		if len(vals) < 2 {
			return 0, false
		}
		mean := 0.0
		for _, v := range vals {
			mean += v
		}
		mean /= float64(len(vals))
		ss := 0.0
		for _, v := range vals {
			ss += (v - mean) * (v - mean)
		}
		variance := ss / float64(len(vals)-1)
		if fn == "var" {
			return variance, true
		}
		return math.Sqrt(variance), true
	}
	return 0, false
}

func applySort(ds *frame.Dataset, sortBy []string, ascending *bool) (*frame.Dataset, error) {
	if len(sortBy) == 0 {
		return nil, fmt.Errorf("sort requires 'sort_by'")
	}
	cols := make([]*frame.Column, 0, len(sortBy))
	for _, name := range sortBy {
		c, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("%s", suggest.ForColumn(name, ds.Columns()))
		}
		cols = append(cols, c)
	}
	asc := true
	if ascending != nil {
		asc = *ascending
	}
	idx := make([]int, ds.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for _, c := range cols {
			cmp := compareCells(c, idx[a], idx[b])
			if cmp == 0 {
				continue
			}
			if asc {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	return ds.Take(idx), nil
}

// compareCells orders two cells of one column; missing sorts last.
func compareCells(c *frame.Column, a, b int) int {
	av, bv := c.Valid[a], c.Valid[b]
	switch {
	case !av && !bv:
		return 0
	case !av:
		return 1
	case !bv:
		return -1
	}
	switch c.Kind {
	case frame.Numeric:
		switch {
		case c.Floats[a] < c.Floats[b]:
			return -1
		case c.Floats[a] > c.Floats[b]:
			return 1
		}
		return 0
	case frame.Datetime:
		switch {
		case c.Times[a].Before(c.Times[b]):
			return -1
		case c.Times[a].After(c.Times[b]):
			return 1
		}
		return 0
	case frame.Bool:
		switch {
		case !c.Bools[a] && c.Bools[b]:
			return -1
		case c.Bools[a] && !c.Bools[b]:
			return 1
		}
		return 0
	default:
		return strings.Compare(c.Strings[a], c.Strings[b])
	}
}

func applySelect(ds *frame.Dataset, columns []string) (*frame.Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("select requires 'columns'")
	}
	for _, name := range columns {
		if !ds.Has(name) {
			return nil, fmt.Errorf("%s", suggest.ForColumn(name, ds.Columns()))
		}
	}
	return ds.Select(columns)
}

func applyRename(ds *frame.Dataset, renames map[string]string) (*frame.Dataset, error) {
	if len(renames) == 0 {
		return nil, fmt.Errorf("rename requires 'rename_map'")
	}
	for old := range renames {
		if !ds.Has(old) {
			return nil, fmt.Errorf("%s", suggest.ForColumn(old, ds.Columns()))
		}
	}
	cols := make([]*frame.Column, 0, len(ds.Columns()))
	for _, name := range ds.Columns() {
		c, _ := ds.Column(name)
		if newName, ok := renames[name]; ok {
			cc := *c
			cc.Name = newName
			c = &cc
		}
		cols = append(cols, c)
	}
	return frame.New(cols...)
}

func applyDropNA(ds *frame.Dataset, columns []string, how string) (*frame.Dataset, error) {
	if how == "" {
		how = "any"
	}
	if how != "any" && how != "all" {
		return nil, fmt.Errorf("drop_na 'how' must be \"any\" or \"all\", got %q", how)
	}
	checked := columns
	if len(checked) == 0 {
		checked = ds.Columns()
	}
	cols := make([]*frame.Column, 0, len(checked))
	for _, name := range checked {
		c, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("%s", suggest.ForColumn(name, ds.Columns()))
		}
		cols = append(cols, c)
	}
	var keep []int
	for i := 0; i < ds.Len(); i++ {
		missing := 0
		for _, c := range cols {
			if !c.Valid[i] {
				missing++
			}
		}
		drop := (how == "any" && missing > 0) || (how == "all" && missing == len(cols))
		if !drop {
			keep = append(keep, i)
		}
	}
	return ds.Take(keep), nil
}

func applyFillNA(ds *frame.Dataset, fillValues any, method string) (*frame.Dataset, error) {
	if method != "" {
		if method != "ffill" && method != "bfill" {
			return nil, fmt.Errorf("fill_na 'method' must be \"ffill\" or \"bfill\", got %q", method)
		}
		return fillDirectional(ds, method), nil
	}
	if fillValues == nil {
		return nil, fmt.Errorf("fill_na requires 'fill_values' or 'method'")
	}
	perColumn, mapped := fillValues.(map[string]any)
	cols := make([]*frame.Column, 0, len(ds.Columns()))
	for _, name := range ds.Columns() {
		c, _ := ds.Column(name)
		fill := fillValues
		if mapped {
			var ok bool
			fill, ok = perColumn[name]
			if !ok {
				cols = append(cols, c)
				continue
			}
		}
		filled, err := fillColumn(c, fill)
		if err != nil {
			return nil, err
		}
		cols = append(cols, filled)
	}
	return frame.New(cols...)
}

func fillColumn(c *frame.Column, fill any) (*frame.Column, error) {
	cells := make([]any, c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.Valid[i] {
			cells[i] = c.Value(i)
		} else {
			cells[i] = fill
		}
	}
	one, err := frame.FromCells([]string{c.Name}, [][]any{cells})
	if err != nil {
		return nil, fmt.Errorf("fill column %q: %w", c.Name, err)
	}
	out, _ := one.Column(c.Name)
	return out, nil
}

func fillDirectional(ds *frame.Dataset, method string) *frame.Dataset {
	cols := make([]*frame.Column, 0, len(ds.Columns()))
	for _, name := range ds.Columns() {
		c, _ := ds.Column(name)
		cc := cloneColumn(c)
		if method == "ffill" {
			last := -1
			for i := 0; i < cc.Len(); i++ {
				if cc.Valid[i] {
					last = i
				} else if last >= 0 {
					copyCell(cc, i, last)
				}
			}
		} else {
			next := -1
			for i := cc.Len() - 1; i >= 0; i-- {
				if cc.Valid[i] {
					next = i
				} else if next >= 0 {
					copyCell(cc, i, next)
				}
			}
		}
		cols = append(cols, cc)
	}
	out, _ := frame.New(cols...)
	return out
}

func cloneColumn(c *frame.Column) *frame.Column {
	cc := &frame.Column{Name: c.Name, Kind: c.Kind}
	cc.Valid = append([]bool(nil), c.Valid...)
	cc.Floats = append([]float64(nil), c.Floats...)
	cc.Strings = append([]string(nil), c.Strings...)
	cc.Times = append([]time.Time(nil), c.Times...)
	cc.Bools = append([]bool(nil), c.Bools...)
	return cc
}

func copyCell(c *frame.Column, dst, src int) {
	c.Valid[dst] = true
	switch c.Kind {
	case frame.Numeric:
		c.Floats[dst] = c.Floats[src]
	case frame.String:
		c.Strings[dst] = c.Strings[src]
	case frame.Datetime:
		c.Times[dst] = c.Times[src]
	case frame.Bool:
		c.Bools[dst] = c.Bools[src]
	}
}

func applySample(ds *frame.Dataset, n *int, frac *float64, seed int64) (*frame.Dataset, error) {
	if n == nil && frac == nil {
		return nil, fmt.Errorf("sample requires 'n' or 'frac'")
	}
	if seed == 0 {
		seed = 42
	}
	count := 0
	if n != nil {
		if *n < 0 {
			return nil, fmt.Errorf("sample 'n' must be non-negative, got %d", *n)
		}
		count = *n
	} else {
		if *frac < 0 || *frac > 1 {
			return nil, fmt.Errorf("sample 'frac' must be within [0, 1], got %v", *frac)
		}
		count = int(math.Round(*frac * float64(ds.Len())))
	}
	if count > ds.Len() {
		count = ds.Len()
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(ds.Len())[:count]
	return ds.Take(idx), nil
}

func applyUnique(ds *frame.Dataset, columns []string) (*frame.Dataset, error) {
	checked := columns
	if len(checked) == 0 {
		checked = ds.Columns()
	}
	cols := make([]*frame.Column, 0, len(checked))
	for _, name := range checked {
		c, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("%s", suggest.ForColumn(name, ds.Columns()))
		}
		cols = append(cols, c)
	}
	seen := map[string]bool{}
	var keep []int
	for i := 0; i < ds.Len(); i++ {
		parts := make([]string, len(cols))
		for j, c := range cols {
			parts[j] = c.Label(i)
		}
		key := strings.Join(parts, "\x00")
		if !seen[key] {
			seen[key] = true
			keep = append(keep, i)
		}
	}
	return ds.Take(keep), nil
}

func applyRolling(ds *frame.Dataset, column string, window int, fn, newColumn string) (*frame.Dataset, error) {
	if column == "" || window <= 0 {
		return nil, fmt.Errorf("rolling requires 'column' and a positive 'window'")
	}
	c, ok := ds.Column(column)
	if !ok {
		return nil, fmt.Errorf("%s", suggest.ForColumn(column, ds.Columns()))
	}
	if fn == "" {
		fn = "mean"
	}
	switch fn {
	case "mean", "sum", "min", "max", "std":
	default:
		return nil, fmt.Errorf("unknown rolling function %q", fn)
	}
	if newColumn == "" {
		newColumn = fmt.Sprintf("%s_rolling_%s", column, fn)
	}
	out := &frame.Column{
		Name:   newColumn,
		Kind:   frame.Numeric,
		Floats: make([]float64, ds.Len()),
		Valid:  make([]bool, ds.Len()),
	}
	for i := window - 1; i < ds.Len(); i++ {
		rows := make([]int, window)
		for j := range rows {
			rows[j] = i - window + 1 + j
		}
		v, ok := aggregate(c, rows, fn)
		out.Floats[i], out.Valid[i] = v, ok
	}
	return ds.WithColumn(out)
}

func applyPivot(ds *frame.Dataset, index, pivotOn, values, aggFunc string) (*frame.Dataset, error) {
	if index == "" || pivotOn == "" || values == "" {
		return nil, fmt.Errorf("pivot requires 'index', 'pivot_columns' and 'values'")
	}
	for _, name := range []string{index, pivotOn, values} {
		if !ds.Has(name) {
			return nil, fmt.Errorf("%s", suggest.ForColumn(name, ds.Columns()))
		}
	}
	if aggFunc == "" {
		aggFunc = "mean"
	}
	switch aggFunc {
	case "mean", "sum", "count", "min", "max":
	default:
		return nil, fmt.Errorf("unknown pivot aggfunc %q", aggFunc)
	}
	idxCol, _ := ds.Column(index)
	pivCol, _ := ds.Column(pivotOn)
	valCol, _ := ds.Column(values)

	idxLevels := idxCol.Levels()
	pivLevels := pivCol.SortedLevels()

	rowsFor := map[[2]string][]int{}
	firstRow := map[string]int{}
	for i := 0; i < ds.Len(); i++ {
		ik, pk := idxCol.Label(i), pivCol.Label(i)
		rowsFor[[2]string{ik, pk}] = append(rowsFor[[2]string{ik, pk}], i)
		if _, ok := firstRow[ik]; !ok {
			firstRow[ik] = i
		}
	}

	firsts := make([]int, len(idxLevels))
	for li, lev := range idxLevels {
		firsts[li] = firstRow[lev]
	}
	keyed := ds.Take(firsts)
	outIdx, _ := keyed.Column(index)

	cols := []*frame.Column{outIdx}
	for _, pl := range pivLevels {
		col := &frame.Column{
			Name:   pl,
			Kind:   frame.Numeric,
			Floats: make([]float64, len(idxLevels)),
			Valid:  make([]bool, len(idxLevels)),
		}
		for li, il := range idxLevels {
			rows := rowsFor[[2]string{il, pl}]
			if len(rows) == 0 {
				continue
			}
			v, ok := aggregate(valCol, rows, aggFunc)
			col.Floats[li], col.Valid[li] = v, ok
		}
		cols = append(cols, col)
	}
	return frame.New(cols...)
}
