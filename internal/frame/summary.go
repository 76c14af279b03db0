package frame

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// NumericStats is the describe-style summary of one numeric column.
type NumericStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// Preview summarizes a Dataset for the preview_data operation.
type Preview struct {
	Rows       int                     `json:"rows"`
	Cols       int                     `json:"cols"`
	Dtypes     map[string]string       `json:"dtypes"`
	Sample     []map[string]any        `json:"sample"`
	Numeric    map[string]NumericStats `json:"numeric_stats"`
	Missing    map[string]int          `json:"missing"`
	ColumnList []string                `json:"columns"`
}

// Summarize builds a Preview with at most head sample rows.
func (ds *Dataset) Summarize(head int) Preview {
	if head <= 0 {
		head = 5
	}
	if head > ds.Len() {
		head = ds.Len()
	}
	p := Preview{
		Rows:       ds.Len(),
		Cols:       len(ds.cols),
		Dtypes:     make(map[string]string, len(ds.cols)),
		Numeric:    make(map[string]NumericStats),
		Missing:    make(map[string]int, len(ds.cols)),
		ColumnList: ds.Columns(),
	}
	for i := 0; i < head; i++ {
		p.Sample = append(p.Sample, ds.Row(i))
	}
	for _, c := range ds.cols {
		p.Dtypes[c.Name] = c.Kind.String()
		missing := 0
		for i := range c.Valid {
			if !c.Valid[i] {
				missing++
			}
		}
		p.Missing[c.Name] = missing
		if c.Kind == Numeric {
			p.Numeric[c.Name] = describe(c)
		}
	}
	return p
}

func describe(c *Column) NumericStats {
	vals := make([]float64, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.Valid[i] {
			vals = append(vals, c.Floats[i])
		}
	}
	if len(vals) == 0 {
		return NumericStats{}
	}
	sort.Float64s(vals)
	s := NumericStats{
		Count:  len(vals),
		Mean:   stat.Mean(vals, nil),
		Min:    vals[0],
		Max:    vals[len(vals)-1],
		Q25:    stat.Quantile(0.25, stat.Empirical, vals, nil),
		Median: stat.Quantile(0.5, stat.Empirical, vals, nil),
		Q75:    stat.Quantile(0.75, stat.Empirical, vals, nil),
	}
	if len(vals) > 1 {
		s.Std = stat.StdDev(vals, nil)
	}
	return s
}

// TypeCounts classifies the columns for template scoring: numeric,
// categorical (string or bool) and datetime.
type TypeCounts struct {
	Numeric     int
	Categorical int
	Datetime    int
}

// CountTypes tallies the column kinds of the dataset.
func (ds *Dataset) CountTypes() TypeCounts {
	var tc TypeCounts
	for _, c := range ds.cols {
		switch c.Kind {
		case Numeric:
			tc.Numeric++
		case Datetime:
			tc.Datetime++
		default:
			tc.Categorical++
		}
	}
	return tc
}
