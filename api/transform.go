package api

import "encoding/json"

// StringList accepts either a single JSON string or an array of strings.
// Several transform fields (group_by, sort_by, subset columns) allow both
// spellings.
type StringList []string

// UnmarshalJSON implements the scalar-or-array decoding.
func (s *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

// TransformStep is one step of the pre-plot data pipeline. Type selects
// the operation; the remaining fields are interpreted per type and
// ignored otherwise. Steps run strictly in list order, each consuming
// the previous step's output.
type TransformStep struct {
	Type string `json:"type" jsonschema:"enum=filter,enum=group_summarize,enum=sort,enum=select,enum=rename,enum=mutate,enum=drop_na,enum=fill_na,enum=sample,enum=unique,enum=rolling,enum=pivot"`

	// filter
	FilterExpr string `json:"filter_expr,omitempty"`

	// group_summarize
	GroupBy      StringList            `json:"group_by,omitempty"`
	Aggregations map[string]StringList `json:"aggregations,omitempty"`

	// sort
	SortBy    StringList `json:"sort_by,omitempty"`
	Ascending *bool      `json:"ascending,omitempty"`

	// select, drop_na, unique
	Columns StringList `json:"columns,omitempty"`

	// rename
	RenameMap map[string]string `json:"rename_map,omitempty"`

	// mutate: new column name -> expression
	Mutations map[string]string `json:"mutations,omitempty"`

	// drop_na: "any" or "all"
	How string `json:"how,omitempty"`

	// fill_na: scalar applied everywhere, or object mapping column -> value
	FillValues any    `json:"fill_values,omitempty"`
	Method     string `json:"method,omitempty"`

	// sample
	N           *int     `json:"n,omitempty"`
	Frac        *float64 `json:"frac,omitempty"`
	RandomState int64    `json:"random_state,omitempty"`

	// rolling
	Column    string `json:"column,omitempty"`
	Window    int    `json:"window,omitempty"`
	Function  string `json:"function,omitempty"`
	NewColumn string `json:"new_column,omitempty"`

	// pivot
	Index   string `json:"index,omitempty"`
	PivotOn string `json:"pivot_columns,omitempty"`
	Values  string `json:"values,omitempty"`
	AggFunc string `json:"aggfunc,omitempty"`
}
