package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/frame"
)

func salesFixture(t *testing.T) *frame.Dataset {
	t.Helper()
	ds, err := frame.FromRows([]map[string]any{
		{"category": "A", "value": 1.0, "region": "north"},
		{"category": "A", "value": 2.0, "region": "south"},
		{"category": "B", "value": 5.0, "region": "north"},
	})
	require.NoError(t, err)
	return ds
}

func boolPtr(b bool) *bool       { return &b }
func intPtr(n int) *int          { return &n }
func fracPtr(f float64) *float64 { return &f }

func TestApply_FilterThenGroupSum(t *testing.T) {
	ds := salesFixture(t)
	out, err := Apply(ds, []api.TransformStep{
		{Type: "filter", FilterExpr: "category == 'A'"},
		{
			Type:         "group_summarize",
			GroupBy:      api.StringList{"category"},
			Aggregations: map[string]api.StringList{"value": {"sum"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())

	cat, _ := out.Column("category")
	assert.Equal(t, "A", cat.Strings[0])
	val, ok := out.Column("value")
	require.True(t, ok, "single aggregation keeps the column name")
	assert.InDelta(t, 3.0, val.Floats[0], 1e-9)
}

func TestApply_GroupMultipleAggs(t *testing.T) {
	ds := salesFixture(t)
	out, err := Apply(ds, []api.TransformStep{{
		Type:         "group_summarize",
		GroupBy:      api.StringList{"category"},
		Aggregations: map[string]api.StringList{"value": {"sum", "mean"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	assert.True(t, out.Has("value_sum"))
	assert.True(t, out.Has("value_mean"))
}

func TestApply_Mutate(t *testing.T) {
	ds := salesFixture(t)
	out, err := Apply(ds, []api.TransformStep{{
		Type:      "mutate",
		Mutations: map[string]string{"double": "value * 2"},
	}})
	require.NoError(t, err)
	d, ok := out.Column("double")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 4, 10}, d.Floats)
}

func TestApply_SortDescending(t *testing.T) {
	ds := salesFixture(t)
	out, err := Apply(ds, []api.TransformStep{{
		Type:      "sort",
		SortBy:    api.StringList{"value"},
		Ascending: boolPtr(false),
	}})
	require.NoError(t, err)
	v, _ := out.Column("value")
	assert.Equal(t, []float64{5, 2, 1}, v.Floats)
}

func TestApply_SelectAndRename(t *testing.T) {
	ds := salesFixture(t)
	out, err := Apply(ds, []api.TransformStep{
		{Type: "select", Columns: api.StringList{"category", "value"}},
		{Type: "rename", RenameMap: map[string]string{"value": "amount"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"category", "amount"}, out.Columns())
}

func TestApply_DropAndFillNA(t *testing.T) {
	ds, err := frame.FromRows([]map[string]any{
		{"x": 1.0, "y": "a"},
		{"x": nil, "y": "b"},
		{"x": 3.0, "y": nil},
	})
	require.NoError(t, err)

	dropped, err := Apply(ds, []api.TransformStep{{Type: "drop_na"}})
	require.NoError(t, err)
	assert.Equal(t, 1, dropped.Len())

	scoped, err := Apply(ds, []api.TransformStep{{Type: "drop_na", Columns: api.StringList{"x"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, scoped.Len())

	filled, err := Apply(ds, []api.TransformStep{{Type: "fill_na", FillValues: map[string]any{"x": 0.0}}})
	require.NoError(t, err)
	x, _ := filled.Column("x")
	assert.True(t, x.Valid[1])
	assert.Equal(t, 0.0, x.Floats[1])
}

func TestApply_FillForward(t *testing.T) {
	ds, err := frame.FromRows([]map[string]any{
		{"x": 1.0}, {"x": nil}, {"x": nil}, {"x": 4.0},
	})
	require.NoError(t, err)
	out, err := Apply(ds, []api.TransformStep{{Type: "fill_na", Method: "ffill"}})
	require.NoError(t, err)
	x, _ := out.Column("x")
	assert.Equal(t, []float64{1, 1, 1, 4}, x.Floats)
}

func TestApply_SampleDeterministic(t *testing.T) {
	ds := salesFixture(t)
	a, err := Apply(ds, []api.TransformStep{{Type: "sample", N: intPtr(2)}})
	require.NoError(t, err)
	b, err := Apply(ds, []api.TransformStep{{Type: "sample", N: intPtr(2)}})
	require.NoError(t, err)
	require.Equal(t, 2, a.Len())

	av, _ := a.Column("value")
	bv, _ := b.Column("value")
	assert.Equal(t, av.Floats, bv.Floats, "same seed, same sample")

	frac, err := Apply(ds, []api.TransformStep{{Type: "sample", Frac: fracPtr(1.0)}})
	require.NoError(t, err)
	assert.Equal(t, 3, frac.Len())
}

func TestApply_SampleRejectsNegativeN(t *testing.T) {
	ds := salesFixture(t)
	_, err := Apply(ds, []api.TransformStep{{Type: "sample", N: intPtr(-1)}})
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestApply_Unique(t *testing.T) {
	ds := salesFixture(t)
	out, err := Apply(ds, []api.TransformStep{{Type: "unique", Columns: api.StringList{"category"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
}

func TestApply_Rolling(t *testing.T) {
	ds, err := frame.FromRows([]map[string]any{
		{"v": 1.0}, {"v": 2.0}, {"v": 3.0}, {"v": 4.0},
	})
	require.NoError(t, err)
	out, err := Apply(ds, []api.TransformStep{{Type: "rolling", Column: "v", Window: 2}})
	require.NoError(t, err)
	r, ok := out.Column("v_rolling_mean")
	require.True(t, ok)
	assert.False(t, r.Valid[0], "first window is incomplete")
	assert.Equal(t, 1.5, r.Floats[1])
	assert.Equal(t, 3.5, r.Floats[3])
}

func TestApply_Pivot(t *testing.T) {
	ds, err := frame.FromRows([]map[string]any{
		{"month": "jan", "region": "north", "sales": 10.0},
		{"month": "jan", "region": "south", "sales": 20.0},
		{"month": "feb", "region": "north", "sales": 30.0},
	})
	require.NoError(t, err)
	out, err := Apply(ds, []api.TransformStep{{
		Type: "pivot", Index: "month", PivotOn: "region", Values: "sales", AggFunc: "sum",
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"month", "north", "south"}, out.Columns())
	assert.Equal(t, 2, out.Len())

	south, _ := out.Column("south")
	assert.False(t, south.Valid[1], "feb/south has no observations")
}

func TestApply_ErrorNamesStep(t *testing.T) {
	ds := salesFixture(t)
	_, err := Apply(ds, []api.TransformStep{
		{Type: "filter", FilterExpr: "category == 'A'"},
		{Type: "filter", FilterExpr: "valeu > 1"},
	})
	require.Error(t, err)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Step)
	assert.Equal(t, "filter", te.Type)
	assert.Contains(t, err.Error(), `Did you mean "value"?`)
}

func TestApply_UnknownStepType(t *testing.T) {
	ds := salesFixture(t)
	_, err := Apply(ds, []api.TransformStep{{Type: "explode"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transform type")
}
