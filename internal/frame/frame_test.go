package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsFixture() []map[string]any {
	return []map[string]any{
		{"category": "A", "value": 1.0, "when": "2024-01-01", "ok": true},
		{"category": "A", "value": 2.0, "when": "2024-01-02", "ok": false},
		{"category": "B", "value": 5.0, "when": "2024-01-03", "ok": true},
	}
}

func TestFromRows_InfersKinds(t *testing.T) {
	ds, err := FromRows(rowsFixture())
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	cat, ok := ds.Column("category")
	require.True(t, ok)
	assert.Equal(t, String, cat.Kind)

	val, ok := ds.Column("value")
	require.True(t, ok)
	assert.Equal(t, Numeric, val.Kind)

	when, ok := ds.Column("when")
	require.True(t, ok)
	assert.Equal(t, Datetime, when.Kind)
	assert.Equal(t, time.January, when.Times[0].Month())

	flag, ok := ds.Column("ok")
	require.True(t, ok)
	assert.Equal(t, Bool, flag.Kind)
}

func TestFromRows_MissingCells(t *testing.T) {
	ds, err := FromRows([]map[string]any{
		{"x": 1.0, "y": "a"},
		{"x": nil},
		{"y": "b"},
	})
	require.NoError(t, err)

	x, _ := ds.Column("x")
	assert.Equal(t, []bool{true, false, false}, x.Valid)
	assert.Nil(t, x.Value(1))

	y, _ := ds.Column("y")
	assert.True(t, y.Valid[2])
	assert.Equal(t, "b", y.Value(2))
}

func TestFromStringTable_NumericParse(t *testing.T) {
	ds, err := FromStringTable(
		[]string{"name", "score"},
		[][]string{{"ann", "1.5"}, {"bob", "2"}, {"cid", ""}},
	)
	require.NoError(t, err)

	score, _ := ds.Column("score")
	assert.Equal(t, Numeric, score.Kind)
	assert.InDelta(t, 1.5, score.Floats[0], 1e-9)
	assert.False(t, score.Valid[2], "empty cell is missing")
}

func TestTakeAndSelect(t *testing.T) {
	ds, err := FromRows(rowsFixture())
	require.NoError(t, err)

	sub := ds.Take([]int{2, 0})
	require.Equal(t, 2, sub.Len())
	cat, _ := sub.Column("category")
	assert.Equal(t, "B", cat.Strings[0])
	assert.Equal(t, "A", cat.Strings[1])

	sel, err := ds.Select([]string{"value"})
	require.NoError(t, err)
	assert.Equal(t, []string{"value"}, sel.Columns())

	_, err = ds.Select([]string{"nope"})
	require.Error(t, err)
}

func TestLevels(t *testing.T) {
	ds, err := FromRows(rowsFixture())
	require.NoError(t, err)
	cat, _ := ds.Column("category")
	assert.Equal(t, []string{"A", "B"}, cat.Levels())
}

func TestSummarize(t *testing.T) {
	ds, err := FromRows(rowsFixture())
	require.NoError(t, err)

	p := ds.Summarize(2)
	assert.Equal(t, 3, p.Rows)
	assert.Equal(t, 4, p.Cols)
	assert.Len(t, p.Sample, 2)
	assert.Equal(t, "numeric", p.Dtypes["value"])
	assert.Equal(t, 0, p.Missing["value"])

	st := p.Numeric["value"]
	assert.Equal(t, 3, st.Count)
	assert.InDelta(t, 8.0/3.0, st.Mean, 1e-9)
	assert.InDelta(t, 1.0, st.Min, 1e-9)
	assert.InDelta(t, 5.0, st.Max, 1e-9)
}

func TestCountTypes(t *testing.T) {
	ds, err := FromRows(rowsFixture())
	require.NoError(t, err)
	tc := ds.CountTypes()
	assert.Equal(t, 1, tc.Numeric)
	assert.Equal(t, 2, tc.Categorical) // string + bool
	assert.Equal(t, 1, tc.Datetime)
}
