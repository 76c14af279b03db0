package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/frame"
)

func TestPalettes_All(t *testing.T) {
	all, err := Palettes("")
	require.NoError(t, err)
	assert.Len(t, all, 21)
	for _, p := range all {
		assert.NotEmpty(t, p.Colors, "palette %s", p.Name)
	}
}

func TestPalettes_CategoryFilter(t *testing.T) {
	sci, err := Palettes("scientific")
	require.NoError(t, err)
	require.Len(t, sci, 4)
	for _, p := range sci {
		assert.Equal(t, "scientific", p.Category)
	}

	_, err = Palettes("scientifc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Did you mean "scientific"?`)
}

func TestLookupPalette_BareAndQualified(t *testing.T) {
	a, err := LookupPalette("viridis")
	require.NoError(t, err)
	b, err := LookupPalette("scientific_viridis")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "#440154", a.Colors[0])
}

func TestScaleFromPalette(t *testing.T) {
	discrete, err := ScaleFromPalette("set1", "fill", "discrete")
	require.NoError(t, err)
	assert.Equal(t, "fill", discrete.Aesthetic)
	assert.Len(t, discrete.Params["values"], 9)

	gradient, err := ScaleFromPalette("blues", "", "gradient")
	require.NoError(t, err)
	assert.Equal(t, "color", gradient.Aesthetic)
	assert.Equal(t, "#F7FBFF", gradient.Params["low"])
	assert.Equal(t, "#08306B", gradient.Params["high"])

	_, err = ScaleFromPalette("set1", "fill", "rainbow")
	assert.Error(t, err)
}

func TestParseHex(t *testing.T) {
	r, g, b, err := ParseHex("#E69F00")
	require.NoError(t, err)
	assert.Equal(t, uint8(0xE6), r)
	assert.Equal(t, uint8(0x9F), g)
	assert.Equal(t, uint8(0x00), b)

	_, _, _, err = ParseHex("red")
	assert.Error(t, err)
}

func TestLookupTemplate(t *testing.T) {
	tpl, err := LookupTemplate("time_series")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, tpl.RequiredAes)

	_, err = LookupTemplate("time_serise")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Did you mean "time_series"?`)
}

func TestApplyTemplate_MergesUserValues(t *testing.T) {
	src := api.DataSource{Type: "inline", Data: []map[string]any{{"x": 1.0, "y": 2.0}}}
	cfg, err := ApplyTemplate("scatter_with_trend", src, api.Aesthetics{X: "x", Y: "y"}, nil)
	require.NoError(t, err)
	require.Len(t, cfg.Geoms, 2)
	assert.Equal(t, "point", cfg.Geoms[0].Type)
	assert.Equal(t, "minimal", cfg.Theme.Base)
	assert.Equal(t, "x", cfg.Aes.X)
}

func TestApplyTemplate_OverridesWin(t *testing.T) {
	src := api.DataSource{Type: "inline", Data: []map[string]any{{"x": 1.0, "y": 2.0}}}
	cfg, err := ApplyTemplate("scatter_with_trend", src, api.Aesthetics{X: "x", Y: "y"},
		map[string]any{"theme": map[string]any{"base": "dark"}})
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.Theme.Base)
	assert.Len(t, cfg.Geoms, 2, "non-overridden sections survive")
}

func TestApplyTemplate_MissingRequiredAes(t *testing.T) {
	src := api.DataSource{Type: "inline", Data: []map[string]any{{"x": 1.0}}}
	_, err := ApplyTemplate("scatter_with_trend", src, api.Aesthetics{X: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Contains(t, err.Error(), "y")
}

func TestSuggestTemplates_TimeSeries(t *testing.T) {
	ds, err := frame.FromRows([]map[string]any{
		{"when": "2024-01-01", "value": 1.0},
		{"when": "2024-01-02", "value": 2.0},
	})
	require.NoError(t, err)

	recs := SuggestTemplates(ds, "")
	require.NotEmpty(t, recs)
	assert.Equal(t, "time_series", recs[0].Name)
	assert.NotEmpty(t, recs[0].Reason)
}

func TestSuggestTemplates_GoalBoost(t *testing.T) {
	ds, err := frame.FromRows([]map[string]any{
		{"group": "A", "v": 1.0, "w": 2.0},
		{"group": "B", "v": 3.0, "w": 4.0},
	})
	require.NoError(t, err)

	recs := SuggestTemplates(ds, "compare distributions between groups")
	require.NotEmpty(t, recs)
	top := recs[0].Name
	assert.Contains(t, []string{"distribution_comparison", "boxplot_comparison"}, top)
	assert.LessOrEqual(t, len(recs), 5)
}

func TestSuggestTemplates_LoneNumeric(t *testing.T) {
	ds, err := frame.FromRows([]map[string]any{{"v": 1.0}, {"v": 2.0}})
	require.NoError(t, err)
	recs := SuggestTemplates(ds, "")
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.Name
	}
	assert.Contains(t, names, "histogram_with_density")
}
