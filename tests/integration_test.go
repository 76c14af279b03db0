package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/catalog"
	"github.com/Fervoyush/plotnine-mcp/internal/load"
	"github.com/Fervoyush/plotnine-mcp/internal/render"
	"github.com/Fervoyush/plotnine-mcp/internal/transform"
)

// runPipeline drives the whole stack the way the MCP tools do:
// validate, load, transform, assemble, export.
func runPipeline(t *testing.T, cfg *api.PlotConfig) (render.ExportInfo, *render.Assembled) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	ds, err := load.Load(context.Background(), cfg.DataSource)
	require.NoError(t, err)
	ds, err = transform.Apply(ds, cfg.Transforms)
	require.NoError(t, err)
	assembled, err := render.Assemble(ds, cfg)
	require.NoError(t, err)
	var out api.Output
	if cfg.Output != nil {
		out = *cfg.Output
	}
	info, err := render.Export(assembled, out)
	require.NoError(t, err)
	return info, assembled
}

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sales.csv")
	content := "region,month,revenue\n"
	for i, region := range []string{"west", "east"} {
		for m := 1; m <= 6; m++ {
			content += fmt.Sprintf("%s,2024-%02d-01,%d\n", region, m, 100+10*m+i*37)
		}
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVFileToPNG(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir)

	cfg := &api.PlotConfig{
		DataSource: api.DataSource{Type: "file", Path: path},
		Aes:        api.Aesthetics{X: "month", Y: "revenue", Color: "region"},
		Geom:       &api.Geom{Type: "line"},
		Scales:     []api.Scale{{Aesthetic: "x", Type: "datetime"}},
		Labels:     &api.Labels{Title: "Monthly revenue", Y: "Revenue (USD)"},
		Output:     &api.Output{Directory: dir, Width: 5, Height: 3, DPI: 96},
	}
	info, assembled := runPipeline(t, cfg)

	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 12, assembled.Info.Rows)
	st, err := os.Stat(info.Path)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))
}

func TestTransformThenFacetedPlot(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir)

	cfg := &api.PlotConfig{
		DataSource: api.DataSource{Type: "file", Path: path},
		Transforms: []api.TransformStep{
			{Type: "filter", FilterExpr: "revenue > 120"},
		},
		Aes:    api.Aesthetics{X: "month", Y: "revenue"},
		Geom:   &api.Geom{Type: "point"},
		Facets: &api.Facets{Type: "wrap", Facets: "~region", Params: map[string]any{"ncol": 2.0}},
		Output: &api.Output{Directory: dir, Format: "svg", Width: 6, Height: 3, DPI: 96},
	}
	info, assembled := runPipeline(t, cfg)

	assert.Equal(t, 2, assembled.Info.Panels)
	assert.Less(t, assembled.Info.Rows, 12)
	assert.Equal(t, ".svg", filepath.Ext(info.Path))
}

// A config serialized to JSON and parsed back must assemble an
// equivalent plot.
func TestConfigRoundTripEquivalence(t *testing.T) {
	dir := t.TempDir()
	cfg := &api.PlotConfig{
		DataSource: api.DataSource{Type: "inline", Data: []map[string]any{
			{"x": 1.0, "y": 2.0, "g": "a"},
			{"x": 2.0, "y": 4.0, "g": "a"},
			{"x": 3.0, "y": 3.0, "g": "b"},
			{"x": 4.0, "y": 6.0, "g": "b"},
		}},
		Aes:    api.Aesthetics{X: "x", Y: "y", Color: "g"},
		Geoms:  []api.Geom{{Type: "point"}, {Type: "smooth", Params: map[string]any{"se": false}}},
		Theme:  &api.Theme{Base: "minimal"},
		Output: &api.Output{Directory: dir, Width: 4, Height: 3, DPI: 72},
	}

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	parsed, err := api.ParseConfig(raw)
	require.NoError(t, err)

	_, first := runPipeline(t, cfg)
	_, second := runPipeline(t, parsed)
	assert.Equal(t, first.Info, second.Info)
}

// The single-geom and list forms of the same layer must be equivalent.
func TestGeomVersusGeomsEquivalence(t *testing.T) {
	dir := t.TempDir()
	source := api.DataSource{Type: "inline", Data: []map[string]any{
		{"x": 1.0, "y": 2.0},
		{"x": 2.0, "y": 4.0},
		{"x": 3.0, "y": 3.0},
	}}
	single := &api.PlotConfig{
		DataSource: source,
		Aes:        api.Aesthetics{X: "x", Y: "y"},
		Geom:       &api.Geom{Type: "point"},
		Output:     &api.Output{Directory: dir, Width: 3, Height: 2, DPI: 72},
	}
	list := &api.PlotConfig{
		DataSource: source,
		Aes:        api.Aesthetics{X: "x", Y: "y"},
		Geoms:      []api.Geom{{Type: "point"}},
		Output:     &api.Output{Directory: dir, Width: 3, Height: 2, DPI: 72},
	}
	_, a := runPipeline(t, single)
	_, b := runPipeline(t, list)
	assert.Equal(t, a.Info, b.Info)
}

func TestTemplateEndToEnd(t *testing.T) {
	dir := t.TempDir()
	source := api.DataSource{Type: "inline", Data: []map[string]any{
		{"when": "2024-01-01", "value": 10.0},
		{"when": "2024-02-01", "value": 14.0},
		{"when": "2024-03-01", "value": 12.0},
		{"when": "2024-04-01", "value": 18.0},
	}}
	cfg, err := catalog.ApplyTemplate("time_series", source,
		api.Aesthetics{X: "when", Y: "value"}, nil)
	require.NoError(t, err)
	cfg.Output = &api.Output{Directory: dir, Width: 5, Height: 3, DPI: 72}

	info, assembled := runPipeline(t, cfg)
	assert.Equal(t, 4, assembled.Info.Rows)
	st, err := os.Stat(info.Path)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))
}

func TestGroupSummarizeToBarChart(t *testing.T) {
	dir := t.TempDir()
	cfg := &api.PlotConfig{
		DataSource: api.DataSource{Type: "inline", Data: []map[string]any{
			{"category": "A", "value": 1.0},
			{"category": "B", "value": 5.0},
			{"category": "A", "value": 2.0},
			{"category": "B", "value": 3.0},
		}},
		Transforms: []api.TransformStep{{
			Type:         "group_summarize",
			GroupBy:      api.StringList{"category"},
			Aggregations: map[string]api.StringList{"value": {"sum"}},
		}},
		Aes:    api.Aesthetics{X: "category", Y: "value"},
		Geom:   &api.Geom{Type: "col"},
		Output: &api.Output{Directory: dir, Width: 4, Height: 3, DPI: 72},
	}
	_, assembled := runPipeline(t, cfg)
	assert.Equal(t, 2, assembled.Info.Rows)
}

func TestPDFOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := &api.PlotConfig{
		DataSource: api.DataSource{Type: "inline", Data: []map[string]any{
			{"x": 1.0, "y": 1.0}, {"x": 2.0, "y": 4.0}, {"x": 3.0, "y": 9.0},
		}},
		Aes:    api.Aesthetics{X: "x", Y: "y"},
		Geom:   &api.Geom{Type: "point"},
		Output: &api.Output{Directory: dir, Format: "pdf", Filename: "squares", Width: 4, Height: 3, DPI: 72},
	}
	info, _ := runPipeline(t, cfg)
	assert.Equal(t, filepath.Join(dir, "squares.pdf"), info.Path)
	st, err := os.Stat(info.Path)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))
}
