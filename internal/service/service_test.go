package service

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *Service {
	return New(log.New(io.Discard))
}

func request(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func decode(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	return out
}

func inlineSource(rows []map[string]any) map[string]any {
	data := make([]any, len(rows))
	for i, r := range rows {
		data[i] = r
	}
	return map[string]any{"type": "inline", "data": data}
}

func scatterRows() []map[string]any {
	return []map[string]any{
		{"x": 1.0, "y": 2.0, "group": "A"},
		{"x": 2.0, "y": 4.0, "group": "A"},
		{"x": 3.0, "y": 5.5, "group": "B"},
		{"x": 4.0, "y": 8.0, "group": "B"},
	}
}

func TestCreatePlot(t *testing.T) {
	s := testService()
	dir := t.TempDir()
	res, err := s.handleCreatePlot(context.Background(), request(map[string]any{
		"data_source": inlineSource(scatterRows()),
		"aes":         map[string]any{"x": "x", "y": "y"},
		"geom":        map[string]any{"type": "point"},
		"output":      map[string]any{"directory": dir, "width": 4.0, "height": 3.0, "dpi": 72.0},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	out := decode(t, res)
	assert.Equal(t, true, out["success"])
	path, _ := out["file_path"].(string)
	require.NotEmpty(t, path)
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))
	assert.Equal(t, dir, filepath.Dir(path))
}

func TestCreatePlot_UnknownGeomFails(t *testing.T) {
	s := testService()
	res, err := s.handleCreatePlot(context.Background(), request(map[string]any{
		"data_source": inlineSource(scatterRows()),
		"aes":         map[string]any{"x": "x", "y": "y"},
		"geom":        map[string]any{"type": "poit"},
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), `"point"`)
}

func TestCreatePlot_ValidationFailsBeforeLoading(t *testing.T) {
	s := testService()
	res, err := s.handleCreatePlot(context.Background(), request(map[string]any{
		"data_source": map[string]any{"type": "file"},
		"aes":         map[string]any{"x": "x"},
		"geom":        map[string]any{"type": "point"},
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "requires a path")
}

func TestPreviewData(t *testing.T) {
	s := testService()
	res, err := s.handlePreviewData(context.Background(), request(map[string]any{
		"data_source": inlineSource(scatterRows()),
		"rows":        2.0,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	out := decode(t, res)
	assert.Equal(t, float64(4), out["rows"])
	assert.Equal(t, float64(3), out["cols"])
	sample, _ := out["sample"].([]any)
	assert.Len(t, sample, 2)
}

func TestPreviewData_WithTransforms(t *testing.T) {
	s := testService()
	res, err := s.handlePreviewData(context.Background(), request(map[string]any{
		"data_source": inlineSource(scatterRows()),
		"transforms":  []any{map[string]any{"type": "filter", "filter_expr": "y > 4"}},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))
	assert.Equal(t, float64(2), decode(t, res)["rows"])
}

func TestListGeomTypes(t *testing.T) {
	s := testService()
	res, err := s.handleListGeoms(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	out := decode(t, res)
	geoms, _ := out["geoms"].([]any)
	assert.Len(t, geoms, 20)
	scales, _ := out["scales"].([]any)
	assert.Len(t, scales, 16)
}

func TestListThemes(t *testing.T) {
	s := testService()
	res, err := s.handleListThemes(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	themes, _ := decode(t, res)["themes"].(map[string]any)
	assert.Len(t, themes, 8)
	assert.Contains(t, themes, "grey")
}

func TestListPalettes(t *testing.T) {
	s := testService()
	res, err := s.handleListPalettes(context.Background(), request(nil))
	require.NoError(t, err)
	palettes, _ := decode(t, res)["palettes"].([]any)
	assert.Len(t, palettes, 21)

	res, err = s.handleListPalettes(context.Background(), request(map[string]any{"category": "scientific"}))
	require.NoError(t, err)
	palettes, _ = decode(t, res)["palettes"].([]any)
	assert.Len(t, palettes, 4)

	res, err = s.handleListPalettes(context.Background(), request(map[string]any{"category": "scientifc"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListTemplates(t *testing.T) {
	s := testService()
	res, err := s.handleListTemplates(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	templates, _ := decode(t, res)["templates"].([]any)
	assert.Len(t, templates, 9)
}

func TestCreatePlotFromTemplate(t *testing.T) {
	s := testService()
	dir := t.TempDir()
	res, err := s.handleTemplatePlot(context.Background(), request(map[string]any{
		"template":    "scatter_with_trend",
		"data_source": inlineSource(scatterRows()),
		"aes":         map[string]any{"x": "x", "y": "y"},
		"output":      map[string]any{"directory": dir, "width": 4.0, "height": 3.0, "dpi": 72.0},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))
	out := decode(t, res)
	assert.Equal(t, true, out["success"])
}

func TestCreatePlotFromTemplate_MissingAes(t *testing.T) {
	s := testService()
	res, err := s.handleTemplatePlot(context.Background(), request(map[string]any{
		"template":    "scatter_with_trend",
		"data_source": inlineSource(scatterRows()),
		"aes":         map[string]any{"x": "x"},
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "missing")
}

func TestSuggestPlotTemplates(t *testing.T) {
	s := testService()
	rows := []map[string]any{
		{"when": "2024-01-01", "value": 1.0},
		{"when": "2024-01-02", "value": 3.0},
		{"when": "2024-01-03", "value": 2.0},
	}
	res, err := s.handleSuggestTemplates(context.Background(), request(map[string]any{
		"data_source": inlineSource(rows),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	out := decode(t, res)
	recs, _ := out["recommendations"].([]any)
	require.NotEmpty(t, recs)
	first, _ := recs[0].(map[string]any)
	assert.Equal(t, "time_series", first["name"])
}

func TestExportImportRoundTrip(t *testing.T) {
	s := testService()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := map[string]any{
		"data_source": inlineSource(scatterRows()),
		"aes":         map[string]any{"x": "x", "y": "y", "color": "group"},
		"geoms":       []any{map[string]any{"type": "point"}, map[string]any{"type": "smooth"}},
		"labels":      map[string]any{"title": "Round trip"},
	}
	res, err := s.handleExportConfig(context.Background(), request(map[string]any{
		"config": cfg,
		"path":   path,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))
	_, err = os.Stat(path)
	require.NoError(t, err)

	res, err = s.handleImportConfig(context.Background(), request(map[string]any{"path": path}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))
	out := decode(t, res)
	assert.Equal(t, true, out["valid"])
	geoms, _ := out["geoms"].([]any)
	assert.Equal(t, []any{"point", "smooth"}, geoms)
}

func TestImportConfig_OverridesWin(t *testing.T) {
	s := testService()
	cfg := map[string]any{
		"data_source": inlineSource(scatterRows()),
		"aes":         map[string]any{"x": "x", "y": "y"},
		"geom":        map[string]any{"type": "point"},
		"labels":      map[string]any{"title": "Before"},
	}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)

	res, err := s.handleImportConfig(context.Background(), request(map[string]any{
		"config_json": string(raw),
		"overrides": map[string]any{
			"geoms":  []any{map[string]any{"type": "line"}},
			"labels": map[string]any{"title": "After"},
		},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	out := decode(t, res)
	assert.Equal(t, true, out["valid"])
	geoms, _ := out["geoms"].([]any)
	assert.Equal(t, []any{"line"}, geoms)
	merged, _ := out["config"].(map[string]any)
	labels, _ := merged["labels"].(map[string]any)
	assert.Equal(t, "After", labels["title"])

	res, err = s.handleImportConfig(context.Background(), request(map[string]any{
		"config_json": string(raw),
		"overrides":   map[string]any{"output": map[string]any{"format": "gif"}},
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestImportConfig_RequiresInput(t *testing.T) {
	s := testService()
	res, err := s.handleImportConfig(context.Background(), request(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestBatchCreatePlots_IsolatesFailures(t *testing.T) {
	s := testService()
	dir := t.TempDir()
	good := map[string]any{
		"data_source": inlineSource(scatterRows()),
		"aes":         map[string]any{"x": "x", "y": "y"},
		"geom":        map[string]any{"type": "point"},
		"output":      map[string]any{"directory": dir, "width": 3.0, "height": 2.0, "dpi": 72.0},
	}
	bad := map[string]any{
		"data_source": inlineSource(scatterRows()),
		"aes":         map[string]any{"x": "x", "y": "y"},
		"geom":        map[string]any{"type": "poit"},
	}
	res, err := s.handleBatch(context.Background(), request(map[string]any{
		"configs": []any{good, bad, good},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	out := decode(t, res)
	assert.Equal(t, float64(3), out["total"])
	assert.Equal(t, float64(2), out["succeeded"])
	assert.Equal(t, float64(1), out["failed"])

	results, _ := out["results"].([]any)
	require.Len(t, results, 3)
	second, _ := results[1].(map[string]any)
	assert.Equal(t, false, second["success"])
	errText, _ := second["error"].(string)
	assert.Contains(t, errText, "poit")
}

func TestBatchCreatePlots_NegativeSampleDoesNotAbortBatch(t *testing.T) {
	s := testService()
	dir := t.TempDir()
	good := map[string]any{
		"data_source": inlineSource(scatterRows()),
		"aes":         map[string]any{"x": "x", "y": "y"},
		"geom":        map[string]any{"type": "point"},
		"output":      map[string]any{"directory": dir, "width": 3.0, "height": 2.0, "dpi": 72.0},
	}
	bad := map[string]any{
		"data_source": inlineSource(scatterRows()),
		"aes":         map[string]any{"x": "x", "y": "y"},
		"geom":        map[string]any{"type": "point"},
		"transforms":  []any{map[string]any{"type": "sample", "n": -1.0}},
	}
	res, err := s.handleBatch(context.Background(), request(map[string]any{
		"configs": []any{bad, good},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	out := decode(t, res)
	assert.Equal(t, float64(2), out["total"])
	assert.Equal(t, float64(1), out["succeeded"])
	assert.Equal(t, float64(1), out["failed"])

	results, _ := out["results"].([]any)
	require.Len(t, results, 2)
	first, _ := results[0].(map[string]any)
	errText, _ := first["error"].(string)
	assert.Contains(t, errText, "non-negative")
}

func TestNewServerRegistersTools(t *testing.T) {
	s := testService()
	srv := s.NewServer()
	require.NotNil(t, srv)
}
