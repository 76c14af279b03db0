package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_MinimalScatter(t *testing.T) {
	raw := []byte(`{
		"data_source": {"type": "inline", "data": [{"x": 1, "y": 2}]},
		"aes": {"x": "x", "y": "y"},
		"geom": {"type": "point"}
	}`)
	cfg, err := ParseConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, "inline", cfg.DataSource.Type)
	assert.Equal(t, "x", cfg.Aes.X)
	require.NotNil(t, cfg.Geom)
	assert.Equal(t, "point", cfg.Geom.Type)
}

func TestParseConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"bad json", `{`, "config"},
		{"unknown source type", `{"data_source": {"type": "db"}}`, "data_source.type"},
		{"file without path", `{"data_source": {"type": "file"}}`, "data_source.path"},
		{"inline without rows", `{"data_source": {"type": "inline"}}`, "data_source.data"},
		{"unknown format", `{"data_source": {"type": "file", "path": "a.csv", "format": "xml"}}`, "format"},
		{"bad facet type", `{"data_source": {"type": "inline", "data": [{"x": 1}]}, "facets": {"type": "swirl"}}`, "facets.type"},
		{"bad output format", `{"data_source": {"type": "inline", "data": [{"x": 1}]}, "output": {"format": "bmp"}}`, "output.format"},
		{"scale without type", `{"data_source": {"type": "inline", "data": [{"x": 1}]}, "scales": [{"aesthetic": "x"}]}`, "scales[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestGeomLayers(t *testing.T) {
	single := &PlotConfig{Geom: &Geom{Type: "point"}}
	assert.Equal(t, []Geom{{Type: "point"}}, single.GeomLayers())

	list := &PlotConfig{Geoms: []Geom{{Type: "point"}, {Type: "line"}}}
	assert.Len(t, list.GeomLayers(), 2)

	// When both forms are present the list wins.
	both := &PlotConfig{
		Geom:  &Geom{Type: "bar"},
		Geoms: []Geom{{Type: "point"}},
	}
	assert.Equal(t, []Geom{{Type: "point"}}, both.GeomLayers())

	assert.Nil(t, (&PlotConfig{}).GeomLayers())
}

func TestAestheticsBindings(t *testing.T) {
	aes := Aesthetics{X: "a", Color: "c"}
	got := aes.Bindings()
	require.Len(t, got, 2)
	assert.Equal(t, Binding{Channel: "x", Column: "a"}, got[0])
	assert.Equal(t, Binding{Channel: "color", Column: "c"}, got[1])
}

func TestOutputWithDefaults(t *testing.T) {
	out := Output{}.WithDefaults()
	assert.Equal(t, "png", out.Format)
	assert.Equal(t, 8.0, out.Width)
	assert.Equal(t, 6.0, out.Height)
	assert.Equal(t, 300, out.DPI)
	assert.Equal(t, "./output", out.Directory)

	custom := Output{Format: "svg", Width: 4, Height: 3, DPI: 96, Directory: "/tmp/plots"}.WithDefaults()
	assert.Equal(t, Output{Format: "svg", Width: 4, Height: 3, DPI: 96, Directory: "/tmp/plots"}, custom)
}

func TestStringListDecoding(t *testing.T) {
	var step TransformStep
	require.NoError(t, json.Unmarshal([]byte(`{"type": "sort", "sort_by": "value"}`), &step))
	assert.Equal(t, StringList{"value"}, step.SortBy)

	require.NoError(t, json.Unmarshal([]byte(`{"type": "sort", "sort_by": ["a", "b"]}`), &step))
	assert.Equal(t, StringList{"a", "b"}, step.SortBy)

	require.NoError(t, json.Unmarshal([]byte(`{"type": "group_summarize", "aggregations": {"v": "mean"}}`), &step))
	assert.Equal(t, StringList{"mean"}, step.Aggregations["v"])
}

func TestConfigJSONRoundTrip(t *testing.T) {
	cfg := &PlotConfig{
		DataSource: DataSource{Type: "inline", Data: []map[string]any{{"x": 1.0}}},
		Aes:        Aesthetics{X: "x"},
		Geoms:      []Geom{{Type: "histogram", Params: map[string]any{"bins": 20.0}}},
		Theme:      &Theme{Base: "minimal"},
		Labels:     &Labels{Title: "T"},
	}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	back, err := ParseConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
