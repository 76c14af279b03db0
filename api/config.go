// Package api defines the declarative plot-configuration schema.
// A PlotConfig is a tree of optional sub-configurations that serializes
// to JSON field-for-field; round-tripping a config reproduces an
// equivalent plot.
package api

import (
	"encoding/json"
	"fmt"
)

// DataSource describes where tabular data comes from.
type DataSource struct {
	// Type of source: "file", "url" or "inline".
	Type string `json:"type" jsonschema:"enum=file,enum=url,enum=inline"`
	// Path is a local file path or URL (file/url types).
	Path string `json:"path,omitempty"`
	// Data holds inline rows as an array of objects (inline type).
	Data []map[string]any `json:"data,omitempty"`
	// Format is one of csv, json, parquet, excel. Auto-detected when empty.
	Format string `json:"format,omitempty" jsonschema:"enum=csv,enum=json,enum=parquet,enum=excel"`
}

// Aesthetics maps data columns onto visual channels.
type Aesthetics struct {
	X        string `json:"x,omitempty"`
	Y        string `json:"y,omitempty"`
	Color    string `json:"color,omitempty"`
	Fill     string `json:"fill,omitempty"`
	Size     string `json:"size,omitempty"`
	Alpha    string `json:"alpha,omitempty"`
	Shape    string `json:"shape,omitempty"`
	Linetype string `json:"linetype,omitempty"`
	Group    string `json:"group,omitempty"`
}

// Binding is one aesthetic-channel-to-column association.
type Binding struct {
	Channel string
	Column  string
}

// Bindings returns the non-empty mappings in a fixed channel order so
// assembly is deterministic.
func (a Aesthetics) Bindings() []Binding {
	pairs := []Binding{
		{"x", a.X}, {"y", a.Y}, {"color", a.Color}, {"fill", a.Fill},
		{"size", a.Size}, {"alpha", a.Alpha}, {"shape", a.Shape},
		{"linetype", a.Linetype}, {"group", a.Group},
	}
	out := pairs[:0]
	for _, p := range pairs {
		if p.Column != "" {
			out = append(out, p)
		}
	}
	return out
}

// Geom is one geometry layer: a type tag plus free-form parameters.
// Layers render in list order, later layers on top.
type Geom struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Scale combines an aesthetic name and a scale type into one scale
// application, e.g. {aesthetic: "x", type: "log10"}.
type Scale struct {
	Aesthetic string         `json:"aesthetic"`
	Type      string         `json:"type"`
	Params    map[string]any `json:"params,omitempty"`
}

// Theme selects a base theme and optional customizations layered on top.
type Theme struct {
	Base           string         `json:"base,omitempty"`
	Customizations map[string]any `json:"customizations,omitempty"`
}

// Facets subdivides the plot into panels. "wrap" lays a single variable
// out in a grid; "grid" crosses a row variable with a column variable.
type Facets struct {
	Type   string         `json:"type,omitempty" jsonschema:"enum=wrap,enum=grid"`
	Facets string         `json:"facets,omitempty"`
	Rows   string         `json:"rows,omitempty"`
	Cols   string         `json:"cols,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// Labels holds the textual annotations. All fields are independent.
type Labels struct {
	Title    string `json:"title,omitempty"`
	X        string `json:"x,omitempty"`
	Y        string `json:"y,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
}

// Coords selects the coordinate system: cartesian, flip, fixed or trans.
type Coords struct {
	Type   string         `json:"type,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// Stat is a statistical transformation layer (smooth, bin, density,
// summary) applied on top of the geometry layers.
type Stat struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Output controls serialization of the rendered plot.
type Output struct {
	Format    string  `json:"format,omitempty" jsonschema:"enum=png,enum=pdf,enum=svg"`
	Filename  string  `json:"filename,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
	DPI       int     `json:"dpi,omitempty"`
	Directory string  `json:"directory,omitempty"`
}

// WithDefaults fills unset output fields with the standard defaults:
// png, 8x6 inches, 300 DPI, ./output.
func (o Output) WithDefaults() Output {
	if o.Format == "" {
		o.Format = "png"
	}
	if o.Width <= 0 {
		o.Width = 8
	}
	if o.Height <= 0 {
		o.Height = 6
	}
	if o.DPI <= 0 {
		o.DPI = 300
	}
	if o.Directory == "" {
		o.Directory = "./output"
	}
	return o
}

// PlotConfig is the full declarative description of one plot.
type PlotConfig struct {
	DataSource DataSource      `json:"data_source"`
	Aes        Aesthetics      `json:"aes"`
	Geom       *Geom           `json:"geom,omitempty"`
	Geoms      []Geom          `json:"geoms,omitempty"`
	Scales     []Scale         `json:"scales,omitempty"`
	Theme      *Theme          `json:"theme,omitempty"`
	Facets     *Facets         `json:"facets,omitempty"`
	Labels     *Labels         `json:"labels,omitempty"`
	Coords     *Coords         `json:"coords,omitempty"`
	Stats      []Stat          `json:"stats,omitempty"`
	Transforms []TransformStep `json:"transforms,omitempty"`
	Output     *Output         `json:"output,omitempty"`
}

// GeomLayers normalizes the single-geom and multi-geom fields into one
// layer list. The single form is treated as a one-element list; when both
// are set the list wins.
func (c *PlotConfig) GeomLayers() []Geom {
	if len(c.Geoms) > 0 {
		return c.Geoms
	}
	if c.Geom != nil {
		return []Geom{*c.Geom}
	}
	return nil
}

// ValidationError reports a schema constraint violation. It is raised
// before any loading, transforming or assembly runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

var validFormats = map[string]bool{"": true, "csv": true, "json": true, "parquet": true, "excel": true}

// Validate checks the structural constraints of the configuration.
// Column existence and registry membership are checked later by the
// loader and assembler against the actual dataset.
func (c *PlotConfig) Validate() error {
	switch c.DataSource.Type {
	case "inline":
		if len(c.DataSource.Data) == 0 {
			return &ValidationError{Field: "data_source.data", Reason: "inline source requires data rows"}
		}
	case "file", "url":
		if c.DataSource.Path == "" {
			return &ValidationError{Field: "data_source.path", Reason: c.DataSource.Type + " source requires a path"}
		}
	default:
		return &ValidationError{Field: "data_source.type", Reason: fmt.Sprintf("unknown source type %q", c.DataSource.Type)}
	}
	if !validFormats[c.DataSource.Format] {
		return &ValidationError{Field: "data_source.format", Reason: fmt.Sprintf("unknown format %q", c.DataSource.Format)}
	}
	if c.Facets != nil {
		switch c.Facets.Type {
		case "", "wrap", "grid":
		default:
			return &ValidationError{Field: "facets.type", Reason: fmt.Sprintf("unknown facet type %q", c.Facets.Type)}
		}
	}
	if c.Output != nil {
		switch c.Output.Format {
		case "", "png", "pdf", "svg":
		default:
			return &ValidationError{Field: "output.format", Reason: fmt.Sprintf("unknown output format %q", c.Output.Format)}
		}
		if c.Output.Width < 0 || c.Output.Height < 0 {
			return &ValidationError{Field: "output", Reason: "width and height must be positive"}
		}
	}
	for i, s := range c.Scales {
		if s.Aesthetic == "" || s.Type == "" {
			return &ValidationError{Field: fmt.Sprintf("scales[%d]", i), Reason: "aesthetic and type are required"}
		}
	}
	return nil
}

// ParseConfig decodes a JSON document into a validated PlotConfig.
func ParseConfig(raw []byte) (*PlotConfig, error) {
	var cfg PlotConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &ValidationError{Field: "config", Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
