package render

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/catalog"
	"github.com/Fervoyush/plotnine-mcp/internal/suggest"
)

// Theme is a resolved set of non-data styling decisions: backgrounds,
// grid, text, legend placement and an optional figure-size override.
type Theme struct {
	Name            string
	Background      color.Color
	PanelBackground color.Color
	GridColor       color.Color // nil disables the grid
	TextColor       color.Color
	BaseFontSize    vg.Length
	AxisFontSize    vg.Length
	HideAxes        bool
	LegendPosition  string // right, left, top, bottom, none
	LegendHoriz     bool
	FigWidth        float64 // inches; 0 leaves the output config in charge
	FigHeight       float64
}

var (
	colGray      = color.RGBA{R: 0xEB, G: 0xEB, B: 0xEB, A: 0xFF}
	colLightGray = color.RGBA{R: 0xDD, G: 0xDD, B: 0xDD, A: 0xFF}
	colDarkPanel = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xFF}
	colDarkGrid  = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xFF}
	colNearWhite = color.RGBA{R: 0xFA, G: 0xFA, B: 0xFA, A: 0xFF}
)

// baseThemes is the fixed theme registry. "grey" aliases "gray", as in
// the grammar this mirrors.
var baseThemes = map[string]Theme{
	"gray": {
		Background:      color.White,
		PanelBackground: colGray,
		GridColor:       color.White,
		TextColor:       color.Black,
	},
	"bw": {
		Background:      color.White,
		PanelBackground: color.White,
		GridColor:       colLightGray,
		TextColor:       color.Black,
	},
	"minimal": {
		Background:      color.White,
		PanelBackground: color.White,
		GridColor:       colLightGray,
		TextColor:       color.Black,
	},
	"classic": {
		Background:      color.White,
		PanelBackground: color.White,
		GridColor:       nil,
		TextColor:       color.Black,
	},
	"dark": {
		Background:      color.White,
		PanelBackground: colDarkPanel,
		GridColor:       colDarkGrid,
		TextColor:       color.Black,
	},
	"light": {
		Background:      color.White,
		PanelBackground: colNearWhite,
		GridColor:       colLightGray,
		TextColor:       color.Black,
	},
	"void": {
		Background:      color.White,
		PanelBackground: color.White,
		GridColor:       nil,
		TextColor:       color.Black,
		HideAxes:        true,
	},
}

// ThemeNames lists the registered base themes including the grey alias.
func ThemeNames() []string {
	names := make([]string, 0, len(baseThemes)+1)
	for name := range baseThemes {
		names = append(names, name)
	}
	return append(names, "grey")
}

// ThemeDescriptions pairs each base theme with a one-liner for the
// list_themes operation.
func ThemeDescriptions() map[string]string {
	return map[string]string{
		"gray":    "Gray panel background with white gridlines (default)",
		"grey":    "Alias of gray",
		"bw":      "White background with light grid, black and white",
		"minimal": "No box, light gridlines only",
		"classic": "Axis lines without gridlines, traditional look",
		"dark":    "Dark panel background for light-colored geometries",
		"light":   "Light gray panel with subtle gridlines",
		"void":    "Completely empty canvas, no axes or grid",
	}
}

// ResolveTheme looks the base theme up and layers customizations on
// top. Unknown base names fail with a fuzzy suggestion.
func ResolveTheme(cfg *api.Theme) (Theme, error) {
	base := "gray"
	var custom map[string]any
	if cfg != nil {
		if cfg.Base != "" {
			base = cfg.Base
		}
		custom = cfg.Customizations
	}
	if base == "grey" {
		base = "gray"
	}
	th, ok := baseThemes[base]
	if !ok {
		return Theme{}, &BuildError{Reason: suggest.ForName("theme", base, ThemeNames())}
	}
	th.Name = base
	th.BaseFontSize = 11
	th.AxisFontSize = 9
	th.LegendPosition = "right"
	if err := applyThemeCustomizations(&th, custom); err != nil {
		return Theme{}, err
	}
	return th, nil
}

func applyThemeCustomizations(th *Theme, custom map[string]any) error {
	for key, val := range custom {
		switch key {
		case "figure_size":
			pair, ok := val.([]any)
			if !ok || len(pair) != 2 {
				return &BuildError{Reason: "theme figure_size must be [width, height]"}
			}
			w, wok := toNum(pair[0])
			h, hok := toNum(pair[1])
			if !wok || !hok || w <= 0 || h <= 0 {
				return &BuildError{Reason: "theme figure_size must hold positive numbers"}
			}
			th.FigWidth, th.FigHeight = w, h
		case "legend_position":
			pos, _ := val.(string)
			switch pos {
			case "right", "left", "top", "bottom", "none":
				th.LegendPosition = pos
			default:
				return &BuildError{Reason: fmt.Sprintf("unknown legend_position %q", pos)}
			}
		case "legend_direction":
			dir, _ := val.(string)
			th.LegendHoriz = dir == "horizontal"
		case "panel_background":
			c, err := elementFill(val)
			if err != nil {
				return err
			}
			th.PanelBackground = c
		case "plot_background":
			c, err := elementFill(val)
			if err != nil {
				return err
			}
			th.Background = c
		case "text":
			if sz, ok := elementSize(val); ok {
				th.BaseFontSize = vg.Length(sz)
			}
			if c, err := elementColor(val); err == nil && c != nil {
				th.TextColor = c
			}
		case "axis_text", "axis_title":
			if sz, ok := elementSize(val); ok {
				th.AxisFontSize = vg.Length(sz)
			}
		default:
			// Unknown customizations are ignored rather than fatal, so
			// configs written for a richer theme engine still render.
		}
	}
	return nil
}

func elementFill(val any) (color.Color, error) {
	m, ok := val.(map[string]any)
	if !ok {
		return nil, &BuildError{Reason: "theme element must be an object"}
	}
	if fill, ok := m["fill"].(string); ok {
		return namedColor(fill)
	}
	return nil, &BuildError{Reason: "theme element requires a 'fill' color"}
}

func elementSize(val any) (float64, bool) {
	m, ok := val.(map[string]any)
	if !ok {
		return 0, false
	}
	if sz, ok := toNum(m["size"]); ok {
		return sz, true
	}
	return 0, false
}

func elementColor(val any) (color.Color, error) {
	m, ok := val.(map[string]any)
	if !ok {
		return nil, nil
	}
	if name, ok := m["color"].(string); ok {
		return namedColor(name)
	}
	return nil, nil
}

// style applies the theme to one panel.
func (th Theme) style(p *plot.Plot) {
	p.BackgroundColor = th.PanelBackground
	if th.GridColor != nil {
		grid := plotter.NewGrid()
		grid.Vertical.Color = th.GridColor
		grid.Horizontal.Color = th.GridColor
		p.Add(grid)
	}
	p.Title.TextStyle.Color = th.TextColor
	p.Title.TextStyle.Font.Size = th.BaseFontSize + 2
	for _, ax := range []*plot.Axis{&p.X, &p.Y} {
		ax.LineStyle.Color = th.TextColor
		ax.Label.TextStyle.Color = th.TextColor
		ax.Label.TextStyle.Font.Size = th.BaseFontSize
		ax.Tick.LineStyle.Color = th.TextColor
		ax.Tick.Label.Color = th.TextColor
		ax.Tick.Label.Font.Size = th.AxisFontSize
	}
	p.Legend.TextStyle.Color = th.TextColor
	p.Legend.TextStyle.Font.Size = th.AxisFontSize
	switch th.LegendPosition {
	case "left":
		p.Legend.Left = true
	case "top":
		p.Legend.Top = true
	case "bottom":
		p.Legend.Top = false
	}
	if th.HideAxes {
		p.HideAxes()
	}
}

// namedColor resolves a CSS-ish color name or a #RRGGBB hex string.
func namedColor(name string) (color.Color, error) {
	if len(name) > 0 && name[0] == '#' {
		r, g, b, err := catalog.ParseHex(name)
		if err != nil {
			return nil, &BuildError{Reason: err.Error()}
		}
		return color.RGBA{R: r, G: g, B: b, A: 0xFF}, nil
	}
	named := map[string]color.RGBA{
		"black":     {0x00, 0x00, 0x00, 0xFF},
		"white":     {0xFF, 0xFF, 0xFF, 0xFF},
		"red":       {0xD6, 0x27, 0x28, 0xFF},
		"green":     {0x2C, 0xA0, 0x2C, 0xFF},
		"blue":      {0x1F, 0x77, 0xB4, 0xFF},
		"orange":    {0xFF, 0x7F, 0x0E, 0xFF},
		"purple":    {0x94, 0x67, 0xBD, 0xFF},
		"gray":      {0x7F, 0x7F, 0x7F, 0xFF},
		"grey":      {0x7F, 0x7F, 0x7F, 0xFF},
		"yellow":    {0xED, 0xC9, 0x48, 0xFF},
		"brown":     {0x8C, 0x56, 0x4B, 0xFF},
		"pink":      {0xE3, 0x77, 0xC2, 0xFF},
		"cyan":      {0x17, 0xBE, 0xCF, 0xFF},
		"steelblue": {0x46, 0x82, 0xB4, 0xFF},
		"darkblue":  {0x00, 0x00, 0x8B, 0xFF},
		"darkred":   {0x8B, 0x00, 0x00, 0xFF},
		"darkgreen": {0x00, 0x64, 0x00, 0xFF},
	}
	if c, ok := named[name]; ok {
		return c, nil
	}
	keys := make([]string, 0, len(named))
	for k := range named {
		keys = append(keys, k)
	}
	return nil, &BuildError{Reason: suggest.ForName("color", name, keys)}
}

// withAlpha scales a color's opacity; alpha outside (0,1] is left as-is.
func withAlpha(c color.Color, alpha float64) color.Color {
	if alpha <= 0 || alpha >= 1 {
		return c
	}
	r, g, b, a := c.RGBA()
	return color.NRGBA64{
		R: uint16(r), G: uint16(g), B: uint16(b),
		A: uint16(float64(a) * alpha),
	}
}

func toNum(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
