// Package catalog holds the static registries: built-in color palettes
// and preset plot templates, plus the rule-based template recommender.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/suggest"
)

// Palette is a named ordered sequence of hex colors under a category.
type Palette struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Colors   []string `json:"colors"`
}

// Count returns the number of colors.
func (p Palette) Count() int { return len(p.Colors) }

var paletteGroups = map[string]map[string][]string{
	"colorblind_safe": {
		"okabe_ito":  {"#E69F00", "#56B4E9", "#009E73", "#F0E442", "#0072B2", "#D55E00", "#CC79A7"},
		"tol_bright": {"#4477AA", "#EE6677", "#228833", "#CCBB44", "#66CCEE", "#AA3377", "#BBBBBB"},
		"tol_muted":  {"#332288", "#88CCEE", "#44AA99", "#117733", "#999933", "#DDCC77", "#CC6677", "#882255", "#AA4499"},
	},
	"scientific": {
		"viridis": {"#440154", "#482777", "#3E4989", "#31688E", "#26828E", "#1F9E89", "#35B779", "#6DCD59", "#B4DE2C", "#FDE724"},
		"plasma":  {"#0D0887", "#4C02A1", "#7E03A8", "#A92395", "#CC4678", "#E56B5D", "#F89441", "#FEC328", "#F0F921"},
		"inferno": {"#000004", "#1B0C41", "#4A0C6B", "#781C6D", "#A52C60", "#CF4446", "#ED6925", "#FB9A06", "#F7D13D", "#FCFFA4"},
		"magma":   {"#000004", "#180F3E", "#451077", "#721F81", "#9F2F7F", "#CD4071", "#F1605D", "#FD9668", "#FEC287", "#FCFDBF"},
	},
	"categorical": {
		"set1":      {"#E41A1C", "#377EB8", "#4DAF4A", "#984EA3", "#FF7F00", "#FFFF33", "#A65628", "#F781BF", "#999999"},
		"set2":      {"#66C2A5", "#FC8D62", "#8DA0CB", "#E78AC3", "#A6D854", "#FFD92F", "#E5C494", "#B3B3B3"},
		"set3":      {"#8DD3C7", "#FFFFB3", "#BEBADA", "#FB8072", "#80B1D3", "#FDB462", "#B3DE69", "#FCCDE5", "#D9D9D9", "#BC80BD", "#CCEBC5", "#FFED6F"},
		"tableau10": {"#4E79A7", "#F28E2B", "#E15759", "#76B7B2", "#59A14F", "#EDC948", "#B07AA1", "#FF9DA7", "#9C755F", "#BAB0AC"},
	},
	"corporate": {
		"corporate_blue": {"#003f5c", "#2f4b7c", "#665191", "#a05195", "#d45087", "#f95d6a", "#ff7c43", "#ffa600"},
		"professional":   {"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b", "#e377c2", "#7f7f7f"},
		"modern":         {"#264653", "#2A9D8F", "#E9C46A", "#F4A261", "#E76F51"},
	},
	"sequential": {
		"blues":   {"#F7FBFF", "#DEEBF7", "#C6DBEF", "#9ECAE1", "#6BAED6", "#4292C6", "#2171B5", "#08519C", "#08306B"},
		"greens":  {"#F7FCF5", "#E5F5E0", "#C7E9C0", "#A1D99B", "#74C476", "#41AB5D", "#238B45", "#006D2C", "#00441B"},
		"reds":    {"#FFF5F0", "#FEE0D2", "#FCBBA1", "#FC9272", "#FB6A4A", "#EF3B2C", "#CB181D", "#A50F15", "#67000D"},
		"oranges": {"#FFF5EB", "#FEE6CE", "#FDD0A2", "#FDAE6B", "#FD8D3C", "#F16913", "#D94801", "#A63603", "#7F2704"},
	},
	"diverging": {
		"red_blue":      {"#B2182B", "#D6604D", "#F4A582", "#FDDBC7", "#F7F7F7", "#D1E5F0", "#92C5DE", "#4393C3", "#2166AC"},
		"red_green":     {"#D73027", "#F46D43", "#FDAE61", "#FEE08B", "#FFFFBF", "#D9EF8B", "#A6D96A", "#66BD63", "#1A9850"},
		"purple_orange": {"#7F3B08", "#B35806", "#E08214", "#FDB863", "#FEE0B6", "#F7F7F7", "#D8DAEB", "#B2ABD2", "#8073AC", "#542788"},
	},
}

// PaletteCategories maps category names to descriptions, in a stable
// presentation order.
func PaletteCategories() []struct{ Name, Description string } {
	return []struct{ Name, Description string }{
		{"colorblind_safe", "Accessible color schemes for colorblind viewers"},
		{"scientific", "Perceptually uniform palettes (viridis, plasma, inferno, magma)"},
		{"categorical", "Distinct colors for categorical data"},
		{"corporate", "Professional color schemes for business presentations"},
		{"sequential", "Gradual color scales for ordered data"},
		{"diverging", "Two-tone scales for data with a midpoint"},
	}
}

// Palettes lists palettes, optionally filtered by category, sorted by
// qualified name.
func Palettes(category string) ([]Palette, error) {
	if category != "" {
		if _, ok := paletteGroups[category]; !ok {
			cats := make([]string, 0, len(paletteGroups))
			for c := range paletteGroups {
				cats = append(cats, c)
			}
			return nil, fmt.Errorf("%s", suggest.ForName("palette category", category, cats))
		}
	}
	var out []Palette
	for cat, group := range paletteGroups {
		if category != "" && cat != category {
			continue
		}
		for name, colors := range group {
			out = append(out, Palette{Name: cat + "_" + name, Category: cat, Colors: colors})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// LookupPalette finds a palette by qualified name ("scientific_viridis")
// or bare name ("viridis").
func LookupPalette(name string) (Palette, error) {
	for cat, group := range paletteGroups {
		for base, colors := range group {
			if name == cat+"_"+base || name == base {
				return Palette{Name: cat + "_" + base, Category: cat, Colors: colors}, nil
			}
		}
	}
	all, _ := Palettes("")
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	return Palette{}, fmt.Errorf("%s", suggest.ForName("palette", name, names))
}

// ScaleFromPalette turns a palette into a scale configuration: discrete
// scales carry the full color list, gradient scales the two endpoints.
func ScaleFromPalette(name, aesthetic, scaleType string) (api.Scale, error) {
	p, err := LookupPalette(name)
	if err != nil {
		return api.Scale{}, err
	}
	if aesthetic == "" {
		aesthetic = "color"
	}
	switch scaleType {
	case "", "discrete":
		vals := make([]any, len(p.Colors))
		for i, c := range p.Colors {
			vals[i] = c
		}
		return api.Scale{Aesthetic: aesthetic, Type: "discrete", Params: map[string]any{"values": vals}}, nil
	case "gradient":
		return api.Scale{
			Aesthetic: aesthetic,
			Type:      "gradient",
			Params:    map[string]any{"low": p.Colors[0], "high": p.Colors[len(p.Colors)-1]},
		}, nil
	default:
		return api.Scale{}, fmt.Errorf("unknown scale type %q for palette %q (want discrete or gradient)", scaleType, name)
	}
}

// ParseHex decodes a #RRGGBB color. Shared by the palette-backed scales
// in the renderer.
func ParseHex(s string) (r, g, b uint8, err error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("bad hex color %q", s)
	}
	var rv, gv, bv int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return 0, 0, 0, fmt.Errorf("bad hex color %q: %w", s, err)
	}
	return uint8(rv), uint8(gv), uint8(bv), nil
}
