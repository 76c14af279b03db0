package render

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotutil"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/catalog"
	"github.com/Fervoyush/plotnine-mcp/internal/suggest"
)

// positionalScaleTypes and colorScaleTypes define the scale registry:
// which scale types may attach to which aesthetic.
var (
	positionalScaleTypes = []string{"continuous", "log10", "sqrt", "datetime", "discrete"}
	colorScaleTypes      = []string{"gradient", "discrete", "brewer"}
)

// ScaleDescriptor names one registered scale for the listing tools.
type ScaleDescriptor struct {
	Aesthetic string `json:"aesthetic"`
	Type      string `json:"type"`
}

// ScaleRegistry enumerates every aesthetic/type combination the
// assembler accepts.
func ScaleRegistry() []ScaleDescriptor {
	var out []ScaleDescriptor
	for _, aes := range []string{"x", "y"} {
		for _, t := range positionalScaleTypes {
			out = append(out, ScaleDescriptor{Aesthetic: aes, Type: t})
		}
	}
	for _, aes := range []string{"color", "fill"} {
		for _, t := range colorScaleTypes {
			out = append(out, ScaleDescriptor{Aesthetic: aes, Type: t})
		}
	}
	return out
}

// resolveScales indexes the scale list by aesthetic after validating
// each entry against the registry. A later scale for the same aesthetic
// replaces the earlier one.
func resolveScales(list []api.Scale) (map[string]api.Scale, error) {
	out := make(map[string]api.Scale, len(list))
	for _, s := range list {
		var valid []string
		switch s.Aesthetic {
		case "x", "y":
			valid = positionalScaleTypes
		case "color", "fill":
			valid = colorScaleTypes
		default:
			return nil, &BuildError{Reason: suggest.ForName(
				"scale aesthetic", s.Aesthetic, []string{"x", "y", "color", "fill"})}
		}
		if !contains(valid, s.Type) {
			return nil, &BuildError{Reason: suggest.ForName(
				fmt.Sprintf("%s scale type", s.Aesthetic), s.Type, valid)}
		}
		out[s.Aesthetic] = s
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// sqrtScale is a square-root axis normalizer, the positional "sqrt"
// scale. Negative values clamp to zero.
type sqrtScale struct{}

func (sqrtScale) Normalize(min, max, x float64) float64 {
	rt := func(v float64) float64 {
		if v <= 0 {
			return 0
		}
		return math.Sqrt(v)
	}
	lo, hi := rt(min), rt(max)
	if hi == lo {
		return 0.5
	}
	return (rt(x) - lo) / (hi - lo)
}

// applyAxisScale configures one axis from its positional scale.
func applyAxisScale(ax *plot.Axis, s api.Scale) error {
	switch s.Type {
	case "continuous", "discrete":
		// Limits only; discrete tick placement happens via NominalX/Y.
	case "log10":
		ax.Scale = plot.LogScale{}
		ax.Tick.Marker = plot.LogTicks{Prec: -1}
	case "sqrt":
		ax.Scale = sqrtScale{}
	case "datetime":
		format := "2006-01-02"
		if f, ok := s.Params["format"].(string); ok && f != "" {
			format = f
		}
		ax.Tick.Marker = plot.TimeTicks{Format: format}
	}
	if lims, ok := s.Params["limits"].([]any); ok && len(lims) == 2 {
		if lo, ok := toNum(lims[0]); ok {
			ax.Min = lo
		}
		if hi, ok := toNum(lims[1]); ok {
			ax.Max = hi
		}
	}
	return nil
}

// colorScale is a resolved color/fill scale: either an explicit ordered
// color list for discrete levels, or two gradient endpoints.
type colorScale struct {
	list      []color.Color
	low, high color.Color
	gradient  bool
}

// ggplot's default continuous gradient endpoints.
var (
	defaultGradientLow  = color.RGBA{R: 0x13, G: 0x2B, B: 0x43, A: 0xFF}
	defaultGradientHigh = color.RGBA{R: 0x56, G: 0xB1, B: 0xF7, A: 0xFF}
)

// resolveColorScale turns a color/fill scale config into colors. A nil
// config yields nil, meaning the default qualitative cycle.
func resolveColorScale(s *api.Scale) (*colorScale, error) {
	if s == nil {
		return nil, nil
	}
	switch s.Type {
	case "discrete":
		raw, ok := s.Params["values"].([]any)
		if !ok || len(raw) == 0 {
			return nil, &BuildError{Reason: "discrete color scale requires a 'values' color list"}
		}
		cs := &colorScale{}
		for _, v := range raw {
			name, ok := v.(string)
			if !ok {
				return nil, &BuildError{Reason: "color scale values must be strings"}
			}
			c, err := namedColor(name)
			if err != nil {
				return nil, err
			}
			cs.list = append(cs.list, c)
		}
		return cs, nil
	case "brewer":
		name, _ := s.Params["palette"].(string)
		if name == "" {
			return nil, &BuildError{Reason: "brewer color scale requires a 'palette' name"}
		}
		pal, err := catalog.LookupPalette(name)
		if err != nil {
			return nil, &BuildError{Reason: err.Error()}
		}
		cs := &colorScale{}
		for _, hex := range pal.Colors {
			r, g, b, err := catalog.ParseHex(hex)
			if err != nil {
				return nil, &BuildError{Reason: err.Error()}
			}
			cs.list = append(cs.list, color.RGBA{R: r, G: g, B: b, A: 0xFF})
		}
		return cs, nil
	case "gradient":
		cs := &colorScale{gradient: true, low: defaultGradientLow, high: defaultGradientHigh}
		if lo, ok := s.Params["low"].(string); ok {
			c, err := namedColor(lo)
			if err != nil {
				return nil, err
			}
			cs.low = c
		}
		if hi, ok := s.Params["high"].(string); ok {
			c, err := namedColor(hi)
			if err != nil {
				return nil, err
			}
			cs.high = c
		}
		return cs, nil
	}
	return nil, &BuildError{Reason: suggest.ForName("color scale type", s.Type, colorScaleTypes)}
}

// colorFor returns the color of discrete level i, falling back to the
// default qualitative cycle when no explicit list was configured.
func (cs *colorScale) colorFor(i int) color.Color {
	if cs != nil && len(cs.list) > 0 {
		return cs.list[i%len(cs.list)]
	}
	return plotutil.Color(i)
}

// at interpolates the gradient at t in [0, 1].
func (cs *colorScale) at(t float64) color.Color {
	lo, hi := defaultGradientLow, defaultGradientHigh
	if cs != nil && cs.gradient {
		loC, hiC := cs.low, cs.high
		return lerpColor(loC, hiC, t)
	}
	return lerpColor(lo, hi, t)
}

func lerpColor(lo, hi color.Color, t float64) color.Color {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	lr, lg, lb, la := lo.RGBA()
	hr, hg, hb, ha := hi.RGBA()
	mix := func(a, b uint32) uint16 {
		return uint16(float64(a) + (float64(b)-float64(a))*t)
	}
	return color.NRGBA64{R: mix(lr, hr), G: mix(lg, hg), B: mix(lb, hb), A: mix(la, ha)}
}

// gradientPalette adapts a gradient colorScale to the palette interface
// the heat map plotter consumes.
type gradientPalette struct {
	cs    *colorScale
	steps int
}

func (g gradientPalette) Colors() []color.Color {
	n := g.steps
	if n < 2 {
		n = 64
	}
	out := make([]color.Color, n)
	for i := range out {
		out[i] = g.cs.at(float64(i) / float64(n-1))
	}
	return out
}

// sortedFloats returns the valid values of a column in ascending order.
func sortedFloats(vals []float64) []float64 {
	out := append([]float64(nil), vals...)
	sort.Float64s(out)
	return out
}
