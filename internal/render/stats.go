package render

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/frame"
)

// statBuilder adds one statistical layer on top of the geometry
// layers of a panel.
type statBuilder func(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, st api.Stat) error

var statRegistry = map[string]statBuilder{
	"smooth":  statSmooth,
	"bin":     statBin,
	"density": statDensity,
	"summary": statSummary,
}

// StatNames lists the registered stats in sorted order.
func StatNames() []string {
	names := make([]string, 0, len(statRegistry))
	for name := range statRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// The smooth, bin and density stats delegate to the equivalent geom
// builders; a stat is the layer-level spelling of the same
// computation.
func statSmooth(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, st api.Stat) error {
	return buildSmooth(p, ctx, ds, api.Geom{Type: "smooth", Params: st.Params})
}

func statBin(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, st api.Stat) error {
	return buildHistogram(p, ctx, ds, api.Geom{Type: "histogram", Params: st.Params})
}

func statDensity(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, st api.Stat) error {
	return buildDensity(p, ctx, ds, api.Geom{Type: "density", Params: st.Params})
}

// statSummary draws an aggregate of y at each x position: mean by
// default, or the 'fun' parameter (mean, median, min, max).
func statSummary(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, st api.Stat) error {
	fun, _ := st.Params["fun"].(string)
	if fun == "" {
		fun = "mean"
	}
	agg, ok := summaryFuncs[fun]
	if !ok {
		return &BuildError{Reason: fmt.Sprintf("unknown summary function %q (want mean, median, min or max)", fun)}
	}
	xys, _, err := ctx.points(ds, allRows(ds))
	if err != nil {
		return err
	}
	byX := make(map[float64][]float64)
	for _, pt := range xys {
		byX[pt.X] = append(byX[pt.X], pt.Y)
	}
	out := make(plotter.XYs, 0, len(byX))
	for x, ys := range byX {
		out = append(out, plotter.XY{X: x, Y: agg(ys)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].X < out[j].X })

	clr := color.Color(color.RGBA{R: 0xD6, G: 0x27, B: 0x28, A: 0xFF})
	if name, ok := st.Params["color"].(string); ok && name != "" {
		if clr, err = namedColor(name); err != nil {
			return err
		}
	}
	ln, err := plotter.NewLine(out)
	if err != nil {
		return fmt.Errorf("summary stat: %w", err)
	}
	ln.LineStyle.Color = clr
	ln.LineStyle.Width = vg.Points(1.5)
	sc, err := plotter.NewScatter(out)
	if err != nil {
		return fmt.Errorf("summary stat: %w", err)
	}
	sc.GlyphStyle.Color = clr
	sc.GlyphStyle.Radius = vg.Points(3)
	p.Add(ln, sc)
	return nil
}

var summaryFuncs = map[string]func([]float64) float64{
	"mean": func(v []float64) float64 { return stat.Mean(v, nil) },
	"median": func(v []float64) float64 {
		s := sortedFloats(v)
		return stat.Quantile(0.5, stat.Empirical, s, nil)
	},
	"min": func(v []float64) float64 {
		out := math.Inf(1)
		for _, x := range v {
			out = math.Min(out, x)
		}
		return out
	},
	"max": func(v []float64) float64 {
		out := math.Inf(-1)
		for _, x := range v {
			out = math.Max(out, x)
		}
		return out
	},
}

// kde evaluates a gaussian kernel density estimate over an evenly
// spaced grid. Bandwidth follows Silverman's rule scaled by adjust.
func kde(vals []float64, points int, adjust float64) (xs, dens []float64) {
	n := float64(len(vals))
	sd := stat.StdDev(vals, nil)
	if sd == 0 || math.IsNaN(sd) {
		sd = 1
	}
	if adjust <= 0 {
		adjust = 1
	}
	h := 1.06 * sd * math.Pow(n, -0.2) * adjust

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	lo -= 3 * h
	hi += 3 * h

	xs = make([]float64, points)
	dens = make([]float64, points)
	step := (hi - lo) / float64(points-1)
	norm := 1 / (n * h * math.Sqrt(2*math.Pi))
	for i := range xs {
		x := lo + float64(i)*step
		xs[i] = x
		sum := 0.0
		for _, v := range vals {
			u := (x - v) / h
			sum += math.Exp(-0.5 * u * u)
		}
		dens[i] = sum * norm
	}
	return xs, dens
}

// addLinearFit draws an ordinary least squares line over the x extent
// of the points, with a 95% confidence band when se is set.
func addLinearFit(p *plot.Plot, xys plotter.XYs, clr color.Color, se bool) error {
	n := len(xys)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, pt := range xys {
		xs[i], ys[i] = pt.X, pt.Y
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	lo, hi := xys[0].X, xys[n-1].X
	line := plotter.XYs{
		{X: lo, Y: alpha + beta*lo},
		{X: hi, Y: alpha + beta*hi},
	}

	if se && n > 2 {
		meanX := stat.Mean(xs, nil)
		var sxx, sse float64
		for i := range xs {
			dx := xs[i] - meanX
			sxx += dx * dx
			r := ys[i] - (alpha + beta*xs[i])
			sse += r * r
		}
		s := math.Sqrt(sse / float64(n-2))
		if sxx > 0 {
			const steps = 40
			band := make(plotter.XYs, 0, 2*(steps+1))
			upper := make(plotter.XYs, 0, steps+1)
			for i := 0; i <= steps; i++ {
				x := lo + (hi-lo)*float64(i)/steps
				fit := alpha + beta*x
				dx := x - meanX
				margin := 1.96 * s * math.Sqrt(1/float64(n)+dx*dx/sxx)
				band = append(band, plotter.XY{X: x, Y: fit - margin})
				upper = append(upper, plotter.XY{X: x, Y: fit + margin})
			}
			for i := len(upper) - 1; i >= 0; i-- {
				band = append(band, upper[i])
			}
			poly, err := plotter.NewPolygon(band)
			if err != nil {
				return fmt.Errorf("confidence band: %w", err)
			}
			poly.Color = withAlpha(clr, 0.2)
			p.Add(poly)
		}
	}

	ln, err := plotter.NewLine(line)
	if err != nil {
		return fmt.Errorf("trend line: %w", err)
	}
	ln.LineStyle.Color = clr
	ln.LineStyle.Width = vg.Points(1.5)
	p.Add(ln)
	return nil
}

// addLoess approximates a local smoother with a centered moving
// average over the x-sorted points.
func addLoess(p *plot.Plot, xys plotter.XYs, clr color.Color) error {
	n := len(xys)
	window := n / 5
	if window < 3 {
		window = 3
	}
	if window > n {
		window = n
	}
	half := window / 2
	out := make(plotter.XYs, 0, n)
	for i := range xys {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > n {
			hi = n
		}
		sum := 0.0
		for _, pt := range xys[lo:hi] {
			sum += pt.Y
		}
		out = append(out, plotter.XY{X: xys[i].X, Y: sum / float64(hi-lo)})
	}
	ln, err := plotter.NewLine(out)
	if err != nil {
		return fmt.Errorf("loess line: %w", err)
	}
	ln.LineStyle.Color = clr
	ln.LineStyle.Width = vg.Points(1.5)
	p.Add(ln)
	return nil
}
