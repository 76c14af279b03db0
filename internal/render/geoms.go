package render

import (
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/frame"
	"github.com/Fervoyush/plotnine-mcp/internal/suggest"
)

// geomSpec is one registry entry: a description for the listing tool,
// the aesthetics the geom cannot work without, and the builder.
type geomSpec struct {
	desc     string
	requires []string
	build    func(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error
}

var geomRegistry = map[string]geomSpec{
	"point":     {desc: "Scatter plot points", requires: []string{"x", "y"}, build: buildPoint},
	"jitter":    {desc: "Points with positional noise to reduce overplotting", requires: []string{"x", "y"}, build: buildJitter},
	"line":      {desc: "Lines connecting points in x order", requires: []string{"x", "y"}, build: buildLine},
	"path":      {desc: "Lines connecting points in data order", requires: []string{"x", "y"}, build: buildPath},
	"bar":       {desc: "Bars of counts per category", requires: []string{"x"}, build: buildBar},
	"col":       {desc: "Bars of values per category", requires: []string{"x", "y"}, build: buildCol},
	"histogram": {desc: "Distribution of a continuous variable in bins", requires: []string{"x"}, build: buildHistogram},
	"boxplot":   {desc: "Box-and-whisker summary per category", requires: []string{"x", "y"}, build: buildBoxplot},
	"violin":    {desc: "Mirrored density per category", requires: []string{"x", "y"}, build: buildViolin},
	"area":      {desc: "Line with the area to the axis filled", requires: []string{"x", "y"}, build: buildArea},
	"density":   {desc: "Smoothed distribution curve", requires: []string{"x"}, build: buildDensity},
	"smooth":    {desc: "Fitted trend line with optional confidence band", requires: []string{"x", "y"}, build: buildSmooth},
	"tile":      {desc: "Rectangular heatmap cells colored by fill", requires: []string{"x", "y", "fill"}, build: buildTile},
	"text":      {desc: "Text labels at point positions", requires: []string{"x", "y"}, build: buildText},
	"errorbar":  {desc: "Vertical error bars from ymin/ymax columns", requires: []string{"x", "y"}, build: buildErrorbar},
	"hline":     {desc: "Horizontal reference line", build: buildHLine},
	"vline":     {desc: "Vertical reference line", build: buildVLine},
	"abline":    {desc: "Reference line with slope and intercept", build: buildABLine},
	"polygon":   {desc: "Closed polygon through the points in order", requires: []string{"x", "y"}, build: buildPolygon},
	"ribbon":    {desc: "Band between ymin and ymax columns", requires: []string{"x"}, build: buildRibbon},
}

// GeomNames lists the registered geoms in sorted order.
func GeomNames() []string {
	names := make([]string, 0, len(geomRegistry))
	for name := range geomRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GeomDescriptor describes one geom for the listing tools.
type GeomDescriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	RequiredAes []string `json:"required_aes,omitempty"`
}

// GeomCatalog returns every registered geom with its description.
func GeomCatalog() []GeomDescriptor {
	out := make([]GeomDescriptor, 0, len(geomRegistry))
	for _, name := range GeomNames() {
		spec := geomRegistry[name]
		out = append(out, GeomDescriptor{Name: name, Description: spec.desc, RequiredAes: spec.requires})
	}
	return out
}

var (
	defaultColor = color.RGBA{R: 0x1F, G: 0x77, B: 0xB4, A: 0xFF}
	defaultFill  = color.RGBA{R: 0x4D, G: 0x4D, B: 0x4D, A: 0xFF}
)

// ---- parameter helpers ----

func paramNum(g api.Geom, key string, def float64) float64 {
	if v, ok := toNum(g.Params[key]); ok {
		return v
	}
	return def
}

func paramStr(g api.Geom, key, def string) string {
	if s, ok := g.Params[key].(string); ok && s != "" {
		return s
	}
	return def
}

func paramBool(g api.Geom, key string, def bool) bool {
	if b, ok := g.Params[key].(bool); ok {
		return b
	}
	return def
}

func paramColor(g api.Geom, key string, def color.Color) (color.Color, error) {
	s, ok := g.Params[key].(string)
	if !ok || s == "" {
		return def, nil
	}
	return namedColor(s)
}

// dashesFor translates a linetype name into a dash pattern.
func dashesFor(linetype string) []vg.Length {
	switch linetype {
	case "dashed":
		return []vg.Length{vg.Points(6), vg.Points(3)}
	case "dotted":
		return []vg.Length{vg.Points(2), vg.Points(2)}
	case "dotdash":
		return []vg.Length{vg.Points(2), vg.Points(2), vg.Points(6), vg.Points(2)}
	case "longdash":
		return []vg.Length{vg.Points(8), vg.Points(3)}
	}
	return nil
}

func glyphFor(shape string) draw.GlyphDrawer {
	switch shape {
	case "square":
		return draw.SquareGlyph{}
	case "triangle":
		return draw.TriangleGlyph{}
	case "plus":
		return draw.PlusGlyph{}
	case "cross":
		return draw.CrossGlyph{}
	case "ring":
		return draw.RingGlyph{}
	case "box":
		return draw.BoxGlyph{}
	case "pyramid":
		return draw.PyramidGlyph{}
	}
	return draw.CircleGlyph{}
}

// ---- data extraction ----

// numColumn fetches a numeric-capable column by name with a fuzzy
// suggestion on miss.
func numColumn(ds *frame.Dataset, name string) (*frame.Column, error) {
	col, ok := ds.Column(name)
	if !ok {
		return nil, &BuildError{Reason: suggest.ForColumn(name, ds.Columns())}
	}
	return col, nil
}

// xValue encodes the x cell of a row: discrete levels map to their
// index, everything else to its numeric value.
func (ctx *buildCtx) xValue(col *frame.Column, i int) (float64, bool) {
	if !col.Valid[i] {
		return 0, false
	}
	if ctx.xIndex != nil {
		idx, ok := ctx.xIndex[col.Label(i)]
		return float64(idx), ok
	}
	return col.Float(i)
}

// points extracts row-aligned (x, y) pairs over the given rows; rows
// with a missing cell on either side are skipped. The returned row
// slice maps each point back to its dataset row.
func (ctx *buildCtx) points(ds *frame.Dataset, rows []int) (plotter.XYs, []int, error) {
	if ctx.xColumn() == "" || ctx.yColumn() == "" {
		return nil, nil, &BuildError{Reason: "this geom requires both x and y aesthetics"}
	}
	xc, err := numColumn(ds, ctx.xColumn())
	if err != nil {
		return nil, nil, err
	}
	yc, err := numColumn(ds, ctx.yColumn())
	if err != nil {
		return nil, nil, err
	}
	var xys plotter.XYs
	var kept []int
	for _, i := range rows {
		x, ok := ctx.xValue(xc, i)
		if !ok {
			continue
		}
		y, ok := yc.Float(i)
		if !ok {
			continue
		}
		xys = append(xys, plotter.XY{X: x, Y: y})
		kept = append(kept, i)
	}
	return xys, kept, nil
}

// values extracts the valid numeric values of one aesthetic column.
func values(col *frame.Column, rows []int) []float64 {
	var out []float64
	for _, i := range rows {
		if v, ok := col.Float(i); ok {
			out = append(out, v)
		}
	}
	return out
}

func allRows(ds *frame.Dataset) []int {
	rows := make([]int, ds.Len())
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// series is one grouped slice of a layer: a legend label, its color
// and the dataset rows it draws.
type series struct {
	label string
	color color.Color
	rows  []int
}

// split divides the panel's rows by the grouping column, assigning
// colors by the group's position in the full dataset's level order so
// facet panels agree. Without grouping there is a single unnamed
// series in the base color.
func (ctx *buildCtx) split(ds *frame.Dataset, cs *colorScale, base color.Color) []series {
	if ctx.groupCol == "" {
		return []series{{color: base, rows: allRows(ds)}}
	}
	col, ok := ds.Column(ctx.groupCol)
	if !ok {
		return []series{{color: base, rows: allRows(ds)}}
	}
	byLevel := make(map[string][]int)
	for i := 0; i < col.Len(); i++ {
		if col.Valid[i] {
			byLevel[col.Label(i)] = append(byLevel[col.Label(i)], i)
		}
	}
	var out []series
	for li, level := range ctx.groupLevels {
		rows, ok := byLevel[level]
		if !ok {
			continue
		}
		out = append(out, series{label: level, color: cs.colorFor(li), rows: rows})
	}
	return out
}

// continuousColor returns a per-row gradient color function when the
// color aesthetic is bound to a numeric column, or nil.
func (ctx *buildCtx) continuousColor() func(row int) color.Color {
	if ctx.aes.Color == "" {
		return nil
	}
	col, ok := ctx.full.Column(ctx.aes.Color)
	if !ok || col.Kind != frame.Numeric {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < col.Len(); i++ {
		if v, ok := col.Float(i); ok {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if lo >= hi {
		return nil
	}
	cs := ctx.colorScale
	return func(row int) color.Color {
		v, ok := col.Float(row)
		if !ok {
			return defaultColor
		}
		return cs.at((v - lo) / (hi - lo))
	}
}

// ---- geom builders ----

func buildPoint(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	return scatterLayer(p, ctx, ds, g, 0, 0)
}

func buildJitter(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	return scatterLayer(p, ctx, ds, g, paramNum(g, "width", 0.4), paramNum(g, "height", 0))
}

// scatterLayer is the shared point/jitter path. Jitter noise is seeded
// deterministically so the same config renders the same image.
func scatterLayer(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom, jw, jh float64) error {
	base, err := paramColor(g, "color", defaultColor)
	if err != nil {
		return err
	}
	alpha := paramNum(g, "alpha", 1)
	radius := vg.Points(paramNum(g, "size", 2.5))
	glyph := glyphFor(paramStr(g, "shape", "circle"))
	rng := rand.New(rand.NewSource(42))
	gradient := ctx.continuousColor()

	for _, s := range ctx.split(ds, ctx.colorScale, base) {
		xys, kept, err := ctx.points(ds, s.rows)
		if err != nil {
			return err
		}
		if len(xys) == 0 {
			continue
		}
		if jw > 0 || jh > 0 {
			for i := range xys {
				xys[i].X += (rng.Float64() - 0.5) * jw
				xys[i].Y += (rng.Float64() - 0.5) * jh
			}
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("scatter layer: %w", err)
		}
		sc.GlyphStyle.Radius = radius
		sc.GlyphStyle.Shape = glyph
		sc.GlyphStyle.Color = withAlpha(s.color, alpha)
		if gradient != nil && ctx.groupCol == "" {
			style := sc.GlyphStyle
			rowOf := kept
			sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
				st := style
				st.Color = withAlpha(gradient(rowOf[i]), alpha)
				return st
			}
		}
		p.Add(sc)
		if s.label != "" {
			p.Legend.Add(s.label, sc)
		}
	}
	return nil
}

func buildLine(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	return lineLayer(p, ctx, ds, g, true, nil)
}

func buildPath(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	return lineLayer(p, ctx, ds, g, false, nil)
}

func buildArea(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	fill, err := paramColor(g, "fill", defaultColor)
	if err != nil {
		return err
	}
	return lineLayer(p, ctx, ds, g, true, withAlpha(fill, paramNum(g, "alpha", 0.7)))
}

func lineLayer(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom, sortX bool, fill color.Color) error {
	base, err := paramColor(g, "color", defaultColor)
	if err != nil {
		return err
	}
	width := vg.Points(paramNum(g, "size", 1))
	dashes := dashesFor(paramStr(g, "linetype", "solid"))
	alpha := paramNum(g, "alpha", 1)

	for _, s := range ctx.split(ds, ctx.colorScale, base) {
		xys, _, err := ctx.points(ds, s.rows)
		if err != nil {
			return err
		}
		if len(xys) == 0 {
			continue
		}
		if sortX {
			sort.Slice(xys, func(i, j int) bool { return xys[i].X < xys[j].X })
		}
		ln, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("line layer: %w", err)
		}
		ln.LineStyle.Width = width
		ln.LineStyle.Color = withAlpha(s.color, alpha)
		ln.LineStyle.Dashes = dashes
		if fill != nil {
			if s.label != "" {
				ln.FillColor = withAlpha(s.color, 0.4)
			} else {
				ln.FillColor = fill
			}
		}
		p.Add(ln)
		if s.label != "" {
			p.Legend.Add(s.label, ln)
		}
	}
	return nil
}

func buildBar(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	return barLayer(p, ctx, ds, g, false)
}

func buildCol(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	return barLayer(p, ctx, ds, g, true)
}

// barLayer draws bars per x level: counts for geom bar, summed y
// values for geom col. Grouped series sit side by side.
func barLayer(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom, useY bool) error {
	if ctx.xLevels == nil {
		return &BuildError{Reason: "bar geoms require a categorical x aesthetic"}
	}
	xc, err := numColumn(ds, ctx.xColumn())
	if err != nil {
		return err
	}
	var yc *frame.Column
	if useY {
		if ctx.yColumn() == "" {
			return &BuildError{Reason: "geom col requires a y aesthetic"}
		}
		if yc, err = numColumn(ds, ctx.yColumn()); err != nil {
			return err
		}
	}
	base, err := paramColor(g, "fill", defaultFill)
	if err != nil {
		return err
	}
	alpha := paramNum(g, "alpha", 1)

	groups := ctx.split(ds, ctx.fillOrColorScale(), base)
	n := len(groups)
	width := vg.Points(paramNum(g, "width", 1) * 18 / float64(n))
	for gi, s := range groups {
		vals := make(plotter.Values, len(ctx.xLevels))
		for _, i := range s.rows {
			lv, ok := ctx.xIndex[xc.Label(i)]
			if !ok || !xc.Valid[i] {
				continue
			}
			if useY {
				if v, ok := yc.Float(i); ok {
					vals[lv] += v
				}
			} else {
				vals[lv]++
			}
		}
		bars, err := plotter.NewBarChart(vals, width)
		if err != nil {
			return fmt.Errorf("bar layer: %w", err)
		}
		bars.Color = withAlpha(s.color, alpha)
		bars.LineStyle.Width = 0
		bars.Offset = vg.Length(float64(gi)-float64(n-1)/2) * width
		bars.Horizontal = ctx.flip
		p.Add(bars)
		if s.label != "" {
			p.Legend.Add(s.label, bars)
		}
	}
	return nil
}

// fillOrColorScale prefers the fill scale for area-filling geoms when
// the fill aesthetic drives the grouping.
func (ctx *buildCtx) fillOrColorScale() *colorScale {
	if ctx.groupCol != "" && ctx.groupCol == ctx.aes.Fill && ctx.fillScale != nil {
		return ctx.fillScale
	}
	if ctx.fillScale != nil && ctx.colorScale == nil {
		return ctx.fillScale
	}
	return ctx.colorScale
}

func buildHistogram(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	if ctx.xColumn() == "" {
		return &BuildError{Reason: "geom histogram requires an x aesthetic"}
	}
	xc, err := numColumn(ds, ctx.xColumn())
	if err != nil {
		return err
	}
	base, err := paramColor(g, "fill", defaultFill)
	if err != nil {
		return err
	}
	bins := int(paramNum(g, "bins", 30))
	if bins < 1 {
		bins = 1
	}
	alpha := paramNum(g, "alpha", 1)
	groups := ctx.split(ds, ctx.fillOrColorScale(), base)
	if len(groups) > 1 && !hasParam(g, "alpha") {
		alpha = 0.6 // overlapping histograms need translucency
	}
	for _, s := range groups {
		vals := values(xc, s.rows)
		if len(vals) == 0 {
			continue
		}
		h, err := plotter.NewHist(plotter.Values(vals), bins)
		if err != nil {
			return fmt.Errorf("histogram layer: %w", err)
		}
		h.FillColor = withAlpha(s.color, alpha)
		p.Add(h)
		if s.label != "" {
			p.Legend.Add(s.label, h)
		}
	}
	return nil
}

func hasParam(g api.Geom, key string) bool {
	_, ok := g.Params[key]
	return ok
}

func buildBoxplot(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	groups, err := ctx.perLevelValues(ds)
	if err != nil {
		return err
	}
	fill, err := paramColor(g, "fill", color.Color(color.White))
	if err != nil {
		return err
	}
	width := vg.Points(paramNum(g, "width", 1) * 20)
	for loc, vals := range groups {
		if len(vals) == 0 {
			continue
		}
		if ctx.flip {
			box, err := plotter.NewBoxPlot(width, float64(loc), plotter.Values(vals))
			if err != nil {
				return fmt.Errorf("boxplot layer: %w", err)
			}
			box.Horizontal = true
			box.FillColor = fill
			p.Add(box)
		} else {
			box, err := plotter.NewBoxPlot(width, float64(loc), plotter.Values(vals))
			if err != nil {
				return fmt.Errorf("boxplot layer: %w", err)
			}
			box.FillColor = fill
			p.Add(box)
		}
	}
	return nil
}

func buildViolin(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	groups, err := ctx.perLevelValues(ds)
	if err != nil {
		return err
	}
	fill, err := paramColor(g, "fill", defaultColor)
	if err != nil {
		return err
	}
	fill = withAlpha(fill, paramNum(g, "alpha", 0.7))
	halfWidth := paramNum(g, "width", 1) * 0.4
	for loc, vals := range groups {
		if len(vals) < 2 {
			continue
		}
		xs, dens := kde(vals, 64, 1)
		maxD := 0.0
		for _, d := range dens {
			maxD = math.Max(maxD, d)
		}
		if maxD == 0 {
			continue
		}
		scale := halfWidth / maxD
		xys := make(plotter.XYs, 0, 2*len(xs))
		center := float64(loc)
		for i := range xs {
			xys = append(xys, plotter.XY{X: center - dens[i]*scale, Y: xs[i]})
		}
		for i := len(xs) - 1; i >= 0; i-- {
			xys = append(xys, plotter.XY{X: center + dens[i]*scale, Y: xs[i]})
		}
		poly, err := plotter.NewPolygon(xys)
		if err != nil {
			return fmt.Errorf("violin layer: %w", err)
		}
		poly.Color = fill
		p.Add(poly)
	}
	return nil
}

// perLevelValues groups y values by x level for box and violin geoms.
// A continuous x falls back to a single group at the origin.
func (ctx *buildCtx) perLevelValues(ds *frame.Dataset) (map[int][]float64, error) {
	if ctx.yColumn() == "" {
		return nil, &BuildError{Reason: "this geom requires a y aesthetic"}
	}
	yc, err := numColumn(ds, ctx.yColumn())
	if err != nil {
		return nil, err
	}
	groups := make(map[int][]float64)
	if ctx.xLevels == nil || ctx.xColumn() == "" {
		groups[0] = values(yc, allRows(ds))
		return groups, nil
	}
	xc, err := numColumn(ds, ctx.xColumn())
	if err != nil {
		return nil, err
	}
	for i := 0; i < ds.Len(); i++ {
		if !xc.Valid[i] {
			continue
		}
		lv, ok := ctx.xIndex[xc.Label(i)]
		if !ok {
			continue
		}
		if v, ok := yc.Float(i); ok {
			groups[lv] = append(groups[lv], v)
		}
	}
	return groups, nil
}

func buildDensity(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	if ctx.xColumn() == "" {
		return &BuildError{Reason: "geom density requires an x aesthetic"}
	}
	xc, err := numColumn(ds, ctx.xColumn())
	if err != nil {
		return err
	}
	base, err := paramColor(g, "color", defaultColor)
	if err != nil {
		return err
	}
	adjust := paramNum(g, "adjust", 1)
	fillAlpha := paramNum(g, "alpha", 0)
	for _, s := range ctx.split(ds, ctx.colorScale, base) {
		vals := values(xc, s.rows)
		if len(vals) < 2 {
			continue
		}
		xs, dens := kde(vals, 128, adjust)
		xys := make(plotter.XYs, len(xs))
		for i := range xs {
			xys[i] = plotter.XY{X: xs[i], Y: dens[i]}
		}
		ln, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("density layer: %w", err)
		}
		ln.LineStyle.Color = s.color
		ln.LineStyle.Width = vg.Points(paramNum(g, "size", 1))
		if fillAlpha > 0 {
			ln.FillColor = withAlpha(s.color, fillAlpha)
		}
		p.Add(ln)
		if s.label != "" {
			p.Legend.Add(s.label, ln)
		}
	}
	if p.Y.Label.Text == "" {
		p.Y.Label.Text = "density"
	}
	return nil
}

func buildSmooth(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	base, err := paramColor(g, "color", color.Color(color.RGBA{R: 0x33, G: 0x66, B: 0xCC, A: 0xFF}))
	if err != nil {
		return err
	}
	method := paramStr(g, "method", "lm")
	if method != "lm" && method != "auto" && method != "loess" {
		return &BuildError{Reason: fmt.Sprintf("unknown smoothing method %q (want lm or loess)", method)}
	}
	se := paramBool(g, "se", true)
	for _, s := range ctx.split(ds, ctx.colorScale, base) {
		xys, _, err := ctx.points(ds, s.rows)
		if err != nil {
			return err
		}
		if len(xys) < 2 {
			continue
		}
		sort.Slice(xys, func(i, j int) bool { return xys[i].X < xys[j].X })
		if method == "loess" || method == "auto" {
			if err := addLoess(p, xys, s.color); err != nil {
				return err
			}
			continue
		}
		if err := addLinearFit(p, xys, s.color, se); err != nil {
			return err
		}
	}
	return nil
}

func buildTile(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	if ctx.aes.X == "" || ctx.aes.Y == "" || ctx.aes.Fill == "" {
		return &BuildError{Reason: "geom tile requires x, y and fill aesthetics"}
	}
	xc, err := numColumn(ds, ctx.aes.X)
	if err != nil {
		return err
	}
	yc, err := numColumn(ds, ctx.aes.Y)
	if err != nil {
		return err
	}
	fc, err := numColumn(ds, ctx.aes.Fill)
	if err != nil {
		return err
	}
	if fc.Kind != frame.Numeric {
		return &BuildError{Reason: fmt.Sprintf("geom tile needs a numeric fill column, %q is %s", fc.Name, fc.Kind)}
	}

	grid, yLevels := buildGrid(xc, yc, fc, ctx.xLevels)
	cs := ctx.fillScale
	if cs == nil || !cs.gradient {
		cs = &colorScale{gradient: true, low: defaultGradientLow, high: defaultGradientHigh}
	}
	hm := plotter.NewHeatMap(grid, gradientPalette{cs: cs, steps: 64})
	p.Add(hm)
	if yLevels != nil {
		p.NominalY(yLevels...)
	}
	return nil
}

// xyzGrid is the dense grid the heat map plotter reads. Cells with no
// observation hold NaN.
type xyzGrid struct {
	xs, ys []float64
	z      [][]float64 // [yi][xi]
}

func (g xyzGrid) Dims() (int, int)   { return len(g.xs), len(g.ys) }
func (g xyzGrid) X(c int) float64    { return g.xs[c] }
func (g xyzGrid) Y(r int) float64    { return g.ys[r] }
func (g xyzGrid) Z(c, r int) float64 { return g.z[r][c] }

// buildGrid arranges tile observations into a dense grid. Discrete
// axes use level indices as coordinates; the caller applies nominal
// tick labels.
func buildGrid(xc, yc, fc *frame.Column, xLevels []string) (xyzGrid, []string) {
	xCoords, xIdx := axisCoords(xc, xLevels)
	var yLevels []string
	if yc.Kind == frame.String || yc.Kind == frame.Bool {
		yLevels = yc.SortedLevels()
	}
	yCoords, yIdx := axisCoords(yc, yLevels)

	z := make([][]float64, len(yCoords))
	for r := range z {
		z[r] = make([]float64, len(xCoords))
		for c := range z[r] {
			z[r][c] = math.NaN()
		}
	}
	for i := 0; i < fc.Len(); i++ {
		v, ok := fc.Float(i)
		if !ok {
			continue
		}
		xi, ok := cellIndex(xc, i, xIdx)
		if !ok {
			continue
		}
		yi, ok := cellIndex(yc, i, yIdx)
		if !ok {
			continue
		}
		z[yi][xi] = v
	}
	return xyzGrid{xs: xCoords, ys: yCoords, z: z}, yLevels
}

// axisCoords gives each distinct axis position a grid coordinate:
// level indices for discrete columns, sorted unique values otherwise.
func axisCoords(col *frame.Column, levels []string) ([]float64, map[string]int) {
	if levels != nil {
		coords := make([]float64, len(levels))
		idx := make(map[string]int, len(levels))
		for i, lv := range levels {
			coords[i] = float64(i)
			idx[lv] = i
		}
		return coords, idx
	}
	seen := make(map[float64]bool)
	var coords []float64
	for i := 0; i < col.Len(); i++ {
		if v, ok := col.Float(i); ok && !seen[v] {
			seen[v] = true
			coords = append(coords, v)
		}
	}
	sort.Float64s(coords)
	idx := make(map[string]int, len(coords))
	for i, v := range coords {
		idx[fmt.Sprintf("%v", v)] = i
	}
	return coords, idx
}

func cellIndex(col *frame.Column, row int, idx map[string]int) (int, bool) {
	if !col.Valid[row] {
		return 0, false
	}
	if col.Kind == frame.String || col.Kind == frame.Bool {
		i, ok := idx[col.Label(row)]
		return i, ok
	}
	v, ok := col.Float(row)
	if !ok {
		return 0, false
	}
	i, ok := idx[fmt.Sprintf("%v", v)]
	return i, ok
}

func buildText(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	labelCol := paramStr(g, "label", "")
	if labelCol == "" {
		return &BuildError{Reason: "geom text requires a 'label' parameter naming a column"}
	}
	lc, err := numColumn(ds, labelCol)
	if err != nil {
		return err
	}
	xys, kept, err := ctx.points(ds, allRows(ds))
	if err != nil {
		return err
	}
	texts := make([]string, len(kept))
	for i, row := range kept {
		texts[i] = lc.Label(row)
	}
	lbls, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return fmt.Errorf("text layer: %w", err)
	}
	for i := range lbls.TextStyle {
		lbls.TextStyle[i].Color = ctx.theme.TextColor
		lbls.TextStyle[i].Font.Size = vg.Points(paramNum(g, "size", 9))
	}
	p.Add(lbls)
	return nil
}

// yErrPoints backs the errorbar geom: points plus low/high offsets.
type yErrPoints struct {
	plotter.XYs
	lows, highs []float64
}

func (e yErrPoints) YError(i int) (float64, float64) { return e.lows[i], e.highs[i] }

func buildErrorbar(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	minName := paramStr(g, "ymin", "")
	maxName := paramStr(g, "ymax", "")
	if minName == "" || maxName == "" {
		return &BuildError{Reason: "geom errorbar requires 'ymin' and 'ymax' parameters naming columns"}
	}
	minCol, err := numColumn(ds, minName)
	if err != nil {
		return err
	}
	maxCol, err := numColumn(ds, maxName)
	if err != nil {
		return err
	}
	xys, kept, err := ctx.points(ds, allRows(ds))
	if err != nil {
		return err
	}
	errs := yErrPoints{XYs: xys}
	for i, row := range kept {
		lo, _ := minCol.Float(row)
		hi, _ := maxCol.Float(row)
		errs.lows = append(errs.lows, xys[i].Y-lo)
		errs.highs = append(errs.highs, hi-xys[i].Y)
	}
	bars, err := plotter.NewYErrorBars(errs)
	if err != nil {
		return fmt.Errorf("errorbar layer: %w", err)
	}
	clr, err := paramColor(g, "color", color.Color(color.Black))
	if err != nil {
		return err
	}
	bars.LineStyle.Color = clr
	p.Add(bars)
	return nil
}

// xRange is the data extent of the x aesthetic, used to span the
// reference-line geoms.
func (ctx *buildCtx) xRange(ds *frame.Dataset) (float64, float64) {
	if ctx.xLevels != nil {
		return -0.5, float64(len(ctx.xLevels)) - 0.5
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	if ctx.xColumn() != "" {
		if col, ok := ds.Column(ctx.xColumn()); ok {
			for i := 0; i < col.Len(); i++ {
				if v, ok := col.Float(i); ok {
					lo, hi = math.Min(lo, v), math.Max(hi, v)
				}
			}
		}
	}
	if lo > hi {
		return 0, 1
	}
	if lo == hi {
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}

func (ctx *buildCtx) yRange(ds *frame.Dataset) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	if ctx.yColumn() != "" {
		if col, ok := ds.Column(ctx.yColumn()); ok {
			for i := 0; i < col.Len(); i++ {
				if v, ok := col.Float(i); ok {
					lo, hi = math.Min(lo, v), math.Max(hi, v)
				}
			}
		}
	}
	if lo > hi {
		return 0, 1
	}
	if lo == hi {
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}

func referenceLine(p *plot.Plot, g api.Geom, xys plotter.XYs) error {
	ln, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("reference line: %w", err)
	}
	clr, err := paramColor(g, "color", color.Color(color.Black))
	if err != nil {
		return err
	}
	ln.LineStyle.Color = clr
	ln.LineStyle.Width = vg.Points(paramNum(g, "size", 1))
	ln.LineStyle.Dashes = dashesFor(paramStr(g, "linetype", "dashed"))
	p.Add(ln)
	return nil
}

func buildHLine(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	y, ok := toNum(g.Params["yintercept"])
	if !ok {
		return &BuildError{Reason: "geom hline requires a numeric 'yintercept' parameter"}
	}
	lo, hi := ctx.xRange(ds)
	return referenceLine(p, g, plotter.XYs{{X: lo, Y: y}, {X: hi, Y: y}})
}

func buildVLine(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	x, ok := toNum(g.Params["xintercept"])
	if !ok {
		return &BuildError{Reason: "geom vline requires a numeric 'xintercept' parameter"}
	}
	lo, hi := ctx.yRange(ds)
	return referenceLine(p, g, plotter.XYs{{X: x, Y: lo}, {X: x, Y: hi}})
}

func buildABLine(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	slope, ok := toNum(g.Params["slope"])
	if !ok {
		return &BuildError{Reason: "geom abline requires a numeric 'slope' parameter"}
	}
	intercept, _ := toNum(g.Params["intercept"])
	lo, hi := ctx.xRange(ds)
	return referenceLine(p, g, plotter.XYs{
		{X: lo, Y: intercept + slope*lo},
		{X: hi, Y: intercept + slope*hi},
	})
}

func buildPolygon(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	fill, err := paramColor(g, "fill", defaultColor)
	if err != nil {
		return err
	}
	fill = withAlpha(fill, paramNum(g, "alpha", 0.5))
	for _, s := range ctx.split(ds, ctx.fillOrColorScale(), fill) {
		xys, _, err := ctx.points(ds, s.rows)
		if err != nil {
			return err
		}
		if len(xys) < 3 {
			continue
		}
		poly, err := plotter.NewPolygon(xys)
		if err != nil {
			return fmt.Errorf("polygon layer: %w", err)
		}
		if s.label != "" {
			poly.Color = withAlpha(s.color, paramNum(g, "alpha", 0.5))
		} else {
			poly.Color = fill
		}
		p.Add(poly)
	}
	return nil
}

func buildRibbon(p *plot.Plot, ctx *buildCtx, ds *frame.Dataset, g api.Geom) error {
	minName := paramStr(g, "ymin", "")
	maxName := paramStr(g, "ymax", "")
	if minName == "" || maxName == "" {
		return &BuildError{Reason: "geom ribbon requires 'ymin' and 'ymax' parameters naming columns"}
	}
	if ctx.xColumn() == "" {
		return &BuildError{Reason: "geom ribbon requires an x aesthetic"}
	}
	xc, err := numColumn(ds, ctx.xColumn())
	if err != nil {
		return err
	}
	minCol, err := numColumn(ds, minName)
	if err != nil {
		return err
	}
	maxCol, err := numColumn(ds, maxName)
	if err != nil {
		return err
	}
	type triple struct{ x, lo, hi float64 }
	var pts []triple
	for i := 0; i < ds.Len(); i++ {
		x, ok := ctx.xValue(xc, i)
		if !ok {
			continue
		}
		lo, ok1 := minCol.Float(i)
		hi, ok2 := maxCol.Float(i)
		if !ok1 || !ok2 {
			continue
		}
		pts = append(pts, triple{x, lo, hi})
	}
	if len(pts) < 2 {
		return nil
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].x < pts[j].x })
	xys := make(plotter.XYs, 0, 2*len(pts))
	for _, t := range pts {
		xys = append(xys, plotter.XY{X: t.x, Y: t.lo})
	}
	for i := len(pts) - 1; i >= 0; i-- {
		xys = append(xys, plotter.XY{X: pts[i].x, Y: pts[i].hi})
	}
	poly, err := plotter.NewPolygon(xys)
	if err != nil {
		return fmt.Errorf("ribbon layer: %w", err)
	}
	fill, err := paramColor(g, "fill", defaultColor)
	if err != nil {
		return err
	}
	poly.Color = withAlpha(fill, paramNum(g, "alpha", 0.4))
	p.Add(poly)
	return nil
}
