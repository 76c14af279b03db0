// Package render assembles a declarative plot configuration and a
// tabular dataset into drawable panels, and exports them to png, pdf
// or svg files.
package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/plot"

	"github.com/Fervoyush/plotnine-mcp/api"
	"github.com/Fervoyush/plotnine-mcp/internal/frame"
	"github.com/Fervoyush/plotnine-mcp/internal/suggest"
)

// BuildError reports a configuration that cannot be assembled against
// the loaded dataset: unknown registry names, missing columns, or
// parameters that make no sense for the data. The Reason already
// carries any did-you-mean suggestion.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string { return "cannot build plot: " + e.Reason }

// Assembled is a fully constructed plot ready for export: one panel
// without facets, a panel grid with them.
type Assembled struct {
	Panels [][]*plot.Plot
	Theme  Theme
	Aspect float64 // fixed x/y unit ratio; 0 means free
	Info   Info
}

// Info summarizes what was assembled, for logging and tool responses.
type Info struct {
	Rows   int      `json:"rows"`
	Panels int      `json:"panels"`
	Geoms  []string `json:"geoms"`
	Stats  []string `json:"stats,omitempty"`
	Theme  string   `json:"theme"`
	Scales []string `json:"scales,omitempty"`
	Coord  string   `json:"coord,omitempty"`
	Facet  string   `json:"facet,omitempty"`
}

// buildCtx carries everything the geometry builders need: the full
// dataset (facet panels share level orderings and color assignments
// computed from it), the aesthetic bindings and the resolved scales.
type buildCtx struct {
	full       *frame.Dataset
	aes        api.Aesthetics
	scales     map[string]api.Scale
	colorScale *colorScale
	fillScale  *colorScale
	flip       bool
	theme      Theme

	xLevels []string
	xIndex  map[string]int

	groupCol    string
	groupLevels []string
}

// Assemble validates the configuration against the dataset and builds
// the panels. The dataset is expected to be post-transform.
func Assemble(ds *frame.Dataset, cfg *api.PlotConfig) (*Assembled, error) {
	layers := cfg.GeomLayers()
	if len(layers) == 0 {
		return nil, &BuildError{Reason: "at least one geometry layer is required"}
	}
	for _, g := range layers {
		if _, ok := geomRegistry[g.Type]; !ok {
			return nil, &BuildError{Reason: suggest.ForName("geom type", g.Type, GeomNames())}
		}
	}
	for _, st := range cfg.Stats {
		if _, ok := statRegistry[st.Type]; !ok {
			return nil, &BuildError{Reason: suggest.ForName("stat type", st.Type, StatNames())}
		}
	}
	if err := checkAesColumns(ds, cfg.Aes); err != nil {
		return nil, err
	}

	scales, err := resolveScales(cfg.Scales)
	if err != nil {
		return nil, err
	}
	theme, err := ResolveTheme(cfg.Theme)
	if err != nil {
		return nil, err
	}

	ctx := &buildCtx{full: ds, aes: cfg.Aes, scales: scales, theme: theme}
	if s, ok := scales["color"]; ok {
		if ctx.colorScale, err = resolveColorScale(&s); err != nil {
			return nil, err
		}
	}
	if s, ok := scales["fill"]; ok {
		if ctx.fillScale, err = resolveColorScale(&s); err != nil {
			return nil, err
		}
	}
	if err := ctx.applyCoords(cfg.Coords); err != nil {
		return nil, err
	}
	ctx.resolveDiscreteX()
	ctx.resolveGrouping()

	panels, facetDesc, err := partition(ds, cfg.Facets)
	if err != nil {
		return nil, err
	}

	out := &Assembled{Theme: theme, Info: Info{
		Rows:  ds.Len(),
		Theme: theme.Name,
		Facet: facetDesc,
	}}
	if cfg.Coords != nil {
		out.Info.Coord = cfg.Coords.Type
		if cfg.Coords.Type == "fixed" {
			out.Aspect = 1
			if r, ok := toNum(cfg.Coords.Params["ratio"]); ok && r > 0 {
				out.Aspect = r
			}
		}
	}
	for _, g := range layers {
		out.Info.Geoms = append(out.Info.Geoms, g.Type)
	}
	for _, st := range cfg.Stats {
		out.Info.Stats = append(out.Info.Stats, st.Type)
	}
	for aes, s := range scales {
		out.Info.Scales = append(out.Info.Scales, aes+":"+s.Type)
	}
	sort.Strings(out.Info.Scales)

	for _, row := range panels {
		var plotRow []*plot.Plot
		for _, pane := range row {
			p, err := ctx.buildPanel(pane, layers, cfg.Stats, cfg.Labels, len(panels) > 1 || len(row) > 1)
			if err != nil {
				return nil, err
			}
			plotRow = append(plotRow, p)
			if p != nil {
				out.Info.Panels++
			}
		}
		out.Panels = append(out.Panels, plotRow)
	}
	// Faceted plots keep their cell titles for the facet strips; the
	// overall title joins the first cell's strip.
	if out.Info.Facet != "" && cfg.Labels != nil && cfg.Labels.Title != "" {
		if first := out.Panels[0][0]; first != nil {
			first.Title.Text = cfg.Labels.Title + ": " + first.Title.Text
		}
	}
	return out, nil
}

// checkAesColumns verifies every bound aesthetic column exists,
// suggesting close matches for typos.
func checkAesColumns(ds *frame.Dataset, aes api.Aesthetics) error {
	for _, b := range aes.Bindings() {
		if !ds.Has(b.Column) {
			return &BuildError{Reason: suggest.ForColumn(b.Column, ds.Columns())}
		}
	}
	return nil
}

// applyCoords folds the coordinate system into the build context.
// "flip" swaps the positional aesthetics, "trans" injects positional
// scales, "fixed" is handled by the exporter through Assembled.Aspect.
func (ctx *buildCtx) applyCoords(c *api.Coords) error {
	if c == nil || c.Type == "" || c.Type == "cartesian" {
		return nil
	}
	switch c.Type {
	case "flip":
		ctx.flip = true
	case "fixed":
	case "trans":
		for _, axis := range []string{"x", "y"} {
			name, ok := c.Params[axis].(string)
			if !ok || name == "" {
				continue
			}
			if name != "log10" && name != "sqrt" {
				return &BuildError{Reason: fmt.Sprintf("unknown %s transform %q (want log10 or sqrt)", axis, name)}
			}
			if _, exists := ctx.scales[axis]; !exists {
				ctx.scales[axis] = api.Scale{Aesthetic: axis, Type: name}
			}
		}
	default:
		return &BuildError{Reason: suggest.ForName("coordinate system", c.Type,
			[]string{"cartesian", "flip", "fixed", "trans"})}
	}
	return nil
}

// resolveDiscreteX decides whether the x aesthetic is categorical and
// fixes the shared level ordering across all panels.
func (ctx *buildCtx) resolveDiscreteX() {
	name := ctx.xColumn()
	if name == "" {
		return
	}
	col, ok := ctx.full.Column(name)
	if !ok {
		return
	}
	discrete := col.Kind == frame.String || col.Kind == frame.Bool
	if s, ok := ctx.scales[ctx.xAesthetic()]; ok && s.Type == "discrete" {
		discrete = true
	}
	if !discrete {
		return
	}
	ctx.xLevels = col.SortedLevels()
	ctx.xIndex = make(map[string]int, len(ctx.xLevels))
	for i, lv := range ctx.xLevels {
		ctx.xIndex[lv] = i
	}
}

// xColumn and yColumn are the positional bindings after any flip.
func (ctx *buildCtx) xColumn() string {
	if ctx.flip {
		return ctx.aes.Y
	}
	return ctx.aes.X
}

func (ctx *buildCtx) yColumn() string {
	if ctx.flip {
		return ctx.aes.X
	}
	return ctx.aes.Y
}

// xAesthetic names the configured aesthetic that feeds the x axis, so
// scale lookups still follow the config after a flip.
func (ctx *buildCtx) xAesthetic() string {
	if ctx.flip {
		return "y"
	}
	return "x"
}

func (ctx *buildCtx) yAesthetic() string {
	if ctx.flip {
		return "x"
	}
	return "y"
}

// resolveGrouping picks the column that splits layers into colored
// series: the first discrete binding among color, fill, group,
// linetype and shape. Levels come from the full dataset so colors stay
// stable across facet panels.
func (ctx *buildCtx) resolveGrouping() {
	for _, name := range []string{ctx.aes.Color, ctx.aes.Fill, ctx.aes.Group, ctx.aes.Linetype, ctx.aes.Shape} {
		if name == "" {
			continue
		}
		col, ok := ctx.full.Column(name)
		if !ok {
			continue
		}
		if col.Kind == frame.Numeric && name != ctx.aes.Group {
			continue // continuous color handled per-geom as a gradient
		}
		ctx.groupCol = name
		ctx.groupLevels = col.SortedLevels()
		return
	}
}

// pane is one facet cell: its data subset and the strip title.
type pane struct {
	ds    *frame.Dataset
	title string
}

// partition splits the dataset into facet panels. Without facets the
// result is a single cell holding the whole dataset.
func partition(ds *frame.Dataset, f *api.Facets) ([][]pane, string, error) {
	if f == nil || f.Type == "" {
		return [][]pane{{{ds: ds}}}, "", nil
	}
	switch f.Type {
	case "wrap":
		variable := facetVar(f.Facets)
		if variable == "" {
			return nil, "", &BuildError{Reason: "facet wrap requires a 'facets' variable"}
		}
		col, ok := ds.Column(variable)
		if !ok {
			return nil, "", &BuildError{Reason: suggest.ForColumn(variable, ds.Columns())}
		}
		levels := col.SortedLevels()
		ncol := int(math.Ceil(math.Sqrt(float64(len(levels)))))
		if n, ok := toNum(f.Params["ncol"]); ok && n >= 1 {
			ncol = int(n)
		}
		var rows [][]pane
		var current []pane
		for _, lv := range levels {
			current = append(current, pane{ds: subsetByLevel(ds, col, lv), title: lv})
			if len(current) == ncol {
				rows = append(rows, current)
				current = nil
			}
		}
		if len(current) > 0 {
			for len(current) < ncol {
				current = append(current, pane{}) // empty cell
			}
			rows = append(rows, current)
		}
		return rows, "wrap ~" + variable, nil
	case "grid":
		rowVar, colVar := f.Rows, f.Cols
		if rowVar == "" && colVar == "" {
			rowVar, colVar = splitGridFormula(f.Facets)
		}
		if rowVar == "" && colVar == "" {
			return nil, "", &BuildError{Reason: "facet grid requires rows and/or cols variables"}
		}
		rowLevels, rowCol, err := gridLevels(ds, rowVar)
		if err != nil {
			return nil, "", err
		}
		colLevels, colCol, err := gridLevels(ds, colVar)
		if err != nil {
			return nil, "", err
		}
		var rows [][]pane
		for _, rl := range rowLevels {
			var cells []pane
			for _, cl := range colLevels {
				sub := ds
				if rowCol != nil {
					sub = subsetByLevel(sub, mustColumn(sub, rowVar), rl)
				}
				if colCol != nil {
					sub = subsetByLevel(sub, mustColumn(sub, colVar), cl)
				}
				cells = append(cells, pane{ds: sub, title: gridTitle(rl, cl)})
			}
			rows = append(rows, cells)
		}
		return rows, "grid " + rowVar + "~" + colVar, nil
	}
	return nil, "", &BuildError{Reason: fmt.Sprintf("unknown facet type %q", f.Type)}
}

// facetVar strips the formula prefix from a wrap spec: "~group" and
// "~ group" both mean the group column.
func facetVar(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "~")
	return strings.TrimSpace(s)
}

// splitGridFormula parses "rowvar ~ colvar" with "." as an empty side.
func splitGridFormula(s string) (rowVar, colVar string) {
	parts := strings.SplitN(s, "~", 2)
	if len(parts) != 2 {
		return "", ""
	}
	rowVar = strings.TrimSpace(parts[0])
	colVar = strings.TrimSpace(parts[1])
	if rowVar == "." {
		rowVar = ""
	}
	if colVar == "." {
		colVar = ""
	}
	return rowVar, colVar
}

func gridLevels(ds *frame.Dataset, name string) ([]string, *frame.Column, error) {
	if name == "" {
		return []string{""}, nil, nil
	}
	col, ok := ds.Column(name)
	if !ok {
		return nil, nil, &BuildError{Reason: suggest.ForColumn(name, ds.Columns())}
	}
	return col.SortedLevels(), col, nil
}

func gridTitle(row, col string) string {
	switch {
	case row == "":
		return col
	case col == "":
		return row
	default:
		return row + " / " + col
	}
}

func mustColumn(ds *frame.Dataset, name string) *frame.Column {
	col, _ := ds.Column(name)
	return col
}

func subsetByLevel(ds *frame.Dataset, col *frame.Column, level string) *frame.Dataset {
	var idx []int
	for i := 0; i < col.Len(); i++ {
		if col.Valid[i] && col.Label(i) == level {
			idx = append(idx, i)
		}
	}
	return ds.Take(idx)
}

// buildPanel constructs one facet cell. A nil cell (grid padding)
// yields a nil plot the exporter leaves blank.
func (ctx *buildCtx) buildPanel(cell pane, layers []api.Geom, stats []api.Stat, labels *api.Labels, faceted bool) (*plot.Plot, error) {
	if cell.ds == nil {
		return nil, nil
	}
	p := plot.New()
	ctx.theme.style(p)

	if cell.title != "" {
		p.Title.Text = cell.title
	}
	applyLabels(p, labels, ctx.flip, faceted)

	if s, ok := ctx.scales[ctx.xAesthetic()]; ok {
		if err := applyAxisScale(&p.X, s); err != nil {
			return nil, err
		}
	}
	if s, ok := ctx.scales[ctx.yAesthetic()]; ok {
		if err := applyAxisScale(&p.Y, s); err != nil {
			return nil, err
		}
	}
	if ctx.xLevels != nil {
		if ctx.flip {
			p.NominalY(ctx.xLevels...)
		} else {
			p.NominalX(ctx.xLevels...)
		}
	}

	for _, g := range layers {
		if err := geomRegistry[g.Type].build(p, ctx, cell.ds, g); err != nil {
			return nil, err
		}
	}
	for _, st := range stats {
		if err := statRegistry[st.Type](p, ctx, cell.ds, st); err != nil {
			return nil, err
		}
	}

	// Default axis titles fall back to the column names.
	if p.X.Label.Text == "" {
		p.X.Label.Text = ctx.xColumn()
	}
	if p.Y.Label.Text == "" {
		p.Y.Label.Text = ctx.yColumn()
	}
	return p, nil
}

// applyLabels writes the textual annotations onto a panel. The panel
// title is reserved for facet strips when faceting is active; the
// overall title then lands on the first cell by the caller. Flip swaps
// the axis labels with the aesthetics.
func applyLabels(p *plot.Plot, labels *api.Labels, flip, faceted bool) {
	if labels == nil {
		return
	}
	if !faceted {
		title := labels.Title
		if labels.Subtitle != "" {
			if title != "" {
				title += "\n"
			}
			title += labels.Subtitle
		}
		p.Title.Text = title
	}
	xLabel, yLabel := labels.X, labels.Y
	if flip {
		xLabel, yLabel = yLabel, xLabel
	}
	if xLabel != "" {
		p.X.Label.Text = xLabel
	}
	if yLabel != "" {
		p.Y.Label.Text = yLabel
	}
}
