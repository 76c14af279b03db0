package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/Fervoyush/plotnine-mcp/api"
)

// ExportInfo reports where and how a plot was written.
type ExportInfo struct {
	Path   string  `json:"path"`
	Format string  `json:"format"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPI    int     `json:"dpi"`
}

// Export writes the assembled panels to disk. Output defaults apply
// first; a theme figure_size overrides the configured dimensions, and
// a fixed-aspect coordinate system locks height to width.
func Export(a *Assembled, out api.Output) (ExportInfo, error) {
	out = out.WithDefaults()
	width, height := out.Width, out.Height
	if a.Theme.FigWidth > 0 && a.Theme.FigHeight > 0 {
		width, height = a.Theme.FigWidth, a.Theme.FigHeight
	}
	if a.Aspect > 0 {
		height = width * a.Aspect
	}

	if err := os.MkdirAll(out.Directory, 0o755); err != nil {
		return ExportInfo{}, fmt.Errorf("create output directory: %w", err)
	}
	name := out.Filename
	if name == "" {
		name = "plot_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8] + "." + out.Format
	} else if filepath.Ext(name) == "" {
		name += "." + out.Format
	}
	path := filepath.Join(out.Directory, name)

	w := vg.Length(width) * vg.Inch
	h := vg.Length(height) * vg.Inch

	f, err := os.Create(path)
	if err != nil {
		return ExportInfo{}, fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	switch out.Format {
	case "png":
		c := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(out.DPI))
		drawPanels(a, draw.New(c))
		if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
			return ExportInfo{}, fmt.Errorf("encode png: %w", err)
		}
	case "pdf":
		c := vgpdf.New(w, h)
		drawPanels(a, draw.New(c))
		if _, err := c.WriteTo(f); err != nil {
			return ExportInfo{}, fmt.Errorf("encode pdf: %w", err)
		}
	case "svg":
		c := vgsvg.New(w, h)
		drawPanels(a, draw.New(c))
		if _, err := c.WriteTo(f); err != nil {
			return ExportInfo{}, fmt.Errorf("encode svg: %w", err)
		}
	default:
		return ExportInfo{}, fmt.Errorf("unknown output format %q", out.Format)
	}
	return ExportInfo{Path: path, Format: out.Format, Width: width, Height: height, DPI: out.DPI}, nil
}

// drawPanels tiles the facet grid onto one canvas with aligned axes.
func drawPanels(a *Assembled, dc draw.Canvas) {
	if a.Theme.Background != nil {
		dc.SetColor(a.Theme.Background)
		dc.Fill(dc.Rectangle.Path())
	}
	rows := len(a.Panels)
	cols := 0
	for _, row := range a.Panels {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if rows == 1 && cols == 1 {
		if a.Panels[0][0] != nil {
			a.Panels[0][0].Draw(dc)
		}
		return
	}
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Millimeter * 2, PadY: vg.Millimeter * 2,
		PadTop: vg.Millimeter, PadBottom: vg.Millimeter,
		PadLeft: vg.Millimeter, PadRight: vg.Millimeter,
	}
	canvases := plot.Align(a.Panels, tiles, dc)
	for r, row := range a.Panels {
		for c, p := range row {
			if p != nil {
				p.Draw(canvases[r][c])
			}
		}
	}
}
