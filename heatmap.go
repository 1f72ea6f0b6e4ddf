package invhaar

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// gridXYZ adapts a Grid to plotter.GridXYZ. Row 0 of the grid is drawn at
// the top, as in the image.
type gridXYZ struct {
	g    Grid
	w, h int
}

func (g gridXYZ) Dims() (c, r int)   { return g.w, g.h }
func (g gridXYZ) Z(c, r int) float64 { return g.g[g.h-1-r][c] }
func (g gridXYZ) X(c int) float64    { return float64(c) }
func (g gridXYZ) Y(r int) float64    { return float64(r) }

// SaveHeatmap renders g as a heat map and writes it to path. The image
// format follows the extension of path.
func SaveHeatmap(g Grid, title, path string) error {
	size, ok := g.Size()
	if !ok || size.X == 0 || size.Y == 0 {
		return fmt.Errorf("cannot plot a %dx%d grid", size.X, size.Y)
	}

	hm := plotter.NewHeatMap(gridXYZ{g: g, w: size.X, h: size.Y}, palette.Heat(16, 1))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(hm)

	side := vg.Length(size.X) * vg.Inch / 4
	if side < 4*vg.Inch {
		side = 4 * vg.Inch
	}
	if err := p.Save(side, side*vg.Length(size.Y)/vg.Length(size.X), path); err != nil {
		return fmt.Errorf("failed to save heatmap: %w", err)
	}
	return nil
}
