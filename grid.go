package invhaar

import (
	"image"

	"gonum.org/v1/gonum/floats"
)

// Grid is a dense row major matrix of real values, indexed as g[y][x].
type Grid [][]float64

// NewGrid returns a zero initialized grid with the given height and width.
func NewGrid(height, width int) Grid {
	g := make(Grid, height)
	cells := make([]float64, height*width)
	for y := range g {
		g[y] = cells[y*width : (y+1)*width : (y+1)*width]
	}
	return g
}

// Size returns the width and height of the grid. A ragged grid reports
// ok == false.
func (g Grid) Size() (size image.Point, ok bool) {
	if len(g) == 0 {
		return image.Point{}, true
	}
	w := len(g[0])
	for _, row := range g {
		if len(row) != w {
			return image.Point{X: w, Y: len(g)}, false
		}
	}
	return image.Point{X: w, Y: len(g)}, true
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	size, _ := g.Size()
	out := NewGrid(size.Y, size.X)
	for y := range g {
		copy(out[y], g[y])
	}
	return out
}

// Scale multiplies every cell by f in place and returns the grid.
func (g Grid) Scale(f float64) Grid {
	for _, row := range g {
		floats.Scale(f, row)
	}
	return g
}

// Sum returns the sum of all cells.
func (g Grid) Sum() float64 {
	var total float64
	for _, row := range g {
		total += floats.Sum(row)
	}
	return total
}

// Dot returns the elementwise product sum of two grids of the same size.
func (g Grid) Dot(o Grid) float64 {
	var total float64
	for y := range g {
		total += floats.Dot(g[y], o[y])
	}
	return total
}
