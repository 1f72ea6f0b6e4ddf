package invhaar

import (
	"sync"

	"github.com/esimov/invhaar/utils"
)

// featureCache memoizes the dense weight grid of every feature.
type featureCache struct {
	once  []sync.Once
	grids []Grid
}

func newFeatureCache(n int) *featureCache {
	return &featureCache{
		once:  make([]sync.Once, n),
		grids: make([]Grid, n),
	}
}

// FeatureToArray expands the feature at idx into a Height x Width grid of
// per pixel weights. Overlapping rectangles accumulate; rectangles reaching
// past the window are clipped to it. It panics if idx is out of range.
func (c *Cascade) FeatureToArray(idx int) Grid {
	out := NewGrid(c.Height, c.Width)
	for _, r := range c.Features[idx] {
		y1 := utils.Min(r.Y+r.H, c.Height)
		x1 := utils.Min(r.X+r.W, c.Width)
		for y := r.Y; y < y1; y++ {
			row := out[y]
			for x := r.X; x < x1; x++ {
				row[x] += r.Weight
			}
		}
	}
	return out
}

// featureGrid returns the memoized weight grid of the feature at idx.
// The returned grid is shared and must not be modified.
func (c *Cascade) featureGrid(idx int) Grid {
	if c.grids == nil {
		return c.FeatureToArray(idx)
	}
	c.grids.once[idx].Do(func() {
		c.grids.grids[idx] = c.FeatureToArray(idx)
	})
	return c.grids.grids[idx]
}
