package invhaar

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// IntensityScale maps unit pixel intensities onto the 8-bit range used by
// the detector. The detector divides images by IntensityScale*Width*Height.
const IntensityScale = 256.0

// Tracer is invoked right before a weak classifier is evaluated.
type Tracer func(stage, classifier int)

// Result is the outcome of running the cascade over a single window.
type Result struct {
	Accepted bool
	// Stage is the index of the stage that rejected the window.
	// It is only meaningful when Accepted is false.
	Stage int
	// Scores holds the summed classifier output of every evaluated stage.
	Scores []float64
}

// Code returns 1 for an accepted window and -Stage for a rejected one.
// A window rejected by the first stage yields 0.
func (r Result) Code() int {
	if r.Accepted {
		return 1
	}
	return -r.Stage
}

// Detect runs the rejection cascade over img and returns 1 when every stage
// passes, or the negated index of the first failing stage.
func Detect(c *Cascade, img Grid) (int, error) {
	res, err := Evaluate(c, img, nil)
	if err != nil {
		return 0, err
	}
	return res.Code(), nil
}

// Evaluate runs the rejection cascade over img, calling trace (if not nil)
// before every weak classifier. Stages after the first failing one are
// never evaluated.
func Evaluate(c *Cascade, img Grid, trace Tracer) (Result, error) {
	size, ok := img.Size()
	if !ok || size.X == 0 || size.Y == 0 {
		return Result{}, &DimensionError{Want: image.Pt(c.Width, c.Height), Got: size}
	}

	if size.X != c.Width || size.Y != c.Height {
		img = resizeArea(img, c.Width, c.Height)
	} else {
		img = img.Clone()
	}
	img.Scale(1 / (IntensityScale * float64(c.Height*c.Width)))

	res := Result{Accepted: true, Scores: make([]float64, 0, len(c.Stages))}
	for si, st := range c.Stages {
		var total float64
		for ci, wc := range st.WeakClassifiers {
			if trace != nil {
				trace(si, ci)
			}
			if c.featureGrid(wc.FeatureIdx).Dot(img) >= wc.Threshold {
				total += wc.PassVal
			} else {
				total += wc.FailVal
			}
		}
		res.Scores = append(res.Scores, total)

		if total < st.Threshold {
			res.Accepted = false
			res.Stage = si
			return res, nil
		}
	}
	return res, nil
}

// resizeArea resamples img to width x height by area averaging: every
// target pixel is the mean of the source area it covers, partially covered
// source pixels counting in proportion to the overlap. Intensities are kept
// as is, without any 8-bit quantization or clipping.
func resizeArea(img Grid, width, height int) Grid {
	size, _ := img.Size()
	xs := areaWeights(size.X, width)
	ys := areaWeights(size.Y, height)

	// Rows first, then columns.
	rows := NewGrid(size.Y, width)
	for y, src := range img {
		for x, spans := range xs {
			for _, sp := range spans {
				rows[y][x] += sp.w * src[sp.idx]
			}
		}
	}
	dst := NewGrid(height, width)
	for y, spans := range ys {
		for _, sp := range spans {
			floats.AddScaled(dst[y], sp.w, rows[sp.idx])
		}
	}
	return dst
}

// span is the weight of one source pixel in a target pixel.
type span struct {
	idx int
	w   float64
}

// areaWeights returns, for every one of the dst target pixels, the source
// pixels covering it and their weights. The weights of a target sum to one.
func areaWeights(src, dst int) [][]span {
	scale := float64(src) / float64(dst)
	out := make([][]span, dst)
	for i := range out {
		lo, hi := float64(i)*scale, float64(i+1)*scale
		for k := int(lo); k < src && float64(k) < hi; k++ {
			overlap := math.Min(hi, float64(k+1)) - math.Max(lo, float64(k))
			if overlap > 0 {
				out[i] = append(out[i], span{idx: k, w: overlap / scale})
			}
		}
	}
	return out
}
