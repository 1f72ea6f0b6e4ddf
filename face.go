package invhaar

import (
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
)

// FaceLocator finds candidate face regions in an image.
type FaceLocator interface {
	Locate(img *image.NRGBA) ([]image.Rectangle, error)
}

// PigoLocator locates faces with a pigo pixel intensity comparison cascade.
type PigoLocator struct {
	classifier *pigo.Pigo

	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	Angle        float64
	IoUThreshold float64
	MinQuality   float32
}

// NewPigoLocator unpacks a binary pigo cascade.
func NewPigoLocator(cascade []byte) (*PigoLocator, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, errors.Wrap(err, "error unpacking the cascade file")
	}
	return &PigoLocator{
		classifier:   classifier,
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5,
	}, nil
}

// NewPigoLocatorFile reads a binary pigo cascade from path.
func NewPigoLocatorFile(path string) (*PigoLocator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read the face cascade")
	}
	return NewPigoLocator(data)
}

// Locate returns the square regions of the faces found in img.
func (l *PigoLocator) Locate(img *image.NRGBA) ([]image.Rectangle, error) {
	b := img.Bounds()
	params := pigo.CascadeParams{
		MinSize:     l.MinSize,
		MaxSize:     l.MaxSize,
		ShiftFactor: l.ShiftFactor,
		ScaleFactor: l.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   b.Dy(),
			Cols:   b.Dx(),
			Dim:    b.Dx(),
		},
	}

	dets := l.classifier.RunCascade(params, l.Angle)
	dets = l.classifier.ClusterDetections(dets, l.IoUThreshold)

	rects := make([]image.Rectangle, 0, len(dets))
	for _, d := range dets {
		if d.Q < l.MinQuality {
			continue
		}
		half := d.Scale / 2
		r := image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half).Intersect(b)
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects, nil
}

// FaceResult is the verdict of the cascade on one located face.
type FaceResult struct {
	Rect image.Rectangle
	Code int
}

// VerifyFaces locates faces in img and runs the cascade over each of them.
// It returns one result per located face and a copy of img with the face
// regions outlined: green when the cascade accepts the crop, red otherwise.
func VerifyFaces(c *Cascade, img image.Image, loc FaceLocator) ([]FaceResult, *image.NRGBA, error) {
	src := imgToNRGBA(img)
	rects, err := loc.Locate(src)
	if err != nil {
		return nil, nil, errors.Wrap(err, "face localization failed")
	}

	gray := imaging.Grayscale(src)
	annotated := imaging.Clone(src)
	results := make([]FaceResult, 0, len(rects))
	for _, r := range rects {
		code, err := Detect(c, GridFromImage(imaging.Crop(gray, r)))
		if err != nil {
			return nil, nil, err
		}
		results = append(results, FaceResult{Rect: r, Code: code})

		col := color.NRGBA{R: 0xff, A: 0xff}
		if code == 1 {
			col = color.NRGBA{G: 0xff, A: 0xff}
		}
		outline(annotated, r, col, 2)
	}
	return results, annotated, nil
}

// outline draws the border of r onto dst with the given thickness.
func outline(dst draw.Image, r image.Rectangle, col color.Color, thickness int) {
	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}
