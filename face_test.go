package invhaar

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLocator struct {
	rects []image.Rectangle
	err   error
}

func (l stubLocator) Locate(*image.NRGBA) ([]image.Rectangle, error) { return l.rects, l.err }

func TestVerifyFaces(t *testing.T) {
	c := loadString(t, squareCascadeXML)

	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	draw.Draw(img, image.Rect(0, 0, 10, 10), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(10, 0, 20, 10), image.NewUniform(color.Black), image.Point{}, draw.Src)

	bright := image.Rect(0, 0, 10, 10)
	dark := image.Rect(10, 0, 20, 10)
	results, annotated, err := VerifyFaces(c, img, stubLocator{rects: []image.Rectangle{bright, dark}})
	require.NoError(t, err)

	assert.Equal(t, []FaceResult{{Rect: bright, Code: 1}, {Rect: dark, Code: 0}}, results)
	assert.Equal(t, color.NRGBA{G: 0xff, A: 0xff}, annotated.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, annotated.NRGBAAt(19, 9))
	// The inside of a region and the source image stay untouched.
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, annotated.NRGBAAt(5, 5))
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, img.NRGBAAt(0, 0))
}

func TestVerifyFaces_LocatorError(t *testing.T) {
	c := loadString(t, squareCascadeXML)
	boom := errors.New("no cascade")

	_, _, err := VerifyFaces(c, image.NewGray(image.Rect(0, 0, 4, 4)), stubLocator{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestNewPigoLocator_InvalidCascade(t *testing.T) {
	_, err := NewPigoLocatorFile("testdata/missing.bin")
	assert.Error(t, err)
}

func TestPigoLocator_Locate(t *testing.T) {
	loc, err := NewPigoLocatorFile("testdata/facefinder")
	require.NoError(t, err)
	loc.ShiftFactor = 0.2
	loc.IoUThreshold = 0.1
	loc.MinQuality = 0

	src, err := DecodeImage("testdata/sample.jpg")
	require.NoError(t, err)
	img := imgToNRGBA(src)

	rects, err := loc.Locate(img)
	require.NoError(t, err)
	require.NotEmpty(t, rects)
	for _, r := range rects {
		assert.False(t, r.Empty())
		assert.True(t, r.In(img.Bounds()), "%v outside %v", r, img.Bounds())
	}

	results, annotated, err := VerifyFaces(loadString(t, squareCascadeXML), img, loc)
	require.NoError(t, err)
	assert.Len(t, results, len(rects))
	assert.Equal(t, img.Bounds(), annotated.Bounds())
}
