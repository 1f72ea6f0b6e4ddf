package invhaar

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/esimov/invhaar/utils"
	"golang.org/x/image/bmp"
)

// DecodeImage opens and decodes the image file at src.
func DecodeImage(src string) (image.Image, error) {
	ctype, err := utils.DetectContentType(src)
	if err != nil {
		return nil, fmt.Errorf("could not open the image file: %w", err)
	}
	if !strings.Contains(ctype, "image") {
		return nil, fmt.Errorf("%s is not an image file", filepath.Base(src))
	}

	file, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("could not open the image file: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("could not decode the image file: %w", err)
	}
	return img, nil
}

// EncodeImage encodes img into w. The format is picked from the extension
// of name: .png, .bmp, .jpg/.jpeg or none (jpeg).
func EncodeImage(w io.Writer, name string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case "", ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("unsupported image format %q", filepath.Ext(name))
	}
}

// SaveImage writes img to the file at path, encoded after its extension.
func SaveImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create the destination file: %w", err)
	}
	if err := EncodeImage(f, path, img); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// GridFromImage converts img to a grid of 8-bit luma values.
func GridFromImage(img image.Image) Grid {
	b := img.Bounds()
	g := NewGrid(b.Dy(), b.Dx())

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				g[y][x] = float64(src.Pix[off+x])
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				g[y][x] = float64(c.Y)
			}
		}
	}
	return g
}

// GridToImage renders g as a grayscale image, rounding and clamping every
// cell to [0, 255].
func GridToImage(g Grid) *image.Gray {
	size, _ := g.Size()
	dst := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	for y, row := range g {
		for x, v := range row {
			dst.Pix[y*dst.Stride+x] = uint8(utils.Clamp(math.Round(v), 0, 255))
		}
	}
	return dst
}

// Upscale enlarges img by an integer factor keeping hard pixel edges.
func Upscale(img image.Image, factor int) *image.NRGBA {
	if factor < 1 {
		factor = 1
	}
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*factor, b.Dy()*factor, imaging.NearestNeighbor)
}

// imgToNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func imgToNRGBA(img image.Image) *image.NRGBA {
	srcBounds := img.Bounds()
	if srcBounds.Min.X == 0 && srcBounds.Min.Y == 0 {
		if src0, ok := img.(*image.NRGBA); ok {
			return src0
		}
	}
	return imaging.Clone(img)
}
