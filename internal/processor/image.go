package processor

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Scale shrinks src to maxWidth pixels wide, keeping the aspect ratio.
// Callers must ensure 0 < maxWidth < source width.
//
// Resampling uses the Catmull-Rom cubic filter. The result carries an alpha
// channel whenever the source did; flattening is left to the caller.
func Scale(src image.Image, maxWidth int) *image.NRGBA {
	b := src.Bounds()
	factor := float64(maxWidth) / float64(b.Dx())

	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	if h < 1 {
		h = 1
	}

	return imaging.Resize(src, w, h, imaging.CatmullRom)
}

// Flatten composites img over an opaque white background.
func Flatten(img image.Image) image.Image {
	b := img.Bounds()

	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.SetColor(color.White)
	dc.Clear()
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)

	return dc.Image()
}

// EncodeOptions configures a single JPEG encode.
type EncodeOptions struct {
	Quality int // 1..100
}

// NewEncodeOptions converts a quality fraction in (0, 1] to encoder options.
func NewEncodeOptions(quality float64) EncodeOptions {
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}

	return EncodeOptions{Quality: q}
}

// Encode writes img to w as a baseline JPEG.
func Encode(w io.Writer, img image.Image, opts EncodeOptions) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality))
}

// hasAlpha reports whether the image's color model can carry transparency.
func hasAlpha(img image.Image) bool {
	if p, ok := img.ColorModel().(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	}

	switch img.ColorModel() {
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model,
		color.NYCbCrAModel, color.AlphaModel, color.Alpha16Model:
		return true
	}

	return false
}
