package processor

import (
	"bytes"
	"image"
	"image/color"
	"math/rand"
	"testing"
)

// noise returns a deterministic opaque image that compresses poorly.
func noise(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 0xff
	}
	return img
}

func TestScale_Dimensions(t *testing.T) {
	cases := []struct {
		name            string
		srcW, srcH, max int
		wantW, wantH    int
	}{
		{name: "4:3", srcW: 800, srcH: 600, max: 400, wantW: 400, wantH: 300},
		{name: "rounds height", srcW: 1000, srcH: 333, max: 400, wantW: 400, wantH: 133},
		{name: "rounds half up", srcW: 400, srcH: 301, max: 200, wantW: 200, wantH: 151},
		{name: "tall", srcW: 3, srcH: 1000, max: 1, wantW: 1, wantH: 333},
		{name: "height floor of one", srcW: 4000, srcH: 1, max: 400, wantW: 400, wantH: 1},
		{name: "off by one", srcW: 401, srcH: 401, max: 400, wantW: 400, wantH: 400},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Scale(image.NewGray(image.Rect(0, 0, tc.srcW, tc.srcH)), tc.max).Bounds()
			if got.Dx() != tc.wantW || got.Dy() != tc.wantH {
				t.Errorf("Scale(%dx%d, %d) = %dx%d, want %dx%d",
					tc.srcW, tc.srcH, tc.max, got.Dx(), got.Dy(), tc.wantW, tc.wantH)
			}
		})
	}
}

func TestScale_OffsetBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(100, 50, 900, 650))
	got := Scale(src, 400).Bounds()
	if got != image.Rect(0, 0, 400, 300) {
		t.Errorf("bounds = %v, want (0,0)-(400,300)", got)
	}
}

func TestFlatten(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, A: 255})

	out := Flatten(img)

	if out.Bounds() != img.Bounds() {
		t.Fatalf("bounds = %v, want %v", out.Bounds(), img.Bounds())
	}
	if hasAlpha(out) && !opaque(out) {
		t.Error("flattened image is not opaque")
	}

	check := func(x int, want color.RGBA) {
		t.Helper()
		r, g, b, _ := out.At(x, 0).RGBA()
		got := [3]int{int(r >> 8), int(g >> 8), int(b >> 8)}
		exp := [3]int{int(want.R), int(want.G), int(want.B)}
		for i := range got {
			if d := got[i] - exp[i]; d < -1 || d > 1 {
				t.Errorf("pixel %d = %v, want %v", x, got, exp)
				return
			}
		}
	}
	check(0, color.RGBA{R: 255, G: 255, B: 255})
	check(1, color.RGBA{R: 255})
}

func opaque(img image.Image) bool {
	o, ok := img.(interface{ Opaque() bool })
	return ok && o.Opaque()
}

func TestNewEncodeOptions(t *testing.T) {
	cases := map[float64]int{
		0.75:  75,
		1:     100,
		0.005: 1,
		0.001: 1,
		0.5:   50,
		0.876: 88,
		1.5:   100,
	}

	for in, want := range cases {
		if got := NewEncodeOptions(in).Quality; got != want {
			t.Errorf("NewEncodeOptions(%v).Quality = %d, want %d", in, got, want)
		}
	}
}

func TestEncode_QualityControlsSize(t *testing.T) {
	img := noise(128, 128)

	var low, high bytes.Buffer
	if err := Encode(&low, img, NewEncodeOptions(0.1)); err != nil {
		t.Fatalf("Encode low: %v", err)
	}
	if err := Encode(&high, img, NewEncodeOptions(0.95)); err != nil {
		t.Fatalf("Encode high: %v", err)
	}

	if low.Len() >= high.Len() {
		t.Errorf("low quality size %d >= high quality size %d", low.Len(), high.Len())
	}
}

func TestHasAlpha(t *testing.T) {
	rect := image.Rect(0, 0, 1, 1)
	cases := []struct {
		name string
		img  image.Image
		want bool
	}{
		{name: "gray", img: image.NewGray(rect), want: false},
		{name: "gray16", img: image.NewGray16(rect), want: false},
		{name: "ycbcr", img: image.NewYCbCr(rect, image.YCbCrSubsampleRatio420), want: false},
		{name: "cmyk", img: image.NewCMYK(rect), want: false},
		{name: "rgba", img: image.NewRGBA(rect), want: true},
		{name: "nrgba", img: image.NewNRGBA(rect), want: true},
		{name: "nrgba64", img: image.NewNRGBA64(rect), want: true},
		{name: "nycbcra", img: image.NewNYCbCrA(rect, image.YCbCrSubsampleRatio420), want: true},
		{name: "opaque palette", img: image.NewPaletted(rect, color.Palette{color.Black, color.White}), want: false},
		{name: "transparent palette", img: image.NewPaletted(rect, color.Palette{color.Black, color.Transparent}), want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasAlpha(tc.img); got != tc.want {
				t.Errorf("hasAlpha = %v, want %v", got, tc.want)
			}
		})
	}
}
