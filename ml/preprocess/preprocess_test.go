package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func encodePNG(t *testing.T, w, h int, fill func(x, y int) color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func gradient(x, y int) color.RGBA {
	return color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255}
}

func TestPreprocessShapeAndDeterminism(t *testing.T) {
	data := encodePNG(t, 400, 300, gradient)
	a, err := Preprocess(data)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if a.C != 3 || a.H != CropSize || a.W != CropSize {
		t.Fatalf("shape = %dx%dx%d", a.C, a.H, a.W)
	}
	b, err := Preprocess(data)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("non-deterministic at %d", i)
		}
	}
}

func TestPreprocessNormalizesSolidColor(t *testing.T) {
	data := encodePNG(t, 256, 256, func(int, int) color.RGBA { return color.RGBA{255, 0, 0, 255} })
	v, err := Preprocess(data)
	if err != nil {
		t.Fatal(err)
	}
	plane := v.H * v.W
	wantR := (1 - Mean[0]) / Std[0]
	wantG := (0 - Mean[1]) / Std[1]
	if math.Abs(v.Data[plane/2]-wantR) > 0.02 {
		t.Fatalf("red channel = %v, want %v", v.Data[plane/2], wantR)
	}
	if math.Abs(v.Data[plane+plane/2]-wantG) > 0.02 {
		t.Fatalf("green channel = %v, want %v", v.Data[plane+plane/2], wantG)
	}
}

func TestPreprocessRejectsGarbage(t *testing.T) {
	for _, in := range [][]byte{nil, []byte("definitely not an image")} {
		if _, err := Preprocess(in); !errors.Is(err, ErrDecode) {
			t.Fatalf("expected ErrDecode, got %v", err)
		}
	}
}

func TestResizeShortSideKeepsAspect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 512, 256))
	out := ResizeShortSide(img, 256)
	if out.Bounds().Dx() != 512 || out.Bounds().Dy() != 256 {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	out = ResizeShortSide(image.NewRGBA(image.Rect(0, 0, 100, 200)), 256)
	if out.Bounds().Dx() != 256 || out.Bounds().Dy() != 512 {
		t.Fatalf("bounds = %v", out.Bounds())
	}
}

func TestCenterCropUpscalesSmallImages(t *testing.T) {
	out := CenterCrop(image.NewRGBA(image.Rect(0, 0, 50, 80)), CropSize)
	if out.Bounds().Dx() != CropSize || out.Bounds().Dy() != CropSize {
		t.Fatalf("bounds = %v", out.Bounds())
	}
}

func TestAugmenterOutput(t *testing.T) {
	data := encodePNG(t, 320, 240, gradient)
	img, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	aug := NewAugmenter(42)
	lo, hi := math.Inf(1), math.Inf(-1)
	for c := 0; c < 3; c++ {
		lo = math.Min(lo, (0-Mean[c])/Std[c])
		hi = math.Max(hi, (1-Mean[c])/Std[c])
	}
	for i := 0; i < 5; i++ {
		v := aug.Apply(img)
		if v.C != 3 || v.H != CropSize || v.W != CropSize {
			t.Fatalf("shape = %dx%dx%d", v.C, v.H, v.W)
		}
		for _, x := range v.Data {
			if math.IsNaN(x) || x < lo-1e-9 || x > hi+1e-9 {
				t.Fatalf("value out of normalized range: %v", x)
			}
		}
	}
}

func TestAugmenterSeeded(t *testing.T) {
	img, err := Decode(encodePNG(t, 256, 256, gradient))
	if err != nil {
		t.Fatal(err)
	}
	a := NewAugmenter(9).Apply(img)
	b := NewAugmenter(9).Apply(img)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("same seed produced different output at %d", i)
		}
	}
}
