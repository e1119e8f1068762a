// Package preprocess turns encoded image bytes into the normalized 3×224×224
// volumes the classifier consumes, for inference and for training.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"diettracker/ml/nn"
)

const (
	ResizeShort = 256
	CropSize    = 224
)

// ImageNet channel statistics.
var (
	Mean = [3]float64{0.485, 0.456, 0.406}
	Std  = [3]float64{0.229, 0.224, 0.225}
)

// ErrDecode is returned when the bytes are not a decodable image.
var ErrDecode = errors.New("preprocess: image could not be decoded")

func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", ErrDecode)
	}
	return img, nil
}

// Preprocess decodes data and applies the inference transform. The output is
// a pure function of the input bytes.
func Preprocess(data []byte) (*nn.Volume, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Inference(img), nil
}

// Inference resizes the short side to 256, center-crops 224 and normalizes.
func Inference(img image.Image) *nn.Volume {
	return ToVolume(CenterCrop(ResizeShortSide(img, ResizeShort), CropSize))
}

// ResizeShortSide scales img so its shorter side equals short, keeping the
// aspect ratio.
func ResizeShortSide(img image.Image, short int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var ow, oh int
	if w <= h {
		ow, oh = short, int(float64(short)*float64(h)/float64(w))
	} else {
		ow, oh = int(float64(short)*float64(w)/float64(h)), short
	}
	if ow < 1 {
		ow = 1
	}
	if oh < 1 {
		oh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, ow, oh))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// CenterCrop cuts a size×size square from the middle of img. Images smaller
// than size are scaled up first.
func CenterCrop(img *image.RGBA, size int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() < size || b.Dy() < size {
		img = ResizeShortSide(img, size)
		b = img.Bounds()
	}
	top := int(math.Round(float64(b.Dy()-size) / 2))
	left := int(math.Round(float64(b.Dx()-size) / 2))
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(b.Min.X+left, b.Min.Y+top), draw.Src)
	return dst
}

// toUnit converts an RGBA image to a CHW volume with values in [0,1].
func toUnit(img *image.RGBA) *nn.Volume {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	v := nn.NewVolume(3, h, w)
	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4:]
			i := y*w + x
			v.Data[i] = float64(p[0]) / 255
			v.Data[plane+i] = float64(p[1]) / 255
			v.Data[2*plane+i] = float64(p[2]) / 255
		}
	}
	return v
}

func normalize(v *nn.Volume) {
	plane := v.H * v.W
	for c := 0; c < 3; c++ {
		seg := v.Data[c*plane : (c+1)*plane]
		for i := range seg {
			seg[i] = (seg[i] - Mean[c]) / Std[c]
		}
	}
}

// ToVolume converts img to a normalized CHW volume.
func ToVolume(img *image.RGBA) *nn.Volume {
	v := toUnit(img)
	normalize(v)
	return v
}
