package preprocess

import (
	"image"
	"math"
	"math/rand"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"diettracker/ml/nn"
)

// Augmenter applies the training-time transforms: random resized crop,
// horizontal flip, rotation and color jitter. An Augmenter is not safe for
// concurrent use; give each worker its own.
type Augmenter struct {
	rng *rand.Rand

	MinScale, MaxScale float64
	MinRatio, MaxRatio float64
	MaxRotation        float64 // degrees
	Brightness         float64
	Contrast           float64
	Saturation         float64
	Hue                float64
}

func NewAugmenter(seed int64) *Augmenter {
	return &Augmenter{
		rng:         rand.New(rand.NewSource(seed)),
		MinScale:    0.08,
		MaxScale:    1.0,
		MinRatio:    3.0 / 4.0,
		MaxRatio:    4.0 / 3.0,
		MaxRotation: 15,
		Brightness:  0.2,
		Contrast:    0.2,
		Saturation:  0.2,
		Hue:         0.1,
	}
}

// Apply returns a normalized 3×224×224 training volume.
func (a *Augmenter) Apply(img image.Image) *nn.Volume {
	crop := a.randomResizedCrop(img, CropSize)
	if a.rng.Float64() < 0.5 {
		flipHorizontal(crop)
	}
	crop = a.rotate(crop)
	v := toUnit(crop)
	a.jitter(v)
	normalize(v)
	return v
}

func (a *Augmenter) uniform(lo, hi float64) float64 {
	return lo + a.rng.Float64()*(hi-lo)
}

// randomResizedCrop picks a region covering a random share of the area with
// a random aspect ratio and scales it to size×size. After ten failed draws it
// falls back to a center crop.
func (a *Augmenter) randomResizedCrop(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	area := float64(w * h)
	logLo, logHi := math.Log(a.MinRatio), math.Log(a.MaxRatio)

	region := image.Rectangle{}
	for attempt := 0; attempt < 10; attempt++ {
		target := area * a.uniform(a.MinScale, a.MaxScale)
		ratio := math.Exp(a.uniform(logLo, logHi))
		cw := int(math.Round(math.Sqrt(target * ratio)))
		ch := int(math.Round(math.Sqrt(target / ratio)))
		if cw > 0 && ch > 0 && cw <= w && ch <= h {
			x := b.Min.X + a.rng.Intn(w-cw+1)
			y := b.Min.Y + a.rng.Intn(h-ch+1)
			region = image.Rect(x, y, x+cw, y+ch)
			break
		}
	}
	if region.Empty() {
		side := w
		if h < side {
			side = h
		}
		x := b.Min.X + (w-side)/2
		y := b.Min.Y + (h-side)/2
		region = image.Rect(x, y, x+side, y+side)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, region, draw.Src, nil)
	return dst
}

func flipHorizontal(img *image.RGBA) {
	b := img.Bounds()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for l, r := 0, w-1; l < r; l, r = l+1, r-1 {
			for k := 0; k < 4; k++ {
				row[l*4+k], row[r*4+k] = row[r*4+k], row[l*4+k]
			}
		}
	}
}

// rotate turns img about its center by a random angle. Uncovered corners
// stay black.
func (a *Augmenter) rotate(img *image.RGBA) *image.RGBA {
	if a.MaxRotation <= 0 {
		return img
	}
	theta := a.uniform(-a.MaxRotation, a.MaxRotation) * math.Pi / 180
	b := img.Bounds()
	cx, cy := float64(b.Dx())/2, float64(b.Dy())/2
	cos, sin := math.Cos(theta), math.Sin(theta)
	s2d := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	dst := image.NewRGBA(b)
	draw.BiLinear.Transform(dst, s2d, img, b, draw.Src, nil)
	return dst
}

// jitter perturbs brightness, contrast, saturation and hue in random order on
// a [0,1] volume.
func (a *Augmenter) jitter(v *nn.Volume) {
	plane := v.H * v.W
	r, g, bl := v.Data[:plane], v.Data[plane:2*plane], v.Data[2*plane:]
	for _, op := range a.rng.Perm(4) {
		switch op {
		case 0:
			if a.Brightness > 0 {
				f := a.uniform(1-a.Brightness, 1+a.Brightness)
				for i := range v.Data {
					v.Data[i] = clamp01(v.Data[i] * f)
				}
			}
		case 1:
			if a.Contrast > 0 {
				f := a.uniform(1-a.Contrast, 1+a.Contrast)
				var mean float64
				for i := 0; i < plane; i++ {
					mean += gray(r[i], g[i], bl[i])
				}
				mean /= float64(plane)
				for i := range v.Data {
					v.Data[i] = clamp01((v.Data[i]-mean)*f + mean)
				}
			}
		case 2:
			if a.Saturation > 0 {
				f := a.uniform(1-a.Saturation, 1+a.Saturation)
				for i := 0; i < plane; i++ {
					y := gray(r[i], g[i], bl[i])
					r[i] = clamp01((r[i]-y)*f + y)
					g[i] = clamp01((g[i]-y)*f + y)
					bl[i] = clamp01((bl[i]-y)*f + y)
				}
			}
		case 3:
			if a.Hue > 0 {
				shiftHue(r, g, bl, a.uniform(-a.Hue, a.Hue)*2*math.Pi)
			}
		}
	}
}

func gray(r, g, b float64) float64 { return 0.299*r + 0.587*g + 0.114*b }

// shiftHue rotates chroma in YIQ space by theta radians.
func shiftHue(r, g, b []float64, theta float64) {
	cos, sin := math.Cos(theta), math.Sin(theta)
	for i := range r {
		y := 0.299*r[i] + 0.587*g[i] + 0.114*b[i]
		iq := 0.596*r[i] - 0.274*g[i] - 0.322*b[i]
		q := 0.211*r[i] - 0.523*g[i] + 0.312*b[i]
		iq, q = iq*cos-q*sin, iq*sin+q*cos
		r[i] = clamp01(y + 0.956*iq + 0.621*q)
		g[i] = clamp01(y - 0.272*iq - 0.647*q)
		b[i] = clamp01(y - 1.106*iq + 1.703*q)
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
