package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Conv2D is a square-kernel convolution with zero padding.
type Conv2D struct {
	InC, OutC      int
	Kernel, Stride int
	Pad            int
	Weight         []float64 // OutC × InC × Kernel × Kernel
	Bias           []float64 // OutC
}

func newConv2D(inC, outC, kernel, stride, pad int) *Conv2D {
	return &Conv2D{
		InC: inC, OutC: outC, Kernel: kernel, Stride: stride, Pad: pad,
		Weight: make([]float64, outC*inC*kernel*kernel),
		Bias:   make([]float64, outC),
	}
}

// heInit fills the weights from N(0, 2/fanIn).
func (l *Conv2D) heInit(rng *rand.Rand) {
	std := math.Sqrt(2 / float64(l.InC*l.Kernel*l.Kernel))
	for i := range l.Weight {
		l.Weight[i] = rng.NormFloat64() * std
	}
}

func (l *Conv2D) OutSize(h, w int) (int, int) {
	return (h+2*l.Pad-l.Kernel)/l.Stride + 1, (w+2*l.Pad-l.Kernel)/l.Stride + 1
}

func (l *Conv2D) widx(oc, ic, ky int) int {
	return ((oc*l.InC+ic)*l.Kernel + ky) * l.Kernel
}

func (l *Conv2D) Forward(in *Volume) *Volume {
	oh, ow := l.OutSize(in.H, in.W)
	out := NewVolume(l.OutC, oh, ow)
	for oc := 0; oc < l.OutC; oc++ {
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				sum := l.Bias[oc]
				for ic := 0; ic < l.InC; ic++ {
					for ky := 0; ky < l.Kernel; ky++ {
						iy := oy*l.Stride - l.Pad + ky
						if iy < 0 || iy >= in.H {
							continue
						}
						wrow := l.widx(oc, ic, ky)
						irow := (ic*in.H + iy) * in.W
						for kx := 0; kx < l.Kernel; kx++ {
							ix := ox*l.Stride - l.Pad + kx
							if ix < 0 || ix >= in.W {
								continue
							}
							sum += l.Weight[wrow+kx] * in.Data[irow+ix]
						}
					}
				}
				out.Data[(oc*oh+oy)*ow+ox] = sum
			}
		}
	}
	return out
}

// Backward accumulates parameter gradients into dW and dB and returns the
// gradient with respect to in. When needInput is false the input gradient is
// skipped and nil is returned.
func (l *Conv2D) Backward(in, dOut *Volume, dW, dB []float64, needInput bool) *Volume {
	var dIn *Volume
	if needInput {
		dIn = NewVolume(in.C, in.H, in.W)
	}
	oh, ow := dOut.H, dOut.W
	for oc := 0; oc < l.OutC; oc++ {
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				g := dOut.Data[(oc*oh+oy)*ow+ox]
				if g == 0 {
					continue
				}
				dB[oc] += g
				for ic := 0; ic < l.InC; ic++ {
					for ky := 0; ky < l.Kernel; ky++ {
						iy := oy*l.Stride - l.Pad + ky
						if iy < 0 || iy >= in.H {
							continue
						}
						wrow := l.widx(oc, ic, ky)
						irow := (ic*in.H + iy) * in.W
						for kx := 0; kx < l.Kernel; kx++ {
							ix := ox*l.Stride - l.Pad + kx
							if ix < 0 || ix >= in.W {
								continue
							}
							dW[wrow+kx] += g * in.Data[irow+ix]
							if dIn != nil {
								dIn.Data[irow+ix] += l.Weight[wrow+kx] * g
							}
						}
					}
				}
			}
		}
	}
	return dIn
}

// MaxPool2D pools non-overlapping Size×Size windows. Trailing rows and
// columns that do not fill a window are dropped.
type MaxPool2D struct {
	Size int
}

func (p MaxPool2D) Forward(in *Volume) (*Volume, []int) {
	oh, ow := in.H/p.Size, in.W/p.Size
	out := NewVolume(in.C, oh, ow)
	argmax := make([]int, out.Len())
	for c := 0; c < in.C; c++ {
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				best, bi := math.Inf(-1), -1
				for dy := 0; dy < p.Size; dy++ {
					row := (c*in.H + oy*p.Size + dy) * in.W
					for dx := 0; dx < p.Size; dx++ {
						i := row + ox*p.Size + dx
						if in.Data[i] > best {
							best, bi = in.Data[i], i
						}
					}
				}
				o := (c*oh+oy)*ow + ox
				out.Data[o] = best
				argmax[o] = bi
			}
		}
	}
	return out, argmax
}

// Backward routes each output gradient to the input element that won the max.
func (p MaxPool2D) Backward(dOut *Volume, argmax []int, in *Volume) *Volume {
	dIn := NewVolume(in.C, in.H, in.W)
	for o, i := range argmax {
		dIn.Data[i] += dOut.Data[o]
	}
	return dIn
}

// ReLU clamps negatives to zero in place.
func ReLU(v *Volume) {
	for i, x := range v.Data {
		if x < 0 {
			v.Data[i] = 0
		}
	}
}

// ReLUBackward zeroes dOut wherever the activation out was clamped.
func ReLUBackward(out, dOut *Volume) {
	for i, x := range out.Data {
		if x <= 0 {
			dOut.Data[i] = 0
		}
	}
}

// GlobalAvgPool averages each channel down to a single value.
func GlobalAvgPool(in *Volume) []float64 {
	hw := in.H * in.W
	out := make([]float64, in.C)
	for c := range out {
		out[c] = floats.Sum(in.Data[c*hw:(c+1)*hw]) / float64(hw)
	}
	return out
}

func GlobalAvgPoolBackward(d []float64, in *Volume) *Volume {
	hw := in.H * in.W
	dIn := NewVolume(in.C, in.H, in.W)
	for c, g := range d {
		share := g / float64(hw)
		seg := dIn.Data[c*hw : (c+1)*hw]
		for i := range seg {
			seg[i] = share
		}
	}
	return dIn
}

// Dense is a fully connected layer.
type Dense struct {
	In, Out int
	Weight  []float64 // Out × In, row-major
	Bias    []float64
}

func newDense(in, out int) *Dense {
	return &Dense{In: in, Out: out, Weight: make([]float64, in*out), Bias: make([]float64, out)}
}

func (l *Dense) xavierInit(rng *rand.Rand) {
	std := math.Sqrt(1 / float64(l.In))
	for i := range l.Weight {
		l.Weight[i] = rng.NormFloat64() * std
	}
}

func (l *Dense) row(o int) []float64 { return l.Weight[o*l.In : (o+1)*l.In] }

func (l *Dense) Forward(x []float64) []float64 {
	y := make([]float64, l.Out)
	for o := range y {
		y[o] = l.Bias[o] + floats.Dot(l.row(o), x)
	}
	return y
}

func (l *Dense) Backward(x, dOut, dW, dB []float64) []float64 {
	dx := make([]float64, l.In)
	for o, g := range dOut {
		if g == 0 {
			continue
		}
		dB[o] += g
		floats.AddScaled(dW[o*l.In:(o+1)*l.In], g, x)
		floats.AddScaled(dx, g, l.row(o))
	}
	return dx
}
