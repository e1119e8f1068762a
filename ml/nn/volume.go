// Package nn implements the small convolutional food classifier used by the
// local recognition stage: layers, loss, optimizer and the checkpoint format.
//
// Everything runs on float64 slices. Forward passes never mutate weights, so a
// single Network can serve concurrent inference and concurrent gradient
// computation as long as every goroutine owns its Gradients.
package nn

// Volume is a dense C×H×W tensor stored channel-major.
type Volume struct {
	C, H, W int
	Data    []float64
}

func NewVolume(c, h, w int) *Volume {
	return &Volume{C: c, H: h, W: w, Data: make([]float64, c*h*w)}
}

func (v *Volume) Len() int { return len(v.Data) }

func (v *Volume) index(c, y, x int) int { return (c*v.H+y)*v.W + x }

func (v *Volume) At(c, y, x int) float64 { return v.Data[v.index(c, y, x)] }

func (v *Volume) Set(c, y, x int, val float64) { v.Data[v.index(c, y, x)] = val }

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	out := NewVolume(v.C, v.H, v.W)
	copy(out.Data, v.Data)
	return out
}
