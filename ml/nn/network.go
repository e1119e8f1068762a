package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// InputChannels is the channel count every input Volume must have.
const InputChannels = 3

// Network is the food classifier:
//
//	conv 5x5/4 (16) → relu → maxpool 2 → conv 3x3/2 (32) → relu →
//	conv 3x3/2 (64) → relu → global average pool → dense → logits
//
// With a 224×224 input the feature maps are 56, 28, 14 and 7 pixels wide.
type Network struct {
	NumClasses int
	Conv1      *Conv2D
	Pool       MaxPool2D
	Conv2      *Conv2D
	Conv3      *Conv2D
	FC         *Dense
}

func newNetwork(numClasses int) *Network {
	return &Network{
		NumClasses: numClasses,
		Conv1:      newConv2D(InputChannels, 16, 5, 4, 2),
		Pool:       MaxPool2D{Size: 2},
		Conv2:      newConv2D(16, 32, 3, 2, 1),
		Conv3:      newConv2D(32, 64, 3, 2, 1),
		FC:         newDense(64, numClasses),
	}
}

// NewNetwork returns a randomly initialized network.
func NewNetwork(numClasses int, rng *rand.Rand) *Network {
	n := newNetwork(numClasses)
	n.Conv1.heInit(rng)
	n.Conv2.heInit(rng)
	n.Conv3.heInit(rng)
	n.FC.xavierInit(rng)
	return n
}

// Params lists the trainable tensors in a fixed order matching Gradients.List.
func (n *Network) Params() [][]float64 {
	return [][]float64{
		n.Conv1.Weight, n.Conv1.Bias,
		n.Conv2.Weight, n.Conv2.Bias,
		n.Conv3.Weight, n.Conv3.Bias,
		n.FC.Weight, n.FC.Bias,
	}
}

// Activations keeps the intermediate results of one forward pass for Backward.
type Activations struct {
	Input   *Volume
	Conv1   *Volume
	Pooled1 *Volume
	poolArg []int
	Conv2   *Volume
	Conv3   *Volume
	Pooled  []float64
	Logits  []float64
}

func (n *Network) Forward(in *Volume) (*Activations, error) {
	if in.C != InputChannels {
		return nil, fmt.Errorf("nn: input has %d channels, want %d", in.C, InputChannels)
	}
	a := &Activations{Input: in}
	a.Conv1 = n.Conv1.Forward(in)
	ReLU(a.Conv1)
	a.Pooled1, a.poolArg = n.Pool.Forward(a.Conv1)
	a.Conv2 = n.Conv2.Forward(a.Pooled1)
	ReLU(a.Conv2)
	a.Conv3 = n.Conv3.Forward(a.Conv2)
	ReLU(a.Conv3)
	a.Pooled = GlobalAvgPool(a.Conv3)
	a.Logits = n.FC.Forward(a.Pooled)
	return a, nil
}

// Probabilities runs inference and returns the softmax distribution.
func (n *Network) Probabilities(in *Volume) ([]float64, error) {
	a, err := n.Forward(in)
	if err != nil {
		return nil, err
	}
	return Softmax(a.Logits), nil
}

// Backward accumulates the gradients of one sample into g.
func (n *Network) Backward(a *Activations, dLogits []float64, g *Gradients) {
	dPooled := n.FC.Backward(a.Pooled, dLogits, g.FCW, g.FCB)
	d3 := GlobalAvgPoolBackward(dPooled, a.Conv3)
	ReLUBackward(a.Conv3, d3)
	d2 := n.Conv3.Backward(a.Conv2, d3, g.Conv3W, g.Conv3B, true)
	ReLUBackward(a.Conv2, d2)
	dp1 := n.Conv2.Backward(a.Pooled1, d2, g.Conv2W, g.Conv2B, true)
	d1 := n.Pool.Backward(dp1, a.poolArg, a.Conv1)
	ReLUBackward(a.Conv1, d1)
	n.Conv1.Backward(a.Input, d1, g.Conv1W, g.Conv1B, false)
}

// Gradients mirrors the parameter layout of a Network.
type Gradients struct {
	Conv1W, Conv1B []float64
	Conv2W, Conv2B []float64
	Conv3W, Conv3B []float64
	FCW, FCB       []float64
}

func (n *Network) NewGradients() *Gradients {
	return &Gradients{
		Conv1W: make([]float64, len(n.Conv1.Weight)), Conv1B: make([]float64, len(n.Conv1.Bias)),
		Conv2W: make([]float64, len(n.Conv2.Weight)), Conv2B: make([]float64, len(n.Conv2.Bias)),
		Conv3W: make([]float64, len(n.Conv3.Weight)), Conv3B: make([]float64, len(n.Conv3.Bias)),
		FCW: make([]float64, len(n.FC.Weight)), FCB: make([]float64, len(n.FC.Bias)),
	}
}

func (g *Gradients) List() [][]float64 {
	return [][]float64{g.Conv1W, g.Conv1B, g.Conv2W, g.Conv2B, g.Conv3W, g.Conv3B, g.FCW, g.FCB}
}

func (g *Gradients) Add(o *Gradients) {
	src := o.List()
	for i, t := range g.List() {
		floats.Add(t, src[i])
	}
}

func (g *Gradients) Scale(f float64) {
	for _, t := range g.List() {
		floats.Scale(f, t)
	}
}

func (g *Gradients) Zero() {
	for _, t := range g.List() {
		for i := range t {
			t[i] = 0
		}
	}
}
