package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Softmax returns a numerically stable softmax of logits.
func Softmax(logits []float64) []float64 {
	max := floats.Max(logits)
	out := make([]float64, len(logits))
	var sum float64
	for i, z := range logits {
		out[i] = math.Exp(z - max)
		sum += out[i]
	}
	floats.Scale(1/sum, out)
	return out
}

// CrossEntropy returns the loss of logits against label and its gradient
// with respect to the logits.
func CrossEntropy(logits []float64, label int) (float64, []float64) {
	p := Softmax(logits)
	loss := -math.Log(math.Max(p[label], 1e-12))
	p[label] -= 1
	return loss, p
}

// Argmax returns the index of the largest value.
func Argmax(v []float64) int { return floats.MaxIdx(v) }

// Adam implements the Adam optimizer with L2 weight decay folded into the
// gradient.
type Adam struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64

	step int
	m, v [][]float64
}

func NewAdam(lr, weightDecay float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8, WeightDecay: weightDecay}
}

// Step updates params in place. params and grads must share layout across calls.
func (a *Adam) Step(params, grads [][]float64) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p))
			a.v[i] = make([]float64, len(p))
		}
	}
	a.step++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.step))
	for i, p := range params {
		g, m, v := grads[i], a.m[i], a.v[i]
		for j := range p {
			gj := g[j] + a.WeightDecay*p[j]
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*gj
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*gj*gj
			p[j] -= a.LR * (m[j] / bc1) / (math.Sqrt(v[j]/bc2) + a.Epsilon)
		}
	}
}

// StepLR decays the optimizer learning rate by Gamma every StepSize epochs.
type StepLR struct {
	opt      *Adam
	base     float64
	StepSize int
	Gamma    float64
	epoch    int
}

func NewStepLR(opt *Adam, stepSize int, gamma float64) *StepLR {
	return &StepLR{opt: opt, base: opt.LR, StepSize: stepSize, Gamma: gamma}
}

// Step is called once at the end of every epoch.
func (s *StepLR) Step() {
	s.epoch++
	if s.StepSize <= 0 {
		return
	}
	s.opt.LR = s.base * math.Pow(s.Gamma, float64(s.epoch/s.StepSize))
}
