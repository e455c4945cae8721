package train

import (
	"math"

	"github.com/TesterSim2/Gazelle/internal/tensor"
)

// Optimizer applies one update to a parameter set using the gradients
// accumulated on each tensor.
type Optimizer interface {
	Step(params []*tensor.Tensor)
}

// SGD is plain stochastic gradient descent with optional weight decay.
type SGD struct {
	LearningRate float64
	WeightDecay  float64
}

func (o *SGD) Step(params []*tensor.Tensor) {
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		for i := range p.Data {
			g := p.Grad[i]
			if o.WeightDecay > 0 {
				g += o.WeightDecay * p.Data[i]
			}
			p.Data[i] -= o.LearningRate * g
		}
	}
}

// Adam keeps first and second moment estimates per parameter. State is
// allocated lazily on the first step and indexed by position in the
// parameter slice, so the caller must pass the same ordering each time.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Eps          float64
	WeightDecay  float64

	step int
	m    [][]float64
	v    [][]float64
}

// NewAdam returns an Adam optimizer with the usual defaults for the
// moment decay rates.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Eps:          1e-8,
	}
}

func (o *Adam) Step(params []*tensor.Tensor) {
	if o.m == nil {
		o.m = make([][]float64, len(params))
		o.v = make([][]float64, len(params))
		for i, p := range params {
			o.m[i] = make([]float64, p.Size())
			o.v[i] = make([]float64, p.Size())
		}
	}

	o.step++
	bc1 := 1 - math.Pow(o.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(o.Beta2, float64(o.step))

	for pi, p := range params {
		if p.Grad == nil {
			continue
		}
		m, v := o.m[pi], o.v[pi]
		for i := range p.Data {
			g := p.Grad[i]
			if o.WeightDecay > 0 {
				g += o.WeightDecay * p.Data[i]
			}

			m[i] = o.Beta1*m[i] + (1-o.Beta1)*g
			v[i] = o.Beta2*v[i] + (1-o.Beta2)*g*g

			mHat := m[i] / bc1
			vHat := v[i] / bc2

			p.Data[i] -= o.LearningRate * mHat / (math.Sqrt(vHat) + o.Eps)
		}
	}
}

// clipGradients rescales all gradients so their global L2 norm does not
// exceed maxNorm. Returns the pre-clip norm.
func clipGradients(params []*tensor.Tensor, maxNorm float64) float64 {
	total := 0.0
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		for _, g := range p.Grad {
			total += g * g
		}
	}
	norm := math.Sqrt(total)
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}

	scale := maxNorm / norm
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		for i := range p.Grad {
			p.Grad[i] *= scale
		}
	}
	return norm
}
