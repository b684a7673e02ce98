// Package optim holds the parameter-update subsystem: the optimizer
// description and the mutex-protected change accumulators that layers sum
// per-sample gradients into during a batch.
package optim

import (
	"math"
	"sync"

	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/tensor"
)

// Kind selects the update rule.
type Kind int

const (
	Null Kind = iota
	SGD
	RMSProp
	Adam

	kindCount
)

// SGDParams configures stochastic gradient descent with momentum.
type SGDParams struct {
	// Momentum is the exponential moving average factor, typically 0.9.
	Momentum float32
}

// RMSPropParams configures root-mean-square propagation.
type RMSPropParams struct {
	// Beta discounts old squared gradients, typically 0.999.
	Beta float32
	// Epsilon keeps the division stable.
	Epsilon float32
}

// AdamParams configures adaptive moment estimation.
type AdamParams struct {
	Beta1   float32
	Beta2   float32
	Epsilon float32
}

// Optimizer is the full update description. BatchSize is set by the
// training loop before changes are applied; workers sum raw gradients and
// the averaging happens here.
type Optimizer struct {
	LearningRate float32
	Kind         Kind

	SGD     SGDParams
	RMSProp RMSPropParams
	Adam    AdamParams

	BatchSize uint32
}

// ParamChange accumulates gradient updates for one parameter tensor. The
// accumulator is cleared after every apply; the moment tensors V and S
// persist across batches.
type ParamChange struct {
	mu     sync.Mutex
	change *tensor.Tensor
	v      *tensor.Tensor
	s      *tensor.Tensor
}

// NewParamChange creates an accumulator shape-aligned to its parameter.
func NewParamChange(shape tensor.Shape) *ParamChange {
	return &ParamChange{
		change: tensor.New(nil, shape),
		v:      tensor.New(nil, shape),
		s:      tensor.New(nil, shape),
	}
}

// Add sums a per-sample gradient into the accumulator. Safe to call from
// multiple workers; the critical section is just the element-wise add.
func (pc *ParamChange) Add(addend *tensor.Tensor) {
	pc.mu.Lock()
	tensor.AddIP(pc.change, pc.change, addend)
	pc.mu.Unlock()
}

// Apply performs one optimizer step on param using the accumulated changes,
// then clears the accumulator.
func (pc *ParamChange) Apply(optim *Optimizer, param *tensor.Tensor) {
	if optim.Kind < Null || optim.Kind >= kindCount {
		errs.Report(errs.InvalidEnum, "cannot update param: invalid optimizer kind")
		return
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	batch := float32(optim.BatchSize)
	if batch == 0 {
		batch = 1
	}
	invBatch := 1 / batch

	size := param.Shape.Size()
	g := pc.change.Data[:size]
	v := pc.v.Data[:size]
	s := pc.s.Data[:size]
	p := param.Data[:size]

	switch optim.Kind {
	case Null:
	case SGD:
		beta := optim.SGD.Momentum
		for i := 0; i < size; i++ {
			grad := g[i] * invBatch
			v[i] = beta*v[i] + (1-beta)*grad
			p[i] -= optim.LearningRate * v[i]
		}
	case RMSProp:
		beta := optim.RMSProp.Beta
		eps := optim.RMSProp.Epsilon
		if pc.s.IsZero() {
			for i := 0; i < size; i++ {
				grad := g[i] * invBatch
				s[i] = grad * grad
			}
		} else {
			for i := 0; i < size; i++ {
				grad := g[i] * invBatch
				s[i] = beta*s[i] + (1-beta)*grad*grad
			}
		}
		for i := 0; i < size; i++ {
			grad := g[i] * invBatch
			p[i] -= optim.LearningRate * grad / float32(math.Sqrt(float64(s[i]+eps)))
		}
	case Adam:
		a := optim.Adam
		for i := 0; i < size; i++ {
			grad := g[i] * invBatch
			v[i] = a.Beta1*v[i] + (1-a.Beta1)*grad
			s[i] = a.Beta2*s[i] + (1-a.Beta2)*grad*grad
			p[i] -= optim.LearningRate * v[i] / float32(math.Sqrt(float64(s[i]+a.Epsilon)))
		}
	}

	pc.change.Fill(0)
}
