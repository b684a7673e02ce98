// Package cost implements the training cost functions: value for reporting
// and per-element gradient written in place over the prediction.
package cost

import (
	"math"

	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/tensor"
)

// Kind selects a cost function.
type Kind int

const (
	Null Kind = iota
	MeanSquaredError
	CategoricalCrossEntropy
)

const cceEpsilon = 1e-8

// Value computes the cost of a prediction against a target of the same
// shape.
func Value(kind Kind, in, target *tensor.Tensor) float32 {
	if in == nil || target == nil {
		errs.Report(errs.InvalidInput, "cannot compute cost with nil tensor(s)")
		return 0
	}
	if !in.Shape.Eq(target.Shape) {
		errs.Report(errs.BadShape, "prediction and target must align in cost function")
		return 0
	}

	size := in.Shape.Size()
	switch kind {
	case Null:
		return 0
	case MeanSquaredError:
		sum := float32(0)
		for i := 0; i < size; i++ {
			d := in.Data[i] - target.Data[i]
			sum += 0.5 * d * d
		}
		return sum / float32(size)
	case CategoricalCrossEntropy:
		sum := float32(0)
		for i := 0; i < size; i++ {
			sum += target.Data[i] * float32(math.Log(float64(in.Data[i])))
		}
		return -sum
	default:
		errs.Report(errs.InvalidEnum, "invalid cost function kind")
		return 0
	}
}

// Grad overwrites inOut with the cost gradient against target. The 1/N
// batch averaging is applied later by the parameter-change apply, so the
// gradient here is the raw per-sample term.
func Grad(kind Kind, inOut, target *tensor.Tensor) bool {
	if inOut == nil || target == nil {
		errs.Report(errs.InvalidInput, "cannot compute cost gradient with nil tensor(s)")
		return false
	}
	if !inOut.Shape.Eq(target.Shape) {
		errs.Report(errs.BadShape, "prediction and target must align in cost function")
		return false
	}

	size := inOut.Shape.Size()
	switch kind {
	case Null:
	case MeanSquaredError:
		for i := 0; i < size; i++ {
			inOut.Data[i] = inOut.Data[i] - target.Data[i]
		}
	case CategoricalCrossEntropy:
		for i := 0; i < size; i++ {
			inOut.Data[i] = -target.Data[i] / (inOut.Data[i] + cceEpsilon)
		}
	default:
		errs.Report(errs.InvalidEnum, "invalid cost function kind")
		return false
	}
	return true
}
