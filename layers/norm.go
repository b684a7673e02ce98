package layers

import (
	"math"

	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

// normBackend normalizes across every element of the tensor:
// out = (in - mean) / sqrt(variance + epsilon).
//
// The backward pass only scales the gradient by 1/stddev; the mean and
// variance contributions are intentionally left out to preserve the
// engine's established training behavior.
type normBackend struct {
	noop
	epsilon float32
}

func createNorm(l *Layer, desc *Desc, prevShape tensor.Shape, _ *prng.Source) backend {
	l.shape = prevShape
	return &normBackend{epsilon: desc.Epsilon}
}

func (n *normBackend) feedforward(l *Layer, inOut *tensor.Tensor, cache *Cache) {
	data := inOut.Data[:inOut.Shape.Size()]
	size := float32(len(data))

	mean := float32(0)
	for _, v := range data {
		mean += v
	}
	mean /= size

	variance := float32(0)
	for _, v := range data {
		variance += (v - mean) * (v - mean)
	}
	stdDev := float32(math.Sqrt(float64(variance/size + n.epsilon)))

	for i := range data {
		data[i] = (data[i] - mean) / stdDev
	}

	if cache != nil && l.trainingMode {
		stdv := tensor.New(cache.Arena, tensor.Shape{Width: 1, Height: 1, Depth: 1})
		stdv.Data[0] = stdDev
		cache.Push(stdv)
	}
}

func (n *normBackend) backprop(_ *Layer, delta *tensor.Tensor, cache *Cache) {
	stdv := cache.Pop()
	tensor.ScaleIP(delta, delta, 1/stdv.Data[0])
}
