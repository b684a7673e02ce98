package layers

import (
	"fmt"

	"github.com/muchq/tensornet/optim"
	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

// denseBackend is the fully connected layer. The weight matrix is
// (out, in, 1) and the bias is (out, 1, 1); the forward pass is
// out = in * W + b.
type denseBackend struct {
	noop
	weight *tensor.Tensor
	bias   *tensor.Tensor

	weightChange *optim.ParamChange
	biasChange   *optim.ParamChange
}

func createDense(l *Layer, desc *Desc, prevShape tensor.Shape, rng *prng.Source) backend {
	inSize := prevShape.Width
	outSize := desc.Size

	biasShape := tensor.Shape{Width: outSize, Height: 1, Depth: 1}
	weightShape := tensor.Shape{Width: outSize, Height: inSize, Depth: 1}

	l.shape = biasShape

	d := &denseBackend{
		bias:   tensor.New(nil, biasShape),
		weight: tensor.New(nil, weightShape),
	}
	if l.trainingMode {
		d.biasChange = optim.NewParamChange(biasShape)
		d.weightChange = optim.NewParamChange(weightShape)
	}

	ParamInit(d.bias, desc.BiasInit, int(inSize), int(outSize), rng)
	ParamInit(d.weight, desc.WeightInit, int(inSize), int(outSize), rng)

	return d
}

func (d *denseBackend) feedforward(l *Layer, inOut *tensor.Tensor, cache *Cache) {
	if cache != nil && l.trainingMode {
		cache.Push(tensor.Copy(cache.Arena, inOut, false))
	}

	tensor.DotIP(inOut, false, false, inOut, d.weight)
	tensor.AddIP(inOut, inOut, d.bias)
}

func (d *denseBackend) backprop(_ *Layer, delta *tensor.Tensor, cache *Cache) {
	// Bias change is just delta.
	d.biasChange.Add(delta)

	// Weight change is the previous input dotted with delta.
	tmp, tmpArena := cache.tempArena()
	prevInput := cache.Pop()
	curWeightChange := tensor.Dot(tmpArena, true, false, prevInput, delta)
	d.weightChange.Add(curWeightChange)
	releaseTemp(tmp)

	// delta = delta * transpose(weight)
	tensor.DotIP(delta, false, true, delta, d.weight)
}

func (d *denseBackend) applyChanges(_ *Layer, optimizer *optim.Optimizer) {
	d.weightChange.Apply(optimizer, d.weight)
	d.biasChange.Apply(optimizer, d.bias)
}

func (d *denseBackend) save(_ *Layer, list *tensor.List, index uint32) {
	list.Push(d.weight, fmt.Sprintf("dense_weight_%d", index))
	list.Push(d.bias, fmt.Sprintf("dense_bias_%d", index))
}

func (d *denseBackend) load(_ *Layer, list *tensor.List, index uint32) {
	if w := list.Get(fmt.Sprintf("dense_weight_%d", index)); w != nil {
		tensor.CopyInto(d.weight, w)
	}
	if b := list.Get(fmt.Sprintf("dense_bias_%d", index)); b != nil {
		tensor.CopyInto(d.bias, b)
	}
}
