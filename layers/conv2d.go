package layers

import (
	"fmt"

	"github.com/muchq/tensornet/arena"
	"github.com/muchq/tensornet/optim"
	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

// conv2dBackend reduces convolution to one matrix multiply: the input is
// laid out as columns, dotted with the flattened kernels, and the result
// reshaped to the output planes.
//
// Tensors are fixed at three dimensions, so the kernels collapse to
// (K*K*inDepth, numFilters, 1). Biases match the output shape.
type conv2dBackend struct {
	noop
	kernelSize uint32
	stride     uint32
	padding    uint32
	inputShape tensor.Shape

	kernels *tensor.Tensor
	biases  *tensor.Tensor

	kernelsChange *optim.ParamChange
	biasesChange  *optim.ParamChange
}

func createConv2D(l *Layer, desc *Desc, prevShape tensor.Shape, rng *prng.Source) backend {
	c := &conv2dBackend{
		kernelSize: desc.KernelSize,
		stride:     desc.Stride,
		inputShape: prevShape,
	}

	if desc.Padding {
		// Same-size output when the stride is 1.
		c.padding = (desc.KernelSize - 1) / 2
	}

	paddedShape := tensor.Shape{
		Width:  prevShape.Width + c.padding*2,
		Height: prevShape.Height + c.padding*2,
		Depth:  prevShape.Depth,
	}
	kernelShape := tensor.Shape{Width: desc.KernelSize, Height: desc.KernelSize, Depth: 1}
	l.shape = tensor.ConvShape(paddedShape, kernelShape, desc.Stride, desc.Stride)
	l.shape.Depth = desc.NumFilters

	kernelsShape := tensor.Shape{
		Width:  desc.KernelSize * desc.KernelSize * prevShape.Depth,
		Height: desc.NumFilters,
		Depth:  1,
	}

	c.kernels = tensor.New(nil, kernelsShape)
	c.biases = tensor.New(nil, l.shape)

	inSize := prevShape.Size()
	outSize := l.shape.Size()
	ParamInit(c.kernels, desc.KernelsInit, inSize, outSize, rng)
	ParamInit(c.biases, desc.BiasesInit, inSize, outSize, rng)

	if l.trainingMode {
		c.kernelsChange = optim.NewParamChange(kernelsShape)
		c.biasesChange = optim.NewParamChange(l.shape)
	}

	return c
}

func (c *conv2dBackend) feedforward(l *Layer, inOut *tensor.Tensor, cache *Cache) {
	// Columns must survive until backprop, so they go on the cache arena
	// rather than a temp; without a cache they are discarded after the
	// multiply.
	var colArena *arena.Arena
	if cache != nil {
		colArena = cache.Arena
	}

	inputCols := tensor.Im2Col(colArena, inOut, c.kernelSize, c.stride, c.padding)
	if cache != nil {
		cache.Push(inputCols)
	}

	tensor.DotIP(inOut, false, false, c.kernels, inputCols)
	inOut.Shape = l.shape

	tensor.AddIP(inOut, inOut, c.biases)
}

func (c *conv2dBackend) backprop(_ *Layer, delta *tensor.Tensor, cache *Cache) {
	// Biases change is just delta.
	c.biasesChange.Add(delta)

	inputCols := cache.Pop()

	// deltaView flattens the spatial dims so the kernel math is 2D.
	deltaView := tensor.Tensor{
		Shape: tensor.Shape{
			Width:  delta.Shape.Width * delta.Shape.Height,
			Height: delta.Shape.Depth,
			Depth:  1,
		},
		Data:  delta.Data,
		Alloc: delta.Alloc,
	}

	tmp, tmpArena := cache.tempArena()

	// kernels change = deltaView * transpose(cols)
	kernelsChange := tensor.Dot(tmpArena, false, true, &deltaView, inputCols)
	c.kernelsChange.Add(kernelsChange)

	releaseTemp(tmp)
	tmp, tmpArena = cache.tempArena()

	// The delta update happens in column space, then col2im rebuilds the
	// input-space gradient.
	deltaCols := tensor.Dot(tmpArena, true, false, c.kernels, &deltaView)
	tensor.Col2ImIP(delta, deltaCols, c.inputShape, c.kernelSize, c.stride, c.padding)

	releaseTemp(tmp)
}

func (c *conv2dBackend) applyChanges(_ *Layer, optimizer *optim.Optimizer) {
	c.kernelsChange.Apply(optimizer, c.kernels)
	c.biasesChange.Apply(optimizer, c.biases)
}

func (c *conv2dBackend) save(_ *Layer, list *tensor.List, index uint32) {
	list.Push(c.kernels, fmt.Sprintf("conv_2d_kernels_%d", index))
	list.Push(c.biases, fmt.Sprintf("conv_2d_biases_%d", index))
}

func (c *conv2dBackend) load(_ *Layer, list *tensor.List, index uint32) {
	if k := list.Get(fmt.Sprintf("conv_2d_kernels_%d", index)); k != nil {
		tensor.CopyInto(c.kernels, k)
	}
	if b := list.Get(fmt.Sprintf("conv_2d_biases_%d", index)); b != nil {
		tensor.CopyInto(c.biases, b)
	}
}
