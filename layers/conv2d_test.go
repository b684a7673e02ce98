package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muchq/tensornet/optim"
	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

func convLayer(t *testing.T, desc Desc, prevShape tensor.Shape) *Layer {
	t.Helper()
	full := ApplyDefault(desc)
	l := Create(&full, prevShape, prng.NewSeeded(42))
	require.NotNil(t, l)
	return l
}

func TestConvShapeValid(t *testing.T) {
	l := convLayer(t, Desc{
		Kind:       Conv2D,
		NumFilters: 8,
		KernelSize: 3,
	}, tensor.Shape{Width: 28, Height: 28, Depth: 1})

	assert.Equal(t, tensor.Shape{Width: 26, Height: 26, Depth: 8}, l.Shape())
}

func TestConvShapeSamePadding(t *testing.T) {
	l := convLayer(t, Desc{
		Kind:       Conv2D,
		NumFilters: 4,
		KernelSize: 3,
		Padding:    true,
	}, tensor.Shape{Width: 28, Height: 28, Depth: 1})

	assert.Equal(t, tensor.Shape{Width: 28, Height: 28, Depth: 4}, l.Shape())
}

func TestConvForwardOnesKernel(t *testing.T) {
	l := convLayer(t, Desc{
		Kind:        Conv2D,
		NumFilters:  1,
		KernelSize:  2,
		KernelsInit: InitOnes,
	}, tensor.Shape{Width: 3, Height: 3, Depth: 1})

	in := tensor.NewAlloc(nil, tensor.Shape{Width: 3, Height: 3, Depth: 1}, 16)
	for i := 0; i < 9; i++ {
		in.Data[i] = float32(i)
	}

	l.Feedforward(in, nil)
	assert.Equal(t, tensor.Shape{Width: 2, Height: 2, Depth: 1}, in.Shape)
	// Each output is its window's sum under an all-ones kernel.
	assert.Equal(t, []float32{8, 12, 20, 24}, in.Data[:4])
}

func TestConvBackwardShapesAndCache(t *testing.T) {
	prevShape := tensor.Shape{Width: 6, Height: 6, Depth: 2}
	l := convLayer(t, Desc{
		Kind:         Conv2D,
		TrainingMode: true,
		NumFilters:   3,
		KernelSize:   3,
		Padding:      true,
	}, prevShape)

	require.Equal(t, tensor.Shape{Width: 6, Height: 6, Depth: 3}, l.Shape())
	cache := newCache()

	inOut := tensor.NewAlloc(nil, prevShape, 4096)
	for i := 0; i < prevShape.Size(); i++ {
		inOut.Data[i] = float32(i%7) * 0.25
	}

	l.Feedforward(inOut, cache)
	assert.Equal(t, l.Shape(), inOut.Shape)

	l.Backprop(inOut, cache)
	assert.Equal(t, prevShape, inOut.Shape)
	assert.Equal(t, 0, cache.Len())
}

func TestConvApplyChangesMovesKernels(t *testing.T) {
	prevShape := tensor.Shape{Width: 4, Height: 4, Depth: 1}
	l := convLayer(t, Desc{
		Kind:         Conv2D,
		TrainingMode: true,
		NumFilters:   2,
		KernelSize:   2,
		Stride:       2,
		KernelsInit:  InitZeros,
	}, prevShape)

	cache := newCache()
	inOut := tensor.NewAlloc(nil, prevShape, 64)
	inOut.Fill(1)

	l.Feedforward(inOut, cache)
	inOut.Fill(1) // unit delta
	l.Backprop(inOut, cache)

	l.ApplyChanges(&optim.Optimizer{LearningRate: 1, Kind: optim.SGD, BatchSize: 1})

	c := l.backend.(*conv2dBackend)
	// Every kernel weight saw the same gradient: sum over the four
	// windows of all-ones input, so the step is -4 everywhere.
	for _, v := range c.kernels.Data {
		assert.InDelta(t, -4, v, 1e-6)
	}
}

func TestConvSaveLoad(t *testing.T) {
	prevShape := tensor.Shape{Width: 8, Height: 8, Depth: 1}
	desc := Desc{Kind: Conv2D, NumFilters: 2, KernelSize: 3}

	l := convLayer(t, desc, prevShape)
	var list tensor.List
	l.Save(&list, 1)
	require.NotNil(t, list.Get("conv_2d_kernels_1"))
	require.NotNil(t, list.Get("conv_2d_biases_1"))

	l2 := convLayer(t, desc, prevShape)
	l2.Load(&list, 1)

	c, c2 := l.backend.(*conv2dBackend), l2.backend.(*conv2dBackend)
	assert.Equal(t, c.kernels.Data, c2.kernels.Data)
	assert.Equal(t, c.biases.Data, c2.biases.Data)
}
